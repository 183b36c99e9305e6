// Package stats turns task records into completion statistics and a
// calendar heatmap grid. Everything here is a pure function of its inputs.
package stats

import (
	"sort"
	"strings"
	"time"

	"habit-tracker/internal/model"
)

// CategoryStat summarises the tasks carrying one hashtag.
type CategoryStat struct {
	Name           string
	Uncategorized  bool
	TotalTasks     int
	CompletedTasks int
	CompletionRate int // percent, 0..100
}

// DayCount is the number of tasks completed on one local calendar date.
type DayCount struct {
	Date  Date
	Count int
}

// ComputeStatistics groups tasks by hashtag and counts totals and completions.
// Tasks without a hashtag share a single uncategorized group. Groups are
// returned in the order they were first seen.
func ComputeStatistics(tasks []model.Task) []CategoryStat {
	out := make([]CategoryStat, 0)
	index := make(map[string]int)

	for _, task := range tasks {
		i, ok := index[task.Hashtag]
		if !ok {
			i = len(out)
			index[task.Hashtag] = i
			out = append(out, CategoryStat{Name: task.Hashtag, Uncategorized: task.Uncategorized()})
		}
		out[i].TotalTasks++
		if task.IsCompleted {
			out[i].CompletedTasks++
		}
	}

	for i := range out {
		out[i].CompletionRate = completionRate(out[i].CompletedTasks, out[i].TotalTasks)
	}
	return out
}

// ComputeDayCounts counts completions of the given hashtag ("" for
// uncategorized) per calendar date in loc. Dates without completions are
// omitted and the result is sorted by date.
func ComputeDayCounts(tasks []model.Task, category string, loc *time.Location) []DayCount {
	return countByDate(tasks, loc, func(task model.Task) bool {
		return task.Hashtag == category
	})
}

// ComputeActivity is ComputeDayCounts across every category.
func ComputeActivity(tasks []model.Task, loc *time.Location) []DayCount {
	return countByDate(tasks, loc, func(model.Task) bool { return true })
}

func countByDate(tasks []model.Task, loc *time.Location, keep func(model.Task) bool) []DayCount {
	if loc == nil {
		loc = time.Local
	}

	counts := make(map[Date]int)
	for _, task := range tasks {
		if !task.IsCompleted || task.CompletedAt == nil || !keep(task) {
			continue
		}
		counts[DateOf(task.CompletedAt.In(loc))]++
	}

	out := make([]DayCount, 0, len(counts))
	for date, count := range counts {
		out = append(out, DayCount{Date: date, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// SortByCompleted orders stats for display: most completed first, then by
// name, with the uncategorized group last among equals.
func SortByCompleted(list []CategoryStat) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.CompletedTasks != b.CompletedTasks {
			return a.CompletedTasks > b.CompletedTasks
		}
		if a.Uncategorized != b.Uncategorized {
			return b.Uncategorized
		}
		return strings.Compare(a.Name, b.Name) < 0
	})
}

// completionRate is round(100*completed/total) with halves rounded up.
func completionRate(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*completed + total) / (2 * total)
}
