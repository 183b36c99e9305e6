// Package render turns statistics and heatmap grids into chat text and
// terminal output.
package render

import (
	"fmt"
	"html"
	"strings"
	"time"

	"habit-tracker/internal/stats"
)

// Levels is the number of color-scale buckets, including the empty one.
const Levels = stats.MaxDisplayCount + 1

var (
	rowLabels = [stats.DaysPerWeek]string{"Mo", "Tu", "We", "Th", "Fr", "Sa", "Su"}
	// text glyphs per level, lightest first
	glyphs = [Levels]string{"·", "░", "▒", "▓", "█"}
)

// Level maps a day count onto the color scale: 0 is empty and 4 is the
// highest intensity, reached at four or more completions.
func Level(count int) int {
	return stats.Clamp(count)
}

// CategoryName is the display label of a hashtag.
func CategoryName(hashtag string) string {
	if hashtag == "" {
		return "uncategorized"
	}
	return "#" + hashtag
}

// HeatmapText renders the last weeks columns of g as a monospace block for
// Telegram HTML messages. weeks outside 1..52 shows the whole grid.
func HeatmapText(category string, g stats.Grid, weeks int) string {
	if weeks <= 0 || weeks > stats.WeeksShown {
		weeks = stats.WeeksShown
	}
	first := stats.WeeksShown - weeks

	var b strings.Builder
	b.WriteString(fmt.Sprintf("<b>%s</b> · %s to %s\n",
		html.EscapeString(CategoryName(category)), g.Cells[0][first].Date, g.End))
	b.WriteString("<pre>")
	b.WriteString("   ")
	b.WriteString(monthHeader(g, first))
	b.WriteByte('\n')
	for row := 0; row < stats.DaysPerWeek; row++ {
		b.WriteString(rowLabels[row])
		b.WriteByte(' ')
		for col := first; col < stats.WeeksShown; col++ {
			cell := g.At(row, col)
			switch {
			case cell.Date.Before(g.Today) || cell.Date == g.Today:
				b.WriteString(glyphs[Level(cell.Count)])
			default:
				b.WriteByte(' ')
			}
		}
		b.WriteByte('\n')
	}
	b.WriteString("</pre>")
	b.WriteString(fmt.Sprintf("less %s more", strings.Join(glyphs[:], "")))
	return b.String()
}

// monthHeader puts the first letter of a month above the first column whose
// Monday falls in that month.
func monthHeader(g stats.Grid, first int) string {
	var b strings.Builder
	for col := first; col < stats.WeeksShown; col++ {
		monday := g.At(0, col).Date
		if monday.Day <= stats.DaysPerWeek {
			b.WriteString(monday.Month.String()[:1])
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// StatsText lists categories with a ten-step progress bar.
func StatsText(list []stats.CategoryStat) string {
	if len(list) == 0 {
		return "No tasks yet."
	}

	var b strings.Builder
	b.WriteString("📊 <b>Statistics</b>\n")
	for _, s := range list {
		filled := s.CompletionRate / 10
		bar := strings.Repeat("▰", filled) + strings.Repeat("▱", 10-filled)
		b.WriteString(fmt.Sprintf("\n<b>%s</b>\n%s %d%% · %d of %d done\n",
			html.EscapeString(CategoryName(s.Name)), bar, s.CompletionRate, s.CompletedTasks, s.TotalTasks))
	}
	return strings.TrimSpace(b.String())
}

// SummaryText is a one-line digest of a streak summary.
func SummaryText(s stats.Summary) string {
	if s.Total == 0 {
		return "No completions in this period."
	}
	parts := []string{
		fmt.Sprintf("%d done on %d days", s.Total, s.ActiveDays),
		fmt.Sprintf("streak %d (best %d)", s.CurrentStreak, s.LongestStreak),
	}
	if s.BusiestDay != nil {
		day := s.BusiestDay.Date.In(time.UTC)
		parts = append(parts, fmt.Sprintf("busiest %s (%d)", day.Format("Jan 2, 2006"), s.BusiestDay.Count))
	}
	return strings.Join(parts, " · ")
}
