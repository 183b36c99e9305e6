package stats

// Summary holds streak figures for one series of day counts.
type Summary struct {
	Total         int
	ActiveDays    int
	CurrentStreak int
	LongestStreak int
	BusiestDay    *DayCount
}

// Summarize computes totals and streaks. The current streak ends today, or
// yesterday when nothing has been completed today yet.
func Summarize(dayCounts []DayCount, today Date) Summary {
	var s Summary
	active := make(map[Date]int, len(dayCounts))
	for _, dc := range dayCounts {
		if dc.Count <= 0 {
			continue
		}
		active[dc.Date] += dc.Count
	}

	for date, count := range active {
		s.Total += count
		s.ActiveDays++
		if s.BusiestDay == nil || count > s.BusiestDay.Count ||
			(count == s.BusiestDay.Count && date.Before(s.BusiestDay.Date)) {
			s.BusiestDay = &DayCount{Date: date, Count: count}
		}

		// Only walk runs from their first day.
		if _, ok := active[date.AddDays(-1)]; ok {
			continue
		}
		run := 0
		for d := date; active[d] > 0; d = d.AddDays(1) {
			run++
		}
		if run > s.LongestStreak {
			s.LongestStreak = run
		}
	}

	start := today
	if active[start] == 0 {
		start = today.AddDays(-1)
	}
	for d := start; active[d] > 0; d = d.AddDays(-1) {
		s.CurrentStreak++
	}
	return s
}
