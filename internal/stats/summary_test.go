package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, Date{2024, time.March, 6})
	assert.Equal(t, Summary{}, s)
}

func TestSummarize_Streaks(t *testing.T) {
	today := Date{2024, time.March, 6}
	counts := []DayCount{
		{Date: Date{2024, time.February, 26}, Count: 1},
		{Date: Date{2024, time.February, 27}, Count: 4},
		{Date: Date{2024, time.February, 28}, Count: 1},
		{Date: Date{2024, time.February, 29}, Count: 1},
		{Date: Date{2024, time.March, 1}, Count: 2},
		{Date: Date{2024, time.March, 4}, Count: 1},
		{Date: Date{2024, time.March, 5}, Count: 1},
	}

	s := Summarize(counts, today)
	assert.Equal(t, 11, s.Total)
	assert.Equal(t, 7, s.ActiveDays)
	assert.Equal(t, 5, s.LongestStreak, "run across the leap day")
	assert.Equal(t, 2, s.CurrentStreak, "today is empty so the streak ends yesterday")
	require.NotNil(t, s.BusiestDay)
	assert.Equal(t, DayCount{Date: Date{2024, time.February, 27}, Count: 4}, *s.BusiestDay)
}

func TestSummarize_CurrentStreakIncludesToday(t *testing.T) {
	today := Date{2025, time.January, 1}
	counts := []DayCount{
		{Date: Date{2024, time.December, 30}, Count: 1},
		{Date: Date{2024, time.December, 31}, Count: 1},
		{Date: Date{2025, time.January, 1}, Count: 1},
	}
	s := Summarize(counts, today)
	assert.Equal(t, 3, s.CurrentStreak)
	assert.Equal(t, 3, s.LongestStreak)
}

func TestSummarize_BrokenStreak(t *testing.T) {
	today := Date{2024, time.March, 6}
	counts := []DayCount{
		{Date: Date{2024, time.March, 3}, Count: 1},
		{Date: Date{2024, time.March, 4}, Count: 1},
	}
	s := Summarize(counts, today)
	assert.Zero(t, s.CurrentStreak)
	assert.Equal(t, 2, s.LongestStreak)
}

func TestSummarize_BusiestDayTieBreaksEarliest(t *testing.T) {
	counts := []DayCount{
		{Date: Date{2024, time.March, 3}, Count: 2},
		{Date: Date{2024, time.March, 1}, Count: 2},
	}
	s := Summarize(counts, Date{2024, time.March, 6})
	require.NotNil(t, s.BusiestDay)
	assert.Equal(t, Date{2024, time.March, 1}, s.BusiestDay.Date)
}
