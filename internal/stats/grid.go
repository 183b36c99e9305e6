package stats

import (
	"time"

	"github.com/jinzhu/now"
)

const (
	// DaysPerWeek is the number of rows in the grid, Monday first.
	DaysPerWeek = 7
	// WeeksShown is the number of week columns in the grid.
	WeeksShown = 52
	// MaxDisplayCount caps the count used for the color scale.
	MaxDisplayCount = 4
)

var weekConfig = &now.Config{WeekStartDay: time.Monday}

// Cell is one day of the heatmap. Count is the true completion count.
type Cell struct {
	Date  Date
	Count int
}

// Clamped returns the count capped at MaxDisplayCount.
func (c Cell) Clamped() int {
	return Clamp(c.Count)
}

// Clamp caps a count at MaxDisplayCount.
func Clamp(count int) int {
	if count > MaxDisplayCount {
		return MaxDisplayCount
	}
	if count < 0 {
		return 0
	}
	return count
}

// Grid is a dense 7x52 calendar. Cells[row][col]: row 0 is Monday, column 0
// is the oldest week and column 51 the week containing Today.
type Grid struct {
	Start Date
	End   Date
	Today Date
	Cells [DaysPerWeek][WeeksShown]Cell
}

// Window returns the first Monday and the last Sunday of the 52 weeks that
// end with the week containing reference's calendar date.
func Window(reference time.Time) (start, end Date) {
	today := DateOf(reference).In(time.UTC)
	monday := weekConfig.With(today).BeginningOfWeek()
	start = DateOf(monday.AddDate(0, 0, -7*(WeeksShown-1)))
	end = DateOf(monday.AddDate(0, 0, DaysPerWeek-1))
	return start, end
}

// BuildGrid lays dayCounts onto the 52-week window ending with the week of
// reference. Every cell gets its date even when no task was completed that
// day; entries outside the window are ignored. Later entries for the same
// date overwrite earlier ones.
func BuildGrid(dayCounts []DayCount, reference time.Time) Grid {
	start, end := Window(reference)
	g := Grid{Start: start, End: end, Today: DateOf(reference)}

	for col := 0; col < WeeksShown; col++ {
		for row := 0; row < DaysPerWeek; row++ {
			g.Cells[row][col] = Cell{Date: start.AddDays(col*DaysPerWeek + row)}
		}
	}

	for _, dc := range dayCounts {
		row, col, ok := g.position(dc.Date)
		if !ok {
			continue
		}
		g.Cells[row][col].Count = dc.Count
	}
	return g
}

// position returns the cell coordinates of d, or ok=false when d falls
// outside the grid.
func (g Grid) position(d Date) (row, col int, ok bool) {
	offset := DaysBetween(g.Start, d)
	if offset < 0 || offset >= DaysPerWeek*WeeksShown {
		return 0, 0, false
	}
	col = offset / DaysPerWeek
	row = offset % DaysPerWeek
	if row != RowOf(d) {
		return 0, 0, false
	}
	return row, col, true
}

// Lookup returns the cell holding d.
func (g Grid) Lookup(d Date) (Cell, bool) {
	row, col, ok := g.position(d)
	if !ok {
		return Cell{}, false
	}
	return g.Cells[row][col], true
}

// At returns the cell at row (weekday, Monday=0) and col (week).
func (g Grid) At(row, col int) Cell {
	return g.Cells[row][col]
}

// Column returns the seven days of week col.
func (g Grid) Column(col int) [DaysPerWeek]Cell {
	var out [DaysPerWeek]Cell
	for row := 0; row < DaysPerWeek; row++ {
		out[row] = g.Cells[row][col]
	}
	return out
}

// IsToday reports whether c is the reference day.
func (g Grid) IsToday(c Cell) bool {
	return c.Date == g.Today
}

// Total sums the true counts of all cells.
func (g Grid) Total() int {
	total := 0
	for row := range g.Cells {
		for col := range g.Cells[row] {
			total += g.Cells[row][col].Count
		}
	}
	return total
}
