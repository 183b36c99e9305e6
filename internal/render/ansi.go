package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"habit-tracker/internal/stats"
)

var (
	palette = [Levels]lipgloss.Color{"#2d333b", "#0e4429", "#006d32", "#26a641", "#39d353"}

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	todayStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F7DC6F")).
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD")).
			Padding(0, 1)
)

const (
	cellGlyph  = "■"
	todayGlyph = "◆"
)

// HeatmapANSI draws the grid as coloured blocks for a terminal. Today is
// drawn with its own glyph; days after today are left blank.
func HeatmapANSI(category string, g stats.Grid, summary stats.Summary) string {
	var rows []string
	rows = append(rows, labelStyle.Render("   "+spaced(monthHeader(g, 0))))
	for row := 0; row < stats.DaysPerWeek; row++ {
		var line strings.Builder
		line.WriteString(labelStyle.Render(rowLabels[row]))
		line.WriteByte(' ')
		for col := 0; col < stats.WeeksShown; col++ {
			line.WriteString(ansiCell(g, g.At(row, col)))
			line.WriteByte(' ')
		}
		rows = append(rows, strings.TrimRight(line.String(), " "))
	}
	rows = append(rows, "", legend(), SummaryText(summary))

	title := titleStyle.Render(fmt.Sprintf("%s  %s to %s", CategoryName(category), g.Start, g.End))
	return lipgloss.JoinVertical(lipgloss.Left, title, boxStyle.Render(strings.Join(rows, "\n")))
}

func ansiCell(g stats.Grid, c stats.Cell) string {
	switch {
	case g.IsToday(c):
		return todayStyle.Render(todayGlyph)
	case g.Today.Before(c.Date):
		return " "
	default:
		return lipgloss.NewStyle().Foreground(palette[Level(c.Count)]).Render(cellGlyph)
	}
}

func legend() string {
	var b strings.Builder
	b.WriteString(labelStyle.Render("less "))
	for level := 0; level < Levels; level++ {
		b.WriteString(lipgloss.NewStyle().Foreground(palette[level]).Render(cellGlyph))
		b.WriteByte(' ')
	}
	b.WriteString(labelStyle.Render("more"))
	return b.String()
}

// spaced widens a one-char-per-column header to the two-char cell pitch.
func spaced(header string) string {
	var b strings.Builder
	for _, r := range header {
		b.WriteRune(r)
		b.WriteByte(' ')
	}
	return strings.TrimRight(b.String(), " ")
}

// StatsANSI renders statistics as a table for the terminal.
func StatsANSI(list []stats.CategoryStat) string {
	if len(list) == 0 {
		return "No tasks yet."
	}
	width := len("category")
	for _, s := range list {
		if n := lipgloss.Width(CategoryName(s.Name)); n > width {
			width = n
		}
	}

	header := labelStyle.Render(fmt.Sprintf("%-*s  %5s  %5s  %4s", width, "category", "done", "total", "rate"))
	lines := []string{header}
	for _, s := range list {
		color := palette[Level((s.CompletionRate+24)/25)]
		rate := lipgloss.NewStyle().Foreground(color).Render(fmt.Sprintf("%3d%%", s.CompletionRate))
		lines = append(lines, fmt.Sprintf("%-*s  %5d  %5d  %s", width, CategoryName(s.Name), s.CompletedTasks, s.TotalTasks, rate))
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}
