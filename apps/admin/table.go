package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"

	"github.com/trezcool/rollcall/core/attendance"
)

var isTerminalFunc = term.IsTerminal // mockable

var (
	colorGreen  = lipgloss.Color("#98C379")
	colorYellow = lipgloss.Color("#E5C07B")
	colorRed    = lipgloss.Color("#E06C75")
	colorMuted  = lipgloss.Color("#828997")
	colorBorder = lipgloss.Color("#3F4451")

	headerStyle = lipgloss.NewStyle().Bold(true).PaddingRight(2)
	cellStyle   = lipgloss.NewStyle().PaddingRight(2)
	titleStyle  = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	noticeStyle = lipgloss.NewStyle().Foreground(colorMuted)
)

var statusColors = map[attendance.MatchStatus]lipgloss.Color{
	attendance.StatusMatched:       colorGreen,
	attendance.StatusLowConfidence: colorYellow,
	attendance.StatusUnmatched:     colorRed,
}

// cellColor returns the foreground of a data cell, if it has one.
type cellColor func(row, col int) (lipgloss.Color, bool)

// renderTable renders rows under headers, separated from them by a rule.
func (cli *commandLine) renderTable(headers []string, rows [][]string, colorOf cellColor) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderColumn(false).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				if cli.styled {
					return headerStyle
				}
			case cli.styled && colorOf != nil:
				if c, ok := colorOf(row, col); ok {
					return cellStyle.Foreground(c)
				}
			}
			return cellStyle
		}).
		String()
}

func (cli *commandLine) title(s string) string {
	if !cli.styled {
		return s + "\n"
	}
	return titleStyle.Render(s)
}

func (cli *commandLine) notice(format string, args ...interface{}) string {
	s := fmt.Sprintf(format, args...)
	if !cli.styled {
		return s
	}
	return noticeStyle.Render(s)
}
