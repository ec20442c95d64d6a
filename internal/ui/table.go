package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// TableColumn defines a table column with name and width.
type TableColumn struct {
	Title string
	Width int
}

// NewTable creates a non-focused bubbles table sized to fit every row.
func NewTable(columns []TableColumn, rows []table.Row) table.Model {
	cols := make([]table.Column, len(columns))
	for i, c := range columns {
		cols[i] = table.Column{Title: c.Title, Width: c.Width}
	}

	t := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithFocused(false),
		table.WithHeight(len(rows)+1), // +1 for header
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ColorMuted).
		BorderBottom(true).
		Bold(true).
		Foreground(ColorPrimary)
	s.Cell = s.Cell.Foreground(ColorPrimary)
	// Nothing is focused, so the selected row must look like any other.
	s.Selected = s.Selected.Foreground(ColorPrimary).Bold(false)

	t.SetStyles(s)
	return t
}

// RenderSimpleTable renders rows as a printable table. Column widths grow
// to fit the widest cell.
func RenderSimpleTable(columns []TableColumn, rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	fitted := make([]TableColumn, len(columns))
	copy(fitted, columns)
	for _, row := range rows {
		for i, cell := range row {
			if i < len(fitted) && lipgloss.Width(cell) > fitted[i].Width {
				fitted[i].Width = lipgloss.Width(cell)
			}
		}
	}

	tableRows := make([]table.Row, len(rows))
	for i, row := range rows {
		tableRows[i] = table.Row(row)
	}
	return NewTable(fitted, tableRows).View()
}

// CheckRow is one server's result in a connectivity check.
type CheckRow struct {
	OK      bool
	Server  string
	Address string
	Detail  string // latency on success, error summary on failure
}

// RenderCheckTable renders connectivity results, one line per server.
func RenderCheckTable(rows []CheckRow) string {
	if len(rows) == 0 {
		return "No servers configured"
	}

	successStyle := lipgloss.NewStyle().Foreground(ColorSuccess)
	errorStyle := lipgloss.NewStyle().Foreground(ColorError)
	mutedStyle := lipgloss.NewStyle().Foreground(ColorMuted)
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorPrimary).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(ColorMuted)

	serverWidth, addrWidth := len("SERVER"), len("ADDRESS")
	for _, row := range rows {
		serverWidth = max(serverWidth, lipgloss.Width(row.Server))
		addrWidth = max(addrWidth, lipgloss.Width(row.Address))
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("  " + padRight("SERVER", serverWidth+2) +
		padRight("ADDRESS", addrWidth+2) + "RESULT"))
	b.WriteString("\n")

	for _, row := range rows {
		icon := successStyle.Render(SymbolSuccess)
		detail := mutedStyle.Render(row.Detail)
		if !row.OK {
			icon = errorStyle.Render(SymbolFail)
			detail = errorStyle.Render(row.Detail)
		}
		b.WriteString(icon + " " +
			padRight(row.Server, serverWidth+2) +
			padRight(row.Address, addrWidth+2) +
			detail + "\n")
	}
	return b.String()
}

// padRight pads s to width, ignoring ANSI sequences.
func padRight(s string, width int) string {
	visibleLen := lipgloss.Width(s)
	if visibleLen >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visibleLen)
}
