package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/gpumon/internal/fleet"
)

const (
	cellWidth      = 15
	sparklineWidth = 16

	// header, blank line, detail box (3 lines), footer
	chromeHeight = 6
)

var helpBoxStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorAccent).
	Background(ColorSurfaceBg).
	Padding(1, 2)

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.showHelp {
		return m.renderHelpOverlay()
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(m.renderGrid())
	b.WriteString("\n")
	b.WriteString(m.renderDetail())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderHeader() string {
	updated := "never"
	if !m.view.Taken.IsZero() {
		updated = formatAgo(m.now().Sub(m.view.Taken))
	}
	text := fmt.Sprintf("gpumon | %d servers | %d online | updated %s",
		len(m.view.Servers), m.view.Online(), updated)
	return HeaderStyle.Render(text)
}

func (m Model) renderGrid() string {
	if len(m.order) == 0 {
		return MutedStyle.Render("  no servers configured") + "\n"
	}

	nameWidth := 0
	for _, s := range m.view.Servers {
		if n := len(s.Name()); n > nameWidth {
			nameWidth = n
		}
	}

	start, end := visibleRange(m.selected, len(m.order), m.height-chromeHeight)

	var b strings.Builder
	for i := start; i < end; i++ {
		b.WriteString(m.renderRow(m.order[i], i == m.selected, nameWidth))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderRow(pos int, selected bool, nameWidth int) string {
	srv := m.view.Servers[pos]

	cursor := "  "
	name := ServerNameStyle.Render(padRight(srv.Name(), nameWidth))
	if selected {
		cursor = SelectedRowStyle.Render("› ")
		name = SelectedRowStyle.Render(padRight(srv.Name(), nameWidth))
	}

	parts := []string{cursor + m.statusGlyph(pos), name}
	for slot := 0; slot < len(m.view.Samples[pos]); slot++ {
		parts = append(parts, m.renderCell(pos, slot))
	}
	parts = append(parts, m.renderSparkline(srv.Index))
	return strings.Join(parts, " ")
}

func (m Model) renderCell(pos, slot int) string {
	sample, ok := m.view.Sample(pos, slot)
	if !ok {
		return MutedStyle.Render(padRight(GlyphAbsent, cellWidth))
	}
	text := padRight(FormatSample(sample), cellWidth)
	if m.status(pos).Stale(m.now(), m.staleAfter) {
		return MutedStyle.Render(text)
	}
	return MetricStyle(float64(sample.UtilPercent)).Render(text)
}

func (m Model) renderSparkline(index int) string {
	data := m.history.Mean(index)
	if len(data) == 0 {
		return MutedStyle.Render(strings.Repeat(" ", sparklineWidth))
	}
	return ColoredSparkline(data, sparklineWidth)
}

func (m Model) status(pos int) fleet.Status {
	if pos >= len(m.view.Status) {
		return fleet.Status{}
	}
	return m.view.Status[pos]
}

func (m Model) statusGlyph(pos int) string {
	st := m.status(pos)
	switch {
	case st.Online() && !st.Stale(m.now(), m.staleAfter):
		return lipgloss.NewStyle().Foreground(ColorHealthy).Render(GlyphOnline)
	case st.Online():
		return lipgloss.NewStyle().Foreground(ColorWarning).Render(GlyphStale)
	case st.Failures > 0:
		return lipgloss.NewStyle().Foreground(ColorCritical).Render(GlyphOffline)
	default:
		return LabelStyle.Render(GlyphConnecting)
	}
}

func (m Model) renderDetail() string {
	srv := m.SelectedServer()
	if srv.Index == 0 {
		return ""
	}
	pos, _ := m.view.Find(srv.Index)
	st := m.status(pos)

	fields := []string{
		ServerNameStyle.Render(srv.String()),
		LabelStyle.Render("state ") + st.State.String(),
	}
	if st.LastSuccess.IsZero() {
		fields = append(fields, LabelStyle.Render("no data yet"))
	} else {
		fields = append(fields, LabelStyle.Render("updated ")+formatAgo(m.now().Sub(st.LastSuccess)),
			LabelStyle.Render("latency ")+st.LastLatency.Round(time.Millisecond).String())
	}
	if st.Failures > 0 {
		fields = append(fields, ErrorStyle.Render(fmt.Sprintf("%d failed: %s", st.Failures, st.LastError)))
	}

	width := m.width - 2
	if width < 20 {
		width = 20
	}
	return DetailStyle.Width(width).Render(strings.Join(fields, "  "))
}

func (m Model) renderFooter() string {
	sortLabel := LabelStyle.Render("sort: " + m.sortOrder.String())
	return FooterStyle.Render(sortLabel + "  " + m.help.ShortHelpView(m.keys.ShortHelp()))
}

func (m Model) renderHelpOverlay() string {
	title := lipgloss.NewStyle().Foreground(ColorAccent).Bold(true).Render("Keyboard Shortcuts")
	body := title + "\n\n" + m.help.FullHelpView(m.keys.FullHelp()) +
		"\n\n" + LabelStyle.Render("Press ? to close")

	return lipgloss.Place(m.width, m.height,
		lipgloss.Center, lipgloss.Center,
		helpBoxStyle.Render(body),
		lipgloss.WithWhitespaceChars(" "),
	)
}

// FormatSample renders one accelerator as "45% (1234MB)".
func FormatSample(s fleet.Sample) string {
	return fmt.Sprintf("%d%% (%dMB)", s.UtilPercent, s.MemUsedMiB)
}

func formatAgo(d time.Duration) string {
	switch {
	case d < time.Second:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
}

func padRight(s string, width int) string {
	n := lipgloss.Width(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}

// visibleRange returns the window of rows to draw so that selected stays
// on screen.
func visibleRange(selected, total, rows int) (int, int) {
	if rows < 1 {
		rows = 1
	}
	if total <= rows {
		return 0, total
	}
	start := selected - rows/2
	if start < 0 {
		start = 0
	}
	if start+rows > total {
		start = total - rows
	}
	return start, start + rows
}
