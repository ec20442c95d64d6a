package dashboard

import (
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/gpumon/internal/fleet"
)

// Source is what the dashboard reads from. *fleet.Collector satisfies it.
type Source interface {
	Snapshot() fleet.View
}

// Options tunes the dashboard.
type Options struct {
	// Refresh is how often the grid re-reads the source.
	Refresh time.Duration

	// StaleAfter marks servers whose last success is older than this.
	// Zero means three refresh periods.
	StaleAfter time.Duration

	// HistorySize is the number of points kept per sparkline.
	HistorySize int
}

const defaultRefresh = time.Second

type tickMsg time.Time

type viewMsg fleet.View

// Model is the bubbletea model for the fleet grid.
type Model struct {
	source Source
	view   fleet.View

	// order holds view positions in display order.
	order     []int
	history   *History
	lastPolls map[int]int

	selected  int
	sortOrder SortOrder

	refresh    time.Duration
	staleAfter time.Duration

	width  int
	height int

	keys     keyMap
	help     help.Model
	showHelp bool
	quitting bool

	now func() time.Time
}

// NewModel creates a dashboard model and takes the first view.
func NewModel(src Source, opts Options) Model {
	refresh := opts.Refresh
	if refresh <= 0 {
		refresh = defaultRefresh
	}
	staleAfter := opts.StaleAfter
	if staleAfter <= 0 {
		staleAfter = 3 * refresh
	}

	m := Model{
		source:     src,
		history:    NewHistory(opts.HistorySize),
		lastPolls:  make(map[int]int),
		refresh:    refresh,
		staleAfter: staleAfter,
		width:      120,
		height:     40,
		keys:       defaultKeys,
		help:       help.New(),
		now:        time.Now,
	}
	m.applyView(src.Snapshot())
	return m
}

// Init starts the refresh ticker.
func (m Model) Init() tea.Cmd {
	return m.tickCmd()
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) snapshotCmd() tea.Cmd {
	src := m.source
	return func() tea.Msg {
		return viewMsg(src.Snapshot())
	}
}

// Update handles input, ticks and fresh views.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		return m, tea.Batch(m.snapshotCmd(), m.tickCmd())

	case viewMsg:
		m.applyView(fleet.View(msg))
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp

	case msg.String() == "esc" && m.showHelp:
		m.showHelp = false

	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}

	case key.Matches(msg, m.keys.Down):
		if m.selected < len(m.order)-1 {
			m.selected++
		}

	case key.Matches(msg, m.keys.First):
		m.selected = 0

	case key.Matches(msg, m.keys.Last):
		if len(m.order) > 0 {
			m.selected = len(m.order) - 1
		}

	case key.Matches(msg, m.keys.Sort):
		m.sortOrder = m.sortOrder.Next()
		m.sortServers()
	}
	return m, nil
}

// applyView stores v and extends the history for every server that
// completed a poll since the previous view.
func (m *Model) applyView(v fleet.View) {
	m.view = v

	for pos, srv := range v.Servers {
		if pos >= len(v.Status) {
			break
		}
		polls := v.Status[pos].Polls
		if polls <= m.lastPolls[srv.Index] {
			continue
		}
		m.lastPolls[srv.Index] = polls

		samples := v.Accelerators(pos)
		if len(samples) == 0 {
			continue
		}
		var sum float64
		for slot, s := range samples {
			m.history.Push(srv.Index, slot, float64(s.UtilPercent))
			sum += float64(s.UtilPercent)
		}
		m.history.Push(srv.Index, -1, sum/float64(len(samples)))
	}

	m.sortServers()
}

// sortServers rebuilds the display order and keeps the cursor on the
// same server.
func (m *Model) sortServers() {
	selectedIndex := m.SelectedServer().Index

	order := make([]int, len(m.view.Servers))
	for i := range order {
		order[i] = i
	}

	switch m.sortOrder {
	case SortByUtil:
		sort.SliceStable(order, func(a, b int) bool {
			return m.meanUtil(order[a]) > m.meanUtil(order[b])
		})
	case SortByMemory:
		sort.SliceStable(order, func(a, b int) bool {
			return m.meanMem(order[a]) > m.meanMem(order[b])
		})
	}
	m.order = order

	m.selected = 0
	for i, pos := range order {
		if m.view.Servers[pos].Index == selectedIndex {
			m.selected = i
			break
		}
	}
}

func (m *Model) meanUtil(pos int) float64 {
	samples := m.view.Accelerators(pos)
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s.UtilPercent)
	}
	return sum / float64(len(samples))
}

func (m *Model) meanMem(pos int) float64 {
	samples := m.view.Accelerators(pos)
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s.MemPercent()
	}
	return sum / float64(len(samples))
}

// SelectedServer returns the server under the cursor, or the zero Server
// when the fleet is empty.
func (m Model) SelectedServer() fleet.Server {
	if m.selected < 0 || m.selected >= len(m.order) {
		return fleet.Server{}
	}
	return m.view.Servers[m.order[m.selected]]
}

// SortOrder returns the active sort order.
func (m Model) SortOrder() SortOrder {
	return m.sortOrder
}
