package main

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/codyseavey/crypto-tracker/internal/models"
	"github.com/codyseavey/crypto-tracker/internal/services"
)

var sortCycle = []services.SortKey{
	services.SortByRank,
	services.SortByPrice,
	services.SortByChange,
	services.SortByName,
}

// Message types for Bubble Tea
type marketsLoadedMsg struct{ err error }
type refreshTickMsg time.Time
type searchCommittedMsg string
type searchResultMsg struct {
	query   string
	results []models.MarketSnapshot
	err     error
}
type chartChangedMsg struct{}

type dashboardModel struct {
	ctx       context.Context
	coinList  *services.CoinList
	watchlist *services.WatchlistStore
	poller    *services.PricePoller
	debouncer *services.Debouncer
	refresh   time.Duration

	// charted once the program is running
	initialCoin string

	search    textinput.Model
	searching bool
	query     string
	results   []models.MarketSnapshot

	rows     []models.MarketSnapshot
	cursor   int
	sortIdx  int
	sortDesc bool
	watched  map[string]bool
	rangeIdx int

	chart  services.ChartView
	status string
	width  int
	height int
}

func newDashboardModel(ctx context.Context, coinList *services.CoinList, watchlist *services.WatchlistStore, poller *services.PricePoller, debouncer *services.Debouncer, refresh time.Duration) *dashboardModel {
	search := textinput.New()
	search.Placeholder = "Search coin name or symbol (e.g. bitcoin, eth)"
	search.CharLimit = 64
	search.Width = 48

	watched := map[string]bool{}
	for _, id := range watchlist.Load(ctx) {
		watched[id] = true
	}

	m := &dashboardModel{
		ctx:       ctx,
		coinList:  coinList,
		watchlist: watchlist,
		poller:    poller,
		debouncer: debouncer,
		refresh:   refresh,
		search:    search,
		watched:   watched,
		chart:     poller.View(),
		status:    "Loading markets...",
	}
	for i, r := range models.DisplayRanges {
		if r == m.chart.Range {
			m.rangeIdx = i
		}
	}
	return m
}

func (m *dashboardModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.loadMarketsCmd(), tickEvery(m.refresh)}
	if m.initialCoin != "" {
		coin := m.initialCoin
		cmds = append(cmds, func() tea.Msg {
			m.poller.Select(coin)
			return chartChangedMsg{}
		})
	}
	return tea.Batch(cmds...)
}

func (m *dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case refreshTickMsg:
		return m, tea.Batch(m.loadMarketsCmd(), tickEvery(m.refresh))

	case marketsLoadedMsg:
		if msg.err != nil {
			m.status = "Could not load markets: " + msg.err.Error()
		} else {
			m.status = ""
		}
		m.rebuildRows()
		return m, nil

	case searchCommittedMsg:
		m.query = string(msg)
		if m.query == "" {
			m.results = nil
			m.rebuildRows()
			return m, nil
		}
		m.status = "Searching..."
		return m, m.searchCmd(m.query)

	case searchResultMsg:
		// a newer query has been committed since this one went out
		if msg.query != m.query {
			return m, nil
		}
		if msg.err != nil {
			m.status = "Search failed: " + msg.err.Error()
			m.results = []models.MarketSnapshot{}
		} else {
			m.status = ""
			m.results = msg.results
		}
		m.rebuildRows()
		return m, nil

	case chartChangedMsg:
		m.chart = m.poller.View()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	}

	return m, nil
}

func (m *dashboardModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searching {
		switch msg.Type {
		case tea.KeyEsc, tea.KeyEnter:
			m.searching = false
			m.search.Blur()
			return m, nil
		case tea.KeyCtrlC:
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		m.debouncer.Push(m.search.Value())
		return m, cmd
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "/":
		m.searching = true
		return m, m.search.Focus()
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
	case "enter":
		if coin, ok := m.selected(); ok {
			m.poller.Select(coin.ID)
		}
	case "w":
		if coin, ok := m.selected(); ok {
			watched, _ := m.watchlist.Toggle(m.ctx, coin.ID)
			m.watched[coin.ID] = watched
		}
	case "s":
		m.sortIdx = (m.sortIdx + 1) % len(sortCycle)
		m.rebuildRows()
	case "r":
		m.sortDesc = !m.sortDesc
		m.rebuildRows()
	case "left", "h":
		m.rangeIdx = (m.rangeIdx + len(models.DisplayRanges) - 1) % len(models.DisplayRanges)
		m.poller.SetRange(models.DisplayRanges[m.rangeIdx])
	case "right", "l":
		m.rangeIdx = (m.rangeIdx + 1) % len(models.DisplayRanges)
		m.poller.SetRange(models.DisplayRanges[m.rangeIdx])
	}
	return m, nil
}

func (m *dashboardModel) selected() (models.MarketSnapshot, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return models.MarketSnapshot{}, false
	}
	return m.rows[m.cursor], true
}

// rebuildRows recomputes the visible table from the snapshot or the current
// search results.
func (m *dashboardModel) rebuildRows() {
	source := m.coinList.Snapshots()
	if m.query != "" && m.results != nil {
		source = m.results
	}
	m.rows = services.SortSnapshots(source, sortCycle[m.sortIdx], m.sortDesc)
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func tickEvery(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return refreshTickMsg(t)
	})
}

func (m *dashboardModel) loadMarketsCmd() tea.Cmd {
	return func() tea.Msg {
		return marketsLoadedMsg{err: m.coinList.Refresh(m.ctx)}
	}
}

func (m *dashboardModel) searchCmd(query string) tea.Cmd {
	return func() tea.Msg {
		results, err := m.coinList.Search(m.ctx, query)
		return searchResultMsg{query: query, results: results, err: err}
	}
}
