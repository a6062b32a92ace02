package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/codyseavey/crypto-tracker/internal/models"
	"github.com/codyseavey/crypto-tracker/internal/services"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("244"))
	cursorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75"))
	watchStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	gainStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	chartBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	rangeOnStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
)

const maxTableRows = 20

func (m *dashboardModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Crypto Tracker"))
	b.WriteString("\n\n")
	b.WriteString(m.search.View())
	b.WriteString("\n\n")
	b.WriteString(m.tableView())
	b.WriteString("\n")
	b.WriteString(m.chartView())
	b.WriteString("\n")

	if m.status != "" {
		b.WriteString(errorStyle.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(mutedStyle.Render(fmt.Sprintf(
		"/ search  enter chart  w watch  s sort (%s)  r reverse  h/l range  q quit",
		sortCycle[m.sortIdx])))
	return b.String()
}

func (m *dashboardModel) tableView() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("   %-4s %-22s %-8s %14s %9s %10s", "#", "Name", "Symbol", "Price", "24h", "Volume")))
	b.WriteString("\n")

	if len(m.rows) == 0 {
		if m.query != "" {
			b.WriteString(mutedStyle.Render("   No coins match " + fmt.Sprintf("%q", m.query)))
		} else {
			b.WriteString(mutedStyle.Render("   No market data"))
		}
		b.WriteString("\n")
		return b.String()
	}

	start := 0
	if m.cursor >= maxTableRows {
		start = m.cursor - maxTableRows + 1
	}
	end := min(start+maxTableRows, len(m.rows))

	for i := start; i < end; i++ {
		row := m.rows[i]

		marker := "  "
		if m.watched[row.ID] {
			marker = watchStyle.Render("★ ")
		}

		rank := "-"
		if row.MarketCapRank > 0 {
			rank = fmt.Sprintf("%d", row.MarketCapRank)
		}

		change := services.FormatPercent(row.PriceChangePercent24h)
		switch {
		case !row.PriceChangePercent24h.Valid:
			change = mutedStyle.Render(fmt.Sprintf("%9s", change))
		case row.PriceChangePercent24h.Decimal.IsNegative():
			change = lossStyle.Render(fmt.Sprintf("%9s", change))
		default:
			change = gainStyle.Render(fmt.Sprintf("%9s", change))
		}

		line := fmt.Sprintf("%-4s %-22s %-8s %14s %s %10s",
			rank,
			truncate(row.Name, 22),
			strings.ToUpper(row.Symbol),
			services.FormatPrice(row.CurrentPrice),
			change,
			services.FormatCompact(row.TotalVolume),
		)
		if i == m.cursor {
			line = cursorStyle.Render("> ") + line
		} else {
			line = "  " + line
		}
		b.WriteString(line + " " + marker)
		b.WriteString("\n")
	}
	return b.String()
}

func (m *dashboardModel) chartView() string {
	var ranges []string
	for i, r := range models.DisplayRanges {
		if i == m.rangeIdx {
			ranges = append(ranges, rangeOnStyle.Render(r.Label))
		} else {
			ranges = append(ranges, mutedStyle.Render(r.Label))
		}
	}

	var body string
	switch m.chart.State {
	case services.PollerIdle:
		body = mutedStyle.Render("Select a coin to view its chart")
	case services.PollerLoading:
		body = mutedStyle.Render("Loading " + m.chart.CoinID + "...")
	case services.PollerLoadFailed:
		body = errorStyle.Render(m.chart.Message)
	case services.PollerLive:
		width := 60
		if m.width > 10 {
			width = min(m.width-8, 120)
		}
		latest := ""
		if n := len(m.chart.Points); n > 0 {
			latest = services.FormatPrice(m.chart.Points[n-1].Price)
		}
		body = fmt.Sprintf("%s  %s\n%s\n%s",
			titleStyle.Render(m.chart.Label),
			latest,
			sparkline(m.chart.Points, width),
			mutedStyle.Render(fmt.Sprintf("%d points, %s axis, updated %s",
				len(m.chart.Points), m.chart.AxisUnit, m.chart.UpdatedAt.Local().Format("15:04:05"))),
		)
	}

	return chartBoxStyle.Render(strings.Join(ranges, " ") + "\n" + body)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
