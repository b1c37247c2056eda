package ui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"fwe/internal/history"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// HistoryPageModel renders recorded runs and outcome totals.
type HistoryPageModel struct {
	viewport viewport.Model
	store    *history.Store
	limit    int
	styles   Styles
	width    int
	height   int
	err      error
}

// NewHistoryPageModel creates a new history page component.
func NewHistoryPageModel(store *history.Store, limit int, styles Styles) HistoryPageModel {
	return HistoryPageModel{
		viewport: viewport.New(80, 20),
		store:    store,
		limit:    limit,
		styles:   styles,
	}
}

// SetSize updates the size of the viewport.
func (m *HistoryPageModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.viewport.Width = w
	m.viewport.Height = h - 4 // header/footer
	m.UpdateContent()
}

// Err returns the error from the last refresh, if any.
func (m HistoryPageModel) Err() error { return m.err }

// UpdateContent refreshes the viewport content from the store.
func (m *HistoryPageModel) UpdateContent() {
	if m.store == nil {
		m.viewport.SetContent(m.styles.Muted.Render("Run history is disabled."))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	stats, err := m.store.Stats(ctx)
	if err == nil {
		var records []history.Record
		records, err = m.store.Recent(ctx, m.limit)
		if err == nil {
			m.err = nil
			m.viewport.SetContent(RenderHistory(m.styles, stats, records))
			return
		}
	}
	m.err = err
	m.viewport.SetContent(m.styles.Error.Render("history unavailable: " + err.Error()))
}

// RenderHistory formats outcome totals and a table of recent runs.
func RenderHistory(styles Styles, stats history.Stats, records []history.Record) string {
	var sb strings.Builder

	sb.WriteString(styles.Header.Render("Run History"))
	sb.WriteString("\n\n")

	if stats.Total == 0 {
		sb.WriteString(styles.Muted.Render("No runs recorded yet."))
		sb.WriteString("\n")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("Total runs:   %d\n", stats.Total))
	sb.WriteString(fmt.Sprintf("Success rate: %.0f%%\n", stats.SuccessRate()*100))
	sb.WriteString(fmt.Sprintf("Mean latency: %v\n", stats.MeanElapsed.Round(time.Millisecond)))
	sb.WriteString("\n")

	renderCounts := func(title string, data map[string]int) {
		if len(data) == 0 {
			return
		}
		keys := make([]string, 0, len(data))
		for k := range data {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		table := NewSimpleTable(title, []string{"Name", "Runs"})
		for _, k := range keys {
			table.AddRow(k, fmt.Sprintf("%d", data[k]))
		}
		sb.WriteString(table.View(styles))
		sb.WriteString("\n")
	}

	byOutcome := make(map[string]int, len(stats.ByOutcome))
	for k, v := range stats.ByOutcome {
		byOutcome[string(k)] = v
	}
	bySource := make(map[string]int, len(stats.BySource))
	for k, v := range stats.BySource {
		bySource[string(k)] = v
	}
	renderCounts("By Outcome", byOutcome)
	renderCounts("By Source", bySource)

	if len(records) > 0 {
		table := NewSimpleTable("Recent Runs", []string{"When", "Source", "Request", "Outcome", "Elapsed"})
		for _, r := range records {
			table.AddRow(
				r.Timestamp.Local().Format("2006-01-02 15:04:05"),
				string(r.Source),
				truncate(r.Request.String(), 48),
				string(r.Outcome),
				r.Elapsed.Round(time.Millisecond).String(),
			)
		}
		sb.WriteString(table.View(styles))
	}

	return sb.String()
}

func truncate(s string, l int) string {
	if len([]rune(s)) > l {
		return string([]rune(s)[:l-3]) + "..."
	}
	return s
}

// Update handles messages.
func (m HistoryPageModel) Update(msg tea.Msg) (HistoryPageModel, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the page.
func (m HistoryPageModel) View() string {
	return m.viewport.View()
}
