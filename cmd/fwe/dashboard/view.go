package dashboard

import (
	"fmt"
	"strings"

	"fwe/cmd/fwe/ui"
	"fwe/internal/diagnostics"
	"fwe/internal/run"
	"fwe/internal/scenario"

	"github.com/charmbracelet/lipgloss"
)

const barWidth = 30

// View renders the dashboard.
func (m Model) View() string {
	if m.page == pageHistory {
		return m.historyPage.View() + "\n" + m.styles.Footer.Render("ctrl+t back • ↑/↓ scroll • esc quit")
	}

	var sb strings.Builder

	sb.WriteString(m.styles.Header.Render("FWE Scenario Dashboard"))
	sb.WriteString(" ")
	sb.WriteString(m.styles.Muted.Render(fmt.Sprintf("%s (%s)", m.endpoint, m.endpointSource)))
	sb.WriteString("\n\n")

	sb.WriteString(m.viewForm())
	sb.WriteString("\n")
	sb.WriteString(m.viewStatus())
	sb.WriteString("\n\n")

	if resp, ok := m.shownResponse(); ok {
		sb.WriteString(m.viewResults(resp))
	}

	sb.WriteString(m.styles.Footer.Render("enter run • tab next field • ↑/↓ adjust • ctrl+t history • esc quit"))
	return sb.String()
}

func (m Model) viewForm() string {
	var sb strings.Builder
	for i := range m.inputs {
		f := field(i)
		label := m.styles.Label
		if f == m.focus {
			label = m.styles.FocusedLabel
		}
		sb.WriteString(label.Render(fieldLabels[f]))
		sb.WriteString(m.inputs[i].View())
		if hint := fieldHint(f, m.inputs[i].Value()); hint != "" {
			sb.WriteString("  ")
			sb.WriteString(m.styles.Subtitle.Render(hint))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) viewStatus() string {
	if m.validationErr != nil {
		return m.styles.Warning.Render("✗ " + m.validationErr.Error() + " (not sent)")
	}

	st := m.controller.State()
	_, hasLast := m.controller.LastSuccess()
	switch st.Phase {
	case run.Idle:
		return m.styles.Muted.Render("Press Enter to run the scenario.")
	case run.Loading:
		return m.spinner.View() + " " + m.styles.Info.Render(fmt.Sprintf("Running scenario #%d…", st.Token))
	case run.Failed:
		s := m.styles.Error.Render("✗ " + st.Err.Error())
		if hasLast {
			s += "\n" + m.styles.Muted.Render("Showing last successful result.")
		}
		return s
	default:
		s := m.styles.Success.Render(fmt.Sprintf("✓ Scenario #%d complete", st.Token))
		if m.recordErr != nil {
			s += "  " + m.styles.Warning.Render("(not saved to history)")
		}
		return s
	}
}

func (m Model) viewResults(resp scenario.Response) string {
	var sb strings.Builder

	var cards []string
	for _, s := range diagnostics.Stats(resp.KPIs, resp.Diagnostics) {
		cards = append(cards, m.styles.StatCard.Render(m.styles.Muted.Render(s.Title)+"\n"+m.styles.Bold.Render(s.Display)))
	}
	for i := 0; i < len(cards); i += 3 {
		end := min(i+3, len(cards))
		sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cards[i:end]...))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	sb.WriteString(m.styles.Title.Render("KPIs"))
	sb.WriteString("\n")
	var kpiBars []ui.Bar
	for _, b := range diagnostics.KPIBars(resp.KPIs) {
		kpiBars = append(kpiBars, ui.Bar{Label: b.Name, Value: b.Value, Display: fmt.Sprintf("%.1f", b.Value)})
	}
	sb.WriteString(ui.BarChart(m.styles, kpiBars, 0, barWidth))
	sb.WriteString("\n")

	sb.WriteString(m.styles.Title.Render("Operability (0–100, higher is better)"))
	sb.WriteString("\n")
	var metricBars []ui.Bar
	for _, mt := range diagnostics.Normalize(resp.Diagnostics) {
		metricBars = append(metricBars, ui.Bar{Label: mt.Label, Value: mt.Value, Display: mt.Display()})
	}
	sb.WriteString(ui.BarChart(m.styles, metricBars, 100, barWidth))

	if m.notes != "" {
		sb.WriteString("\n")
		sb.WriteString(m.styles.Title.Render("Notes"))
		sb.WriteString("\n")
		sb.WriteString(m.notes)
	}
	sb.WriteString("\n")
	return sb.String()
}
