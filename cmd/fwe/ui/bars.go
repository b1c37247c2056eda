package ui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	barFull  = "█"
	barEmpty = "░"
)

// Bar is one row of a horizontal bar chart.
type Bar struct {
	Label   string
	Value   float64
	Display string // shown after the bar
	Color   lipgloss.Color
}

// FillCells returns how many of width cells a value fills on a 0..max axis.
// Values outside the axis are pinned to its ends for drawing only; non-finite
// values fill nothing.
func FillCells(value, max float64, width int) int {
	if width <= 0 || max <= 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	if value <= 0 {
		return 0
	}
	if value >= max {
		return width
	}
	return int(math.Round(value / max * float64(width)))
}

// BarChart renders bars against a shared axis of 0..max. A max of zero
// scales to the largest finite value.
func BarChart(styles Styles, bars []Bar, max float64, width int) string {
	if len(bars) == 0 {
		return ""
	}
	if max <= 0 {
		for _, b := range bars {
			if !math.IsInf(b.Value, 0) && !math.IsNaN(b.Value) && b.Value > max {
				max = b.Value
			}
		}
	}

	labelWidth := 0
	for _, b := range bars {
		if w := lipgloss.Width(b.Label); w > labelWidth {
			labelWidth = w
		}
	}

	var sb strings.Builder
	for i, b := range bars {
		filled := FillCells(b.Value, max, width)
		color := b.Color
		if color == "" {
			colors := ChartColors()
			color = colors[i%len(colors)]
		}
		sb.WriteString(styles.Body.Width(labelWidth + 1).Render(b.Label))
		sb.WriteString(lipgloss.NewStyle().Foreground(color).Render(strings.Repeat(barFull, filled)))
		sb.WriteString(styles.BarEmpty.Render(strings.Repeat(barEmpty, width-filled)))
		sb.WriteString(" ")
		sb.WriteString(styles.Bold.Render(b.Display))
		sb.WriteString("\n")
	}
	return sb.String()
}
