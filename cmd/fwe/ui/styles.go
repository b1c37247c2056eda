// Package ui provides the visual styling shared by the fwe dashboard and
// the CLI's tabular output.
package ui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Semantic colors, identical in both themes.
var (
	colorDestructive = lipgloss.Color("#d9443a")
	colorSuccess     = lipgloss.Color("#6f9c5a")
	colorWarning     = lipgloss.Color("#e0a526")
	colorInfo        = lipgloss.Color("#3d7ab8")
)

// chartColors are the operability series colors, in metric display order:
// Delivery, Payments, PRC Friction, Insurance, HedgeOps.
var chartColors = []lipgloss.Color{"#6f9c5a", "#3d7ab8", "#c8963e", "#8e6bb3", "#d9743a"}

// ChartColors returns the series colors in display order.
func ChartColors() []lipgloss.Color {
	return append([]lipgloss.Color(nil), chartColors...)
}

// Theme holds the current color scheme
type Theme struct {
	Foreground lipgloss.Color
	Primary    lipgloss.Color
	Accent     lipgloss.Color
	Track      lipgloss.Color // empty part of a bar
	Muted      lipgloss.Color
	Border     lipgloss.Color
	IsDark     bool
}

var (
	// Light is the default theme: field green on paper.
	Light = Theme{
		Foreground: "#1f2a1c",
		Primary:    "#2e4a27",
		Accent:     "#c8963e",
		Track:      "#e4e2d8",
		Muted:      "#8a8f84",
		Border:     "#d6d3c6",
	}

	// Dark swaps the primary to wheat.
	Dark = Theme{
		Foreground: "#eeeee6",
		Primary:    "#c8963e",
		Accent:     "#6f9c5a",
		Track:      "#1d2619",
		Muted:      "#6c7466",
		Border:     "#2c3827",
		IsDark:     true,
	}
)

// DetectTheme picks dark mode from FWE_DARK_MODE or the terminal's COLORFGBG
// hint, and light mode otherwise.
func DetectTheme() Theme {
	switch os.Getenv("FWE_DARK_MODE") {
	case "1", "true":
		return Dark
	case "0", "false":
		return Light
	}

	// "foreground;background"
	parts := strings.Split(os.Getenv("COLORFGBG"), ";")
	if len(parts) == 2 {
		if bg, err := strconv.Atoi(parts[1]); err == nil && (bg >= 0 && bg <= 6 || bg == 8) {
			return Dark
		}
	}
	return Light
}

// Styles holds the styled components used by the dashboard and CLI.
type Styles struct {
	Theme Theme

	Header   lipgloss.Style
	Footer   lipgloss.Style
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Body     lipgloss.Style
	Muted    lipgloss.Style
	Bold     lipgloss.Style

	Label        lipgloss.Style
	FocusedLabel lipgloss.Style

	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style

	Spinner  lipgloss.Style
	StatCard lipgloss.Style
	BarEmpty lipgloss.Style
}

// NewStyles builds the styles for theme.
func NewStyles(theme Theme) Styles {
	text := lipgloss.NewStyle().Foreground(theme.Foreground)
	muted := lipgloss.NewStyle().Foreground(theme.Muted)
	label := muted.Width(14)

	return Styles{
		Theme: theme,

		Header: lipgloss.NewStyle().
			Background(theme.Primary).
			Foreground(lipgloss.Color("#ffffff")).
			Padding(0, 2).
			Bold(true),
		Footer:   muted.Padding(0, 2),
		Title:    lipgloss.NewStyle().Foreground(theme.Primary).Bold(true),
		Subtitle: muted.Italic(true),
		Body:     text,
		Muted:    muted,
		Bold:     text.Bold(true),

		Label:        label,
		FocusedLabel: label.Foreground(theme.Accent).Bold(true),

		Success: lipgloss.NewStyle().Foreground(colorSuccess).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(colorDestructive).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(colorWarning).Bold(true),
		Info:    lipgloss.NewStyle().Foreground(colorInfo),

		Spinner: lipgloss.NewStyle().Foreground(theme.Accent),
		StatCard: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1).
			Width(24),
		BarEmpty: lipgloss.NewStyle().Foreground(theme.Track),
	}
}

// DefaultStyles returns styles for the detected theme
func DefaultStyles() Styles {
	return NewStyles(DetectTheme())
}
