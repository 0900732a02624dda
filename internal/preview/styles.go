package preview

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/fulopkrisztian-prog/Mia/internal/mood"
)

type styles struct {
	title   lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	muted   lipgloss.Style
	busy    lipgloss.Style
	bar     lipgloss.Style
	caption lipgloss.Style
	panel   lipgloss.Style
	moods   map[mood.Mood]lipgloss.Style
}

func defaultStyles() styles {
	badge := func(color string) lipgloss.Style {
		return lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#0B0B0F")).
			Background(lipgloss.Color(color)).
			Padding(0, 1)
	}
	return styles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#C792EA")),
		label: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7F849C")).
			Width(12),
		value: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CDD6F4")),
		muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#585B70")),
		busy: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F9E2AF")),
		bar: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#89B4FA")),
		caption: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#C792EA")).
			Foreground(lipgloss.Color("#CDD6F4")).
			Padding(0, 1).
			Width(52),
		panel: lipgloss.NewStyle().
			Padding(1, 2),
		moods: map[mood.Mood]lipgloss.Style{
			mood.Idle:     badge("#A6ADC8"),
			mood.Thinking: badge("#89B4FA"),
			mood.Speaking: badge("#A6E3A1"),
			mood.Scared:   badge("#F38BA8"),
		},
	}
}
