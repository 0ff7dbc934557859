package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/yllada/wiresock-manager/common"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#3C6E71")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3C6E71")).
			MarginTop(1)

	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E0E0E0"))
	normalStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0A0A0"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C6C6C"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#E06C75"))

	outputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4A4A4A")).
			Padding(0, 1)

	phaseColors = map[common.Phase]lipgloss.Color{
		common.PhaseDisconnected: lipgloss.Color("#A0A0A0"),
		common.PhaseConnecting:   lipgloss.Color("#E5C07B"),
		common.PhaseConnected:    lipgloss.Color("#98C379"),
		common.PhaseFailed:       lipgloss.Color("#E06C75"),
	}
)

func phaseStyle(p common.Phase) lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(phaseColors[p])
}
