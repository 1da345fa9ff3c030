package ui

import "github.com/charmbracelet/lipgloss"

// Omega Color Palette
var (
	ColorEmber = lipgloss.Color("#FF6B6B") // Red/Orange for the logo
	ColorGold  = lipgloss.Color("#FFE66D") // Yellow accents
	ColorDeep  = lipgloss.Color("#596E79") // Muted Blue/Grey for secondary text
	ColorText  = lipgloss.Color("#E0E0E0") // Primary text
)

var (
	StyleLogo = lipgloss.NewStyle().
			Foreground(ColorEmber).
			Bold(true)

	StyleTagline = lipgloss.NewStyle().
			Foreground(ColorDeep).
			Italic(true)

	StyleVersion = lipgloss.NewStyle().
			Foreground(ColorGold)

	StyleCard = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorDeep).
			Padding(0, 2)

	StyleCountdown = lipgloss.NewStyle().
			Foreground(ColorGold).
			Bold(true)
)
