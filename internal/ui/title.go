// Package ui renders the terminal chrome around a mitigation run: the
// startup title card and the pre-launch countdown.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/shingonati0n/xivomega/internal/brand"
)

var logoLines = []string{
	`__  _____ _   _  ___  __  __ _____ ____    _`,
	`\ \/ /_ _| | | |/ _ \|  \/  | ____/ ___|  / \`,
	` \  / | || | | | | | | |\/| |  _|| |  _  / _ \`,
	` /  \ | || |_| | |_| | |  | | |__| |_| |/ ___ \`,
	`/_/\_\___|\___/ \___/|_|  |_|_____\____/_/   \_\`,
}

// TitleCard renders the startup banner.
func TitleCard() string {
	logo := StyleLogo.Render(strings.Join(logoLines, "\n"))
	tagline := StyleTagline.Render(brand.Tagline)
	version := StyleVersion.Render("v" + brand.Version)

	body := lipgloss.JoinVertical(lipgloss.Center, logo, tagline, version)
	return StyleCard.Render(body)
}

// PrintTitle writes the title card to w.
func PrintTitle(w io.Writer) {
	fmt.Fprintln(w, TitleCard())
}
