package tui

import (
	"strings"

	"charm.land/lipgloss/v2"
)

// Saffron accent for the LAWONTIP banner.
const saffron = "#FF9933"

// LAWONTIP ASCII art (filled block style).
var lawontipArt = []string{
	"██╗      █████╗ ██╗    ██╗ ██████╗ ███╗   ██╗████████╗██╗██████╗ ",
	"██║     ██╔══██╗██║    ██║██╔═══██╗████╗  ██║╚══██╔══╝██║██╔══██╗",
	"██║     ███████║██║ █╗ ██║██║   ██║██╔██╗ ██║   ██║   ██║██████╔╝",
	"██║     ██╔══██║██║███╗██║██║   ██║██║╚██╗██║   ██║   ██║██╔═══╝ ",
	"███████╗██║  ██║╚███╔███╔╝╚██████╔╝██║ ╚████║   ██║   ██║██║     ",
	"╚══════╝╚═╝  ╚═╝ ╚══╝╚══╝  ╚═════╝ ╚═╝  ╚═══╝   ╚═╝   ╚═╝╚═╝     ",
}

// Styles contains all lipgloss styles for the TUI.
type Styles struct {
	Banner    lipgloss.Style
	Header    lipgloss.Style
	User      lipgloss.Style
	Assistant lipgloss.Style
	System    lipgloss.Style
	Tips      lipgloss.Style
	Error     lipgloss.Style
	Prompt    lipgloss.Style
	Separator lipgloss.Style
	StatusBar lipgloss.Style
}

// DefaultStyles returns the default style configuration.
func DefaultStyles() Styles {
	return Styles{
		Banner:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(saffron)),
		Header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(saffron)),
		User:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Assistant: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		System:    lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("240")),
		Tips:      lipgloss.NewStyle().Foreground(lipgloss.Color("255")),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Prompt:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Separator: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		StatusBar: lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
	}
}

// RenderBanner returns the LAWONTIP ASCII art banner as a styled string.
func (s Styles) RenderBanner() string {
	var b strings.Builder
	for _, line := range lawontipArt {
		_, _ = b.WriteString(s.Banner.Render(line))
		_, _ = b.WriteString("\n")
	}
	return b.String()
}

// welcomeTips contains getting started tips displayed under the banner.
var welcomeTips = []string{
	"Law on your fingertip:",
	"  • Ask about Indian statutes, sections, and procedures",
	"  • Tab toggles question/scenario mode, or use /scenario",
	"  • Use /clear to start the conversation over",
	"  • Press Ctrl+C to cancel, Ctrl+D to exit",
}

// RenderWelcomeTips returns styled welcome tips.
func (s Styles) RenderWelcomeTips() string {
	var b strings.Builder
	for _, tip := range welcomeTips {
		_, _ = b.WriteString(s.Tips.Render(tip))
		_, _ = b.WriteString("\n")
	}
	return b.String()
}
