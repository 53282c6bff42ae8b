package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

var (
	Primary = lipgloss.Color("#22d3ee")
	Success = lipgloss.Color("#10B981")
	Error   = lipgloss.Color("#EF4444")
	Muted   = lipgloss.Color("#6B7280")
)

var (
	ErrorStyle  = lipgloss.NewStyle().Foreground(Error).Bold(true)
	MutedStyle  = lipgloss.NewStyle().Foreground(Muted)
	PeerStyle   = lipgloss.NewStyle().Foreground(Primary).Bold(true)
	SystemStyle = lipgloss.NewStyle().Foreground(Success).Italic(true)

	TableHeaderStyle = lipgloss.NewStyle().Foreground(Primary).Bold(true).Padding(0, 1)
	TableRowStyle    = lipgloss.NewStyle().Padding(0, 1)
	TableRowAltStyle = lipgloss.NewStyle().Foreground(Muted).Padding(0, 1)
)

func printError(msg string) {
	fmt.Fprintln(os.Stderr, ErrorStyle.Render("✗ "+msg))
}
