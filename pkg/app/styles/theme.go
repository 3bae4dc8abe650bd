package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/kerbaras/mangacache/pkg/data"
	"github.com/kerbaras/mangacache/pkg/events"
)

var (
	// Color palette
	Primary    = lipgloss.Color("#FF6B9D")
	Secondary  = lipgloss.Color("#C792EA")
	Success    = lipgloss.Color("#C3E88D")
	Warning    = lipgloss.Color("#FFCB6B")
	Error      = lipgloss.Color("#F07178")
	Info       = lipgloss.Color("#82AAFF")
	Muted      = lipgloss.Color("#546E7A")
	Background = lipgloss.Color("#263238")
	Foreground = lipgloss.Color("#EEFFFF")

	RoundedBorder = lipgloss.RoundedBorder()
	ThickBorder   = lipgloss.ThickBorder()
)

// Base styles
var (
	TitleStyle = lipgloss.NewStyle().
		Foreground(Primary).
		Bold(true).
		MarginBottom(1)

	SectionStyle = lipgloss.NewStyle().
		Foreground(Secondary).
		Bold(true)

	TextStyle = lipgloss.NewStyle().
		Foreground(Foreground)

	MutedStyle = lipgloss.NewStyle().
		Foreground(Muted)

	CardStyle = lipgloss.NewStyle().
		Border(RoundedBorder).
		BorderForeground(Secondary).
		Padding(0, 1)

	ActiveCardStyle = lipgloss.NewStyle().
		Border(ThickBorder).
		BorderForeground(Primary).
		Padding(0, 1)

	StatusDownloading = lipgloss.NewStyle().
		Foreground(Info).
		Bold(true)

	StatusCompleted = lipgloss.NewStyle().
		Foreground(Success).
		Bold(true)

	StatusError = lipgloss.NewStyle().
		Foreground(Error).
		Bold(true)

	ProgressBarStyle = lipgloss.NewStyle().
		Foreground(Primary)

	ProgressEmptyStyle = lipgloss.NewStyle().
		Foreground(Muted)

	ActiveTabStyle = lipgloss.NewStyle().
		Foreground(Primary).
		Background(lipgloss.Color("#37474F")).
		Padding(0, 2).
		Bold(true)

	InactiveTabStyle = lipgloss.NewStyle().
		Foreground(Muted).
		Padding(0, 2)

	HelpStyle = lipgloss.NewStyle().
		Foreground(Muted).
		Italic(true).
		MarginTop(1)

	WarningStyle = lipgloss.NewStyle().
		Foreground(Warning)
)

func StatusStyle(status data.TaskStatus) lipgloss.Style {
	switch status {
	case data.StatusDownloading:
		return StatusDownloading
	case data.StatusDownloaded:
		return StatusCompleted
	case data.StatusFailed:
		return StatusError
	default:
		return MutedStyle
	}
}

func ToastStyle(t events.ToastType) lipgloss.Style {
	switch t {
	case events.ToastSuccess:
		return StatusCompleted
	case events.ToastError:
		return StatusError
	default:
		return StatusDownloading
	}
}
