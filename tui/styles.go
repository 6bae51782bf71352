package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary   = lipgloss.Color("202") // Mars orange
	colorSecondary = lipgloss.Color("241")
	colorMuted     = lipgloss.Color("240")
	colorSuccess   = lipgloss.Color("78")
	colorWarning   = lipgloss.Color("214")
	colorError     = lipgloss.Color("196")
)

var TitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("255")).
	Background(colorPrimary).
	Padding(0, 1)

var ActiveTab = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorPrimary).
	Underline(true).
	Padding(0, 1)

var InactiveTab = lipgloss.NewStyle().
	Foreground(colorSecondary).
	Padding(0, 1)

var LabelStyle = lipgloss.NewStyle().
	Foreground(colorSecondary).
	Width(12)

var FocusedLabel = LabelStyle.
	Foreground(colorPrimary).
	Bold(true)

var SelectedItem = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("255")).
	Background(colorPrimary).
	Padding(0, 1)

var NormalItem = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Padding(0, 1)

var MutedStyle = lipgloss.NewStyle().
	Foreground(colorMuted)

var FieldError = lipgloss.NewStyle().
	Foreground(colorWarning).
	PaddingLeft(12)

var ErrorStyle = lipgloss.NewStyle().
	Foreground(colorError).
	Bold(true).
	Padding(0, 1)

var NoticeStyle = lipgloss.NewStyle().
	Foreground(colorWarning).
	Padding(0, 1)

var ConfirmStyle = lipgloss.NewStyle().
	Foreground(colorSuccess).
	Bold(true).
	Padding(0, 1)

var SlideStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorPrimary).
	Padding(1, 2)
