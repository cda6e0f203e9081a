package theme

import (
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles describes reusable Lip Gloss styles shared across surfaces.
type Styles struct {
	DialogBorder        *lipgloss.Style
	DialogTitle         *lipgloss.Style
	DialogMessage       *lipgloss.Style
	Button              *lipgloss.Style
	FocusedButton       *lipgloss.Style
	DefaultButtonMarker *lipgloss.Style
	WindowTitle         *lipgloss.Style
	WindowBody          *lipgloss.Style
	Status              *lipgloss.Style
	Error               *lipgloss.Style
}

var defaultStyles = Styles{
	DialogBorder: ptr(
		lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("238")).Padding(0, 1),
	),
	DialogTitle: ptr(
		lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Bold(true),
	),
	DialogMessage: ptr(
		lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
	),
	Button: ptr(
		lipgloss.NewStyle().Foreground(lipgloss.Color("249")).Padding(0, 1),
	),
	FocusedButton: ptr(
		lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("238")).Bold(true).Padding(0, 1),
	),
	DefaultButtonMarker: ptr(
		lipgloss.NewStyle().Foreground(lipgloss.Color("33")),
	),
	WindowTitle: ptr(
		lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Bold(true),
	),
	WindowBody: ptr(
		lipgloss.NewStyle().Foreground(lipgloss.Color("249")),
	),
	Status: ptr(
		lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	),
	Error: ptr(
		lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	),
}

var monoStyles = Styles{
	DialogBorder:        ptr(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1)),
	DialogTitle:         ptr(lipgloss.NewStyle().Bold(true)),
	DialogMessage:       ptr(lipgloss.NewStyle()),
	Button:              ptr(lipgloss.NewStyle().Padding(0, 1)),
	FocusedButton:       ptr(lipgloss.NewStyle().Reverse(true).Padding(0, 1)),
	DefaultButtonMarker: ptr(lipgloss.NewStyle().Bold(true)),
	WindowTitle:         ptr(lipgloss.NewStyle().Bold(true)),
	WindowBody:          ptr(lipgloss.NewStyle()),
	Status:              ptr(lipgloss.NewStyle().Faint(true)),
	Error:               ptr(lipgloss.NewStyle().Bold(true).Underline(true)),
}

var trueColorStyles = Styles{
	DialogBorder: ptr(
		lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#5f87af")).Padding(0, 1),
	),
	DialogTitle: ptr(
		lipgloss.NewStyle().Foreground(lipgloss.Color("#e4e4e4")).Bold(true),
	),
	DialogMessage: ptr(
		lipgloss.NewStyle().Foreground(lipgloss.Color("#c6c6c6")),
	),
	Button: ptr(
		lipgloss.NewStyle().Foreground(lipgloss.Color("#b2b2b2")).Padding(0, 1),
	),
	FocusedButton: ptr(
		lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")).Background(lipgloss.Color("#3a5f8a")).Bold(true).Padding(0, 1),
	),
	DefaultButtonMarker: ptr(
		lipgloss.NewStyle().Foreground(lipgloss.Color("#87afff")),
	),
	WindowTitle: ptr(
		lipgloss.NewStyle().Foreground(lipgloss.Color("#e4e4e4")).Bold(true),
	),
	WindowBody: ptr(
		lipgloss.NewStyle().Foreground(lipgloss.Color("#bcbcbc")),
	),
	Status: ptr(
		lipgloss.NewStyle().Foreground(lipgloss.Color("#808080")),
	),
	Error: ptr(
		lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f5f")).Bold(true),
	),
}

var named = map[string]*Styles{
	"default":   &defaultStyles,
	"mono":      &monoStyles,
	"truecolor": &trueColorStyles,
}

// Default exposes the standard style set.
func Default() *Styles {
	return &defaultStyles
}

// Named returns the style set registered under name. Lookup ignores case.
func Named(name string) (*Styles, bool) {
	s, ok := named[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

// Names lists the available style sets.
func Names() []string {
	out := make([]string, 0, len(named))
	for name := range named {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// NeedsTrueColor reports whether the named set only renders correctly on a
// 24-bit terminal.
func NeedsTrueColor(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), "truecolor")
}

func ptr(style lipgloss.Style) *lipgloss.Style {
	return &style
}
