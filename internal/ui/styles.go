package ui

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/agentofempires/agent-of-empires/internal/session"
)

// Theme represents the current color scheme
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

type palette struct {
	Bg, Surface, Border, Text, TextDim  lipgloss.Color
	Accent, Purple, Cyan, Green, Yellow lipgloss.Color
	Orange, Red                         lipgloss.Color
}

// Tokyo Night
var darkPalette = palette{
	Bg:      lipgloss.Color("#1a1b26"),
	Surface: lipgloss.Color("#24283b"),
	Border:  lipgloss.Color("#414868"),
	Text:    lipgloss.Color("#c0caf5"),
	TextDim: lipgloss.Color("#787fa0"),
	Accent:  lipgloss.Color("#7aa2f7"),
	Purple:  lipgloss.Color("#bb9af7"),
	Cyan:    lipgloss.Color("#7dcfff"),
	Green:   lipgloss.Color("#9ece6a"),
	Yellow:  lipgloss.Color("#e0af68"),
	Orange:  lipgloss.Color("#ff9e64"),
	Red:     lipgloss.Color("#f7768e"),
}

// Tokyo Night Light
var lightPalette = palette{
	Bg:      lipgloss.Color("#d5d6db"),
	Surface: lipgloss.Color("#e9e9ec"),
	Border:  lipgloss.Color("#9699a3"),
	Text:    lipgloss.Color("#343b58"),
	TextDim: lipgloss.Color("#6a6d7c"),
	Accent:  lipgloss.Color("#34548a"),
	Purple:  lipgloss.Color("#7847bd"),
	Cyan:    lipgloss.Color("#166775"),
	Green:   lipgloss.Color("#485e30"),
	Yellow:  lipgloss.Color("#8f5e15"),
	Orange:  lipgloss.Color("#965027"),
	Red:     lipgloss.Color("#8c4351"),
}

var (
	currentTheme = ThemeDark
	colors       palette

	// themeMu guards the palette and styles during a theme switch.
	themeMu sync.RWMutex
)

// Styles rebuilt by InitTheme.
var (
	TitleStyle        lipgloss.Style
	DimStyle          lipgloss.Style
	ErrorStyle        lipgloss.Style
	SuccessStyle      lipgloss.Style
	HelpStyle         lipgloss.Style
	SelectedStyle     lipgloss.Style
	GroupNameStyle    lipgloss.Style
	GroupCountStyle   lipgloss.Style
	GroupExpandStyle  lipgloss.Style
	SessionTitleStyle lipgloss.Style
	DialogBoxStyle    lipgloss.Style
)

// InitTheme sets the active color palette based on theme name.
// Must be called before any UI rendering.
func InitTheme(theme string) {
	themeMu.Lock()
	defer themeMu.Unlock()
	if theme == string(ThemeLight) {
		currentTheme = ThemeLight
		colors = lightPalette
	} else {
		currentTheme = ThemeDark
		colors = darkPalette
	}
	initStyles()
}

// GetCurrentTheme returns the active theme
func GetCurrentTheme() Theme {
	themeMu.RLock()
	defer themeMu.RUnlock()
	return currentTheme
}

// SetColorProfile forces the lipgloss color profile, e.g. termenv.Ascii
// when output is not a terminal or NO_COLOR is set.
func SetColorProfile(p termenv.Profile) {
	lipgloss.SetColorProfile(p)
}

func init() {
	InitTheme(string(ThemeDark))
}

func initStyles() {
	TitleStyle = lipgloss.NewStyle().Foreground(colors.Accent).Bold(true)
	DimStyle = lipgloss.NewStyle().Foreground(colors.TextDim)
	ErrorStyle = lipgloss.NewStyle().Foreground(colors.Red).Bold(true)
	SuccessStyle = lipgloss.NewStyle().Foreground(colors.Green)
	HelpStyle = lipgloss.NewStyle().Foreground(colors.TextDim).PaddingTop(1)
	SelectedStyle = lipgloss.NewStyle().Foreground(colors.Bg).Background(colors.Accent).Bold(true)
	GroupNameStyle = lipgloss.NewStyle().Foreground(colors.Cyan).Bold(true)
	GroupCountStyle = lipgloss.NewStyle().Foreground(colors.TextDim)
	GroupExpandStyle = lipgloss.NewStyle().Foreground(colors.Purple)
	SessionTitleStyle = lipgloss.NewStyle().Foreground(colors.Text)
	DialogBoxStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colors.Accent).
		Padding(0, 1)

	for st, p := range statusTable {
		p.style = lipgloss.NewStyle().Foreground(p.color(colors))
		statusTable[st] = p
	}
}

// statusPresentation is how one session status is drawn.
type statusPresentation struct {
	Symbol string
	Label  string
	color  func(palette) lipgloss.Color
	style  lipgloss.Style
}

// statusTable must have an entry for every session.Status.
var statusTable = map[session.Status]statusPresentation{
	session.StatusRunning:  {Symbol: "●", Label: "running", color: func(p palette) lipgloss.Color { return p.Green }},
	session.StatusWaiting:  {Symbol: "◐", Label: "waiting", color: func(p palette) lipgloss.Color { return p.Yellow }},
	session.StatusIdle:     {Symbol: "○", Label: "idle", color: func(p palette) lipgloss.Color { return p.TextDim }},
	session.StatusStarting: {Symbol: "⟳", Label: "starting", color: func(p palette) lipgloss.Color { return p.Yellow }},
	session.StatusError:    {Symbol: "✕", Label: "error", color: func(p palette) lipgloss.Color { return p.Red }},
}

// StatusSymbol returns the plain symbol for a status.
func StatusSymbol(status session.Status) string {
	if p, ok := statusTable[status]; ok {
		return p.Symbol
	}
	return "?"
}

// StatusLabel returns the lowercase name shown next to a status symbol.
func StatusLabel(status session.Status) string {
	if p, ok := statusTable[status]; ok {
		return p.Label
	}
	return string(status)
}

// StatusIndicator returns the colored symbol for a status.
func StatusIndicator(status session.Status) string {
	themeMu.RLock()
	defer themeMu.RUnlock()
	p, ok := statusTable[status]
	if !ok {
		return "?"
	}
	return p.style.Render(p.Symbol)
}

// MenuKey formats a key hint like "enter • toggle".
func MenuKey(key, description string) string {
	return fmt.Sprintf("%s %s %s",
		TitleStyle.Render(key),
		DimStyle.Render("•"),
		DimStyle.Render(description),
	)
}
