package cliui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styles used to print conversations and research progress.
type Theme struct {
	Name string
	Dark bool

	User      lipgloss.Style
	Assistant lipgloss.Style
	Error     lipgloss.Style
	Muted     lipgloss.Style
	Accent    lipgloss.Style
	Title     lipgloss.Style
	Citation  lipgloss.Style

	profile termenv.Profile
}

// NewTheme returns the theme called name: "dark", "light" or "auto". Auto
// asks the terminal for its background color. NO_COLOR disables colors.
func NewTheme(name string) (*Theme, error) {
	var dark bool
	switch name {
	case "dark":
		dark = true
	case "light":
		dark = false
	case "", "auto":
		name = "auto"
		dark = termenv.HasDarkBackground()
	default:
		return nil, fmt.Errorf("unknown theme %q (expected dark, light or auto)", name)
	}

	profile := termenv.EnvColorProfile()
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		profile = termenv.Ascii
	}

	r := lipgloss.NewRenderer(os.Stdout)
	r.SetColorProfile(profile)
	r.SetHasDarkBackground(dark)

	fg := func(light, dark string) lipgloss.AdaptiveColor {
		return lipgloss.AdaptiveColor{Light: light, Dark: dark}
	}

	return &Theme{
		Name:      name,
		Dark:      dark,
		User:      r.NewStyle().Foreground(fg("28", "82")).Bold(true),
		Assistant: r.NewStyle().Foreground(fg("240", "245")),
		Error:     r.NewStyle().Foreground(fg("160", "196")),
		Muted:     r.NewStyle().Foreground(fg("247", "241")),
		Accent:    r.NewStyle().Foreground(fg("25", "39")),
		Title:     r.NewStyle().Foreground(fg("25", "39")).Bold(true),
		Citation:  r.NewStyle().Foreground(fg("94", "180")).Underline(true),
		profile:   profile,
	}, nil
}

// Plain reports whether the theme prints without colors.
func (t *Theme) Plain() bool {
	return t.profile == termenv.Ascii
}

// RenderMarkdown renders markdown content for terminal display using glamour.
// Raw HTML in the content is not interpreted. On failure the content is
// returned unchanged along with the error.
func (t *Theme) RenderMarkdown(content string, width int) (string, error) {
	style := "light"
	switch {
	case t.Plain():
		style = "notty"
	case t.Dark:
		style = "dark"
	}
	if width <= 0 {
		width = defaultWidth
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content, err
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content, err
	}

	return rendered, nil
}

// RenderMarkdown renders markdown with the terminal's automatic style.
func RenderMarkdown(content string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(defaultWidth),
	)
	if err != nil {
		return content, err
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content, err
	}

	return rendered, nil
}
