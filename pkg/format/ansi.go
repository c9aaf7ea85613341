package format

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme holds the terminal styles used for each span variant.
type Theme struct {
	Plain  lipgloss.Style
	Bold   lipgloss.Style
	Italic lipgloss.Style
	Code   lipgloss.Style
}

func DefaultTheme() Theme {
	return Theme{
		Plain:  lipgloss.NewStyle(),
		Bold:   lipgloss.NewStyle().Bold(true),
		Italic: lipgloss.NewStyle().Italic(true),
		Code: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("237")),
	}
}

// Render draws d for a terminal. Lines are wrapped to width when width > 0.
func (t Theme) Render(d Document, width int) string {
	wrap := lipgloss.NewStyle()
	if width > 0 {
		wrap = wrap.Width(width)
	}

	lines := make([]string, 0, len(d))
	for _, b := range d {
		switch b := b.(type) {
		case LineBreak:
			lines = append(lines, "")
		case Paragraph:
			var sb strings.Builder
			for _, s := range b {
				sb.WriteString(t.style(s).Render(s.Text()))
			}
			lines = append(lines, wrap.Render(sb.String()))
		}
	}
	return strings.Join(lines, "\n")
}

func (t Theme) style(s Span) lipgloss.Style {
	switch s.(type) {
	case Bold:
		return t.Bold
	case Italic:
		return t.Italic
	case Code:
		return t.Code
	}
	return t.Plain
}
