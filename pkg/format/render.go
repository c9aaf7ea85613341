package format

import (
	"strings"

	"golang.org/x/net/html"
)

// HTML renders d as an HTML fragment. Every piece of text is escaped.
func HTML(d Document) string {
	var sb strings.Builder
	for _, b := range d {
		switch b := b.(type) {
		case LineBreak:
			sb.WriteString("<br>")
		case Paragraph:
			sb.WriteString("<p>")
			for _, s := range b {
				writeHTMLSpan(&sb, s)
			}
			sb.WriteString("</p>")
		}
	}
	return sb.String()
}

func writeHTMLSpan(sb *strings.Builder, s Span) {
	text := html.EscapeString(s.Text())
	switch s.(type) {
	case Bold:
		sb.WriteString("<strong>" + text + "</strong>")
	case Italic:
		sb.WriteString("<em>" + text + "</em>")
	case Code:
		sb.WriteString("<code>" + text + "</code>")
	default:
		sb.WriteString(text)
	}
}

// PlainText drops all markup. Paragraphs become lines and line breaks
// become empty lines.
func PlainText(d Document) string {
	lines := make([]string, 0, len(d))
	for _, b := range d {
		switch b := b.(type) {
		case LineBreak:
			lines = append(lines, "")
		case Paragraph:
			lines = append(lines, b.Text())
		}
	}
	return strings.Join(lines, "\n")
}

// Markdown writes d back in the markup Format understands.
func Markdown(d Document) string {
	lines := make([]string, 0, len(d))
	for _, b := range d {
		switch b := b.(type) {
		case LineBreak:
			lines = append(lines, "")
		case Paragraph:
			var sb strings.Builder
			for _, s := range b {
				switch s := s.(type) {
				case Bold:
					sb.WriteString("**" + string(s) + "**")
				case Italic:
					sb.WriteString("*" + string(s) + "*")
				case Code:
					sb.WriteString("`" + string(s) + "`")
				case Plain:
					sb.WriteString(string(s))
				}
			}
			lines = append(lines, sb.String())
		}
	}
	return strings.Join(lines, "\n")
}
