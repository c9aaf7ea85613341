package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sipeed/picochat/pkg/chat"
)

type styles struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	User     lipgloss.Style
	Bot      lipgloss.Style
	Failed   lipgloss.Style
	Time     lipgloss.Style
	Muted    lipgloss.Style
	Welcome  lipgloss.Style
}

func defaultStyles() styles {
	teal := lipgloss.Color("#0d9488")
	muted := lipgloss.Color("245")
	return styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffffff")).Background(teal).Padding(0, 1),
		Subtitle: lipgloss.NewStyle().Foreground(muted).PaddingLeft(1),
		User:     lipgloss.NewStyle().Bold(true).Foreground(teal),
		Bot:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")),
		Failed:   lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		Time:     lipgloss.NewStyle().Foreground(muted),
		Muted:    lipgloss.NewStyle().Foreground(muted),
		Welcome:  lipgloss.NewStyle().Foreground(muted).Align(lipgloss.Center),
	}
}

func (m *Model) View() string {
	if !m.ready {
		return "Starting..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.renderTyping())
	b.WriteString("\n")
	b.WriteString(m.textarea.View())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m *Model) renderHeader() string {
	title := m.opts.Title
	if title == "" {
		title = "Chat"
	}
	line := m.styles.Title.Render(title)
	if m.opts.Subtitle != "" {
		line += m.styles.Subtitle.Render(m.opts.Subtitle)
	}
	return line + "\n"
}

func (m *Model) renderTyping() string {
	if !m.session.Busy() {
		return ""
	}
	return m.spinner.View() + m.styles.Muted.Render(" "+m.opts.Labels.Bot+" is typing...")
}

func (m *Model) renderFooter() string {
	left := "Session ID: " + m.session.ShortID()
	if m.status != "" {
		left += " · " + m.status
	}
	help := "enter send · alt+enter newline · /help"
	return m.styles.Muted.Render(left) + "\n" + m.styles.Muted.Render(help)
}

// renderThread draws every message of the session, or the welcome text
// when it has none.
func (m *Model) renderThread() string {
	msgs := m.session.Messages()
	width := m.viewport.Width
	if len(msgs) == 0 {
		welcome := "Welcome to ChatBot!\nSend a message to start the conversation"
		return "\n" + m.styles.Welcome.Width(width).Render(welcome)
	}

	wrap := lipgloss.NewStyle()
	if width > 2 {
		wrap = wrap.Width(width - 2)
	}

	var b strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.renderLabel(msg))
		b.WriteString("\n")
		if msg.IsUser() {
			b.WriteString(wrap.Render(msg.Text))
			continue
		}
		body := m.theme.Render(msg.Doc, width-2)
		if msg.Failed {
			body = m.styles.Failed.Render(body)
		}
		b.WriteString(body)
	}
	return b.String()
}

func (m *Model) renderLabel(msg chat.Message) string {
	if msg.IsUser() {
		return m.styles.User.Render(m.opts.Labels.User) + " " + m.styles.Time.Render(msg.Clock())
	}
	return m.styles.Bot.Render(m.opts.Labels.Bot) + " " + m.styles.Time.Render(msg.Clock())
}
