// Package tui is the full-screen terminal front end of the chat client.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sipeed/picochat/pkg/chat"
	"github.com/sipeed/picochat/pkg/format"
	"github.com/sipeed/picochat/pkg/logger"
)

const (
	headerHeight = 2
	inputHeight  = 3
	footerHeight = 2
)

type Options struct {
	Title          string
	Subtitle       string
	Labels         chat.Labels
	FailureMessage string
}

// Model is the bubbletea model of one terminal chat.
type Model struct {
	ctx     context.Context
	sender  chat.Sender
	session *chat.Session
	opts    Options
	keyMap  KeyMap
	theme   format.Theme
	styles  styles

	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	width  int
	height int
	ready  bool
	status string

	// copyText writes to the system clipboard.
	copyText func(string) error
}

// replyMsg carries a finished reply back to Update.
type replyMsg struct {
	session *chat.Session
	message chat.Message
}

func New(ctx context.Context, sender chat.Sender, opts Options) *Model {
	if opts.Labels.User == "" {
		opts.Labels.User = chat.DefaultLabels.User
	}
	if opts.Labels.Bot == "" {
		opts.Labels.Bot = chat.DefaultLabels.Bot
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))

	ta := textarea.New()
	ta.Placeholder = "Type your message..."
	ta.Prompt = "┃ "
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(inputHeight)
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.BlurredStyle = ta.FocusedStyle
	ta.Focus()

	m := &Model{
		ctx:      ctx,
		sender:   sender,
		opts:     opts,
		keyMap:   DefaultKeyMap(),
		theme:    format.DefaultTheme(),
		styles:   defaultStyles(),
		viewport: viewport.New(80, 20),
		textarea: ta,
		spinner:  s,
		copyText: clipboard.WriteAll,
	}
	m.session = m.newSession()
	m.refresh()
	return m
}

func (m *Model) newSession() *chat.Session {
	return chat.NewSession(m.sender, chat.WithFailureMessage(m.opts.FailureMessage))
}

// Session returns the conversation currently shown.
func (m *Model) Session() *chat.Session {
	return m.session
}

func (m *Model) Init() tea.Cmd {
	return textarea.Blink
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case replyMsg:
		if msg.session != m.session {
			return m, nil
		}
		if msg.message.Failed {
			m.status = "Message failed"
		} else {
			m.status = ""
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.session.Busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keyMap.Quit):
		return m, tea.Quit

	// must be checked before Send since alt+enter also carries enter
	case key.Matches(msg, m.keyMap.Newline):
		m.textarea.InsertString("\n")
		return m, nil

	case key.Matches(msg, m.keyMap.Send):
		return m.submit()

	case key.Matches(msg, m.keyMap.ClearLine):
		m.textarea.Reset()
		return m, nil

	case key.Matches(msg, m.keyMap.PageUp), key.Matches(msg, m.keyMap.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case key.Matches(msg, m.keyMap.CopyReply):
		return m.cmdCopy()

	case key.Matches(msg, m.keyMap.NewSession):
		return m.cmdClear()
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

// submit handles Enter: a slash command or a message for the webhook.
func (m *Model) submit() (tea.Model, tea.Cmd) {
	value := m.textarea.Value()
	if strings.TrimSpace(value) == "" {
		return m, nil
	}
	if model, cmd, ok := m.runCommand(strings.TrimSpace(value)); ok {
		m.textarea.Reset()
		return model, cmd
	}

	user, err := m.session.Begin(value)
	switch {
	case errors.Is(err, chat.ErrBusy):
		m.status = "Waiting for the current reply..."
		return m, nil
	case err != nil:
		return m, nil
	}

	m.textarea.Reset()
	m.status = ""
	m.refresh()

	session := m.session
	ctx := m.ctx
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		return replyMsg{session: session, message: session.Complete(ctx, user)}
	})
}

// runCommand executes known slash commands. Any other input, including
// text that merely starts with a slash, is sent as a message.
func (m *Model) runCommand(input string) (tea.Model, tea.Cmd, bool) {
	fields := strings.Fields(input)
	switch fields[0] {
	case "/quit", "/exit":
		return m, tea.Quit, true
	case "/clear", "/new":
		model, cmd := m.cmdClear()
		return model, cmd, true
	case "/copy":
		model, cmd := m.cmdCopy()
		return model, cmd, true
	case "/export":
		path := ""
		if len(fields) > 1 {
			path = fields[1]
		}
		model, cmd := m.cmdExport(path)
		return model, cmd, true
	case "/help":
		m.status = "/clear new chat · /copy last reply · /export FILE · /quit"
		return m, nil, true
	}
	return nil, nil, false
}

func (m *Model) cmdClear() (tea.Model, tea.Cmd) {
	if m.session.Busy() {
		m.status = "Waiting for the current reply..."
		return m, nil
	}
	m.session = m.newSession()
	m.status = "Started a new chat"
	m.refresh()
	return m, nil
}

func (m *Model) cmdCopy() (tea.Model, tea.Cmd) {
	last, ok := m.session.LastReply()
	if !ok {
		m.status = "No reply to copy"
		return m, nil
	}
	if err := m.copyText(last.Text); err != nil {
		logger.WarnCF("tui", "Clipboard copy failed", map[string]interface{}{"error": err.Error()})
		m.status = "Copy failed: " + err.Error()
		return m, nil
	}
	m.status = "Copied last reply to clipboard"
	return m, nil
}

// cmdExport writes the transcript to path. A .html path gets a standalone
// page; anything else gets markdown.
func (m *Model) cmdExport(path string) (tea.Model, tea.Cmd) {
	if path == "" {
		path = "chat-" + m.session.ID()[:8] + ".md"
	}

	msgs := m.session.Messages()
	var data []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		data = chat.TranscriptHTML(m.opts.Title, msgs, m.opts.Labels)
	default:
		data = []byte(chat.Transcript(m.opts.Title, msgs, m.opts.Labels))
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		m.status = fmt.Sprintf("Export failed: %v", err)
		return m, nil
	}
	m.status = "Saved transcript to " + path
	return m, nil
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.textarea.SetWidth(width)
	m.viewport.Width = width
	m.viewport.Height = max(height-headerHeight-inputHeight-footerHeight-1, 1)
	m.ready = true
	m.refresh()
}

// refresh re-renders the thread into the viewport and scrolls to the end.
func (m *Model) refresh() {
	m.viewport.SetContent(m.renderThread())
	m.viewport.GotoBottom()
}

// Run starts the terminal chat and blocks until the user quits or ctx ends.
func Run(ctx context.Context, sender chat.Sender, opts Options) error {
	p := tea.NewProgram(New(ctx, sender, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
