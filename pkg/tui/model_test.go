package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/picochat/pkg/chat"
)

type fakeSender struct {
	reply string
	err   error
	texts []string
}

func (f *fakeSender) Send(ctx context.Context, text, sessionID string) (string, error) {
	f.texts = append(f.texts, text)
	return f.reply, f.err
}

func newTestModel(sender chat.Sender) *Model {
	m := New(context.Background(), sender, Options{Title: "Support", Subtitle: "Always here to help"})
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return m
}

func enter() tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyEnter}
}

// drain runs cmd and feeds every resulting replyMsg back into m.
func drain(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		return
	}
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		for _, c := range msg {
			drain(t, m, c)
		}
	case replyMsg:
		m.Update(msg)
	}
}

func TestInitialView(t *testing.T) {
	m := newTestModel(&fakeSender{})

	view := m.View()
	assert.Contains(t, view, "Support")
	assert.Contains(t, view, "Always here to help")
	assert.Contains(t, view, "Welcome to ChatBot!")
	assert.Contains(t, view, "Session ID: "+m.Session().ShortID())
}

func TestSendMessage(t *testing.T) {
	sender := &fakeSender{reply: "Run `make` then **wait**"}
	m := newTestModel(sender)

	m.textarea.SetValue("how do I build?")
	_, cmd := m.Update(enter())
	require.NotNil(t, cmd)

	assert.True(t, m.Session().Busy())
	assert.Empty(t, m.textarea.Value())
	assert.Contains(t, m.View(), "is typing...")

	drain(t, m, cmd)

	assert.False(t, m.Session().Busy())
	assert.Equal(t, []string{"how do I build?"}, sender.texts)

	msgs := m.Session().Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Run `make` then **wait**", msgs[1].Text)

	view := m.View()
	assert.NotContains(t, view, "Welcome to ChatBot!")
	assert.Contains(t, view, "make")
	assert.NotContains(t, view, "**wait**")
}

func TestEmptyInputIsIgnored(t *testing.T) {
	sender := &fakeSender{reply: "x"}
	m := newTestModel(sender)

	m.textarea.SetValue("   ")
	_, cmd := m.Update(enter())
	assert.Nil(t, cmd)
	assert.Empty(t, m.Session().Messages())
	assert.Empty(t, sender.texts)
}

func TestSendWhileBusy(t *testing.T) {
	m := newTestModel(&fakeSender{reply: "x"})

	m.textarea.SetValue("first")
	_, first := m.Update(enter())
	require.NotNil(t, first)

	m.textarea.SetValue("second")
	_, cmd := m.Update(enter())
	assert.Nil(t, cmd)
	assert.Equal(t, "second", m.textarea.Value(), "rejected input stays in the box")
	assert.Contains(t, m.status, "Waiting")

	drain(t, m, first)
	assert.Len(t, m.Session().Messages(), 2)
}

func TestFailedReply(t *testing.T) {
	m := New(context.Background(), &fakeSender{err: errors.New("boom")}, Options{FailureMessage: "Please retry."})
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})

	m.textarea.SetValue("hi")
	_, cmd := m.Update(enter())
	drain(t, m, cmd)

	last, ok := m.Session().LastReply()
	require.True(t, ok)
	assert.True(t, last.Failed)
	assert.Equal(t, "Please retry.", last.Text)
	assert.Equal(t, "Message failed", m.status)
	assert.False(t, m.Session().Busy())
}

func TestAltEnterInsertsNewline(t *testing.T) {
	m := newTestModel(&fakeSender{})

	m.textarea.SetValue("line one")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter, Alt: true})
	assert.Nil(t, cmd)
	assert.Equal(t, "line one\n", m.textarea.Value())
	assert.Empty(t, m.Session().Messages())
}

func TestClearStartsNewSession(t *testing.T) {
	m := newTestModel(&fakeSender{reply: "ok"})
	m.textarea.SetValue("hello")
	_, cmd := m.Update(enter())
	drain(t, m, cmd)

	before := m.Session().ID()
	m.textarea.SetValue("/clear")
	m.Update(enter())

	assert.NotEqual(t, before, m.Session().ID())
	assert.Empty(t, m.Session().Messages())
	assert.Contains(t, m.View(), "Welcome to ChatBot!")
}

func TestStaleReplyIgnored(t *testing.T) {
	m := newTestModel(&fakeSender{})
	old := m.Session()
	m.session = m.newSession()

	m.Update(replyMsg{session: old, message: chat.Message{Role: chat.RoleBot, Failed: true}})
	assert.Empty(t, m.status)
}

func TestCopyLastReply(t *testing.T) {
	m := newTestModel(&fakeSender{reply: "copy *me*"})
	var copied string
	m.copyText = func(s string) error {
		copied = s
		return nil
	}

	m.textarea.SetValue("/copy")
	m.Update(enter())
	assert.Equal(t, "No reply to copy", m.status)

	m.textarea.SetValue("q")
	_, cmd := m.Update(enter())
	drain(t, m, cmd)

	m.textarea.SetValue("/copy")
	m.Update(enter())
	assert.Equal(t, "copy *me*", copied)
	assert.Contains(t, m.status, "Copied")
}

func TestExportTranscript(t *testing.T) {
	m := newTestModel(&fakeSender{reply: "**done**"})
	m.textarea.SetValue("finish it")
	_, cmd := m.Update(enter())
	drain(t, m, cmd)

	dir := t.TempDir()
	md := filepath.Join(dir, "out.md")
	m.textarea.SetValue("/export " + md)
	m.Update(enter())

	data, err := os.ReadFile(md)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# Support"))
	assert.Contains(t, string(data), "finish it")
	assert.Contains(t, string(data), "**done**")

	page := filepath.Join(dir, "out.html")
	m.textarea.SetValue("/export " + page)
	m.Update(enter())

	data, err = os.ReadFile(page)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<strong>done</strong>")
}

func TestSlashTextIsSent(t *testing.T) {
	sender := &fakeSender{reply: "ok"}
	m := newTestModel(sender)

	m.textarea.SetValue("/etc/hosts is missing")
	_, cmd := m.Update(enter())
	drain(t, m, cmd)
	assert.Equal(t, []string{"/etc/hosts is missing"}, sender.texts)
}

func TestQuit(t *testing.T) {
	m := newTestModel(&fakeSender{})
	m.textarea.SetValue("/quit")
	_, cmd := m.Update(enter())
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
