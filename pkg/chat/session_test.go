package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/picochat/pkg/format"
)

type fakeSender struct {
	mu       sync.Mutex
	reply    string
	err      error
	calls    []string
	sessions []string
	block    chan struct{}
}

func (f *fakeSender) Send(ctx context.Context, text, sessionID string) (string, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, text)
	f.sessions = append(f.sessions, sessionID)
	return f.reply, f.err
}

func fixedClock() func() time.Time {
	t := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func TestNewSessionGeneratesID(t *testing.T) {
	a := NewSession(&fakeSender{})
	b := NewSession(&fakeSender{})

	assert.Len(t, a.ID(), 36)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, a.ID()[:8]+"...", a.ShortID())

	c := NewSession(&fakeSender{}, WithID("abc"))
	assert.Equal(t, "abc", c.ID())
	assert.Equal(t, "abc", c.ShortID())
}

func TestSendSuccess(t *testing.T) {
	sender := &fakeSender{reply: "**Hi** there"}
	s := NewSession(sender, WithClock(fixedClock()))

	reply, err := s.Send(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, RoleBot, reply.Role)
	assert.Equal(t, "**Hi** there", reply.Text)
	assert.Equal(t, format.Document{format.Paragraph{format.Bold("Hi"), format.Plain(" there")}}, reply.Doc)
	assert.False(t, reply.Failed)
	assert.Equal(t, "09:30", reply.Clock())

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].IsUser())
	assert.Equal(t, "hello", msgs[0].Text)
	assert.Nil(t, msgs[0].Doc)
	assert.Equal(t, reply, msgs[1])

	assert.Equal(t, []string{"hello"}, sender.calls)
	assert.Equal(t, []string{s.ID()}, sender.sessions)
	assert.False(t, s.Busy())
}

func TestSendRejectsEmptyInput(t *testing.T) {
	sender := &fakeSender{reply: "x"}
	s := NewSession(sender)

	for _, in := range []string{"", "   ", "\n\t"} {
		_, err := s.Send(context.Background(), in)
		assert.ErrorIs(t, err, ErrEmptyInput)
	}
	assert.Empty(t, s.Messages())
	assert.Empty(t, sender.calls)
}

func TestSendFailureAppendsFallback(t *testing.T) {
	sender := &fakeSender{err: errors.New("connection refused")}
	s := NewSession(sender, WithFailureMessage("Try again later."))

	reply, err := s.Send(context.Background(), "hello")
	require.NoError(t, err)

	assert.True(t, reply.Failed)
	assert.Equal(t, "Try again later.", reply.Text)
	assert.Len(t, s.Messages(), 2)
	assert.False(t, s.Busy(), "busy flag must clear after a failure")

	sender.err = nil
	sender.reply = "ok"
	reply, err = s.Send(context.Background(), "again")
	require.NoError(t, err)
	assert.Equal(t, "ok", reply.Text)
}

func TestSingleRequestInFlight(t *testing.T) {
	sender := &fakeSender{reply: "done", block: make(chan struct{})}
	s := NewSession(sender)

	user, err := s.Begin("first")
	require.NoError(t, err)
	assert.True(t, s.Busy())

	_, err = s.Begin("second")
	assert.ErrorIs(t, err, ErrBusy)
	_, err = s.Send(context.Background(), "third")
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, s.Reset(), ErrBusy)

	done := make(chan Message)
	go func() { done <- s.Complete(context.Background(), user) }()
	close(sender.block)

	reply := <-done
	assert.Equal(t, "done", reply.Text)
	assert.False(t, s.Busy())
	assert.Equal(t, []string{"first"}, sender.calls)
}

func TestLastReplyAndReset(t *testing.T) {
	s := NewSession(&fakeSender{reply: "answer"})

	_, ok := s.LastReply()
	assert.False(t, ok)

	_, err := s.Send(context.Background(), "q")
	require.NoError(t, err)

	last, ok := s.LastReply()
	require.True(t, ok)
	assert.Equal(t, "answer", last.Text)

	require.NoError(t, s.Reset())
	assert.Empty(t, s.Messages())
}

func TestTranscript(t *testing.T) {
	s := NewSession(&fakeSender{reply: "Use `ls`\n\nthen *cd*"}, WithClock(fixedClock()))
	_, err := s.Send(context.Background(), "how do I list files?")
	require.NoError(t, err)

	md := Transcript("Support", s.Messages(), Labels{User: "Me"})
	assert.True(t, strings.HasPrefix(md, "# Support\n\n"))
	assert.Contains(t, md, "**Me** (09:30)\n\nhow do I list files?")
	assert.Contains(t, md, "**Bot** (09:30)\n\nUse `ls`\n\nthen *cd*")
}

func TestTranscriptHTML(t *testing.T) {
	s := NewSession(&fakeSender{reply: "**bold** reply <script>alert(1)</script>"}, WithClock(fixedClock()))
	_, err := s.Send(context.Background(), "hi")
	require.NoError(t, err)

	out := string(TranscriptHTML("Support", s.Messages(), DefaultLabels))
	assert.Contains(t, out, "<title>Support</title>")
	assert.Contains(t, out, "<strong>bold</strong>")
	assert.NotContains(t, out, "<script>")
}
