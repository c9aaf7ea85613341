package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/picochat/pkg/chat"
	"github.com/sipeed/picochat/pkg/config"
)

type stubSender struct {
	mu    sync.Mutex
	reply string
	err   error
	block chan struct{}
	seen  []string
}

func (s *stubSender) Send(ctx context.Context, text, sessionID string) (string, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, sessionID+":"+text)
	return s.reply, s.err
}

func newTestChannel(t *testing.T, sender chat.Sender) (*WebChatChannel, *httptest.Server) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.WebChat.Title = "Support"
	cfg.WebChat.Subtitle = "Ask us anything"
	c := NewWebChatChannel(cfg, sender)
	srv := httptest.NewServer(c.Handler())
	t.Cleanup(srv.Close)
	return c, srv
}

func postJSON(t *testing.T, url string, v interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestWebChatSend(t *testing.T) {
	sender := &stubSender{reply: "Hello **there**, run `ls`"}
	_, srv := newTestChannel(t, sender)
	id := uuid.NewString()

	resp, out := postJSON(t, srv.URL+"/chat/send", chatRequest{SessionID: id, Text: "hi"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, id, out["session_id"])

	msg := out["message"].(map[string]interface{})
	assert.Equal(t, "bot", msg["role"])
	assert.Equal(t, "Hello **there**, run `ls`", msg["text"])
	assert.Equal(t, "<p>Hello <strong>there</strong>, run <code>ls</code></p>", msg["html"])
	assert.NotEmpty(t, msg["time"])

	blocks := msg["blocks"].([]interface{})
	require.Len(t, blocks, 1)
	assert.Equal(t, "paragraph", blocks[0].(map[string]interface{})["type"])

	assert.Equal(t, []string{id + ":hi"}, sender.seen)
}

func TestWebChatSendRejects(t *testing.T) {
	_, srv := newTestChannel(t, &stubSender{reply: "x"})

	tests := []struct {
		name string
		req  chatRequest
		want int
	}{
		{"empty text", chatRequest{SessionID: uuid.NewString(), Text: "  "}, http.StatusBadRequest},
		{"missing session", chatRequest{Text: "hi"}, http.StatusBadRequest},
		{"bad session", chatRequest{SessionID: "../etc", Text: "hi"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, out := postJSON(t, srv.URL+"/chat/send", tt.req)
			assert.Equal(t, tt.want, resp.StatusCode)
			assert.NotEmpty(t, out["error"])
		})
	}

	resp, err := http.Post(srv.URL+"/chat/send", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebChatSendWhileBusy(t *testing.T) {
	sender := &stubSender{reply: "late", block: make(chan struct{})}
	c, srv := newTestChannel(t, sender)
	id := uuid.NewString()

	done := make(chan int, 1)
	go func() {
		body, _ := json.Marshal(chatRequest{SessionID: id, Text: "first"})
		resp, err := http.Post(srv.URL+"/chat/send", "application/json", bytes.NewReader(body))
		if err != nil {
			done <- 0
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()

	require.Eventually(t, func() bool {
		s, err := c.session(id)
		return err == nil && s.Busy()
	}, 2*time.Second, 10*time.Millisecond)

	resp, out := postJSON(t, srv.URL+"/chat/send", chatRequest{SessionID: id, Text: "second"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, out["error"], "already")

	resp, _ = postJSON(t, srv.URL+"/chat/reset", chatRequest{SessionID: id})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	close(sender.block)
	assert.Equal(t, http.StatusOK, <-done)
	assert.Equal(t, []string{id + ":first"}, sender.seen)
}

func TestWebChatFailureFallback(t *testing.T) {
	sender := &stubSender{err: assert.AnError}
	_, srv := newTestChannel(t, sender)

	resp, out := postJSON(t, srv.URL+"/chat/send", chatRequest{SessionID: uuid.NewString(), Text: "hi"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	msg := out["message"].(map[string]interface{})
	assert.Equal(t, config.DefaultFailureMessage, msg["text"])
	assert.Equal(t, true, msg["failed"])
}

func TestWebChatPollAndReset(t *testing.T) {
	_, srv := newTestChannel(t, &stubSender{reply: "pong"})
	id := uuid.NewString()

	resp, _ := postJSON(t, srv.URL+"/chat/send", chatRequest{SessionID: id, Text: "<b>ping</b>"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	poll := func() pollResponse {
		resp, err := http.Get(srv.URL + "/chat/poll?session_id=" + id)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var out pollResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return out
	}

	out := poll()
	assert.False(t, out.Busy)
	require.Len(t, out.Messages, 2)
	assert.Equal(t, chat.RoleUser, out.Messages[0].Role)
	assert.Equal(t, "<b>ping</b>", out.Messages[0].Text)
	assert.Empty(t, out.Messages[0].HTML, "user text is never rendered as markup")
	assert.Equal(t, "<p>pong</p>", out.Messages[1].HTML)

	resp, _ = postJSON(t, srv.URL+"/chat/reset", chatRequest{SessionID: id})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, poll().Messages)
}

func TestWebChatExport(t *testing.T) {
	_, srv := newTestChannel(t, &stubSender{reply: "use *care*"})
	id := uuid.NewString()
	postJSON(t, srv.URL+"/chat/send", chatRequest{SessionID: id, Text: "hello"})

	get := func(format string) (*http.Response, string) {
		resp, err := http.Get(srv.URL + "/chat/export?session_id=" + id + "&format=" + format)
		require.NoError(t, err)
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp, string(b)
	}

	resp, body := get("md")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "chat-"+id[:8]+".md")
	assert.Contains(t, body, "# Support")
	assert.Contains(t, body, "use *care*")

	resp, body = get("html")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, body, "<em>care</em>")

	resp, _ = get("pdf")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebChatPage(t *testing.T) {
	_, srv := newTestChannel(t, &stubSender{})

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	page := string(b)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, page, "<title>Support</title>")
	assert.Contains(t, page, "Ask us anything")
	assert.Contains(t, page, "Welcome to ChatBot!")
	assert.Contains(t, page, "Session ID: ")
}

func TestWebChatHealth(t *testing.T) {
	c, srv := newTestChannel(t, &stubSender{})
	_, err := c.session(uuid.NewString())
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, float64(1), out["sessions"])
}

func TestWebChatSweep(t *testing.T) {
	c, _ := newTestChannel(t, &stubSender{})
	idle, err := c.session(uuid.NewString())
	require.NoError(t, err)

	assert.Equal(t, 0, c.sweep(time.Now()))
	assert.Equal(t, 1, c.sweep(idle.LastUsed().Add(c.ttl+time.Minute)))
	assert.Equal(t, 0, c.SessionCount())
}

func TestWebChatWebsocket(t *testing.T) {
	sender := &stubSender{reply: "*hi* back"}
	_, srv := newTestChannel(t, sender)
	id := uuid.NewString()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat/ws?session_id=" + id
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	require.NoError(t, conn.WriteJSON(map[string]string{"text": "hello"}))

	var events []wsEvent
	for i := 0; i < 4; i++ {
		var ev wsEvent
		require.NoError(t, conn.ReadJSON(&ev))
		events = append(events, ev)
	}

	assert.Equal(t, "message", events[0].Type)
	assert.Equal(t, "hello", events[0].Message.Text)
	assert.Equal(t, wsEvent{Type: "typing", Busy: true}, events[1])
	assert.Equal(t, "message", events[2].Type)
	assert.Equal(t, "<p><em>hi</em> back</p>", events[2].Message.HTML)
	assert.Equal(t, wsEvent{Type: "typing"}, events[3])

	require.NoError(t, conn.WriteJSON(map[string]string{"text": " "}))
	var ev wsEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "error", ev.Type)
	assert.Equal(t, chat.ErrEmptyInput.Error(), ev.Error)
}

func TestWebChatStartStop(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.WebChat.Port = 0
	c := NewWebChatChannel(cfg, &stubSender{})

	require.NoError(t, c.Start(context.Background()))
	assert.True(t, c.IsRunning())
	require.NotEmpty(t, c.Addr())

	resp, err := http.Get("http://" + c.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Stop(ctx))
	assert.False(t, c.IsRunning())
	assert.NoError(t, <-c.Done())
}

func TestWebChatStartPortInUse(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.WebChat.Port = 0
	first := NewWebChatChannel(cfg, &stubSender{})
	require.NoError(t, first.Start(context.Background()))
	defer first.Stop(context.Background())

	_, port, err := net.SplitHostPort(first.Addr())
	require.NoError(t, err)
	cfg.WebChat.Port, err = strconv.Atoi(port)
	require.NoError(t, err)

	second := NewWebChatChannel(cfg, &stubSender{})
	assert.Error(t, second.Start(context.Background()))
	assert.False(t, second.IsRunning())
}
