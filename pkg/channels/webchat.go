package channels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sipeed/picochat/pkg/chat"
	"github.com/sipeed/picochat/pkg/config"
	"github.com/sipeed/picochat/pkg/format"
	"github.com/sipeed/picochat/pkg/logger"
)

// WebChatChannel serves the single-page chat UI and relays messages from the
// page to the webhook through one chat.Session per browser session.
type WebChatChannel struct {
	config   config.WebChatConfig
	labels   chat.Labels
	failure  string
	sender   chat.Sender
	server   *http.Server
	sessions map[string]*chat.Session // session id -> conversation
	ttl      time.Duration
	mu       sync.RWMutex
	running  bool
	addr     string
	stop     chan struct{}
	done     chan error
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

// messageView is the wire shape of a chat.Message for the page.
type messageView struct {
	ID     string          `json:"id"`
	Role   chat.Role       `json:"role"`
	Text   string          `json:"text"`
	Time   string          `json:"time"`
	HTML   string          `json:"html,omitempty"`
	Blocks format.Document `json:"blocks,omitempty"`
	Failed bool            `json:"failed,omitempty"`
}

type chatResponse struct {
	SessionID string      `json:"session_id"`
	Message   messageView `json:"message"`
}

type pollResponse struct {
	SessionID string        `json:"session_id"`
	Busy      bool          `json:"busy"`
	Messages  []messageView `json:"messages"`
}

func NewWebChatChannel(cfg *config.Config, sender chat.Sender) *WebChatChannel {
	ttl := time.Duration(cfg.WebChat.SessionTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &WebChatChannel{
		config:   cfg.WebChat,
		labels:   chat.Labels{User: cfg.TUI.UserLabel, Bot: cfg.TUI.BotLabel},
		failure:  cfg.FailureMessage(),
		sender:   sender,
		sessions: make(map[string]*chat.Session),
		ttl:      ttl,
	}
}

func toView(m chat.Message) messageView {
	v := messageView{
		ID:     m.ID,
		Role:   m.Role,
		Text:   m.Text,
		Time:   m.Clock(),
		Failed: m.Failed,
	}
	if !m.IsUser() {
		v.HTML = format.HTML(m.Doc)
		v.Blocks = m.Doc
	}
	return v
}

// session returns the conversation for id, creating it on first use. Only
// UUIDs are accepted so ids stay opaque and bounded.
func (c *WebChatChannel) session(id string) (*chat.Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid session id: %w", err)
	}

	c.mu.RLock()
	s, ok := c.sessions[id]
	c.mu.RUnlock()
	if ok {
		return s, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sessions[id]; ok {
		return s, nil
	}
	s = chat.NewSession(c.sender, chat.WithID(id), chat.WithFailureMessage(c.failure))
	c.sessions[id] = s
	logger.DebugCF("webchat", "Session created", map[string]interface{}{"session": id})
	return s, nil
}

// SessionCount reports how many conversations are held in memory.
func (c *WebChatChannel) SessionCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

// sweep drops idle sessions. Sessions with a request in flight are kept.
func (c *WebChatChannel) sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id, s := range c.sessions {
		if !s.Busy() && now.Sub(s.LastUsed()) > c.ttl {
			delete(c.sessions, id)
			removed++
		}
	}
	return removed
}

func (c *WebChatChannel) sweepLoop(stop <-chan struct{}) {
	interval := c.ttl / 4
	if interval > 10*time.Minute {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			if n := c.sweep(now); n > 0 {
				logger.DebugCF("webchat", "Idle sessions removed", map[string]interface{}{"count": n})
			}
		case <-stop:
			return
		}
	}
}

// Handler builds the HTTP routes of the chat UI.
func (c *WebChatChannel) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/", c.handleUI)
	r.Get("/healthz", c.handleHealth)
	r.Route("/chat", func(r chi.Router) {
		r.Post("/send", c.handleSend)
		r.Get("/poll", c.handlePoll)
		r.Post("/reset", c.handleReset)
		r.Get("/export", c.handleExport)
		r.Get("/ws", c.handleWS)
	})
	return r
}

// Start binds the listen address and serves in the background. Listen
// errors are returned; later server errors arrive on Done.
func (c *WebChatChannel) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", c.config.Host, c.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	c.server = &http.Server{
		Handler:           c.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	c.mu.Lock()
	c.running = true
	c.addr = ln.Addr().String()
	c.stop = make(chan struct{})
	c.done = make(chan error, 1)
	stop, done := c.stop, c.done
	c.mu.Unlock()

	logger.InfoCF("webchat", "WebChat started", map[string]interface{}{"addr": c.addr})

	go c.sweepLoop(stop)
	go func() {
		err := c.server.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		if err != nil {
			logger.ErrorCF("webchat", "WebChat server error", map[string]interface{}{"error": err.Error()})
		}
		done <- err
		close(done)
	}()

	return nil
}

func (c *WebChatChannel) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.running = false
		close(c.stop)
	}
	c.mu.Unlock()

	if c.server != nil {
		logger.InfoC("webchat", "WebChat stopping")
		return c.server.Shutdown(ctx)
	}
	return nil
}

// Addr is the bound address once Start has returned.
func (c *WebChatChannel) Addr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.addr
}

// Done yields the server's exit error (nil after Stop) and is then closed.
func (c *WebChatChannel) Done() <-chan error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.done
}

func (c *WebChatChannel) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// sendStatus maps a rejected send to its HTTP status.
func sendStatus(err error) int {
	switch {
	case errors.Is(err, chat.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, chat.ErrEmptyInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (c *WebChatChannel) handleSend(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}

	s, err := c.session(req.SessionID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reply, err := s.Send(r.Context(), req.Text)
	if err != nil {
		writeError(w, sendStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{SessionID: s.ID(), Message: toView(reply)})
}

func (c *WebChatChannel) handlePoll(w http.ResponseWriter, r *http.Request) {
	s, err := c.session(r.URL.Query().Get("session_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msgs := s.Messages()
	views := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, toView(m))
	}
	writeJSON(w, http.StatusOK, pollResponse{SessionID: s.ID(), Busy: s.Busy(), Messages: views})
}

func (c *WebChatChannel) handleReset(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}
	s, err := c.session(req.SessionID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.Reset(); err != nil {
		writeError(w, sendStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (c *WebChatChannel) handleExport(w http.ResponseWriter, r *http.Request) {
	s, err := c.session(r.URL.Query().Get("session_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	name := "chat-" + s.ID()[:8]
	switch r.URL.Query().Get("format") {
	case "", "md", "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.md"`, name))
		fmt.Fprint(w, chat.Transcript(c.config.Title, s.Messages(), c.labels))
	case "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.html"`, name))
		w.Write(chat.TranscriptHTML(c.config.Title, s.Messages(), c.labels))
	default:
		writeError(w, http.StatusBadRequest, "unknown export format")
	}
}

func (c *WebChatChannel) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "sessions": c.SessionCount()})
}

type pageData struct {
	Title     string
	Subtitle  string
	SessionID string
	ShortID   string
}

func (c *WebChatChannel) handleUI(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	data := pageData{
		Title:     c.config.Title,
		Subtitle:  c.config.Subtitle,
		SessionID: id,
		ShortID:   id[:8] + "...",
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := webChatPage.Execute(w, data); err != nil {
		logger.ErrorCF("webchat", "Render page failed", map[string]interface{}{"error": err.Error()})
	}
}

var webChatPage = template.Must(template.New("webchat").Parse(webChatHTML))
