package channels

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sipeed/picochat/pkg/chat"
	"github.com/sipeed/picochat/pkg/logger"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 20 * time.Second
)

// wsEvent is a frame pushed to the page over the websocket.
type wsEvent struct {
	Type    string       `json:"type"` // message, typing, error
	Message *messageView `json:"message,omitempty"`
	Busy    bool         `json:"busy,omitempty"`
	Error   string       `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
	HandshakeTimeout: 10 * time.Second,
}

// wsConn serializes writes to one websocket connection.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) send(ev wsEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ev); err != nil {
		return err
	}
	return w.Close()
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

func (c *wsConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = c.conn.Close()
}

// handleWS runs one page connection. The page sends {"text": "..."} frames;
// the server answers with the echoed user message, typing state and the
// reply. A frame sent while a reply is pending is rejected, not queued.
func (c *WebChatChannel) handleWS(w http.ResponseWriter, r *http.Request) {
	s, err := c.session(r.URL.Query().Get("session_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn := &wsConn{conn: raw}

	_ = raw.SetReadDeadline(time.Now().Add(wsPongWait))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	ctx, cancel := context.WithCancel(context.Background())
	var inflight sync.WaitGroup
	defer func() {
		cancel()
		inflight.Wait()
		conn.close()
	}()

	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.ping(); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		var req chatRequest
		if err := raw.ReadJSON(&req); err != nil {
			logger.DebugCF("webchat", "Websocket closed", map[string]interface{}{
				"session": s.ID(),
				"error":   err.Error(),
			})
			return
		}
		_ = raw.SetReadDeadline(time.Now().Add(wsPongWait))

		user, err := s.Begin(req.Text)
		if err != nil {
			_ = conn.send(wsEvent{Type: "error", Error: err.Error()})
			continue
		}

		uv := toView(user)
		_ = conn.send(wsEvent{Type: "message", Message: &uv})
		_ = conn.send(wsEvent{Type: "typing", Busy: true})

		inflight.Add(1)
		go func(user chat.Message) {
			defer inflight.Done()
			reply := s.Complete(ctx, user)
			rv := toView(reply)
			_ = conn.send(wsEvent{Type: "message", Message: &rv})
			_ = conn.send(wsEvent{Type: "typing", Busy: false})
		}(user)
	}
}
