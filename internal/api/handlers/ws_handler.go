package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/yoockh/scholarchat/internal/services"
	"github.com/yoockh/scholarchat/internal/utils"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

type WSHandler struct {
	svc      services.ChatService
	upgrader websocket.Upgrader
}

func NewWSHandler(svc services.ChatService, allowedOrigins []string) *WSHandler {
	allow := map[string]struct{}{}
	for _, o := range allowedOrigins {
		allow[o] = struct{}{}
	}
	return &WSHandler{
		svc: svc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(allow) == 0 {
					return true
				}
				_, ok := allow[r.Header.Get("Origin")]
				return ok
			},
		},
	}
}

// wsClientMsg is either {"type":"chat", ...ChatRequest} or {"type":"cancel"}.
type wsClientMsg struct {
	Type string `json:"type"`
	ChatRequest
}

type wsServerMsg struct {
	Type           string       `json:"type"` // meta|source|text|done|error
	ConversationID string       `json:"conversation_id,omitempty"`
	RunID          string       `json:"run_id,omitempty"`
	Text           string       `json:"text,omitempty"`
	Source         *SourceEvent `json:"source,omitempty"`
	Error          *APIError    `json:"error,omitempty"`
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

func (w *wsConn) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.c.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

func (w *wsConn) writeError(err error) error {
	body := errorBody(err)
	return w.writeJSON(wsServerMsg{Type: "error", Error: &body})
}

// ChatWS runs chat exchanges over one socket, one at a time. A "chat" sent
// while a reply is streaming is rejected with CONFLICT. A "cancel" message
// aborts the exchange in flight; it is then not persisted.
func (h *WSHandler) ChatWS(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	var (
		runMu     sync.Mutex
		cancelRun context.CancelFunc
		busy      atomic.Bool // set from accepting a chat until its reply ends
	)
	requests := make(chan ChatRequest, 1)

	// reader: WS -> requests
	go func() {
		defer close(requests)
		defer cancel()

		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
			return nil
		})

		for {
			_, data, rerr := conn.ReadMessage()
			if rerr != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))

			var msg wsClientMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				_ = wc.writeError(utils.E(utils.CodeInvalidArgument, "WSHandler.ChatWS", "invalid json", err))
				continue
			}

			switch msg.Type {
			case "chat":
				if !busy.CompareAndSwap(false, true) {
					_ = wc.writeError(utils.E(utils.CodeConflict, "WSHandler.ChatWS", "a reply is already in progress", nil))
					continue
				}
				requests <- msg.ChatRequest
			case "cancel":
				runMu.Lock()
				if cancelRun != nil {
					cancelRun()
				}
				runMu.Unlock()
			default:
				_ = wc.writeError(utils.E(utils.CodeInvalidArgument, "WSHandler.ChatWS", "unknown message type", nil))
			}
		}
	}()

	// keepalive
	go func() {
		t := time.NewTicker(wsPingPeriod)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := wc.ping(); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	// writer: one exchange at a time
	for req := range requests {
		runCtx, rc := context.WithCancel(ctx)
		runMu.Lock()
		cancelRun = rc
		runMu.Unlock()

		err := h.exchange(runCtx, wc, req.input(userID), func() { busy.Store(false) })

		runMu.Lock()
		cancelRun = nil
		runMu.Unlock()
		rc()

		if err != nil {
			return
		}
	}
}

// exchange streams one reply. release runs before the final done or error
// message so the client may send its next chat as soon as it sees it.
// It returns an error only when the socket is unusable.
func (h *WSHandler) exchange(ctx context.Context, wc *wsConn, in services.ChatInput, release func()) error {
	stream, err := h.svc.Chat(ctx, in)
	if err != nil {
		release()
		return wc.writeError(err)
	}

	if err := wc.writeJSON(wsServerMsg{Type: "meta", ConversationID: stream.ConversationID, RunID: stream.RunID}); err != nil {
		return err
	}
	for _, s := range sourceEvents(stream.Papers) {
		if err := wc.writeJSON(wsServerMsg{Type: "source", Source: &s}); err != nil {
			return err
		}
	}

	for chunk := range stream.Chunks {
		if err := wc.writeJSON(wsServerMsg{Type: "text", Text: chunk}); err != nil {
			return err
		}
	}
	streamErr := <-stream.Errs
	release()

	switch {
	case streamErr != nil:
		return wc.writeError(streamErr)
	case ctx.Err() != nil:
		return wc.writeError(utils.E(utils.CodeConflict, "WSHandler.ChatWS", "reply cancelled", nil))
	default:
		return wc.writeJSON(wsServerMsg{Type: "done", ConversationID: stream.ConversationID})
	}
}
