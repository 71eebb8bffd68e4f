package ginserver

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"mapin/internal/app/dto"
	"mapin/internal/domain/chat"
	"mapin/internal/infra/obs"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// Send pings with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The mobile client is not a browser; origin checks add nothing here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn serializes writes; gorilla allows one concurrent writer only.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) writeJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteJSON(v)
}

func (w *wsConn) writeControl(messageType int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteMessage(messageType, nil)
}

// WSHTTP exposes the live observation endpoints.
type WSHTTP interface {
	ObserveConversations(c *gin.Context)
	ObserveMessages(c *gin.Context)
}

// WSHandler pushes conversation-list and message-page snapshots over a
// websocket whenever the underlying data changes. Each frame is the full
// current state, so the client renders whatever arrives last.
type WSHandler struct {
	Conversations *chat.ConversationRepository
	Messages      *chat.MessageRepository
	Logger        *slog.Logger
}

// ObserveConversations streams the viewer's conversation list.
func (h WSHandler) ObserveConversations(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	updates, err := h.Conversations.ObserveConversations(ctx, p.ID)
	if err != nil {
		h.logError("observe conversations failed", err, "user_id", p.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot observe conversations"})
		return
	}
	h.serve(c, cancel, func(conn *wsConn) error {
		for list := range updates {
			collection := dto.ConversationList{Items: make([]dto.Conversation, 0, len(list))}
			for _, conv := range list {
				collection.Items = append(collection.Items, conversationDTO(conv))
			}
			if err := conn.writeJSON(collection); err != nil {
				return err
			}
		}
		return nil
	})
}

// ObserveMessages streams the newest page of one conversation the viewer
// participates in.
func (h WSHandler) ObserveMessages(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	chatH := ChatHandler{Conversations: h.Conversations, Logger: h.Logger}
	conv, ok := chatH.loadParticipantConversation(c, p)
	if !ok {
		return
	}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	pages, err := h.Messages.ObserveMessages(ctx, p.ID, conv.ID)
	if err != nil {
		h.logError("observe messages failed", err, "conversation_id", conv.ID, "user_id", p.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot observe messages"})
		return
	}
	h.serve(c, cancel, func(conn *wsConn) error {
		for page := range pages {
			if err := conn.writeJSON(messagePageDTO(page)); err != nil {
				return err
			}
		}
		return nil
	})
}

// serve upgrades the connection and runs the write loop while a read pump
// watches for the peer closing. cancel tears down the observation either way.
func (h WSHandler) serve(c *gin.Context, cancel context.CancelFunc, writeLoop func(*wsConn) error) {
	raw, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logError("websocket upgrade failed", err)
		return
	}
	conn := &wsConn{conn: raw}
	obs.WebsocketConnections.Inc()
	defer func() {
		obs.WebsocketConnections.Dec()
		raw.Close()
	}()

	go h.readPump(raw, cancel)

	done := make(chan error, 1)
	go func() { done <- writeLoop(conn) }()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case err := <-done:
			if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logError("websocket write failed", err)
			}
			conn.writeControl(websocket.CloseMessage)
			return
		case <-ticker.C:
			if err := conn.writeControl(websocket.PingMessage); err != nil {
				cancel()
			}
		}
	}
}

// readPump drains incoming frames so control messages are processed, and
// cancels the observation when the peer goes away.
func (h WSHandler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h WSHandler) logError(msg string, err error, attrs ...any) {
	if h.Logger != nil {
		h.Logger.Error(msg, append([]any{"error", err}, attrs...)...)
	}
}

var _ WSHTTP = (*WSHandler)(nil)
