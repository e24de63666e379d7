package push

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// inboundMessage is what clients send; the only action is joining a user room.
type inboundMessage struct {
	Action string `json:"action"`
	UserID string `json:"userId"`
}

const actionJoinRoom = "join-room"

// Handler upgrades GET /ws. A userId query parameter joins that user's room right away.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewHandler(hub *Hub, allowedOrigins []string, logger *slog.Logger) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, origin)
			},
		},
		logger: logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("handler", "WebSocket"))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.WarnContext(r.Context(), "Websocket upgrade failed", slog.Any("error", err))
		return
	}

	client := &Client{
		conn: conn,
		Send: make(chan []byte, 64),
	}
	if userID := r.URL.Query().Get("userId"); userID != "" {
		client.UserID = userID
		client.Room = UserRoom(userID)
	}

	h.hub.Register(client)
	l.DebugContext(r.Context(), "Websocket client connected", slog.String("room", client.Room))

	go h.writePump(client)
	go h.readPump(client)
}

func (h *Handler) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) readPump(c *Client) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("Websocket closed unexpectedly", slog.Any("error", err))
			}
			return
		}

		var in inboundMessage
		if err := json.Unmarshal(raw, &in); err != nil {
			h.logger.Debug("Ignoring invalid websocket payload", slog.Any("error", err))
			continue
		}
		if in.Action == actionJoinRoom && in.UserID != "" {
			h.hub.Join(c, UserRoom(in.UserID))
			h.logger.Debug("User joined notification room", slog.String("userID", in.UserID))
		}
	}
}
