// Package hub fans session-change signals out to websocket observers.
// Clients join a room per session id; Notify pokes every member of a room
// so they re-fetch the session. Signals carry no payload and are
// best-effort, a slow or dead client is simply dropped.
package hub

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const writeTimeout = 5 * time.Second

type clientMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

type updateMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex // serializes writes; gorilla allows one concurrent writer
	room string
}

func (c *client) send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub tracks rooms of live websocket connections keyed by session id.
type Hub struct {
	log      zerolog.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	rooms map[string]map[*client]struct{}
}

func New(log zerolog.Logger) *Hub {
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The API is unauthenticated; origin checks add nothing here.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		rooms: make(map[string]map[*client]struct{}),
	}
}

// ServeWS upgrades the request and runs the connection's read loop until
// the client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{conn: conn}
	defer func() {
		h.leave(c)
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.log.Debug().Err(err).Msg("ignoring unreadable websocket message")
			continue
		}
		if msg.Type == "join" && msg.SessionID != "" {
			h.join(c, msg.SessionID)
		}
	}
}

// Notify sends an update signal to every member of the session's room,
// pruning connections whose writes fail.
func (h *Hub) Notify(sessionID string) {
	payload, err := json.Marshal(updateMessage{Type: "update", SessionID: sessionID})
	if err != nil {
		return
	}

	h.mu.Lock()
	members := make([]*client, 0, len(h.rooms[sessionID]))
	for c := range h.rooms[sessionID] {
		members = append(members, c)
	}
	h.mu.Unlock()

	for _, c := range members {
		if err := c.send(payload); err != nil {
			h.log.Debug().Err(err).Str("session_id", sessionID).Msg("dropping dead websocket client")
			h.leave(c)
			_ = c.conn.Close()
		}
	}
}

// join moves the client into the session's room, leaving any previous one.
func (h *Hub) join(c *client, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(c)
	room, ok := h.rooms[sessionID]
	if !ok {
		room = make(map[*client]struct{})
		h.rooms[sessionID] = room
	}
	room[c] = struct{}{}
	c.room = sessionID
	h.log.Debug().Str("session_id", sessionID).Msg("client joined room")
}

func (h *Hub) leave(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// removeLocked deletes the client from its room and drops the room when it
// empties. Caller holds h.mu.
func (h *Hub) removeLocked(c *client) {
	if c.room == "" {
		return
	}
	if room, ok := h.rooms[c.room]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, c.room)
		}
	}
	c.room = ""
}

// roomSize reports the member count of a room. Used by tests.
func (h *Hub) roomSize(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[sessionID])
}
