// Package spectate streams decisions to browsers over websockets.
package spectate

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/brensch/snekspace/game"
	"github.com/brensch/snekspace/heuristic"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 64
)

type Scores struct {
	Up    int `json:"up"`
	Down  int `json:"down"`
	Left  int `json:"left"`
	Right int `json:"right"`
}

// Event is one message on the wire. Type is hello, start, move or end.
type Event struct {
	Type      string      `json:"type"`
	ClientID  string      `json:"client_id,omitempty"`
	GameID    string      `json:"game_id,omitempty"`
	Turn      int         `json:"turn"`
	SnakeID   string      `json:"snake_id,omitempty"`
	SnakeName string      `json:"snake_name,omitempty"`
	Policy    string      `json:"policy,omitempty"`
	Move      string      `json:"move,omitempty"`
	Scores    *Scores     `json:"scores,omitempty"`
	Evaluated int         `json:"evaluated,omitempty"`
	ElapsedUS int64       `json:"elapsed_us,omitempty"`
	Outcome   string      `json:"outcome,omitempty"`
	Board     *game.Board `json:"board,omitempty"`
}

type client struct {
	id     string
	gameID string
	ws     *websocket.Conn
	send   chan []byte
}

// Hub fans game events out to every connected spectator. A spectator can
// follow a single game with ?game_id=. Slow spectators lose events rather
// than hold up a move.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client
}

var _ heuristic.Observer = (*Hub)(nil)

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[string]*client),
	}
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &client{
		id:     uuid.New().String(),
		gameID: r.URL.Query().Get("game_id"),
		ws:     ws,
		send:   make(chan []byte, sendBuffer),
	}
	hello, _ := json.Marshal(Event{Type: "hello", ClientID: c.id, GameID: c.gameID})
	c.send <- hello

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.logger.Info("spectator connected", "client_id", c.id, "game_id", c.gameID)

	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop only watches for the close; spectators have nothing to say.
func (h *Hub) readLoop(c *client) {
	defer h.remove(c)
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("spectator read", "client_id", c.id, "error", err)
			}
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	defer c.ws.Close()
	for msg := range c.send {
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.remove(c)
			return
		}
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	close(c.send)
	h.logger.Info("spectator disconnected", "client_id", c.id)
}

// Broadcast sends ev to every spectator following its game.
func (h *Hub) Broadcast(ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal spectator event", "type", ev.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if c.gameID != "" && c.gameID != ev.GameID {
			continue
		}
		select {
		case c.send <- msg:
		default:
			h.logger.Debug("spectator lagging, dropped event", "client_id", c.id, "type", ev.Type)
		}
	}
}

// Close disconnects every spectator.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
	}
}

func (h *Hub) GameStarted(_ context.Context, req heuristic.Request) {
	ev := eventFor("start", req)
	ev.Board = req.Board
	h.Broadcast(ev)
}

func (h *Hub) MoveChosen(_ context.Context, req heuristic.Request, d heuristic.Decision, elapsed time.Duration) {
	ev := eventFor("move", req)
	ev.Policy = d.Policy
	ev.Move = d.Move.String()
	ev.Scores = &Scores{
		Up:    d.Scores[game.MoveUp],
		Down:  d.Scores[game.MoveDown],
		Left:  d.Scores[game.MoveLeft],
		Right: d.Scores[game.MoveRight],
	}
	ev.Evaluated = d.Evaluated
	ev.ElapsedUS = elapsed.Microseconds()
	ev.Board = req.Board
	h.Broadcast(ev)
}

func (h *Hub) GameEnded(_ context.Context, req heuristic.Request) {
	ev := eventFor("end", req)
	ev.Outcome = string(game.OutcomeFor(req.Board, req.You.ID))
	h.Broadcast(ev)
}

func eventFor(kind string, req heuristic.Request) Event {
	return Event{
		Type:      kind,
		GameID:    req.GameID,
		Turn:      req.Turn,
		SnakeID:   req.You.ID,
		SnakeName: req.You.Name,
	}
}
