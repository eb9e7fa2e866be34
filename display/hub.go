package display

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub applies updates to a Board and pushes each resulting snapshot to
// every connected websocket client.
type Hub struct {
	board *Board
	log   logrus.FieldLogger

	mu      sync.Mutex
	clients map[*websocket.Conn]*sync.Mutex
}

func NewHub(board *Board, log logrus.FieldLogger) *Hub {
	return &Hub{
		board:   board,
		log:     log.WithField("component", "hub"),
		clients: make(map[*websocket.Conn]*sync.Mutex),
	}
}

func (h *Hub) Render(u Update) {
	h.broadcast(h.board.Apply(u))
}

func (h *Hub) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", h.handleWebSocket).Methods(http.MethodGet)
	r.HandleFunc("/board", h.handleBoard).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	return r
}

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close drops every websocket client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.Close()
		delete(h.clients, c)
	}
}

func (h *Hub) handleBoard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.board.Snapshot())
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	wmu := &sync.Mutex{}
	h.mu.Lock()
	h.clients[conn] = wmu
	h.mu.Unlock()
	h.log.WithField("remote", r.RemoteAddr).Debug("display client connected")

	// new clients start from the current board
	h.send(conn, wmu, h.board.Snapshot())

	// reads only detect the close; clients never send anything useful
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) broadcast(s Snapshot) {
	h.mu.Lock()
	conns := make(map[*websocket.Conn]*sync.Mutex, len(h.clients))
	for c, m := range h.clients {
		conns[c] = m
	}
	h.mu.Unlock()

	for c, m := range conns {
		h.send(c, m, s)
	}
}

// send serializes writes per connection; gorilla allows one writer at a time.
func (h *Hub) send(c *websocket.Conn, wmu *sync.Mutex, s Snapshot) {
	wmu.Lock()
	defer wmu.Unlock()
	_ = c.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.WriteJSON(s); err != nil {
		h.log.WithError(err).Debug("dropping display client")
		go h.drop(c)
	}
}

func (h *Hub) drop(c *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		_ = c.Close()
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
