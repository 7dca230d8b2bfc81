package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	sh "smart_heating"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 1 << 12 // 4 KB
)

// Envelope used for WebSocket messages.
type wsEnvelope struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// SnapshotHub fans orchestration snapshots out to connected WebSocket
// clients. The orchestrator publishes after every cycle and every refresh; a
// slow client only ever misses intermediate frames, never the latest one.
type SnapshotHub struct {
	mu     sync.Mutex
	latest []sh.AreaSnapshot
	subs   map[chan []sh.AreaSnapshot]struct{}
}

func NewSnapshotHub() *SnapshotHub {
	return &SnapshotHub{subs: make(map[chan []sh.AreaSnapshot]struct{})}
}

// Publish stores the latest snapshots and notifies every subscriber,
// dropping the frame for subscribers whose buffer is full.
func (hub *SnapshotHub) Publish(snapshots []sh.AreaSnapshot) {
	hub.mu.Lock()
	hub.latest = snapshots
	for ch := range hub.subs {
		select {
		case ch <- snapshots:
		default:
		}
	}
	hub.mu.Unlock()
}

// Subscribe returns the latest known snapshots, a channel of future frames
// and an unsubscribe function.
func (hub *SnapshotHub) Subscribe() ([]sh.AreaSnapshot, <-chan []sh.AreaSnapshot, func()) {
	ch := make(chan []sh.AreaSnapshot, 1)
	hub.mu.Lock()
	latest := hub.latest
	hub.subs[ch] = struct{}{}
	hub.mu.Unlock()
	return latest, ch, func() {
		hub.mu.Lock()
		delete(hub.subs, ch)
		hub.mu.Unlock()
	}
}

// Upgrader for HTTP -> WebSocket.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origins for production
}

func (h *Handler) wsConnect(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Reader goroutine to handle control frames and detect disconnects.
	done := make(chan struct{})
	go h.startReader(conn, done)

	latest, frames, unsubscribe := h.hub.Subscribe()
	defer unsubscribe()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	// Send the latest known snapshots immediately.
	if latest != nil {
		if err := writeSnapshots(conn, latest); err != nil {
			if h.log != nil {
				h.log.Infow("ws_write_failed_initial", "err", err)
			}
			return
		}
	}

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if h.log != nil {
					h.log.Infow("ws_ping_failed", "err", err)
				}
				return
			}
		case snapshots := <-frames:
			if err := writeSnapshots(conn, snapshots); err != nil {
				if h.log != nil {
					h.log.Infow("ws_write_failed", "err", err)
				}
				return
			}
		}
	}
}

// startReader drains incoming messages to handle control frames and detect closure.
func (h *Handler) startReader(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if h.log != nil {
				h.log.Infow("ws_read_closed", "err", err)
			}
			return
		}
	}
}

func writeSnapshots(conn *websocket.Conn, snapshots []sh.AreaSnapshot) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(wsEnvelope{Type: "areas", Data: snapshots})
}
