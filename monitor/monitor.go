// Package monitor mirrors the agent's RunControl/Breakpoints/Processes
// events onto a read-only WebSocket sidecar, for dashboards that want a
// live view of a debug session without speaking the TCF command
// protocol themselves (a supplemental feature beyond the TCF wire
// protocol itself).
//
// Grounded on lookbusy1344-arm_emulator's api/websocket.go (upgrade,
// ping/pong keepalive, per-client send channel with drop-when-slow) and
// api/broadcaster.go (subscribe/unsubscribe against a central fan-out),
// adapted from the teacher's typed EventType/SessionID filtering to a
// plain service-name mirror of agent.BroadcastEvent.
package monitor

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lookbusy1344/tcf-agent/agent"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	clientSendBuf  = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Monitor is an HTTP handler that upgrades every request to a WebSocket
// mirroring the bound agent.Broadcaster's events as JSON frames.
type Monitor struct {
	broadcaster *agent.Broadcaster
	log         *slog.Logger
}

// New binds a monitor sidecar to broadcaster.
func New(broadcaster *agent.Broadcaster, log *slog.Logger) *Monitor {
	if log == nil {
		log = slog.Default()
	}
	return &Monitor{broadcaster: broadcaster, log: log}
}

func (m *Monitor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.log.Warn("websocket upgrade", "err", err)
		return
	}

	c := &client{conn: conn, send: make(chan agent.BroadcastEvent, clientSendBuf), log: m.log}
	m.broadcaster.Register(c)

	go c.writePump(func() { m.broadcaster.Unregister(c) })
	c.readPump()
}

// client implements agent.Subscriber, forwarding every event onto its
// own buffered channel; a slow reader drops events rather than stalling
// the broadcaster (spec §5: broadcast must never block the dispatch
// thread).
type client struct {
	conn *websocket.Conn
	send chan agent.BroadcastEvent
	mu   sync.Mutex
	log  *slog.Logger
}

func (c *client) Deliver(ev agent.BroadcastEvent) {
	select {
	case c.send <- ev:
	default:
	}
}

// readPump discards client input (this is a read-only mirror) but keeps
// the keepalive deadline fresh until the peer disconnects.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump(onClose func()) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		onClose()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				c.log.Debug("monitor write", "err", err)
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
