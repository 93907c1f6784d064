package agent

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/lookbusy1344/tcf-agent/tcf"
)

// Handler is one TCF service facade's command dispatcher.
type Handler interface {
	Handle(m tcf.Message) ([]any, error)
}

// channelHandler is the Breakpoints-service shape, which additionally
// needs the originating channel id to scope breakpoint refs (spec §4.F).
type channelHandler interface {
	Handle(channel string, m tcf.Message) ([]any, error)
}

// Channel is one client connection's read loop, dispatching commands to
// the registered service facades and forwarding broadcast events back
// over the wire (spec §5, §6). Grounded in shape on
// lookbusy1344-arm_emulator's api/session.go (one goroutine per
// connection, request/response framed over a single writer, mutex-guarded
// against concurrent broadcast writes).
type Channel struct {
	id   string
	conn net.Conn
	r    *tcf.Reader
	w    *tcf.Writer

	writeMu sync.Mutex

	services       map[string]Handler
	breakpointsSvc channelHandler

	onClose func(channel string)
	log     *slog.Logger
}

// NewChannel wires a fresh connection's dispatcher. breakpointsSvc
// handles the "Breakpoints" service (it needs the channel id); every
// other entry in services is dispatched by its TCF service name.
func NewChannel(id string, conn net.Conn, services map[string]Handler, breakpointsSvc channelHandler, onClose func(string), log *slog.Logger) *Channel {
	if log == nil {
		log = slog.Default()
	}
	return &Channel{
		id:             id,
		conn:           conn,
		r:              tcf.NewReader(conn),
		w:              tcf.NewWriter(conn),
		services:       services,
		breakpointsSvc: breakpointsSvc,
		onClose:        onClose,
		log:            log,
	}
}

// Deliver implements Subscriber, forwarding a broadcast event as a TCF
// "E" frame.
func (ch *Channel) Deliver(ev BroadcastEvent) {
	ch.writeMu.Lock()
	defer ch.writeMu.Unlock()
	m, err := tcf.NewEvent(ev.Service, ev.Name, ev.Args...)
	if err != nil {
		ch.log.Error("encode event", "channel", ch.id, "service", ev.Service, "err", err)
		return
	}
	if err := ch.w.WriteMessage(m); err != nil {
		ch.log.Warn("deliver event", "channel", ch.id, "err", err)
	}
}

// Run reads and dispatches frames until the connection closes or a
// framing error occurs, then invokes onClose exactly once.
func (ch *Channel) Run() {
	defer func() {
		ch.conn.Close()
		if ch.onClose != nil {
			ch.onClose(ch.id)
		}
	}()

	for {
		m, err := ch.r.ReadMessage()
		if err != nil {
			if err != io.EOF {
				ch.log.Info("channel closed", "channel", ch.id, "err", err)
			}
			return
		}
		if m.Kind != tcf.KindCommand {
			continue
		}
		ch.dispatch(m)
	}
}

func (ch *Channel) dispatch(m tcf.Message) {
	var result []any
	var err error

	switch {
	case m.Service == "Breakpoints" && ch.breakpointsSvc != nil:
		result, err = ch.breakpointsSvc.Handle(ch.id, m)
	default:
		svc, ok := ch.services[m.Service]
		if !ok {
			err = fmt.Errorf("agent: unknown service %q", m.Service)
			break
		}
		result, err = svc.Handle(m)
	}

	reply, encErr := tcf.NewReply(m.Token, err, result...)
	if encErr != nil {
		ch.log.Error("encode reply", "channel", ch.id, "err", encErr)
		return
	}

	ch.writeMu.Lock()
	defer ch.writeMu.Unlock()
	if werr := ch.w.WriteMessage(reply); werr != nil {
		ch.log.Warn("write reply", "channel", ch.id, "err", werr)
	}
}
