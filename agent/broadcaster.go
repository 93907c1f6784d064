// Package agent is the composition root: it wires the context store,
// break-instruction table, breakpoint registry/replanter, skip
// sequencer, hardware-BP multiplexer, and register file into a single
// cooperative dispatch loop, and exposes the services facades over the
// wire protocol (spec §5).
//
// Grounded in shape on lookbusy1344-arm_emulator's api/broadcaster.go
// (channel-based fan-out with register/unregister/broadcast) and
// api/session_manager.go (a single owning struct coordinating the
// engine packages), generalized from one VM session to one agent
// process managing many attached targets.
package agent

import "sync"

// BroadcastEvent is one outbound event frame, fanned out to every
// channel currently registered (spec §6 "E service name args...").
type BroadcastEvent struct {
	Service string
	Name    string
	Args    []any
}

// Subscriber receives broadcast events; a channel's connection loop
// implements this to forward them over the wire.
type Subscriber interface {
	Deliver(BroadcastEvent)
}

// Broadcaster fans out events to every registered subscriber, mirroring
// the teacher's api.Broadcaster channel-driven fan-out but carrying TCF
// event payloads instead of WebSocket JSON frames.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[Subscriber]bool
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subscribers: map[Subscriber]bool{}}
}

// Register adds a subscriber.
func (b *Broadcaster) Register(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[s] = true
}

// Unregister removes a subscriber.
func (b *Broadcaster) Unregister(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, s)
}

// Emit implements services.EventEmitter, broadcasting to every
// currently registered subscriber.
func (b *Broadcaster) Emit(service, name string, args ...any) {
	ev := BroadcastEvent{Service: service, Name: name, Args: args}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subscribers {
		s.Deliver(ev)
	}
}
