package ctx

import "fmt"

// EventSink receives context lifecycle notifications. Implementations
// must not block: the teacher's api/broadcaster.go pattern (buffered
// channel, non-blocking send, drop-on-full) is the expected shape for a
// production sink; Store itself stays synchronous and thread-store
// mutation is confined to the dispatch thread (spec §5).
type EventSink interface {
	ContextCreated(c *Context)
	ContextChanged(c *Context)
	ContextStopped(c *Context)
	ContextStarted(c *Context)
	ContextExited(c *Context)
}

// NopSink discards all events; useful as a default before a real sink is
// wired up, and in tests.
type NopSink struct{}

func (NopSink) ContextCreated(*Context) {}
func (NopSink) ContextChanged(*Context) {}
func (NopSink) ContextStopped(*Context) {}
func (NopSink) ContextStarted(*Context) {}
func (NopSink) ContextExited(*Context)  {}

// Store owns the lifecycle and lookup of every context, plus an
// attach-pending set used by the wait-pid listener (spec §4.D).
type Store struct {
	roots     []*Context
	byID      map[string]*Context
	byTid     map[int]*Context
	sink      EventSink
	nextID    uint64
	idPrefix  string
	onAttach  map[int]func(proc, thread *Context)
}

// NewStore creates an empty context store broadcasting to sink.
func NewStore(sink EventSink) *Store {
	if sink == nil {
		sink = NopSink{}
	}
	return &Store{
		byID:     map[string]*Context{},
		byTid:    map[int]*Context{},
		sink:     sink,
		idPrefix: "C",
		onAttach: map[int]func(proc, thread *Context){},
	}
}

func (s *Store) genID() string {
	s.nextID++
	return fmt.Sprintf("%s%d", s.idPrefix, s.nextID)
}

// ExpectAttach registers a callback to run exactly once when pid's first
// thread notification is observed by the wait-pid listener.
func (s *Store) ExpectAttach(pid int, cb func(proc, thread *Context)) {
	s.onAttach[pid] = cb
}

// ByTid looks up the thread context for an OS tid.
func (s *Store) ByTid(tid int) (*Context, bool) {
	c, ok := s.byTid[tid]
	return c, ok
}

// ByID looks up any context by its stable string id.
func (s *Store) ByID(id string) (*Context, bool) {
	c, ok := s.byID[id]
	return c, ok
}

// Roots returns the top-level (parentless) contexts.
func (s *Store) Roots() []*Context {
	return append([]*Context(nil), s.roots...)
}

// createProcess allocates and registers a new memory-owning context for
// pid, with no parent (top-level attach) unless parent is non-nil.
func (s *Store) createProcess(pid int, parent *Context) *Context {
	c := newContext(s.genID())
	c.Pid = pid
	c.Tid = pid
	c.IsThread = false
	c.BigEndian = false
	c.Parent = parent
	s.register(c)
	if parent != nil {
		parent.Children = append(parent.Children, c)
	} else {
		s.roots = append(s.roots, c)
	}
	s.sink.ContextCreated(c)
	return c
}

// createThread allocates and registers a thread context owned by proc.
func (s *Store) createThread(proc *Context, tid int) *Context {
	c := newContext(s.genID())
	c.Pid = proc.Pid
	c.Tid = tid
	c.IsThread = true
	c.MemoryOwner = proc
	c.Parent = proc
	c.BigEndian = proc.BigEndian
	s.register(c)
	proc.Children = append(proc.Children, c)
	s.sink.ContextCreated(c)
	return c
}

func (s *Store) register(c *Context) {
	s.byID[c.ID] = c
	s.byTid[c.Tid] = c
}

// remove detaches c from its parent's child list and from the lookup
// tables. Called once the OS exit event has been fully processed.
func (s *Store) remove(c *Context) {
	delete(s.byID, c.ID)
	delete(s.byTid, c.Tid)
	if c.Parent != nil {
		children := c.Parent.Children[:0]
		for _, ch := range c.Parent.Children {
			if ch != c {
				children = append(children, ch)
			}
		}
		c.Parent.Children = children
	} else {
		roots := s.roots[:0]
		for _, r := range s.roots {
			if r != c {
				roots = append(roots, r)
			}
		}
		s.roots = roots
	}
}

// Live reports whether c is neither exited nor in the process of being
// removed.
func (c *Context) Live() bool { return !c.Exited }

// MarkRunning clears c's stopped state and notifies the sink, once a
// resumption has actually been issued to the OS. A no-op if c was
// already running, so callers can call it unconditionally after a
// successful resume.
func (s *Store) MarkRunning(c *Context) {
	if !c.Stopped {
		return
	}
	c.Stopped = false
	c.RegsDirty = false
	c.PendingIntercept = false
	c.StoppedByBP = false
	c.StoppedByException = false
	c.EndOfStep = false
	s.sink.ContextStarted(c)
}
