package agent_test

import (
	"testing"

	"github.com/lookbusy1344/tcf-agent/agent"
)

type recordingSubscriber struct {
	events []agent.BroadcastEvent
}

func (r *recordingSubscriber) Deliver(ev agent.BroadcastEvent) {
	r.events = append(r.events, ev)
}

func TestBroadcasterDeliversToRegisteredSubscribers(t *testing.T) {
	b := agent.NewBroadcaster()
	sub := &recordingSubscriber{}
	b.Register(sub)

	b.Emit("RunControl", "contextAdded", "C1")

	if len(sub.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(sub.events))
	}
	if sub.events[0].Service != "RunControl" || sub.events[0].Name != "contextAdded" {
		t.Errorf("unexpected event %+v", sub.events[0])
	}
}

func TestBroadcasterStopsAfterUnregister(t *testing.T) {
	b := agent.NewBroadcaster()
	sub := &recordingSubscriber{}
	b.Register(sub)
	b.Unregister(sub)

	b.Emit("RunControl", "contextAdded", "C1")

	if len(sub.events) != 0 {
		t.Errorf("expected no events after unregister, got %d", len(sub.events))
	}
}
