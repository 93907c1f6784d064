package monitor_test

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lookbusy1344/tcf-agent/agent"
	"github.com/lookbusy1344/tcf-agent/monitor"
)

func TestMonitorMirrorsBroadcastEvents(t *testing.T) {
	broadcaster := agent.NewBroadcaster()
	server := httptest.NewServer(monitor.New(broadcaster, nil))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Give the server time to register the client before broadcasting,
	// mirroring the teacher's subscribe-then-sleep pattern.
	time.Sleep(50 * time.Millisecond)

	broadcaster.Emit("RunControl", "contextSuspended", "ctx1", "breakpoint")

	if err := conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond)); err != nil {
		t.Fatalf("SetReadDeadline: %v", err)
	}
	_, message, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}

	var ev agent.BroadcastEvent
	if err := json.Unmarshal(message, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Service != "RunControl" || ev.Name != "contextSuspended" {
		t.Errorf("got %+v, want Service=RunControl Name=contextSuspended", ev)
	}
}

func TestMonitorDropsWhenClientSlow(t *testing.T) {
	broadcaster := agent.NewBroadcaster()
	server := httptest.NewServer(monitor.New(broadcaster, nil))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	time.Sleep(50 * time.Millisecond)

	// Flood well past the client's send buffer without reading; Emit
	// must never block the caller (spec §5: broadcast must never stall
	// the dispatch thread).
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			broadcaster.Emit("RunControl", "contextResumed", "ctx1")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a slow reader")
	}
}
