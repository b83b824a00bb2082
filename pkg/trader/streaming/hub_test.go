package streaming

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(server.Close)
	return hub, server
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("client count never reached %d, got %d", want, hub.ClientCount())
}

// readEvents reads one frame and unpacks the newline-coalesced events in it.
func readEvents(t *testing.T, conn *websocket.Conn) []Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	var events []Event
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			t.Fatalf("bad event %q: %v", line, err)
		}
		events = append(events, ev)
	}
	return events
}

func TestHubBroadcast(t *testing.T) {
	hub, server := newTestHub(t)
	conn := dial(t, server)
	waitForClients(t, hub, 1)

	hub.BroadcastSignal(map[string]string{"strategy": "value", "ticker": "KXNCAAMBGAME-DUKE"})

	events := readEvents(t, conn)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.Type != EventSignal {
		t.Errorf("Type = %s, want %s", ev.Type, EventSignal)
	}
	if ev.Timestamp.IsZero() {
		t.Error("Timestamp not stamped")
	}
	data, ok := ev.Data.(map[string]any)
	if !ok {
		t.Fatalf("Data is %T, want map", ev.Data)
	}
	if data["strategy"] != "value" {
		t.Errorf("strategy = %v, want value", data["strategy"])
	}
}

func TestHubQuoteEvent(t *testing.T) {
	hub, server := newTestHub(t)
	conn := dial(t, server)
	waitForClients(t, hub, 1)

	hub.BroadcastQuote("KXNCAAMBGAME-25MAR18DUKEUNC-DUKE", 62, 68, 6)

	events := readEvents(t, conn)
	if events[0].Type != EventQuote {
		t.Fatalf("Type = %s, want %s", events[0].Type, EventQuote)
	}
	data := events[0].Data.(map[string]any)
	if data["price"] != float64(62) || data["fair_value"] != float64(68) {
		t.Errorf("quote payload = %v", data)
	}
}

func TestHubUnsubscribe(t *testing.T) {
	hub, server := newTestHub(t)
	conn := dial(t, server)
	waitForClients(t, hub, 1)

	msg := map[string]any{"type": "unsubscribe", "events": []string{"quote"}}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	// Give the read pump a beat to apply the filter.
	time.Sleep(100 * time.Millisecond)

	hub.BroadcastQuote("KXNCAAMBGAME-25MAR18DUKEUNC-DUKE", 50, 55, 5)
	hub.BroadcastSignal(map[string]string{"strategy": "momentum"})

	events := readEvents(t, conn)
	for _, ev := range events {
		if ev.Type == EventQuote {
			t.Error("received quote after unsubscribe")
		}
	}
	last := events[len(events)-1]
	if last.Type != EventSignal {
		t.Errorf("Type = %s, want %s", last.Type, EventSignal)
	}
}

func TestHubResubscribe(t *testing.T) {
	hub, server := newTestHub(t)
	conn := dial(t, server)
	waitForClients(t, hub, 1)

	conn.WriteJSON(map[string]any{"type": "unsubscribe", "events": []string{"game"}})
	time.Sleep(100 * time.Millisecond)
	conn.WriteJSON(map[string]any{"type": "subscribe", "events": []string{"game"}})
	time.Sleep(100 * time.Millisecond)

	hub.BroadcastGame(map[string]string{"event_id": "401745123"})

	events := readEvents(t, conn)
	if events[0].Type != EventGame {
		t.Errorf("Type = %s, want %s", events[0].Type, EventGame)
	}
}

func TestHubClientCount(t *testing.T) {
	hub, server := newTestHub(t)
	if hub.ClientCount() != 0 {
		t.Fatalf("fresh hub has %d clients", hub.ClientCount())
	}

	first := dial(t, server)
	waitForClients(t, hub, 1)
	dial(t, server)
	waitForClients(t, hub, 2)

	first.Close()
	waitForClients(t, hub, 1)
}

func TestHubShutdownClosesClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer server.Close()

	conn := dial(t, server)
	waitForClients(t, hub, 1)

	cancel()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
