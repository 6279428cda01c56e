package hub

import (
	"testing"
	"time"
)

// testClient registers a bare client with the hub, bypassing the websocket
// pumps so broadcasts can be observed on the send channel directly.
func testClient(h *Hub) *Client {
	c := &Client{hub: h, send: make(chan Message, 256)}
	h.register <- c
	return c
}

func waitForCount(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want %d", h.ClientCount(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_RegisterBroadcastUnregister(t *testing.T) {
	h := New("test", nil)
	go h.Run()
	defer h.Stop()

	a := testClient(h)
	b := testClient(h)
	waitForCount(t, h, 2)

	h.BroadcastBinary([]byte{0xff, 0xd8})

	for _, c := range []*Client{a, b} {
		select {
		case msg := <-c.send:
			if msg.Type != BinaryMessage || len(msg.Data) != 2 {
				t.Errorf("unexpected message: %+v", msg)
			}
		case <-time.After(time.Second):
			t.Fatal("client did not receive broadcast")
		}
	}

	h.unregister <- a
	waitForCount(t, h, 1)
}

func TestHub_BroadcastJSON(t *testing.T) {
	h := New("test", nil)
	go h.Run()
	defer h.Stop()

	c := testClient(h)
	waitForCount(t, h, 1)

	if err := h.BroadcastJSON(map[string]bool{"ok": true}); err != nil {
		t.Fatalf("BroadcastJSON failed: %v", err)
	}

	select {
	case msg := <-c.send:
		if msg.Type != JSONMessage {
			t.Errorf("expected JSON message, got %v", msg.Type)
		}
		if string(msg.Data) != `{"ok":true}` {
			t.Errorf("unexpected payload: %s", msg.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("client did not receive broadcast")
	}
}

func TestHub_DropsSlowClient(t *testing.T) {
	h := New("test", nil)
	go h.Run()
	defer h.Stop()

	slow := &Client{hub: h, send: make(chan Message)} // no buffer, never read
	h.register <- slow
	waitForCount(t, h, 1)

	h.BroadcastBinary([]byte{1})
	waitForCount(t, h, 0)
}

func TestHub_StopDisconnectsClients(t *testing.T) {
	h := New("test", nil)
	go h.Run()

	c := testClient(h)
	waitForCount(t, h, 1)

	h.Stop()
	waitForCount(t, h, 0)

	select {
	case _, ok := <-c.send:
		if ok {
			t.Error("expected closed send channel")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel not closed on stop")
	}

	// Stop is idempotent and Broadcast after Stop does not block.
	h.Stop()
	h.BroadcastBinary([]byte{1})
}
