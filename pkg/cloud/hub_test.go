package cloud

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-scout/pkg/protocol"
)

func TestNewHub(t *testing.T) {
	hub := NewHub(nil)

	if hub == nil {
		t.Fatal("NewHub returned nil")
	}
	if hub.ScoutCount() != 0 {
		t.Error("ScoutCount should be 0 initially")
	}
	if hub.ViewerCount() != 0 {
		t.Error("ViewerCount should be 0 initially")
	}
}

func TestGetStats(t *testing.T) {
	hub := NewHub(nil)

	stats := hub.GetStats()

	if stats.ScoutCount != 0 {
		t.Error("ScoutCount should be 0")
	}
	if stats.MessagesReceived != 0 {
		t.Error("MessagesReceived should be 0")
	}
	if stats.MessagesSent != 0 {
		t.Error("MessagesSent should be 0")
	}
}

func TestCallbackSetters(t *testing.T) {
	hub := NewHub(nil)

	// Set all callbacks - should not panic
	hub.OnStatus(func(scoutID string, status *protocol.StatusData) {})
	hub.OnTranscript(func(scoutID string, transcript *protocol.TranscriptData) {})
	hub.OnFrame(func(scoutID string, frame *protocol.FrameData) {})
}

func TestGetScoutNotFound(t *testing.T) {
	hub := NewHub(nil)

	if hub.GetScout("nonexistent") != nil {
		t.Error("GetScout should return nil for nonexistent scout")
	}
}

func TestGetScoutInfos(t *testing.T) {
	hub := NewHub(nil)

	if len(hub.GetScoutInfos()) != 0 {
		t.Error("GetScoutInfos should return empty slice initially")
	}
}

func TestGenerateScoutID(t *testing.T) {
	a := generateScoutID()
	b := generateScoutID()

	if !strings.HasPrefix(a, "scout-") {
		t.Errorf("ID %q should have scout- prefix", a)
	}
	if a == b {
		t.Error("generated IDs should be unique")
	}
}

func TestRegisterRoutes(t *testing.T) {
	hub := NewHub(nil)
	app := fiber.New()

	// Should not panic
	hub.RegisterRoutes(app)
	hub.RegisterAPIRoutes(app.Group("/api"))
}

func TestWebSocketConnection(t *testing.T) {
	hub := NewHub(nil)
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	hub.RegisterRoutes(app)

	go app.Listen(":18080")
	defer app.Shutdown()
	time.Sleep(100 * time.Millisecond)

	ws, _, err := websocket.DefaultDialer.Dial("ws://localhost:18080/ws/scout/test-scout", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()

	time.Sleep(50 * time.Millisecond)

	if hub.ScoutCount() != 1 {
		t.Errorf("ScoutCount = %d, want 1", hub.ScoutCount())
	}
	if hub.GetScout("test-scout") == nil {
		t.Error("GetScout should return the connected scout")
	}

	ws.Close()
	time.Sleep(100 * time.Millisecond)

	if hub.ScoutCount() != 0 {
		t.Errorf("ScoutCount = %d, want 0 after disconnect", hub.ScoutCount())
	}
}

func TestFrameCallback(t *testing.T) {
	hub := NewHub(nil)
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	hub.RegisterRoutes(app)

	var frameReceived atomic.Bool
	var receivedScoutID string

	hub.OnFrame(func(scoutID string, frame *protocol.FrameData) {
		receivedScoutID = scoutID
		frameReceived.Store(true)
	})

	go app.Listen(":18081")
	defer app.Shutdown()
	time.Sleep(100 * time.Millisecond)

	ws, _, err := websocket.DefaultDialer.Dial("ws://localhost:18081/ws/scout/frame-test", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()

	msg, _ := protocol.NewFrameMessage(640, 480, []byte("test"), 1)
	data, _ := msg.Bytes()
	ws.WriteMessage(websocket.TextMessage, data)

	time.Sleep(100 * time.Millisecond)

	if !frameReceived.Load() {
		t.Error("Frame callback should have been called")
	}
	if receivedScoutID != "frame-test" {
		t.Errorf("Scout ID = %s, want frame-test", receivedScoutID)
	}

	stats := hub.GetStats()
	if stats.FramesReceived < 1 {
		t.Error("FramesReceived should be at least 1")
	}
}

func TestViewerRelay(t *testing.T) {
	hub := NewHub(nil)
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	hub.RegisterRoutes(app)

	go app.Listen(":18082")
	defer app.Shutdown()
	time.Sleep(100 * time.Millisecond)

	viewer, _, err := websocket.DefaultDialer.Dial("ws://localhost:18082/ws/view", nil)
	if err != nil {
		t.Fatalf("viewer dial error: %v", err)
	}
	defer viewer.Close()

	scout, _, err := websocket.DefaultDialer.Dial("ws://localhost:18082/ws/scout/relay-test", nil)
	if err != nil {
		t.Fatalf("scout dial error: %v", err)
	}
	defer scout.Close()

	time.Sleep(50 * time.Millisecond)

	if hub.ViewerCount() != 1 {
		t.Fatalf("ViewerCount = %d, want 1", hub.ViewerCount())
	}

	msg, _ := protocol.NewTranscriptMessage("model", "A fox crossed the trail.")
	data, _ := msg.Bytes()
	scout.WriteMessage(websocket.TextMessage, data)

	viewer.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, relayed, err := viewer.ReadMessage()
	if err != nil {
		t.Fatalf("viewer read error: %v", err)
	}

	var received protocol.Message
	json.Unmarshal(relayed, &received)
	if received.Type != protocol.TypeTranscript {
		t.Errorf("Type = %s, want transcript", received.Type)
	}
}

func TestSendToNonexistentScout(t *testing.T) {
	hub := NewHub(nil)

	if err := hub.SendPong("nonexistent", "ping-1", 0); err == nil {
		t.Error("SendPong should return error for nonexistent scout")
	}
}

func TestAPIListScouts(t *testing.T) {
	hub := NewHub(nil)
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	hub.RegisterRoutes(app)
	hub.RegisterAPIRoutes(app.Group("/api"))

	req := httptest.NewRequest("GET", "/api/scouts/", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}

	if resp.StatusCode != 200 {
		t.Errorf("Status = %d, want 200", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "scouts") {
		t.Error("Response should contain 'scouts' field")
	}
}

func TestAPIStats(t *testing.T) {
	hub := NewHub(nil)
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	hub.RegisterRoutes(app)
	hub.RegisterAPIRoutes(app.Group("/api"))

	req := httptest.NewRequest("GET", "/api/scouts/stats", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}

	if resp.StatusCode != 200 {
		t.Errorf("Status = %d, want 200", resp.StatusCode)
	}
}

func TestBroadcast(t *testing.T) {
	hub := NewHub(nil)

	// Broadcast to empty hub should not panic
	msg, _ := protocol.NewMessage(protocol.TypePing, nil)
	hub.Broadcast(msg)
}

func TestPingPong(t *testing.T) {
	hub := NewHub(nil)
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	hub.RegisterRoutes(app)

	go app.Listen(":18083")
	defer app.Shutdown()
	time.Sleep(100 * time.Millisecond)

	ws, _, err := websocket.DefaultDialer.Dial("ws://localhost:18083/ws/scout/ping-test", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()

	time.Sleep(50 * time.Millisecond)

	msg, _ := protocol.NewPingMessage("ping-1")
	data, _ := msg.Bytes()
	ws.WriteMessage(websocket.TextMessage, data)

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, respData, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}

	var resp protocol.Message
	json.Unmarshal(respData, &resp)

	if resp.Type != protocol.TypePong {
		t.Errorf("Type = %s, want pong", resp.Type)
	}

	pong, err := resp.GetPongData()
	if err != nil {
		t.Fatalf("GetPongData error: %v", err)
	}
	if pong.ID != "ping-1" {
		t.Errorf("pong ID = %s, want ping-1", pong.ID)
	}
}
