package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-scout/pkg/protocol"
)

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal(msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// relayStub upgrades connections and exposes received messages.
type relayStub struct {
	upgrader websocket.Upgrader
	received chan *protocol.Message
}

func newRelayStub() *relayStub {
	return &relayStub{received: make(chan *protocol.Message, 16)}
}

func (r *relayStub) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := protocol.ParseMessage(data)
		if err != nil {
			continue
		}
		r.received <- msg
	}
}

func TestUplink_SendWhenDown(t *testing.T) {
	u := NewUplink("ws://localhost:1/ws/scout", nil)

	msg, _ := protocol.NewPingMessage("x")
	if err := u.Send(msg); !errors.Is(err, ErrUplinkDown) {
		t.Errorf("Send() = %v, want ErrUplinkDown", err)
	}
	if u.Connected() {
		t.Error("Connected() should be false before Run")
	}
}

func TestUplink_ConnectAndSend(t *testing.T) {
	stub := newRelayStub()
	srv := httptest.NewServer(stub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/scout/test"
	u := NewUplink(url, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go u.Run(ctx)

	waitFor(t, u.Connected, "uplink did not connect")

	u.SendTranscript("model", "hello from the field")

	select {
	case msg := <-stub.received:
		if msg.Type != protocol.TypeTranscript {
			t.Errorf("Type = %s, want transcript", msg.Type)
		}
		transcript, err := msg.GetTranscriptData()
		if err != nil {
			t.Fatalf("GetTranscriptData() error = %v", err)
		}
		if transcript.Text != "hello from the field" {
			t.Errorf("Text = %q", transcript.Text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not receive transcript")
	}

	u.SendStatus(protocol.StatusData{SessionActive: true, Mode: "camera"})

	select {
	case msg := <-stub.received:
		if msg.Type != protocol.TypeStatus {
			t.Errorf("Type = %s, want status", msg.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not receive status")
	}
}

func TestUplink_SendFrame(t *testing.T) {
	stub := newRelayStub()
	srv := httptest.NewServer(stub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/scout/test"
	u := NewUplink(url, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go u.Run(ctx)

	waitFor(t, u.Connected, "uplink did not connect")

	jpeg := []byte{0xff, 0xd8, 0xff, 0xd9}
	u.SendFrame(800, 600, jpeg, 7)

	select {
	case msg := <-stub.received:
		if msg.Type != protocol.TypeFrame {
			t.Fatalf("Type = %s, want frame", msg.Type)
		}
		frame, err := msg.GetFrameData()
		if err != nil {
			t.Fatalf("GetFrameData() error = %v", err)
		}
		if frame.Width != 800 || frame.Height != 600 || frame.FrameID != 7 {
			t.Errorf("frame = %+v", frame)
		}
		data, err := frame.DecodeFrameData()
		if err != nil {
			t.Fatalf("DecodeFrameData() error = %v", err)
		}
		if len(data) != len(jpeg) || data[0] != 0xff {
			t.Errorf("payload mismatch: % x", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not receive frame")
	}
}

func TestUplink_DisconnectDetected(t *testing.T) {
	stub := newRelayStub()
	srv := httptest.NewServer(stub)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	u := NewUplink(url, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go u.Run(ctx)

	waitFor(t, u.Connected, "uplink did not connect")

	srv.CloseClientConnections()
	srv.Close()

	waitFor(t, func() bool { return !u.Connected() }, "uplink did not notice disconnect")
}
