package protocol

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"
)

func TestNewMessage(t *testing.T) {
	tests := []struct {
		name    string
		msgType MessageType
		data    interface{}
		wantErr bool
	}{
		{
			name:    "frame message",
			msgType: TypeFrame,
			data:    FrameData{Width: 640, Height: 480, Format: "jpeg"},
			wantErr: false,
		},
		{
			name:    "status message",
			msgType: TypeStatus,
			data:    StatusData{SessionActive: true, Mode: "camera", Modality: "AUDIO"},
			wantErr: false,
		},
		{
			name:    "nil data",
			msgType: TypePing,
			data:    nil,
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewMessage(tt.msgType, tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewMessage() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if msg == nil && !tt.wantErr {
				t.Error("NewMessage() returned nil message")
				return
			}
			if msg.Type != tt.msgType {
				t.Errorf("NewMessage() type = %v, want %v", msg.Type, tt.msgType)
			}
			if msg.Timestamp == 0 {
				t.Error("NewMessage() timestamp should be set")
			}
		})
	}
}

func TestMessageRoundTrip(t *testing.T) {
	originalFrame := FrameData{
		Width:   1920,
		Height:  1080,
		Format:  "jpeg",
		Data:    base64.StdEncoding.EncodeToString([]byte("test image data")),
		FrameID: 42,
	}

	msg, err := NewMessage(TypeFrame, originalFrame)
	if err != nil {
		t.Fatalf("NewMessage() error = %v", err)
	}

	raw, err := msg.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}

	parsed, err := ParseMessage(raw)
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}

	if parsed.Type != TypeFrame {
		t.Errorf("Type = %v, want %v", parsed.Type, TypeFrame)
	}

	frameData, err := parsed.GetFrameData()
	if err != nil {
		t.Fatalf("GetFrameData() error = %v", err)
	}

	if frameData.Width != originalFrame.Width {
		t.Errorf("Width = %v, want %v", frameData.Width, originalFrame.Width)
	}
	if frameData.Height != originalFrame.Height {
		t.Errorf("Height = %v, want %v", frameData.Height, originalFrame.Height)
	}
	if frameData.FrameID != originalFrame.FrameID {
		t.Errorf("FrameID = %v, want %v", frameData.FrameID, originalFrame.FrameID)
	}
}

func TestFrameMessage(t *testing.T) {
	jpegData := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10}

	msg, err := NewFrameMessage(640, 480, jpegData, 1)
	if err != nil {
		t.Fatalf("NewFrameMessage() error = %v", err)
	}

	if msg.Type != TypeFrame {
		t.Errorf("Type = %v, want %v", msg.Type, TypeFrame)
	}

	frameData, err := msg.GetFrameData()
	if err != nil {
		t.Fatalf("GetFrameData() error = %v", err)
	}
	if frameData.Format != "jpeg" {
		t.Errorf("Format = %v, want jpeg", frameData.Format)
	}

	decoded, err := frameData.DecodeFrameData()
	if err != nil {
		t.Fatalf("DecodeFrameData() error = %v", err)
	}
	if !bytes.Equal(decoded, jpegData) {
		t.Errorf("decoded frame = %v, want %v", decoded, jpegData)
	}
}

func TestStatusMessage(t *testing.T) {
	msg, err := NewStatusMessage(StatusData{
		SessionActive:  true,
		Mode:           "camera",
		Modality:       "AUDIO",
		WatchConnected: true,
		UptimeSeconds:  90,
	})
	if err != nil {
		t.Fatalf("NewStatusMessage() error = %v", err)
	}

	status, err := msg.GetStatusData()
	if err != nil {
		t.Fatalf("GetStatusData() error = %v", err)
	}
	if !status.SessionActive || status.Mode != "camera" || status.Modality != "AUDIO" {
		t.Errorf("unexpected status: %+v", status)
	}
	if !status.WatchConnected || status.UptimeSeconds != 90 {
		t.Errorf("unexpected status: %+v", status)
	}
}

func TestTranscriptMessage(t *testing.T) {
	msg, err := NewTranscriptMessage("model", "I can see a trail ahead.")
	if err != nil {
		t.Fatalf("NewTranscriptMessage() error = %v", err)
	}

	transcript, err := msg.GetTranscriptData()
	if err != nil {
		t.Fatalf("GetTranscriptData() error = %v", err)
	}
	if transcript.Role != "model" || transcript.Text != "I can see a trail ahead." {
		t.Errorf("unexpected transcript: %+v", transcript)
	}
}

func TestPingPongMessages(t *testing.T) {
	ping, err := NewPingMessage("ping-1")
	if err != nil {
		t.Fatalf("NewPingMessage() error = %v", err)
	}
	pingData, err := ping.GetPingData()
	if err != nil {
		t.Fatalf("GetPingData() error = %v", err)
	}
	if pingData.ID != "ping-1" {
		t.Errorf("ID = %v, want ping-1", pingData.ID)
	}

	pingTS := time.Now().UnixMilli() - 25
	pongTS := time.Now().UnixMilli()
	pong, err := NewPongMessage("ping-1", pingTS, pongTS)
	if err != nil {
		t.Fatalf("NewPongMessage() error = %v", err)
	}
	pongData, err := pong.GetPongData()
	if err != nil {
		t.Fatalf("GetPongData() error = %v", err)
	}
	if pongData.LatencyMs != pongTS-pingTS {
		t.Errorf("LatencyMs = %v, want %v", pongData.LatencyMs, pongTS-pingTS)
	}
}

func TestParseMessage_Invalid(t *testing.T) {
	if _, err := ParseMessage([]byte("{not json")); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestParseData_Nil(t *testing.T) {
	msg := &Message{Type: TypePing}
	var data PingData
	if err := msg.ParseData(&data); err != nil {
		t.Errorf("ParseData with nil data should be a no-op, got %v", err)
	}
}

func TestMessageJSONShape(t *testing.T) {
	msg, err := NewTranscriptMessage("user", "hello")
	if err != nil {
		t.Fatalf("NewTranscriptMessage() error = %v", err)
	}

	raw, err := msg.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	for _, key := range []string{"type", "ts", "data"} {
		if _, ok := envelope[key]; !ok {
			t.Errorf("envelope missing %q: %s", key, raw)
		}
	}
}
