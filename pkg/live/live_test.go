package live

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"missing api key", func(c *Config) { c.APIKey = "" }, true},
		{"missing model", func(c *Config) { c.Model = "" }, true},
		{"bad modality", func(c *Config) { c.Modality = "VIDEO" }, true},
		{"audio modality", func(c *Config) { c.Modality = ModalityAudio }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.APIKey = "test-key"
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{APIKey: "k"}.withDefaults()

	if cfg.Model != DefaultModel {
		t.Errorf("expected default model %q, got %q", DefaultModel, cfg.Model)
	}
	if cfg.Modality != ModalityText {
		t.Errorf("expected default modality TEXT, got %q", cfg.Modality)
	}
	if cfg.ConnectTimeout != 15*time.Second {
		t.Errorf("unexpected connect timeout: %v", cfg.ConnectTimeout)
	}
	if cfg.Logger == nil {
		t.Error("expected default logger")
	}
}

func TestConnectionStateString(t *testing.T) {
	tests := []struct {
		state ConnectionState
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateConnecting, "connecting"},
		{StateConnected, "connected"},
		{StateClosing, "closing"},
		{StateClosed, "closed"},
		{ConnectionState(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestEventKindString(t *testing.T) {
	tests := []struct {
		kind EventKind
		want string
	}{
		{EventAudio, "audio"},
		{EventText, "text"},
		{EventTurnComplete, "turn_complete"},
		{EventInterrupted, "interrupted"},
		{EventGoAway, "go_away"},
		{EventKind(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("EventKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestClientMessageEncoding(t *testing.T) {
	t.Run("setup", func(t *testing.T) {
		msg := clientMessage{
			Setup: &setupMessage{
				Model: "models/gemini-2.0-flash-live-001",
				GenerationConfig: &generationConfig{
					ResponseModalities: []string{"AUDIO"},
				},
			},
		}

		data, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}

		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if _, ok := decoded["setup"]; !ok {
			t.Error("expected setup field")
		}
		if _, ok := decoded["realtimeInput"]; ok {
			t.Error("unexpected realtimeInput field on setup message")
		}
	})

	t.Run("realtime input", func(t *testing.T) {
		msg := clientMessage{
			RealtimeInput: &realtimeInput{
				MediaChunks: []mediaBlob{{
					MIMEType: MIMEAudioPCM,
					Data:     base64.StdEncoding.EncodeToString([]byte{1, 2, 3}),
				}},
			},
		}

		data, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		if want := `"mimeType":"audio/pcm"`; !strings.Contains(string(data), want) {
			t.Errorf("encoded message missing %s: %s", want, data)
		}
	})

	t.Run("text turn", func(t *testing.T) {
		msg := clientMessage{
			ClientContent: &clientContent{
				Turns:        []content{{Role: "user", Parts: []part{{Text: "hello"}}}},
				TurnComplete: true,
			},
		}

		data, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		if want := `"turnComplete":true`; !strings.Contains(string(data), want) {
			t.Errorf("encoded message missing %s: %s", want, data)
		}
	})
}

func TestServerMessageDecoding(t *testing.T) {
	t.Run("audio and text parts", func(t *testing.T) {
		raw := `{"serverContent":{"modelTurn":{"parts":[` +
			`{"inlineData":{"mimeType":"audio/pcm;rate=24000","data":"AQID"}},` +
			`{"text":"hi there"}]}}}`

		var msg serverMessage
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}

		if msg.ServerContent == nil || msg.ServerContent.ModelTurn == nil {
			t.Fatal("expected serverContent.modelTurn")
		}
		parts := msg.ServerContent.ModelTurn.Parts
		if len(parts) != 2 {
			t.Fatalf("expected 2 parts, got %d", len(parts))
		}
		if parts[0].InlineData == nil {
			t.Error("expected inlineData in first part")
		}
		if parts[1].Text != "hi there" {
			t.Errorf("unexpected text: %q", parts[1].Text)
		}
	})

	t.Run("turn complete", func(t *testing.T) {
		var msg serverMessage
		if err := json.Unmarshal([]byte(`{"serverContent":{"turnComplete":true}}`), &msg); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if !msg.ServerContent.TurnComplete {
			t.Error("expected turnComplete")
		}
	})

	t.Run("interrupted", func(t *testing.T) {
		var msg serverMessage
		if err := json.Unmarshal([]byte(`{"serverContent":{"interrupted":true}}`), &msg); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if !msg.ServerContent.Interrupted {
			t.Error("expected interrupted")
		}
	})

	t.Run("goAway", func(t *testing.T) {
		var msg serverMessage
		if err := json.Unmarshal([]byte(`{"goAway":{"timeLeft":"10s"}}`), &msg); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if msg.GoAway == nil || msg.GoAway.TimeLeft != "10s" {
			t.Errorf("unexpected goAway: %+v", msg.GoAway)
		}
	})
}

func TestAPIError(t *testing.T) {
	err := &APIError{Code: 429, Status: "RESOURCE_EXHAUSTED", Message: "quota"}

	if !err.IsRetryable() {
		t.Error("429 should be retryable")
	}
	if !IsRetryable(err) {
		t.Error("IsRetryable should see through the error")
	}

	bad := &APIError{Code: 400, Status: "INVALID_ARGUMENT", Message: "bad model"}
	if bad.IsRetryable() {
		t.Error("400 should not be retryable")
	}
}

func TestConnectionErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewConnectionError("read failed", cause, true)

	if !errors.Is(err, cause) {
		t.Error("expected Unwrap to expose the cause")
	}
	if !IsRetryable(err) {
		t.Error("expected retryable")
	}
}

func TestMockSession(t *testing.T) {
	t.Run("records sends in order", func(t *testing.T) {
		m := NewMockSession()
		defer m.Close()

		m.SendMedia(MIMEJPEG, []byte{0xFF})
		m.SendMedia(MIMEAudioPCM, []byte{1, 2})
		m.SendText("hello", true)

		sent := m.Sent()
		if len(sent) != 3 {
			t.Fatalf("expected 3 items, got %d", len(sent))
		}
		if sent[0].MIMEType != MIMEJPEG {
			t.Errorf("first item: got %q", sent[0].MIMEType)
		}
		if sent[2].Text != "hello" || !sent[2].EndOfTurn {
			t.Errorf("third item: %+v", sent[2])
		}
	})

	t.Run("events stream and close", func(t *testing.T) {
		m := NewMockSession()

		m.SimulateAudio([]byte{1})
		m.SimulateText("frag")
		m.SimulateTurnComplete()
		m.Close()

		var kinds []EventKind
		for ev := range m.Events() {
			kinds = append(kinds, ev.Kind)
		}
		want := []EventKind{EventAudio, EventText, EventTurnComplete}
		if len(kinds) != len(want) {
			t.Fatalf("expected %d events, got %d", len(want), len(kinds))
		}
		for i := range want {
			if kinds[i] != want[i] {
				t.Errorf("event %d: got %v, want %v", i, kinds[i], want[i])
			}
		}
	})

	t.Run("send after close fails", func(t *testing.T) {
		m := NewMockSession()
		m.Close()

		if err := m.SendText("x", true); !errors.Is(err, ErrNotConnected) {
			t.Errorf("expected ErrNotConnected, got %v", err)
		}
	})

	t.Run("simulate error", func(t *testing.T) {
		m := NewMockSession()
		cause := errors.New("stream died")
		m.SimulateError(cause)

		for range m.Events() {
		}
		if !errors.Is(m.Err(), cause) {
			t.Errorf("expected terminal error, got %v", m.Err())
		}
	})
}
