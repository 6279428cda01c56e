package live

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const liveBaseURL = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

// MIME types for streamed media.
const (
	MIMEAudioPCM = "audio/pcm"
	MIMEJPEG     = "image/jpeg"
)

// ConnectionState represents the WebSocket connection state.
type ConnectionState int

const (
	// StateDisconnected indicates no active connection.
	StateDisconnected ConnectionState = iota
	// StateConnecting indicates connection is being established.
	StateConnecting
	// StateConnected indicates an active connection.
	StateConnected
	// StateClosing indicates the connection is shutting down.
	StateClosing
	// StateClosed indicates the connection has been closed.
	StateClosed
)

// String returns a human-readable connection state.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Stats tracks session usage counters.
type Stats struct {
	// FramesSent is the number of video frames sent.
	FramesSent int64 `json:"frames_sent"`

	// ChunksSent is the number of audio chunks sent.
	ChunksSent int64 `json:"chunks_sent"`

	// TextTurnsSent is the number of text turns sent.
	TextTurnsSent int64 `json:"text_turns_sent"`

	// EventsReceived is the number of server events received.
	EventsReceived int64 `json:"events_received"`
}

// Conn is the session surface the relay consumes. One goroutine may send
// and one may receive concurrently; neither method set is safe for
// multiple concurrent callers.
type Conn interface {
	// SendMedia streams one media chunk (PCM audio or a JPEG frame).
	SendMedia(mimeType string, data []byte) error

	// SendText sends a user text turn.
	SendText(text string, endOfTurn bool) error

	// Events returns the demultiplexed server event stream.
	// The channel is closed when the stream ends; check Err afterwards.
	Events() <-chan ServerEvent

	// Err returns the terminal stream error, or nil after a clean close.
	Err() error

	// Close shuts down the session. Safe to call multiple times.
	Close() error
}

// Session is a live bidirectional Gemini session over WebSocket.
type Session struct {
	id     string
	cfg    Config
	logger *slog.Logger

	mu    sync.RWMutex
	conn  *websocket.Conn
	state ConnectionState
	err   error

	// writeMu serializes WebSocket writes.
	writeMu sync.Mutex

	events    chan ServerEvent
	done      chan struct{}
	closeOnce sync.Once

	framesSent     atomic.Int64
	chunksSent     atomic.Int64
	textTurnsSent  atomic.Int64
	eventsReceived atomic.Int64
}

// Connect dials the Live API, performs the setup handshake, and starts the
// receive pump. The returned session is ready for SendMedia/SendText.
func Connect(ctx context.Context, cfg Config) (*Session, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	s := &Session{
		id:     id,
		cfg:    cfg,
		logger: cfg.Logger.With("component", "live", "session_id", id[:8]),
		state:  StateConnecting,
		events: make(chan ServerEvent, 32),
		done:   make(chan struct{}),
	}

	wsURL, err := url.Parse(liveBaseURL)
	if err != nil {
		return nil, fmt.Errorf("live: invalid URL: %w", err)
	}
	q := wsURL.Query()
	q.Set("key", cfg.APIKey)
	wsURL.RawQuery = q.Encode()

	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.ConnectTimeout,
	}

	s.logger.Info("connecting to Gemini Live",
		"model", cfg.Model,
		"modality", cfg.Modality,
	)

	dialCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(dialCtx, wsURL.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, NewConnectionError(
				fmt.Sprintf("dial failed with status %d", resp.StatusCode),
				err,
				resp.StatusCode >= 500,
			)
		}
		return nil, NewConnectionError("dial failed", err, true)
	}
	s.conn = conn

	if err := s.setup(); err != nil {
		conn.Close()
		return nil, err
	}

	s.mu.Lock()
	s.state = StateConnected
	s.mu.Unlock()

	go s.readLoop()

	s.logger.Info("live session established")
	return s, nil
}

// setup sends the setup message and waits for setupComplete.
func (s *Session) setup() error {
	msg := clientMessage{
		Setup: &setupMessage{
			Model: s.cfg.Model,
			GenerationConfig: &generationConfig{
				ResponseModalities: []string{string(s.cfg.Modality)},
			},
		},
	}
	if s.cfg.SystemInstruction != "" {
		msg.Setup.SystemInstruction = &content{
			Parts: []part{{Text: s.cfg.SystemInstruction}},
		}
	}

	if err := s.writeJSON(msg); err != nil {
		return NewConnectionError("setup write failed", err, true)
	}

	s.conn.SetReadDeadline(time.Now().Add(s.cfg.ConnectTimeout))
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return NewConnectionError("setup read failed", err, true)
	}

	var reply serverMessage
	if err := json.Unmarshal(data, &reply); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if reply.Error != nil {
		return &APIError{Code: reply.Error.Code, Status: reply.Error.Status, Message: reply.Error.Message}
	}
	if reply.SetupComplete == nil {
		return fmt.Errorf("%w: expected setupComplete, got %s", ErrSetupFailed, string(data))
	}
	return nil
}

// ID returns the client-side session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current connection state.
func (s *Session) State() ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Stats returns session usage counters.
func (s *Session) Stats() Stats {
	return Stats{
		FramesSent:     s.framesSent.Load(),
		ChunksSent:     s.chunksSent.Load(),
		TextTurnsSent:  s.textTurnsSent.Load(),
		EventsReceived: s.eventsReceived.Load(),
	}
}

// SendMedia streams one media chunk to the model.
func (s *Session) SendMedia(mimeType string, data []byte) error {
	msg := clientMessage{
		RealtimeInput: &realtimeInput{
			MediaChunks: []mediaBlob{{
				MIMEType: mimeType,
				Data:     base64.StdEncoding.EncodeToString(data),
			}},
		},
	}
	if err := s.send(msg); err != nil {
		return err
	}

	if strings.HasPrefix(mimeType, "image/") {
		s.framesSent.Add(1)
	} else {
		s.chunksSent.Add(1)
	}
	return nil
}

// SendText sends a user text turn.
func (s *Session) SendText(text string, endOfTurn bool) error {
	msg := clientMessage{
		ClientContent: &clientContent{
			Turns: []content{{
				Role:  "user",
				Parts: []part{{Text: text}},
			}},
			TurnComplete: endOfTurn,
		},
	}
	if err := s.send(msg); err != nil {
		return err
	}

	s.textTurnsSent.Add(1)
	return nil
}

func (s *Session) send(msg clientMessage) error {
	s.mu.RLock()
	state := s.state
	s.mu.RUnlock()

	if state != StateConnected {
		return ErrNotConnected
	}
	if err := s.writeJSON(msg); err != nil {
		return NewConnectionError("send failed", err, true)
	}
	return nil
}

func (s *Session) writeJSON(msg clientMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Events returns the server event stream. Closed when the stream ends.
func (s *Session) Events() <-chan ServerEvent {
	return s.events
}

// Err returns the terminal stream error, or nil after a clean close.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// readLoop pumps server messages into the event channel until the stream
// ends or the session is closed.
func (s *Session) readLoop() {
	defer close(s.events)

	for {
		select {
		case <-s.done:
			return
		default:
		}

		s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Info("live stream closed by server")
				s.finish(nil)
				return
			}
			select {
			case <-s.done:
				// Local close; not an error.
				s.finish(nil)
			default:
				s.finish(NewConnectionError("read failed", err, true))
			}
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("dropping malformed server message", "error", err)
			continue
		}
		s.eventsReceived.Add(1)

		if !s.dispatch(msg) {
			return
		}
	}
}

// dispatch converts one server message into events. Returns false when the
// loop should stop.
func (s *Session) dispatch(msg serverMessage) bool {
	switch {
	case msg.ServerContent != nil:
		sc := msg.ServerContent
		if sc.ModelTurn != nil {
			for _, p := range sc.ModelTurn.Parts {
				if p.InlineData != nil {
					audio, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
					if err != nil {
						s.logger.Warn("dropping undecodable audio part", "error", err)
						continue
					}
					if !s.emit(ServerEvent{Kind: EventAudio, Audio: audio}) {
						return false
					}
				}
				if p.Text != "" {
					if !s.emit(ServerEvent{Kind: EventText, Text: p.Text}) {
						return false
					}
				}
			}
		}
		if sc.Interrupted {
			if !s.emit(ServerEvent{Kind: EventInterrupted}) {
				return false
			}
		}
		if sc.TurnComplete {
			if !s.emit(ServerEvent{Kind: EventTurnComplete}) {
				return false
			}
		}
		return true

	case msg.GoAway != nil:
		s.logger.Warn("server going away", "time_left", msg.GoAway.TimeLeft)
		s.emit(ServerEvent{Kind: EventGoAway})
		s.finish(ErrGoAway)
		return false

	case msg.Error != nil:
		s.finish(&APIError{Code: msg.Error.Code, Status: msg.Error.Status, Message: msg.Error.Message})
		return false

	case msg.SetupComplete != nil:
		// Duplicate setupComplete after handshake; ignore.
		return true

	default:
		s.logger.Debug("unhandled server message")
		return true
	}
}

// emit delivers one event, giving up when the session is closed.
func (s *Session) emit(ev ServerEvent) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

// finish records the terminal error.
func (s *Session) finish(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	if s.state == StateConnected {
		s.state = StateClosed
	}
	s.mu.Unlock()
}

// Close shuts down the session. Safe to call multiple times.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosing
		conn := s.conn
		s.mu.Unlock()

		close(s.done)

		if conn != nil {
			deadline := time.Now().Add(time.Second)
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				deadline,
			)
			conn.Close()
		}

		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()

		s.logger.Info("live session closed",
			"frames_sent", s.framesSent.Load(),
			"chunks_sent", s.chunksSent.Load(),
		)
	})
	return nil
}

// Ensure Session implements Conn.
var _ Conn = (*Session)(nil)
