package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// ErrDisconnected is returned from Run when the watch drops the link.
var ErrDisconnected = errors.New("watch: disconnected")

// Config configures a Service.
type Config struct {
	// OnButton is called for each recognized button press.
	OnButton func(Button)

	// OnDictation is called with each completed, decoded voice session.
	// Runs on the read loop; hand long work to another goroutine.
	OnDictation func(Dictation)

	// Logger for protocol events. Defaults to slog.Default().
	Logger *slog.Logger
}

// Service drives the watch link: it answers pings, acknowledges app
// messages, dispatches button presses, and runs voice dictation sessions.
type Service struct {
	t      Transport
	cfg    Config
	logger *slog.Logger

	// newDecoder is swapped out by tests.
	newDecoder func() (pcmDecoder, error)

	mu    sync.Mutex
	voice *voiceSession
}

// New creates a watch service on a transport.
func New(t Transport, cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		t:          t,
		cfg:        cfg,
		logger:     cfg.Logger.With("component", "watch"),
		newDecoder: newOpusDecoder,
	}
}

// Run reads frames until the link drops or ctx is cancelled. Cancellation
// closes the transport to unblock the read.
func (s *Service) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		s.t.Close()
	})
	defer stop()

	s.logger.Info("watch link up")

	for {
		frame, err := s.t.ReadFrame()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) || errors.Is(err, ErrTransportClosed) {
				return ErrDisconnected
			}
			return fmt.Errorf("watch: read: %w", err)
		}

		if err := s.handleFrame(frame); err != nil {
			// Protocol glitches are logged, not fatal: the watch may be
			// running an app we do not understand.
			s.logger.Warn("frame dropped",
				"endpoint", frame.Endpoint,
				"error", err,
			)
		}
	}
}

// SendNotification shows a notification on the watch.
func (s *Service) SendNotification(title, body string) error {
	payload, err := encodeNotification(DefaultSender, title, body)
	if err != nil {
		return err
	}
	return s.t.WriteFrame(Frame{Endpoint: EndpointNotification, Payload: payload})
}

// SendDictationResult sends the transcription for a completed session back
// to the watch.
func (s *Service) SendDictationResult(sessionID uint16, text string) error {
	payload, err := encodeDictationResult(sessionID, voiceResultSuccess, text)
	if err != nil {
		return err
	}
	return s.t.WriteFrame(Frame{Endpoint: EndpointVoiceControl, Payload: payload})
}

func (s *Service) handleFrame(f Frame) error {
	switch f.Endpoint {
	case EndpointPing:
		return s.handlePing(f.Payload)
	case EndpointAppMessage:
		return s.handleAppMessage(f.Payload)
	case EndpointVoiceControl:
		return s.handleVoiceControl(f.Payload)
	case EndpointAudioStream:
		return s.handleAudioStream(f.Payload)
	default:
		s.logger.Debug("unhandled endpoint", "endpoint", f.Endpoint, "bytes", len(f.Payload))
		return nil
	}
}

// handlePing answers the watch's keepalive with a pong carrying the same
// cookie.
func (s *Service) handlePing(payload []byte) error {
	if len(payload) < 1 || payload[0] != pingCmd {
		return nil
	}
	return s.t.WriteFrame(Frame{
		Endpoint: EndpointPing,
		Payload:  encodePing(pongCmd, payload[1:]),
	})
}

// handleAppMessage acknowledges the push and dispatches button presses.
func (s *Service) handleAppMessage(payload []byte) error {
	msg, err := parseAppMessage(payload)
	if err != nil {
		return err
	}

	// Always ack, or the watch app retries the push.
	if err := s.t.WriteFrame(ackFrame(msg.TransactionID)); err != nil {
		return err
	}

	button, err := parseButtonPress(msg)
	if err != nil {
		if errors.Is(err, ErrNotButtonPress) {
			return nil
		}
		return err
	}

	s.logger.Debug("button press", "button", button.String())
	if s.cfg.OnButton != nil {
		s.cfg.OnButton(button)
	}
	return nil
}

// handleVoiceControl accepts session setups. Only one session runs at a
// time; a second setup replaces an abandoned one.
func (s *Service) handleVoiceControl(payload []byte) error {
	if len(payload) < 1 || payload[0] != voiceSessionSetup {
		return nil
	}

	id, info, err := parseSessionSetup(payload)
	if err != nil {
		return err
	}

	dec, err := s.newDecoder()
	if err != nil {
		s.t.WriteFrame(Frame{
			Endpoint: EndpointVoiceControl,
			Payload:  encodeSetupResult(id, voiceResultFailure),
		})
		return err
	}

	s.mu.Lock()
	s.voice = newVoiceSession(id, dec)
	s.mu.Unlock()

	s.logger.Info("voice session accepted",
		"session", id,
		"sample_rate", info.SampleRate,
		"bit_rate", info.BitRate,
	)
	return s.t.WriteFrame(Frame{
		Endpoint: EndpointVoiceControl,
		Payload:  encodeSetupResult(id, voiceResultSuccess),
	})
}

// handleAudioStream ingests opus packets for the active session and
// finalizes it on stop transfer.
func (s *Service) handleAudioStream(payload []byte) error {
	if len(payload) < 1 {
		return ErrShortFrame
	}

	s.mu.Lock()
	session := s.voice
	s.mu.Unlock()
	if session == nil {
		return errors.New("watch: audio without a session")
	}

	switch payload[0] {
	case audioData:
		id, packets, err := audioPackets(payload)
		if err != nil {
			return err
		}
		if id != session.id {
			return fmt.Errorf("watch: audio for session %d, expected %d", id, session.id)
		}
		for _, p := range packets {
			if err := session.ingest(p); err != nil {
				return err
			}
		}
		return nil

	case audioStop:
		s.mu.Lock()
		s.voice = nil
		s.mu.Unlock()

		d := session.result()
		s.logger.Info("voice session complete",
			"session", d.SessionID,
			"samples", len(d.Samples),
			"dropped_packets", session.dropped,
		)
		if s.cfg.OnDictation != nil {
			s.cfg.OnDictation(d)
		}
		return nil

	default:
		return fmt.Errorf("watch: unknown audio command 0x%02x", payload[0])
	}
}
