package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-scout/pkg/protocol"
)

// ErrUplinkDown is returned by Send when the relay connection is down.
var ErrUplinkDown = errors.New("app: uplink not connected")

const (
	uplinkRedialDelay = 5 * time.Second
	uplinkPingPeriod  = 30 * time.Second
)

// Uplink maintains the outbound WebSocket connection to the fleet relay
// and reconnects when it drops.
type Uplink struct {
	url    string
	logger *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewUplink creates an uplink for the given ws:// or wss:// URL.
func NewUplink(url string, logger *slog.Logger) *Uplink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Uplink{
		url:    url,
		logger: logger.With("component", "uplink"),
	}
}

// Run dials the relay and keeps the connection alive until the context is
// cancelled, redialing after failures.
func (u *Uplink) Run(ctx context.Context) error {
	for {
		if err := u.connectAndServe(ctx); err != nil && ctx.Err() == nil {
			u.logger.Warn("uplink lost", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(uplinkRedialDelay):
		}
	}
}

func (u *Uplink) connectAndServe(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.url, nil)
	if err != nil {
		return err
	}

	u.mu.Lock()
	u.conn = conn
	u.mu.Unlock()

	u.logger.Info("uplink connected", "url", u.url)

	defer func() {
		u.mu.Lock()
		u.conn = nil
		u.mu.Unlock()
		conn.Close()
	}()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	// Ping loop lives only as long as this connection.
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go u.pingLoop(connCtx)

	// Read loop: the relay answers pings and may push messages later.
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		msg, err := protocol.ParseMessage(data)
		if err != nil {
			continue
		}
		if msg.Type == protocol.TypePong {
			if pong, err := msg.GetPongData(); err == nil {
				u.logger.Debug("relay pong", "latency_ms", pong.LatencyMs)
			}
		}
	}
}

func (u *Uplink) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(uplinkPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			msg, err := protocol.NewPingMessage(uuid.NewString())
			if err != nil {
				continue
			}
			if err := u.Send(msg); err != nil && !errors.Is(err, ErrUplinkDown) {
				u.logger.Warn("ping failed", "error", err)
			}
		}
	}
}

// Connected reports whether the uplink currently has a live connection.
func (u *Uplink) Connected() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.conn != nil
}

// Send writes a message to the relay. Safe for concurrent use.
func (u *Uplink) Send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if u.conn == nil {
		return ErrUplinkDown
	}
	return u.conn.WriteMessage(websocket.TextMessage, data)
}

// SendStatus publishes a status update. No-op when disconnected.
func (u *Uplink) SendStatus(status protocol.StatusData) {
	msg, err := protocol.NewStatusMessage(status)
	if err != nil {
		return
	}
	if err := u.Send(msg); err != nil && !errors.Is(err, ErrUplinkDown) {
		u.logger.Warn("status send failed", "error", err)
	}
}

// SendTranscript publishes a transcript line. No-op when disconnected.
func (u *Uplink) SendTranscript(role, text string) {
	msg, err := protocol.NewTranscriptMessage(role, text)
	if err != nil {
		return
	}
	if err := u.Send(msg); err != nil && !errors.Is(err, ErrUplinkDown) {
		u.logger.Warn("transcript send failed", "error", err)
	}
}

// SendFrame publishes a preview frame. No-op when disconnected.
func (u *Uplink) SendFrame(width, height int, jpegData []byte, frameID uint64) {
	msg, err := protocol.NewFrameMessage(width, height, jpegData, frameID)
	if err != nil {
		return
	}
	if err := u.Send(msg); err != nil && !errors.Is(err, ErrUplinkDown) {
		u.logger.Warn("frame send failed", "error", err)
	}
}
