package live

import (
	"sync"
)

// SentItem records one item sent through a MockSession.
type SentItem struct {
	// MIMEType is set for media sends; empty for text turns.
	MIMEType string

	// Data is the media payload.
	Data []byte

	// Text is the text turn payload.
	Text string

	// EndOfTurn is the text turn's turn-complete flag.
	EndOfTurn bool
}

// MockSession is an in-memory Conn for testing the relay without a network
// connection. Tests drive the reply stream with the Simulate methods.
type MockSession struct {
	mu     sync.Mutex
	sent   []SentItem
	closed bool
	err    error

	// SendErr, when set, is returned by every SendMedia/SendText call.
	SendErr error

	events chan ServerEvent
	done   chan struct{}

	closeOnce sync.Once
}

// NewMockSession creates a mock session with a buffered event stream.
func NewMockSession() *MockSession {
	return &MockSession{
		events: make(chan ServerEvent, 64),
		done:   make(chan struct{}),
	}
}

// SendMedia records a media send.
func (m *MockSession) SendMedia(mimeType string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrNotConnected
	}
	if m.SendErr != nil {
		return m.SendErr
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	m.sent = append(m.sent, SentItem{MIMEType: mimeType, Data: buf})
	return nil
}

// SendText records a text turn send.
func (m *MockSession) SendText(text string, endOfTurn bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrNotConnected
	}
	if m.SendErr != nil {
		return m.SendErr
	}
	m.sent = append(m.sent, SentItem{Text: text, EndOfTurn: endOfTurn})
	return nil
}

// Events returns the simulated server event stream.
func (m *MockSession) Events() <-chan ServerEvent {
	return m.events
}

// Err returns the simulated terminal error.
func (m *MockSession) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Close marks the session closed and ends the event stream.
func (m *MockSession) Close() error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
		close(m.done)
		close(m.events)
	})
	return nil
}

// Sent returns a copy of everything sent so far.
func (m *MockSession) Sent() []SentItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentItem, len(m.sent))
	copy(out, m.sent)
	return out
}

// SimulateAudio emits a reply audio chunk.
func (m *MockSession) SimulateAudio(pcm []byte) {
	m.emit(ServerEvent{Kind: EventAudio, Audio: pcm})
}

// SimulateText emits a reply text fragment.
func (m *MockSession) SimulateText(text string) {
	m.emit(ServerEvent{Kind: EventText, Text: text})
}

// SimulateTurnComplete emits a turn-complete marker.
func (m *MockSession) SimulateTurnComplete() {
	m.emit(ServerEvent{Kind: EventTurnComplete})
}

// SimulateInterrupted emits an interruption marker.
func (m *MockSession) SimulateInterrupted() {
	m.emit(ServerEvent{Kind: EventInterrupted})
}

// SimulateError ends the stream with a terminal error.
func (m *MockSession) SimulateError(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
	m.Close()
}

// SimulateStreamEnd ends the stream cleanly.
func (m *MockSession) SimulateStreamEnd() {
	m.Close()
}

func (m *MockSession) emit(ev ServerEvent) {
	select {
	case m.events <- ev:
	case <-m.done:
	}
}

// Ensure MockSession implements Conn.
var _ Conn = (*MockSession)(nil)
