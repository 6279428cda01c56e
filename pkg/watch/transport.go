package watch

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"
)

// DefaultSerialPort is the device created by `rfcomm bind 0 <mac> 1`.
const DefaultSerialPort = "/dev/rfcomm0"

// ErrTransportClosed is returned from a transport after Close.
var ErrTransportClosed = errors.New("watch: transport closed")

// Transport carries frames to and from the watch.
type Transport interface {
	// ReadFrame blocks until a frame arrives or the transport fails.
	ReadFrame() (Frame, error)

	// WriteFrame sends a frame. Safe for concurrent use.
	WriteFrame(Frame) error

	// Close tears the link down. Pending reads fail.
	Close() error
}

// serialTransport frames a Bluetooth RFCOMM serial port.
type serialTransport struct {
	port serial.Port
	rd   *bufio.Reader

	writeMu sync.Mutex
}

// OpenSerial opens the RFCOMM serial port the watch is bound to. An empty
// port uses DefaultSerialPort.
func OpenSerial(port string) (Transport, error) {
	if port == "" {
		port = DefaultSerialPort
	}

	p, err := serial.Open(port, &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("watch: open %s: %w", port, err)
	}

	return &serialTransport{port: p, rd: bufio.NewReader(p)}, nil
}

func (t *serialTransport) ReadFrame() (Frame, error) {
	return ReadFrame(t.rd)
}

func (t *serialTransport) WriteFrame(f Frame) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return WriteFrame(t.port, f)
}

func (t *serialTransport) Close() error {
	return t.port.Close()
}

// MockTransport is an in-memory transport for tests: inbound frames are
// injected with Simulate* helpers, outbound frames are recorded.
type MockTransport struct {
	mu     sync.Mutex
	sent   []Frame
	in     chan Frame
	done   chan struct{}
	closed sync.Once
}

// NewMockTransport creates a mock transport.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		in:   make(chan Frame, 64),
		done: make(chan struct{}),
	}
}

func (m *MockTransport) ReadFrame() (Frame, error) {
	select {
	case f := <-m.in:
		return f, nil
	case <-m.done:
		return Frame{}, io.EOF
	}
}

func (m *MockTransport) WriteFrame(f Frame) error {
	select {
	case <-m.done:
		return ErrTransportClosed
	default:
	}

	// Copy so callers can reuse their buffers.
	payload := make([]byte, len(f.Payload))
	copy(payload, f.Payload)

	m.mu.Lock()
	m.sent = append(m.sent, Frame{Endpoint: f.Endpoint, Payload: payload})
	m.mu.Unlock()
	return nil
}

func (m *MockTransport) Close() error {
	m.closed.Do(func() { close(m.done) })
	return nil
}

// SimulateFrame injects an inbound frame as if the watch had sent it.
func (m *MockTransport) SimulateFrame(f Frame) {
	m.in <- f
}

// Sent returns a copy of every frame written so far.
func (m *MockTransport) Sent() []Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Frame, len(m.sent))
	copy(out, m.sent)
	return out
}

// SentTo returns the frames written to one endpoint.
func (m *MockTransport) SentTo(endpoint uint16) []Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Frame
	for _, f := range m.sent {
		if f.Endpoint == endpoint {
			out = append(out, f)
		}
	}
	return out
}

var _ Transport = (*serialTransport)(nil)
var _ Transport = (*MockTransport)(nil)
