package audioio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

// pipeSource captures audio by running an external capture tool (arecord on
// Linux, rec on macOS) and reading raw S16_LE PCM from its stdout. Driving
// devices through external pipelines keeps the binary free of cgo, which
// matters for cross-compiling to the Pi.
type pipeSource struct {
	cfg     Config
	backend string
	argv    []string
	logger  *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	cmd      *exec.Cmd
	cancel   context.CancelFunc
	streamCh chan AudioChunk

	chunksRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64
}

// newPipeSource creates a source that reads PCM from the given command.
func newPipeSource(cfg Config, backend string, argv []string, logger *slog.Logger) *pipeSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &pipeSource{
		cfg:     cfg,
		backend: backend,
		argv:    argv,
		logger:  logger,
	}
}

// Start launches the capture process and begins reading chunks.
func (s *pipeSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(runCtx, s.argv[0], s.argv[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("capture stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start %s: %w", s.argv[0], err)
	}

	s.cmd = cmd
	s.cancel = cancel
	s.streamCh = make(chan AudioChunk, 10)
	s.running = true

	go s.readLoop(stdout)

	s.logger.Info("audio capture started",
		"backend", s.backend,
		"sample_rate", s.cfg.SampleRate,
		"chunk_samples", s.cfg.ChunkSamples,
	)
	return nil
}

// readLoop reads fixed-size chunks from the capture process until it exits.
func (s *pipeSource) readLoop(r io.Reader) {
	defer s.Stop()

	buf := make([]byte, s.cfg.ChunkBytes())
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			if err != io.EOF && err != io.ErrClosedPipe {
				s.logger.Warn("audio capture read failed", "error", err)
			}
			return
		}

		var chunk AudioChunk
		chunk.FromBytes(buf, s.cfg.SampleRate, s.cfg.Channels)

		s.mu.Lock()
		ch := s.streamCh
		running := s.running
		s.mu.Unlock()
		if !running {
			return
		}

		select {
		case ch <- chunk:
			s.chunksRead.Add(1)
			s.samplesRead.Add(int64(len(chunk.Samples)))
		default:
			// Consumer is behind. Overruns are tolerated: drop the
			// chunk and keep capturing.
			s.overruns.Add(1)
			s.logger.Debug("audio capture overrun, dropping chunk")
		}
	}
}

// Stop halts capture. Safe to call multiple times.
func (s *pipeSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	s.cancel()
	if s.cmd != nil {
		s.cmd.Wait()
		s.cmd = nil
	}
	close(s.streamCh)

	s.logger.Info("audio capture stopped",
		"chunks", s.chunksRead.Load(),
		"overruns", s.overruns.Load(),
	)
	return nil
}

// Read reads the next audio chunk, blocking until one is available.
func (s *pipeSource) Read(ctx context.Context) (AudioChunk, error) {
	s.mu.Lock()
	ch := s.streamCh
	s.mu.Unlock()
	if ch == nil {
		return AudioChunk{}, io.EOF
	}

	select {
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	case chunk, ok := <-ch:
		if !ok {
			return AudioChunk{}, io.EOF
		}
		return chunk, nil
	}
}

// Stream returns the audio chunk channel.
func (s *pipeSource) Stream() <-chan AudioChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamCh
}

// Config returns the audio configuration.
func (s *pipeSource) Config() Config {
	return s.cfg
}

// Name returns the backend name.
func (s *pipeSource) Name() string {
	return s.backend
}

// Close releases resources.
func (s *pipeSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.Stop()
}

// Stats returns source statistics.
func (s *pipeSource) Stats() SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return SourceStats{
		ChunksRead:  s.chunksRead.Load(),
		SamplesRead: s.samplesRead.Load(),
		Overruns:    s.overruns.Load(),
		Running:     running,
		Backend:     s.backend,
	}
}

var _ SourceWithStats = (*pipeSource)(nil)

// pipeSink plays audio by piping raw S16_LE PCM into an external playback
// tool (aplay on Linux, play on macOS).
type pipeSink struct {
	cfg     Config
	backend string
	argv    []string
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	cmd     *exec.Cmd
	stdin   io.WriteCloser

	chunksWritten  atomic.Int64
	samplesWritten atomic.Int64
}

// newPipeSink creates a sink that writes PCM to the given command.
func newPipeSink(cfg Config, backend string, argv []string, logger *slog.Logger) *pipeSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &pipeSink{
		cfg:     cfg,
		backend: backend,
		argv:    argv,
		logger:  logger,
	}
}

// Start marks the sink ready. The playback process is launched lazily on the
// first Write so a sink can be opened without claiming the device.
func (s *pipeSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	s.running = true
	return nil
}

// startProcessLocked launches the playback process. Caller holds s.mu.
func (s *pipeSink) startProcessLocked() error {
	cmd := exec.Command(s.argv[0], s.argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("playback stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", s.argv[0], err)
	}
	s.cmd = cmd
	s.stdin = stdin

	s.logger.Info("audio playback started",
		"backend", s.backend,
		"sample_rate", s.cfg.SampleRate,
	)
	return nil
}

// stopProcessLocked kills the playback process, discarding anything the
// device had buffered. Caller holds s.mu.
func (s *pipeSink) stopProcessLocked() {
	if s.stdin != nil {
		s.stdin.Close()
		s.stdin = nil
	}
	if s.cmd != nil {
		if s.cmd.Process != nil {
			s.cmd.Process.Kill()
		}
		s.cmd.Wait()
		s.cmd = nil
	}
}

// Write sends one chunk to the playback process, starting it if needed.
// The write blocks while the device pipeline is full, which paces playback.
func (s *pipeSink) Write(ctx context.Context, chunk AudioChunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.running {
		return io.ErrClosedPipe
	}
	if s.cmd == nil {
		if err := s.startProcessLocked(); err != nil {
			return err
		}
	}

	if _, err := s.stdin.Write(chunk.Bytes()); err != nil {
		// Playback process died. Reset so the next write restarts it.
		s.stopProcessLocked()
		return fmt.Errorf("playback write: %w", err)
	}

	s.chunksWritten.Add(1)
	s.samplesWritten.Add(int64(len(chunk.Samples)))
	return nil
}

// Flush closes the playback stream and waits for the device to drain.
func (s *pipeSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd == nil {
		return nil
	}

	s.stdin.Close()
	s.stdin = nil

	done := make(chan error, 1)
	cmd := s.cmd
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		cmd.Process.Kill()
		<-done
		s.cmd = nil
		return ctx.Err()
	case <-done:
		s.cmd = nil
		return nil
	case <-time.After(30 * time.Second):
		cmd.Process.Kill()
		<-done
		s.cmd = nil
		return fmt.Errorf("playback flush timed out")
	}
}

// Clear discards buffered audio by restarting the playback process.
func (s *pipeSink) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopProcessLocked()
	return nil
}

// Stop halts playback. Safe to call multiple times.
func (s *pipeSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	s.stopProcessLocked()

	s.logger.Info("audio playback stopped", "chunks", s.chunksWritten.Load())
	return nil
}

// Config returns the audio configuration.
func (s *pipeSink) Config() Config {
	return s.cfg
}

// Name returns the backend name.
func (s *pipeSink) Name() string {
	return s.backend
}

// Close releases resources.
func (s *pipeSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.Stop()
}

// Stats returns sink statistics.
func (s *pipeSink) Stats() SinkStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return SinkStats{
		ChunksWritten:  s.chunksWritten.Load(),
		SamplesWritten: s.samplesWritten.Load(),
		Running:        running,
		Backend:        s.backend,
	}
}

var _ SinkWithStats = (*pipeSink)(nil)

// alsaCaptureArgs builds the arecord invocation for a capture config.
func alsaCaptureArgs(cfg Config) []string {
	args := []string{"arecord", "-q", "-t", "raw", "-f", "S16_LE",
		"-r", fmt.Sprint(cfg.SampleRate), "-c", fmt.Sprint(cfg.Channels)}
	if cfg.Device != "" {
		args = append(args, "-D", cfg.Device)
	}
	return args
}

// alsaPlaybackArgs builds the aplay invocation for a playback config.
func alsaPlaybackArgs(cfg Config) []string {
	args := []string{"aplay", "-q", "-t", "raw", "-f", "S16_LE",
		"-r", fmt.Sprint(cfg.SampleRate), "-c", fmt.Sprint(cfg.Channels)}
	if cfg.Device != "" {
		args = append(args, "-D", cfg.Device)
	}
	return args
}

// soxCaptureArgs builds the SoX rec invocation for a capture config.
func soxCaptureArgs(cfg Config) []string {
	return []string{"rec", "-q", "-t", "raw", "-b", "16", "-e", "signed-integer",
		"-r", fmt.Sprint(cfg.SampleRate), "-c", fmt.Sprint(cfg.Channels), "-"}
}

// soxPlaybackArgs builds the SoX play invocation for a playback config.
func soxPlaybackArgs(cfg Config) []string {
	return []string{"play", "-q", "-t", "raw", "-b", "16", "-e", "signed-integer",
		"-r", fmt.Sprint(cfg.SampleRate), "-c", fmt.Sprint(cfg.Channels), "-"}
}
