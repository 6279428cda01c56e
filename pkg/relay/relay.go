package relay

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-scout/pkg/audioio"
	"github.com/teslashibe/go-scout/pkg/camera"
	"github.com/teslashibe/go-scout/pkg/live"
)

// DefaultOutboundCapacity bounds the outbound queue. Producers block when
// it is full; nothing is ever dropped silently.
const DefaultOutboundCapacity = 5

// DefaultFrameInterval is the camera capture cadence.
const DefaultFrameInterval = time.Second

// ErrAlreadyRun indicates Run was called twice. A Relay is single-use:
// build a new one for a new session.
var ErrAlreadyRun = errors.New("relay: already run")

// errStop marks a normal, user-requested shutdown.
var errStop = errors.New("relay: stop requested")

// State is the relay lifecycle state.
type State int

const (
	// StateIdle is the pre-session state.
	StateIdle State = iota
	// StateConnecting means the remote session is being established.
	StateConnecting
	// StateActive means all tasks are running.
	StateActive
	// StateDraining means tasks are being cancelled and devices released.
	StateDraining
	// StateClosed is terminal.
	StateClosed
)

// String returns a human-readable state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DialFunc establishes the remote session.
type DialFunc func(ctx context.Context) (live.Conn, error)

// Devices are the local endpoints the relay moves bytes between. Each
// device is owned exclusively by one relay task for the session's duration.
// Any device may be nil, which disables the corresponding task.
type Devices struct {
	// Video produces camera frames (nil = video mode none).
	Video camera.Source

	// Mic produces microphone audio.
	Mic audioio.Source

	// Speaker plays reply audio.
	Speaker audioio.Sink
}

// Config tunes the relay.
type Config struct {
	// OutboundCapacity bounds the outbound queue.
	// Default: DefaultOutboundCapacity.
	OutboundCapacity int

	// FrameInterval is the camera capture cadence.
	// Default: DefaultFrameInterval (1 Hz).
	FrameInterval time.Duration

	// Input is the user's text input stream (nil disables the input task).
	// A line of "q" stops the relay; any other line is sent as a turn.
	Input io.Reader

	// TextSink receives reply text fragments as they arrive.
	// Nil fragments go to the logger.
	TextSink func(fragment string)

	// FrameSink receives each captured frame's JPEG, after thumbnailing,
	// for local preview fan-out. Called from the capture task, so it must
	// not block.
	FrameSink func(jpeg []byte, width, height int)

	// OnTurnComplete is called after each completed model turn with the
	// number of stale audio chunks discarded.
	OnTurnComplete func(discarded int)

	// Logger for relay events. Defaults to slog.Default().
	Logger *slog.Logger
}

// Relay runs one live session's worth of concurrent media plumbing.
// Single-use: New, Run, done.
type Relay struct {
	dial   DialFunc
	dev    Devices
	cfg    Config
	logger *slog.Logger

	out chan OutboundItem
	in  *inboundQueue

	mu      sync.Mutex
	state   State
	cancel  context.CancelFunc
	stopped bool
}

// New creates a relay. Dial is invoked by Run.
func New(dial DialFunc, dev Devices, cfg Config) *Relay {
	if cfg.OutboundCapacity <= 0 {
		cfg.OutboundCapacity = DefaultOutboundCapacity
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = DefaultFrameInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Relay{
		dial:   dial,
		dev:    dev,
		cfg:    cfg,
		logger: cfg.Logger.With("component", "relay"),
		out:    make(chan OutboundItem, cfg.OutboundCapacity),
		in:     newInboundQueue(),
	}
}

// State returns the current lifecycle state.
func (r *Relay) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Stop cancels the relay. Idempotent: the second and later calls are no-ops.
// Stopping counts as a normal shutdown, not an error.
func (r *Relay) Stop() {
	r.mu.Lock()
	r.stopped = true
	cancel := r.cancel
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Run connects the session and drives all tasks until one fails, the user
// stops the relay, or ctx is cancelled. Cancellation tears the tasks down
// as a unit; Run does not return until every task has exited and the
// devices are released. User-requested stops return nil.
func (r *Relay) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.state != StateIdle {
		r.mu.Unlock()
		return ErrAlreadyRun
	}
	if r.stopped {
		r.state = StateClosed
		r.mu.Unlock()
		return nil
	}
	r.state = StateConnecting
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.mu.Unlock()
	defer cancel()

	session, err := r.dial(runCtx)
	if err != nil {
		r.setState(StateClosed)
		return fmt.Errorf("relay: connect: %w", err)
	}

	if err := r.startDevices(runCtx); err != nil {
		session.Close()
		r.setState(StateClosed)
		return err
	}

	r.setState(StateActive)
	r.logger.Info("relay active",
		"video", r.dev.Video != nil,
		"mic", r.dev.Mic != nil,
		"speaker", r.dev.Speaker != nil,
	)

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error { return r.sendLoop(gctx, session) })
	g.Go(func() error { return r.receiveLoop(gctx, session) })
	if r.dev.Video != nil {
		g.Go(func() error { return r.captureFrames(gctx) })
	}
	if r.dev.Mic != nil {
		g.Go(func() error { return r.captureAudio(gctx) })
	}
	if r.dev.Speaker != nil {
		g.Go(func() error { return r.playbackLoop(gctx) })
	}
	if r.cfg.Input != nil {
		g.Go(func() error { return r.userInput(gctx) })
	}

	err = g.Wait()

	r.setState(StateDraining)
	r.releaseDevices()
	session.Close()
	r.setState(StateClosed)

	switch {
	case err == nil,
		errors.Is(err, errStop),
		errors.Is(err, context.Canceled):
		r.logger.Info("relay stopped")
		return nil
	default:
		r.logger.Error("relay failed", "error", err)
		return err
	}
}

func (r *Relay) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// startDevices opens every configured device. A device that cannot open is
// a setup error: the session does not start.
func (r *Relay) startDevices(ctx context.Context) error {
	if r.dev.Video != nil {
		if err := r.dev.Video.Start(ctx); err != nil {
			return fmt.Errorf("relay: start video: %w", err)
		}
	}
	if r.dev.Mic != nil {
		if err := r.dev.Mic.Start(ctx); err != nil {
			return fmt.Errorf("relay: start mic: %w", err)
		}
	}
	if r.dev.Speaker != nil {
		if err := r.dev.Speaker.Start(ctx); err != nil {
			return fmt.Errorf("relay: start speaker: %w", err)
		}
	}
	return nil
}

// releaseDevices stops every device. Errors are logged; teardown continues.
func (r *Relay) releaseDevices() {
	if r.dev.Video != nil {
		if err := r.dev.Video.Stop(); err != nil {
			r.logger.Warn("video stop failed", "error", err)
		}
	}
	if r.dev.Mic != nil {
		if err := r.dev.Mic.Stop(); err != nil {
			r.logger.Warn("mic stop failed", "error", err)
		}
	}
	if r.dev.Speaker != nil {
		r.dev.Speaker.Clear()
		if err := r.dev.Speaker.Stop(); err != nil {
			r.logger.Warn("speaker stop failed", "error", err)
		}
	}
}

// enqueue adds an item to the outbound queue, blocking while it is full.
// Backpressure by design: a slow sender slows capture instead of dropping.
func (r *Relay) enqueue(ctx context.Context, item OutboundItem) error {
	select {
	case r.out <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// captureFrames grabs a frame at each tick, thumbnails it, and enqueues it.
// A capture failure is fatal to the task and therefore to the group.
func (r *Relay) captureFrames(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		frame, err := r.dev.Video.Grab(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("relay: capture frame: %w", err)
		}

		thumb, err := camera.Thumbnail(frame.Data, camera.ThumbnailMaxDim)
		if err != nil {
			// Encode glitch, not a device failure: skip the frame.
			r.logger.Warn("frame thumbnail failed, skipping", "error", err)
			continue
		}

		if r.cfg.FrameSink != nil {
			r.cfg.FrameSink(thumb, frame.Width, frame.Height)
		}

		if err := r.enqueue(ctx, ImageItem(frame.MIME, thumb)); err != nil {
			return err
		}
	}
}

// captureAudio reads microphone chunks continuously and enqueues them.
// The session expects 16 kHz mono; a mic running at another rate or in
// stereo gets its chunks converted on the way out. Overflow is tolerated
// inside the source; any other read failure is fatal.
func (r *Relay) captureAudio(ctx context.Context) error {
	for {
		chunk, err := r.dev.Mic.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("relay: capture audio: %w", err)
		}

		samples := chunk.Samples
		if chunk.Channels == 2 {
			samples = audioio.StereoToMono(samples)
		}
		if chunk.SampleRate != audioio.CaptureSampleRate {
			samples = audioio.Resample(samples, chunk.SampleRate, audioio.CaptureSampleRate)
		}

		if err := r.enqueue(ctx, AudioItem(live.MIMEAudioPCM, audioio.SamplesToBytes(samples))); err != nil {
			return err
		}
	}
}

// sendLoop is the single consumer of the outbound queue, preserving FIFO
// order. A send failure drops that item and keeps the loop alive.
func (r *Relay) sendLoop(ctx context.Context, session live.Conn) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case item := <-r.out:
			var err error
			switch item.Kind {
			case ItemText:
				err = session.SendText(item.Text, item.EndOfTurn)
			default:
				err = session.SendMedia(item.MIME, item.Data)
			}
			if err != nil {
				r.logger.Warn("send failed, dropping item",
					"kind", item.Kind.String(),
					"error", err,
				)
			}
		}
	}
}

// receiveLoop demultiplexes the reply stream: audio to the inbound queue,
// text straight to the sink. Turn completion (and interruption) drains the
// inbound queue so audio buffered ahead of an interruption is never played.
func (r *Relay) receiveLoop(ctx context.Context, session live.Conn) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-session.Events():
			if !ok {
				if err := session.Err(); err != nil {
					return fmt.Errorf("relay: receive: %w", err)
				}
				// Remote ended the session cleanly.
				return errStop
			}

			switch ev.Kind {
			case live.EventAudio:
				if r.dev.Speaker != nil {
					r.in.Push(InboundChunk{PCM: ev.Audio})
				}

			case live.EventText:
				r.emitText(ev.Text)

			case live.EventInterrupted:
				n := r.in.Drain()
				if r.dev.Speaker != nil {
					r.dev.Speaker.Clear()
				}
				r.logger.Debug("model interrupted, discarded stale audio", "chunks", n)

			case live.EventTurnComplete:
				n := r.in.Drain()
				if n > 0 {
					r.logger.Debug("turn complete, discarded stale audio", "chunks", n)
				}
				if r.cfg.OnTurnComplete != nil {
					r.cfg.OnTurnComplete(n)
				}

			case live.EventGoAway:
				r.logger.Warn("server going away, session will end")
			}
		}
	}
}

// playbackLoop drains the inbound queue to the speaker. Reply audio
// arrives as 24 kHz mono; a sink configured differently, such as a
// Bluetooth speaker fixed at 48 kHz stereo, gets the stream converted to
// its rate and channel count. Writes are synchronous and pace playback;
// a write failure is fatal.
func (r *Relay) playbackLoop(ctx context.Context) error {
	cfg := r.dev.Speaker.Config()

	for {
		chunk, err := r.in.Pop(ctx)
		if err != nil {
			return err
		}

		samples := audioio.BytesToSamples(chunk.PCM)
		if cfg.SampleRate != audioio.PlaybackSampleRate {
			samples = audioio.Resample(samples, audioio.PlaybackSampleRate, cfg.SampleRate)
		}
		if cfg.Channels == 2 {
			samples = audioio.MonoToStereo(samples)
		}

		ac := audioio.AudioChunk{Samples: samples, SampleRate: cfg.SampleRate, Channels: cfg.Channels}
		if err := r.dev.Speaker.Write(ctx, ac); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("relay: playback: %w", err)
		}
	}
}

// userInput reads lines and turns them into text turns. "q" stops the
// relay; a blank line sends "." to nudge the model, as the console demo
// always has.
func (r *Relay) userInput(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r.cfg.Input)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				// Input closed; treat like a quit.
				return errStop
			}

			text := strings.TrimSpace(line)
			if strings.EqualFold(text, "q") {
				return errStop
			}
			if text == "" {
				text = "."
			}

			if err := r.enqueue(ctx, TextItem(text, true)); err != nil {
				return err
			}
		}
	}
}

func (r *Relay) emitText(fragment string) {
	if r.cfg.TextSink != nil {
		r.cfg.TextSink(fragment)
		return
	}
	r.logger.Info("model text", "fragment", fragment)
}
