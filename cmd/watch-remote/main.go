// watch-remote: drive the scout from a Pebble smartwatch.
// Up captures and describes a snapshot, down reads text in view, the
// middle button toggles a live session. Dictated voice notes become
// questions about whatever the camera sees; answers come back as watch
// notifications.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/teslashibe/go-scout/internal/config"
	"github.com/teslashibe/go-scout/internal/log"
	"github.com/teslashibe/go-scout/pkg/audioio"
	"github.com/teslashibe/go-scout/pkg/camera"
	"github.com/teslashibe/go-scout/pkg/live"
	"github.com/teslashibe/go-scout/pkg/relay"
	"github.com/teslashibe/go-scout/pkg/transcribe"
	"github.com/teslashibe/go-scout/pkg/vision"
	"github.com/teslashibe/go-scout/pkg/watch"
)

// notifyLimit keeps notifications readable on the watch's small screen.
const notifyLimit = 200

type remote struct {
	camCfg      camera.Config
	analyzer    *vision.Analyzer
	transcriber *transcribe.Transcriber
	svc         *watch.Service
	apiKey      string
	model       string

	sessionMu     sync.Mutex
	sessionCancel context.CancelFunc
	sessionDone   chan struct{}
}

func main() {
	port := flag.String("port", watch.DefaultSerialPort, "Pebble serial port")
	device := flag.Int("device", 0, "Camera device index")
	model := flag.String("model", live.DefaultModel, "Live API model for sessions")
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	flag.Parse()

	if *debug {
		log.Init("debug")
	} else {
		log.InitFromEnv()
	}
	apiKey := config.APIKeyRequired()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	analyzer, err := vision.NewAnalyzer(vision.Config{APIKey: apiKey, Logger: log.L()})
	if err != nil {
		fatal(err)
	}

	transcriber, err := transcribe.New(ctx, transcribe.Config{APIKey: apiKey, Logger: log.L()})
	if err != nil {
		fatal(err)
	}

	camCfg := camera.StillConfig()
	camCfg.Device = *device

	t, err := watch.OpenSerial(*port)
	if err != nil {
		fatal(fmt.Errorf("watch: %w", err))
	}
	defer t.Close()

	r := &remote{
		camCfg:      camCfg,
		analyzer:    analyzer,
		transcriber: transcriber,
		apiKey:      apiKey,
		model:       *model,
	}
	r.svc = watch.New(t, watch.Config{
		OnButton:    r.handleButton,
		OnDictation: r.handleDictation,
		Logger:      log.L(),
	})

	fmt.Println("Watch remote ready. Up: describe, Down: read text, Middle: live session.")
	if err := r.svc.SendNotification("go-scout ready", "Up=look Down=read Mid=talk"); err != nil {
		log.Warn("greeting failed", "error", err)
	}

	err = r.svc.Run(ctx)
	r.stopSession()
	if err != nil && ctx.Err() == nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func (r *remote) handleButton(b watch.Button) {
	switch b {
	case watch.ButtonUp:
		go r.snapshot("What is in this image? Answer in one short sentence.")
	case watch.ButtonDown:
		go r.snapshot("Read any text visible in this image. If there is none, say so briefly.")
	case watch.ButtonSelect:
		go r.toggleSession()
	}
}

// snapshot captures one still, asks the model, and notifies the watch.
// The camera is opened per shot so live sessions can own it in between.
func (r *remote) snapshot(prompt string) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	frame, err := camera.Still(ctx, r.camCfg, log.Component("camera"))
	if err != nil {
		r.notify("Capture failed", err.Error())
		return
	}

	jpeg, err := camera.Thumbnail(frame.Data, camera.ThumbnailMaxDim)
	if err != nil {
		jpeg = frame.Data
	}

	answer, err := r.analyzer.Analyze(ctx, jpeg, prompt)
	if err != nil {
		r.notify("Analysis failed", err.Error())
		return
	}

	fmt.Println(answer)
	r.notify("Scout", answer)
}

// handleDictation treats a voice note as a question about the current view.
func (r *remote) handleDictation(d watch.Dictation) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	question, err := r.transcriber.Transcribe(ctx, d.WAV())
	if err != nil {
		r.notify("Transcription failed", err.Error())
		return
	}
	fmt.Printf("Heard: %s\n", question)

	if err := r.svc.SendDictationResult(d.SessionID, truncate(question, notifyLimit)); err != nil {
		log.Warn("dictation result failed", "error", err)
	}

	r.snapshot(question)
}

// toggleSession starts or stops a hands-free live session.
func (r *remote) toggleSession() {
	r.sessionMu.Lock()
	if r.sessionCancel != nil {
		cancel, done := r.sessionCancel, r.sessionDone
		r.sessionCancel, r.sessionDone = nil, nil
		r.sessionMu.Unlock()
		cancel()
		<-done
		r.notify("Session stopped", "")
		return
	}

	mic, err := audioio.NewSource(audioio.CaptureConfig(), log.Component("mic"))
	if err != nil {
		r.sessionMu.Unlock()
		r.notify("Mic failed", err.Error())
		return
	}
	speaker, err := audioio.NewSink(audioio.PlaybackConfig(), log.Component("speaker"))
	if err != nil {
		mic.Close()
		r.sessionMu.Unlock()
		r.notify("Speaker failed", err.Error())
		return
	}

	liveCfg := camera.LiveConfig()
	liveCfg.Device = r.camCfg.Device
	video, err := camera.NewSource(liveCfg, log.Component("camera"))
	if err != nil {
		// Audio-only session is still useful without the camera.
		log.Warn("camera unavailable for session", "error", err)
		video = nil
	}

	dial := func(ctx context.Context) (live.Conn, error) {
		return live.Connect(ctx, live.Config{
			APIKey:   r.apiKey,
			Model:    r.model,
			Modality: live.ModalityAudio,
			Logger:   log.L(),
		})
	}

	rel := relay.New(dial, relay.Devices{Video: video, Mic: mic, Speaker: speaker}, relay.Config{
		Logger: log.L(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r.sessionCancel = cancel
	r.sessionDone = done
	r.sessionMu.Unlock()

	r.notify("Session started", "Speak freely")

	go func() {
		defer close(done)
		if err := rel.Run(ctx); err != nil {
			log.Error("session ended", "error", err)
		}
		r.sessionMu.Lock()
		if r.sessionDone == done {
			r.sessionCancel, r.sessionDone = nil, nil
		}
		r.sessionMu.Unlock()
	}()
}

func (r *remote) stopSession() {
	r.sessionMu.Lock()
	cancel, done := r.sessionCancel, r.sessionDone
	r.sessionCancel, r.sessionDone = nil, nil
	r.sessionMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (r *remote) notify(title, body string) {
	if err := r.svc.SendNotification(truncate(title, notifyLimit), truncate(body, notifyLimit)); err != nil {
		log.Warn("notify failed", "error", err)
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
