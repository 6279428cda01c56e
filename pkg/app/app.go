package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-scout/pkg/audioio"
	"github.com/teslashibe/go-scout/pkg/camera"
	"github.com/teslashibe/go-scout/pkg/journal"
	"github.com/teslashibe/go-scout/pkg/live"
	"github.com/teslashibe/go-scout/pkg/protocol"
	"github.com/teslashibe/go-scout/pkg/relay"
	"github.com/teslashibe/go-scout/pkg/watch"
	"github.com/teslashibe/go-scout/pkg/web"
)

// ErrSessionActive is returned by StartSession when a session is running.
var ErrSessionActive = errors.New("app: session already active")

// ErrNoSession is returned by StopSession when no session is running.
var ErrNoSession = errors.New("app: no active session")

// statusPeriod is how often the dashboard and uplink get a status push.
const statusPeriod = 5 * time.Second

// snapshotSeedLimit caps how much journal history is replayed into the
// dashboard's snapshot feed at startup.
const snapshotSeedLimit = 20

// App is the scout application orchestrator. It owns the one-active-session
// rule: at most one live relay runs at a time, toggled from the terminal,
// the watch's middle button, or the dashboard.
type App struct {
	cfg    Config
	logger *slog.Logger

	// Optional components, nil when disabled.
	webServer *web.Server
	uplink    *Uplink

	// Watch link, guarded by watchMu: the redial loop swaps the transport
	// and service while Shutdown and button handlers read them.
	watchMu        sync.Mutex
	watchSvc       *watch.Service
	watchTransport watch.Transport
	watchConnected bool

	frameSeq atomic.Uint64

	// Session state
	sessionMu     sync.Mutex
	sessionCancel context.CancelFunc
	sessionDone   chan struct{}
	sessionMode   string
	sessionModal  live.Modality

	started time.Time
}

// New creates an app. Environment overrides are applied and the config
// validated before any device is touched.
func New(cfg Config) (*App, error) {
	cfg.LoadEnvConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	return &App{
		cfg:    cfg,
		logger: logger.With("component", "app"),
	}, nil
}

// Logger returns the app's root logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Init sets up the optional components: dashboard, uplink, watch link.
// Device handles for the session itself are opened per session.
func (a *App) Init() error {
	if a.cfg.WebEnabled {
		a.webServer = web.NewServer(a.cfg.WebPort, a.logger)
		a.initJournal()
	}

	if a.cfg.CloudURL != "" {
		a.uplink = NewUplink(a.cfg.CloudURL, a.logger)
	}

	if a.cfg.WatchPort != "" {
		t, err := watch.OpenSerial(a.cfg.WatchPort)
		if err != nil {
			// The watch is an accessory; the scout runs without it.
			a.logger.Warn("watch unavailable", "port", a.cfg.WatchPort, "error", err)
		} else {
			a.setWatchLink(t, watch.New(t, watch.Config{
				OnButton: a.handleWatchButton,
				Logger:   a.logger,
			}))
		}
	}

	return nil
}

// journalPath resolves the journal file location.
func (a *App) journalPath() string {
	if a.cfg.JournalPath != "" {
		return a.cfg.JournalPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".scout", "journal.json")
}

// initJournal replays recent journal entries into the dashboard's snapshot
// feed and, when Google credentials are configured, wires Docs export into
// the dashboard API.
func (a *App) initJournal() {
	path := a.journalPath()
	if path == "" {
		return
	}

	clientID := os.Getenv("GOOGLE_CLIENT_ID")
	clientSecret := os.Getenv("GOOGLE_CLIENT_SECRET")

	if _, err := os.Stat(path); err != nil && clientID == "" {
		// No journal yet and no export to set up.
		return
	}

	store, err := journal.NewJSONStore(path)
	if err != nil {
		a.logger.Warn("journal unavailable", "path", path, "error", err)
		return
	}

	entries, err := store.List()
	if err == nil && len(entries) > 0 {
		if len(entries) > snapshotSeedLimit {
			entries = entries[:snapshotSeedLimit]
		}
		seed := make([]web.SnapshotEntry, 0, len(entries))
		// List is newest first; replay oldest first so the feed reads
		// chronologically.
		for i := len(entries) - 1; i >= 0; i-- {
			seed = append(seed, web.SnapshotEntry{
				Time:     entries[i].Time.Format("15:04:05"),
				Prompt:   entries[i].Prompt,
				Response: entries[i].Response,
			})
		}
		a.webServer.SeedSnapshots(seed)
	}

	if clientID != "" && clientSecret != "" {
		exp, err := journal.NewDocsExporter(journal.DocsConfig{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  "http://localhost:" + a.cfg.WebPort + "/api/journal/callback",
		})
		if err != nil {
			a.logger.Warn("docs export unavailable", "error", err)
			return
		}
		a.webServer.EnableJournalExport(exp, store)
		a.logger.Info("docs export enabled", "journal", path)
	}
}

// Run starts the background components and blocks until the context is
// cancelled. The first session is started immediately.
func (a *App) Run(ctx context.Context) error {
	a.started = time.Now()

	if a.webServer != nil {
		a.webServer.StartAsync()
	}
	if a.uplink != nil {
		go a.uplink.Run(ctx)
	}
	if _, svc := a.watchLink(); svc != nil {
		go a.runWatch(ctx)
	}

	if err := a.StartSession(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(statusPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.publishStatus()
		}
	}
}

// Shutdown stops the session and the background components.
func (a *App) Shutdown() {
	if err := a.StopSession(); err != nil && !errors.Is(err, ErrNoSession) {
		a.logger.Warn("session stop failed", "error", err)
	}
	if a.webServer != nil {
		if err := a.webServer.Shutdown(); err != nil {
			a.logger.Warn("dashboard shutdown failed", "error", err)
		}
	}
	if t, _ := a.watchLink(); t != nil {
		t.Close()
	}
}

// SessionActive reports whether a live session is running.
func (a *App) SessionActive() bool {
	a.sessionMu.Lock()
	defer a.sessionMu.Unlock()
	return a.sessionCancel != nil
}

// StartSession opens the session's devices and starts the relay. Returns
// ErrSessionActive when a session is already running.
func (a *App) StartSession(ctx context.Context) error {
	a.sessionMu.Lock()
	defer a.sessionMu.Unlock()

	if a.sessionCancel != nil {
		return ErrSessionActive
	}

	modality := a.resolveModality(ctx)
	devices, err := a.openDevices(modality)
	if err != nil {
		return fmt.Errorf("app: open devices: %w", err)
	}

	dial := func(ctx context.Context) (live.Conn, error) {
		return live.Connect(ctx, live.Config{
			APIKey:   a.cfg.APIKey,
			Model:    a.cfg.Model,
			Modality: modality,
			Logger:   a.logger,
		})
	}

	r := relay.New(dial, devices, relay.Config{
		Input:     os.Stdin,
		TextSink:  a.handleReplyText,
		FrameSink: a.handleFrame,
		Logger:    a.logger,
	})

	sctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	a.sessionCancel = cancel
	a.sessionDone = done
	a.sessionMode = a.cfg.VideoMode
	a.sessionModal = modality

	go func() {
		defer close(done)
		if err := r.Run(sctx); err != nil {
			a.logger.Error("session ended", "error", err)
		} else {
			a.logger.Info("session ended")
		}

		a.sessionMu.Lock()
		a.sessionCancel = nil
		a.sessionDone = nil
		a.sessionMu.Unlock()

		a.publishStatus()
	}()

	a.logger.Info("session started", "mode", a.cfg.VideoMode, "modality", modality)
	go a.publishStatus()
	return nil
}

// StopSession cancels the running session and waits for it to drain.
func (a *App) StopSession() error {
	a.sessionMu.Lock()
	cancel := a.sessionCancel
	done := a.sessionDone
	a.sessionMu.Unlock()

	if cancel == nil {
		return ErrNoSession
	}

	cancel()
	<-done
	return nil
}

// ToggleSession starts a session if none is running, stops it otherwise.
func (a *App) ToggleSession(ctx context.Context) error {
	if a.SessionActive() {
		return a.StopSession()
	}
	return a.StartSession(ctx)
}

// resolveModality maps the configured modality to a live one, probing for
// a Bluetooth speaker in auto mode.
func (a *App) resolveModality(ctx context.Context) live.Modality {
	switch a.cfg.Modality {
	case ModalityAudio:
		return live.ModalityAudio
	case ModalityText:
		return live.ModalityText
	}

	probe, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if audioio.DetectBluetoothSink(probe) {
		a.logger.Info("bluetooth speaker detected, using audio replies")
		return live.ModalityAudio
	}
	a.logger.Info("no bluetooth speaker, using text replies")
	return live.ModalityText
}

// openDevices builds the relay's device set from the config.
func (a *App) openDevices(modality live.Modality) (relay.Devices, error) {
	var dev relay.Devices

	switch camera.Mode(a.cfg.VideoMode) {
	case camera.ModeNone:
		// no video
	default:
		camCfg := camera.LiveConfig()
		camCfg.Mode = camera.Mode(a.cfg.VideoMode)
		camCfg.Device = a.cfg.CameraDevice
		src, err := camera.NewSource(camCfg, a.logger)
		if err != nil {
			return dev, err
		}
		dev.Video = src
	}

	mic, err := audioio.NewSource(audioio.CaptureConfig(), a.logger)
	if err != nil {
		return dev, err
	}
	dev.Mic = mic

	if modality == live.ModalityAudio {
		speaker, err := audioio.NewSink(audioio.PlaybackConfig(), a.logger)
		if err != nil {
			return dev, err
		}
		dev.Speaker = speaker
	}

	return dev, nil
}

// handleReplyText fans reply fragments out to the dashboard and uplink.
func (a *App) handleReplyText(fragment string) {
	if a.webServer != nil {
		a.webServer.AddConversation("model", fragment)
	}
	if a.uplink != nil {
		a.uplink.SendTranscript("model", fragment)
	}
}

// handleFrame fans captured preview frames out to the dashboard and
// uplink. Called from the relay's capture task.
func (a *App) handleFrame(jpeg []byte, width, height int) {
	if a.webServer != nil {
		a.webServer.SendCameraFrame(jpeg)
	}
	if a.uplink != nil {
		a.uplink.SendFrame(width, height, jpeg, a.frameSeq.Add(1))
	}
}

// handleWatchButton maps watch buttons: middle toggles the session.
func (a *App) handleWatchButton(b watch.Button) {
	a.logger.Info("watch button", "button", b)

	if b != watch.ButtonSelect {
		return
	}
	if err := a.ToggleSession(context.Background()); err != nil {
		a.logger.Warn("session toggle failed", "error", err)
		return
	}

	if _, svc := a.watchLink(); svc != nil {
		title := "Session stopped"
		if a.SessionActive() {
			title = "Session started"
		}
		if err := svc.SendNotification(title, ""); err != nil {
			a.logger.Warn("watch notify failed", "error", err)
		}
	}
}

// runWatch keeps the watch service alive, redialing after disconnects.
func (a *App) runWatch(ctx context.Context) {
	for {
		_, svc := a.watchLink()
		if svc == nil {
			return
		}

		a.setWatchConnected(true)
		err := svc.Run(ctx)
		a.setWatchConnected(false)

		if ctx.Err() != nil {
			return
		}
		a.logger.Warn("watch link down", "error", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}

		t, err := watch.OpenSerial(a.cfg.WatchPort)
		if err != nil {
			continue
		}
		a.setWatchLink(t, watch.New(t, watch.Config{
			OnButton: a.handleWatchButton,
			Logger:   a.logger,
		}))
	}
}

// setWatchLink swaps the watch transport and service as a unit.
func (a *App) setWatchLink(t watch.Transport, svc *watch.Service) {
	a.watchMu.Lock()
	a.watchTransport = t
	a.watchSvc = svc
	a.watchMu.Unlock()
}

// watchLink returns the current watch transport and service.
func (a *App) watchLink() (watch.Transport, *watch.Service) {
	a.watchMu.Lock()
	defer a.watchMu.Unlock()
	return a.watchTransport, a.watchSvc
}

func (a *App) setWatchConnected(ok bool) {
	a.watchMu.Lock()
	a.watchConnected = ok
	a.watchMu.Unlock()
	a.publishStatus()
}

// WatchConnected reports whether the watch link is up.
func (a *App) WatchConnected() bool {
	a.watchMu.Lock()
	defer a.watchMu.Unlock()
	return a.watchConnected
}

// publishStatus pushes the current state to the dashboard and the uplink.
func (a *App) publishStatus() {
	a.sessionMu.Lock()
	active := a.sessionCancel != nil
	mode := a.sessionMode
	modality := a.sessionModal
	a.sessionMu.Unlock()

	if !active {
		mode = a.cfg.VideoMode
	}

	status := protocol.StatusData{
		SessionActive:  active,
		Mode:           mode,
		Modality:       string(modality),
		WatchConnected: a.WatchConnected(),
		UptimeSeconds:  int64(time.Since(a.started).Seconds()),
	}

	if a.webServer != nil {
		a.webServer.UpdateState(func(s *web.State) {
			s.SessionActive = status.SessionActive
			s.Mode = status.Mode
			s.Modality = status.Modality
			s.WatchConnected = status.WatchConnected
			if a.uplink != nil {
				s.CloudConnected = a.uplink.Connected()
			}
		})
	}
	if a.uplink != nil {
		a.uplink.SendStatus(status)
	}
}
