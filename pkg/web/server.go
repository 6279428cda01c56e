// Package web serves the local scout dashboard: REST endpoints for state
// and history, WebSocket streams for live status, conversation, and camera
// preview frames.
package web

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-scout/pkg/hub"
	"github.com/teslashibe/go-scout/pkg/journal"
)

// State is the scout state shown on the dashboard.
type State struct {
	SessionActive   bool   `json:"session_active"`
	Mode            string `json:"mode"`     // "camera", "screen", "none"
	Modality        string `json:"modality"` // "AUDIO", "TEXT"
	WatchConnected  bool   `json:"watch_connected"`
	CloudConnected  bool   `json:"cloud_connected"`
	LastUserMessage string `json:"last_user_message"`
	LastReply       string `json:"last_reply"`
}

// ConversationEntry is one line of the conversation history.
type ConversationEntry struct {
	Time    string `json:"time"`
	Role    string `json:"role"` // "user", "model"
	Message string `json:"message"`
}

// SnapshotEntry is one analyzed snapshot.
type SnapshotEntry struct {
	Time     string `json:"time"`
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
}

const (
	maxConversation = 100
	maxSnapshots    = 50
)

// Server is the dashboard server.
type Server struct {
	app    *fiber.App
	port   string
	logger *slog.Logger

	state   State
	stateMu sync.RWMutex

	conversation   []ConversationEntry
	conversationMu sync.RWMutex

	snapshots   []SnapshotEntry
	snapshotsMu sync.RWMutex

	statusHub       *hub.Hub
	conversationHub *hub.Hub
	cameraHub       *hub.Hub

	// Docs export, nil until EnableJournalExport.
	exporter *journal.DocsExporter
	journal  journal.Store
}

// NewServer creates a dashboard server on the given port.
func NewServer(port string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		port:            port,
		logger:          logger.With("component", "web"),
		conversation:    make([]ConversationEntry, 0, maxConversation),
		snapshots:       make([]SnapshotEntry, 0, maxSnapshots),
		statusHub:       hub.New("status", logger),
		conversationHub: hub.New("conversation", logger),
		cameraHub:       hub.New("camera", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Scout Dashboard",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// Static files
	app.Static("/", "./web")

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/conversation", s.handleGetConversation)
	api.Get("/snapshots", s.handleGetSnapshots)

	// Journal export; 503 until EnableJournalExport wires an exporter.
	api.Get("/journal/auth", s.handleJournalAuth)
	api.Get("/journal/callback", s.handleJournalCallback)
	api.Post("/journal/export", s.handleJournalExport)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/conversation", websocket.New(s.handleConversationWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))

	s.app = app
	return s
}

// Start runs the hubs and the HTTP listener. Blocks.
func (s *Server) Start() error {
	s.logger.Info("dashboard listening", "url", "http://localhost:"+s.port)

	go s.statusHub.Run()
	go s.conversationHub.Run()
	go s.cameraHub.Run()

	return s.app.Listen(":" + s.port)
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("dashboard failed", "error", err)
		}
	}()
}

// UpdateState mutates the state under lock and broadcasts the result.
func (s *Server) UpdateState(update func(*State)) {
	s.stateMu.Lock()
	update(&s.state)
	state := s.state
	s.stateMu.Unlock()

	s.statusHub.BroadcastJSON(state)
}

// AddConversation appends a conversation entry and broadcasts it.
func (s *Server) AddConversation(role, message string) {
	entry := ConversationEntry{
		Time:    time.Now().Format("15:04:05"),
		Role:    role,
		Message: message,
	}

	s.conversationMu.Lock()
	s.conversation = append(s.conversation, entry)
	if len(s.conversation) > maxConversation {
		s.conversation = s.conversation[1:]
	}
	s.conversationMu.Unlock()

	s.conversationHub.BroadcastJSON(entry)
}

// AddSnapshot records an analyzed snapshot.
func (s *Server) AddSnapshot(prompt, response string) {
	entry := SnapshotEntry{
		Time:     time.Now().Format("15:04:05"),
		Prompt:   prompt,
		Response: response,
	}

	s.snapshotsMu.Lock()
	s.snapshots = append(s.snapshots, entry)
	if len(s.snapshots) > maxSnapshots {
		s.snapshots = s.snapshots[1:]
	}
	s.snapshotsMu.Unlock()
}

// SeedSnapshots preloads snapshot history, oldest first. For replaying
// persisted journal entries into a fresh server.
func (s *Server) SeedSnapshots(entries []SnapshotEntry) {
	s.snapshotsMu.Lock()
	s.snapshots = append(s.snapshots, entries...)
	if n := len(s.snapshots) - maxSnapshots; n > 0 {
		s.snapshots = s.snapshots[n:]
	}
	s.snapshotsMu.Unlock()
}

// Snapshots returns a copy of the snapshot history.
func (s *Server) Snapshots() []SnapshotEntry {
	s.snapshotsMu.RLock()
	defer s.snapshotsMu.RUnlock()
	entries := make([]SnapshotEntry, len(s.snapshots))
	copy(entries, s.snapshots)
	return entries
}

// EnableJournalExport wires the Docs exporter and its backing store into
// the /api/journal routes. Call before Start.
func (s *Server) EnableJournalExport(exporter *journal.DocsExporter, store journal.Store) {
	s.exporter = exporter
	s.journal = store
}

// SendCameraFrame broadcasts a preview frame to camera viewers.
func (s *Server) SendCameraFrame(jpegData []byte) {
	s.cameraHub.BroadcastBinary(jpegData)
}

// Shutdown stops the server and the hubs.
func (s *Server) Shutdown() error {
	s.statusHub.Stop()
	s.conversationHub.Stop()
	s.cameraHub.Stop()
	return s.app.Shutdown()
}
