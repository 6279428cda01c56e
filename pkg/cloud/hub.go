// Package cloud is the fleet relay: scouts dial out over WebSocket and
// publish status, transcripts, and preview frames; browser viewers
// subscribe and see everything the scouts send.
package cloud

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-scout/pkg/protocol"
)

// ScoutConnection represents a connected scout.
type ScoutConnection struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time
	LastSeen  time.Time

	mu sync.Mutex
}

// Send writes a message to the scout. Safe for concurrent use.
func (s *ScoutConnection) Send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Conn.WriteMessage(websocket.TextMessage, data)
}

// viewerConnection is a browser viewer. Writes are serialized per viewer.
type viewerConnection struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (v *viewerConnection) send(data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub manages scout and viewer WebSocket connections.
type Hub struct {
	mu      sync.RWMutex
	scouts  map[string]*ScoutConnection
	viewers map[*viewerConnection]bool
	logger  *slog.Logger

	// Callbacks
	onStatus     func(scoutID string, status *protocol.StatusData)
	onTranscript func(scoutID string, transcript *protocol.TranscriptData)
	onFrame      func(scoutID string, frame *protocol.FrameData)

	// Stats
	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	framesReceived   atomic.Uint64
}

// NewHub creates a scout hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		scouts:  make(map[string]*ScoutConnection),
		viewers: make(map[*viewerConnection]bool),
		logger:  logger.With("component", "cloud"),
	}
}

// OnStatus sets the callback for incoming scout status updates.
func (h *Hub) OnStatus(callback func(scoutID string, status *protocol.StatusData)) {
	h.mu.Lock()
	h.onStatus = callback
	h.mu.Unlock()
}

// OnTranscript sets the callback for incoming transcript lines.
func (h *Hub) OnTranscript(callback func(scoutID string, transcript *protocol.TranscriptData)) {
	h.mu.Lock()
	h.onTranscript = callback
	h.mu.Unlock()
}

// OnFrame sets the callback for incoming preview frames.
func (h *Hub) OnFrame(callback func(scoutID string, frame *protocol.FrameData)) {
	h.mu.Lock()
	h.onFrame = callback
	h.mu.Unlock()
}

// RegisterRoutes registers WebSocket routes on a Fiber app.
func (h *Hub) RegisterRoutes(app *fiber.App) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// Scout uplink
	app.Get("/ws/scout", websocket.New(h.handleScout))
	app.Get("/ws/scout/:id", websocket.New(h.handleScout))

	// Browser viewers
	app.Get("/ws/view", websocket.New(h.handleViewer))
}

// handleScout handles a scout WebSocket connection.
func (h *Hub) handleScout(c *websocket.Conn) {
	// Scout ID from path, or generate one
	scoutID := c.Params("id")
	if scoutID == "" {
		scoutID = generateScoutID()
	}

	scout := &ScoutConnection{
		ID:        scoutID,
		Conn:      c,
		Connected: time.Now(),
		LastSeen:  time.Now(),
	}

	h.mu.Lock()
	h.scouts[scoutID] = scout
	count := len(h.scouts)
	h.mu.Unlock()

	h.logger.Info("scout connected", "scout", scoutID, "total", count)

	defer func() {
		h.mu.Lock()
		delete(h.scouts, scoutID)
		count := len(h.scouts)
		h.mu.Unlock()

		h.logger.Info("scout disconnected", "scout", scoutID, "total", count)
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}

		scout.mu.Lock()
		scout.LastSeen = time.Now()
		scout.mu.Unlock()

		h.messagesReceived.Add(1)
		h.handleMessage(scoutID, data)
	}
}

// handleViewer handles a browser viewer connection. Viewers only receive;
// the read loop exists to detect disconnection.
func (h *Hub) handleViewer(c *websocket.Conn) {
	viewer := &viewerConnection{conn: c}

	h.mu.Lock()
	h.viewers[viewer] = true
	count := len(h.viewers)
	h.mu.Unlock()

	h.logger.Info("viewer connected", "total", count)

	defer func() {
		h.mu.Lock()
		delete(h.viewers, viewer)
		count := len(h.viewers)
		h.mu.Unlock()

		h.logger.Info("viewer disconnected", "total", count)
	}()

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}

// handleMessage processes an incoming message from a scout.
func (h *Hub) handleMessage(scoutID string, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		h.logger.Warn("bad message", "scout", scoutID, "error", err)
		return
	}

	h.mu.RLock()
	statusCb := h.onStatus
	transcriptCb := h.onTranscript
	frameCb := h.onFrame
	h.mu.RUnlock()

	switch msg.Type {
	case protocol.TypeStatus:
		h.relayToViewers(data)
		if statusCb != nil {
			if status, err := msg.GetStatusData(); err == nil {
				statusCb(scoutID, status)
			}
		}

	case protocol.TypeTranscript:
		h.relayToViewers(data)
		if transcriptCb != nil {
			if transcript, err := msg.GetTranscriptData(); err == nil {
				transcriptCb(scoutID, transcript)
			}
		}

	case protocol.TypeFrame:
		h.framesReceived.Add(1)
		h.relayToViewers(data)
		if frameCb != nil {
			if frame, err := msg.GetFrameData(); err == nil {
				frameCb(scoutID, frame)
			}
		}

	case protocol.TypePing:
		ping, err := msg.GetPingData()
		if err != nil {
			return
		}
		h.SendPong(scoutID, ping.ID, msg.Timestamp)
	}
}

// relayToViewers forwards a raw scout message to every connected viewer.
func (h *Hub) relayToViewers(data []byte) {
	h.mu.RLock()
	viewers := make([]*viewerConnection, 0, len(h.viewers))
	for v := range h.viewers {
		viewers = append(viewers, v)
	}
	h.mu.RUnlock()

	for _, v := range viewers {
		if err := v.send(data); err != nil {
			h.logger.Warn("viewer send failed", "error", err)
		}
	}
}

// SendPong answers a scout's ping.
func (h *Hub) SendPong(scoutID, pingID string, pingTS int64) error {
	msg, err := protocol.NewPongMessage(pingID, pingTS, time.Now().UnixMilli())
	if err != nil {
		return err
	}
	return h.sendToScout(scoutID, msg)
}

// sendToScout sends a message to a specific scout.
func (h *Hub) sendToScout(scoutID string, msg *protocol.Message) error {
	h.mu.RLock()
	scout, ok := h.scouts[scoutID]
	h.mu.RUnlock()

	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "scout not connected")
	}

	h.messagesSent.Add(1)
	return scout.Send(msg)
}

// Broadcast sends a message to all connected scouts.
func (h *Hub) Broadcast(msg *protocol.Message) {
	h.mu.RLock()
	scouts := make([]*ScoutConnection, 0, len(h.scouts))
	for _, s := range h.scouts {
		scouts = append(scouts, s)
	}
	h.mu.RUnlock()

	for _, scout := range scouts {
		h.messagesSent.Add(1)
		if err := scout.Send(msg); err != nil {
			h.logger.Warn("broadcast failed", "scout", scout.ID, "error", err)
		}
	}
}

// GetScout returns a scout connection by ID.
func (h *Hub) GetScout(scoutID string) *ScoutConnection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.scouts[scoutID]
}

// ScoutCount returns the number of connected scouts.
func (h *Hub) ScoutCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.scouts)
}

// ViewerCount returns the number of connected viewers.
func (h *Hub) ViewerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}

// Stats contains hub statistics.
type Stats struct {
	ScoutCount       int    `json:"scout_count"`
	ViewerCount      int    `json:"viewer_count"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	FramesReceived   uint64 `json:"frames_received"`
}

// GetStats returns hub statistics.
func (h *Hub) GetStats() Stats {
	return Stats{
		ScoutCount:       h.ScoutCount(),
		ViewerCount:      h.ViewerCount(),
		MessagesReceived: h.messagesReceived.Load(),
		MessagesSent:     h.messagesSent.Load(),
		FramesReceived:   h.framesReceived.Load(),
	}
}

// ScoutInfo contains info about a connected scout.
type ScoutInfo struct {
	ID        string    `json:"id"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
}

// GetScoutInfos returns info about all connected scouts.
func (h *Hub) GetScoutInfos() []ScoutInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	infos := make([]ScoutInfo, 0, len(h.scouts))
	for _, s := range h.scouts {
		s.mu.Lock()
		infos = append(infos, ScoutInfo{
			ID:        s.ID,
			Connected: s.Connected,
			LastSeen:  s.LastSeen,
		})
		s.mu.Unlock()
	}
	return infos
}

// RegisterAPIRoutes registers fleet management routes.
func (h *Hub) RegisterAPIRoutes(api fiber.Router) {
	scouts := api.Group("/scouts")

	// List connected scouts
	scouts.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"scouts": h.GetScoutInfos(),
			"count":  h.ScoutCount(),
		})
	})

	// Hub stats
	scouts.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(h.GetStats())
	})
}

// generateScoutID generates a unique scout ID.
func generateScoutID() string {
	return "scout-" + uuid.NewString()[:8]
}
