package web

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-scout/pkg/hub"
	"github.com/teslashibe/go-scout/pkg/journal"
)

// handleStatus returns the current scout state.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	s.stateMu.RLock()
	state := s.state
	s.stateMu.RUnlock()
	return c.JSON(state)
}

// handleGetConversation returns the conversation history.
func (s *Server) handleGetConversation(c *fiber.Ctx) error {
	s.conversationMu.RLock()
	entries := make([]ConversationEntry, len(s.conversation))
	copy(entries, s.conversation)
	s.conversationMu.RUnlock()
	return c.JSON(entries)
}

// handleGetSnapshots returns the snapshot history.
func (s *Server) handleGetSnapshots(c *fiber.Ctx) error {
	return c.JSON(s.Snapshots())
}

// handleJournalAuth returns the Google consent URL for Docs export.
func (s *Server) handleJournalAuth(c *fiber.Ctx) error {
	if s.exporter == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "docs export not configured")
	}
	return c.JSON(fiber.Map{
		"auth_url":      s.exporter.AuthURL(),
		"authenticated": s.exporter.IsAuthenticated(),
	})
}

// handleJournalCallback receives the OAuth redirect and stores the token.
func (s *Server) handleJournalCallback(c *fiber.Ctx) error {
	if s.exporter == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "docs export not configured")
	}
	code := c.Query("code")
	if code == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing code parameter")
	}
	if err := s.exporter.HandleCallback(c.Context(), code); err != nil {
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}
	return c.SendString("Journal export authorized. You can close this tab.")
}

// handleJournalExport writes the journal into a new Google Doc.
func (s *Server) handleJournalExport(c *fiber.Ctx) error {
	if s.exporter == nil || s.journal == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "docs export not configured")
	}
	if !s.exporter.IsAuthenticated() {
		return fiber.NewError(fiber.StatusUnauthorized, "not authenticated, visit /api/journal/auth first")
	}

	entries, err := s.journal.List()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	title := "Scout Journal " + time.Now().Format("2006-01-02")
	docID, err := s.exporter.Export(c.Context(), title, entries)
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}
	return c.JSON(fiber.Map{
		"doc_id":  docID,
		"doc_url": journal.DocURL(docID),
	})
}

// handleStatusWS streams state updates. The current state is broadcast
// right after registration so new viewers don't wait for the next change.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	s.stateMu.RLock()
	state := s.state
	s.stateMu.RUnlock()

	client := hub.NewClient(s.statusHub, c)
	s.statusHub.BroadcastJSON(state)
	client.Run()
}

// handleConversationWS streams new conversation entries.
func (s *Server) handleConversationWS(c *websocket.Conn) {
	hub.NewClient(s.conversationHub, c).Run()
}

// handleCameraWS streams binary JPEG preview frames.
func (s *Server) handleCameraWS(c *websocket.Conn) {
	hub.NewClient(s.cameraHub, c).Run()
}
