// scout-cloud: fleet relay for go-scout devices.
// Scouts dial in over WebSocket and publish status, transcripts, and
// preview frames; browsers connect as viewers and watch the fleet live.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/teslashibe/go-scout/internal/log"
	"github.com/teslashibe/go-scout/pkg/cloud"
	"github.com/teslashibe/go-scout/pkg/protocol"
)

var (
	version = "1.0.0"
	port    = flag.Int("port", 8080, "HTTP server port")
	debug   = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	// Override from environment
	if envPort := os.Getenv("PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", port)
	}
	if *debug {
		log.Init("debug")
	} else {
		log.InitFromEnv()
	}

	app := fiber.New(fiber.Config{
		AppName:               "scout-cloud",
		DisableStartupMessage: true,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))
	if *debug {
		app.Use(logger.New())
	}

	hub := cloud.NewHub(log.L())

	// WebSocket routes
	hub.RegisterRoutes(app)

	// API routes
	api := app.Group("/api")
	hub.RegisterAPIRoutes(api)

	// Health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"version": version,
			"scouts":  hub.ScoutCount(),
		})
	})

	// Metrics endpoint
	app.Get("/metrics", func(c *fiber.Ctx) error {
		stats := hub.GetStats()
		return c.SendString(fmt.Sprintf(`# HELP scout_cloud_scouts Connected scout count
# TYPE scout_cloud_scouts gauge
scout_cloud_scouts %d

# HELP scout_cloud_viewers Connected viewer count
# TYPE scout_cloud_viewers gauge
scout_cloud_viewers %d

# HELP scout_cloud_messages_received Total messages received
# TYPE scout_cloud_messages_received counter
scout_cloud_messages_received %d

# HELP scout_cloud_messages_sent Total messages sent
# TYPE scout_cloud_messages_sent counter
scout_cloud_messages_sent %d

# HELP scout_cloud_frames_received Total preview frames received
# TYPE scout_cloud_frames_received counter
scout_cloud_frames_received %d
`, stats.ScoutCount, stats.ViewerCount, stats.MessagesReceived, stats.MessagesSent, stats.FramesReceived))
	})

	hub.OnTranscript(func(scoutID string, transcript *protocol.TranscriptData) {
		log.Info("transcript", "scout", scoutID, "role", transcript.Role, "text", transcript.Text)
	})
	hub.OnFrame(func(scoutID string, frame *protocol.FrameData) {
		log.Debug("frame", "scout", scoutID, "width", frame.Width, "height", frame.Height)
	})

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", *port)
		log.Info("scout-cloud listening", "addr", addr, "version", version)
		log.Info("endpoints",
			"scouts", fmt.Sprintf("ws://localhost:%d/ws/scout", *port),
			"viewers", fmt.Sprintf("ws://localhost:%d/ws/view", *port),
			"health", fmt.Sprintf("http://localhost:%d/health", *port))

		if err := app.Listen(addr); err != nil {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Warn("shutdown error", "error", err)
	}
}
