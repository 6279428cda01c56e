// scout: live multimodal session on a Raspberry Pi.
// Streams camera frames and microphone audio to the Gemini Live API and
// plays or prints the replies. Type a line to send text, "q" to quit.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-scout/internal/log"
	"github.com/teslashibe/go-scout/pkg/app"
)

func main() {
	cfg := parseFlags()

	scout, err := app.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	if err := scout.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Initialization failed: %v\n", err)
		os.Exit(1)
	}
	defer scout.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := scout.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Runtime error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags parses command line flags and returns configuration.
// Precedence: flags > environment > ~/.scout/config.yaml > defaults.
func parseFlags() app.Config {
	cfg := app.DefaultConfig()
	if err := cfg.LoadUserConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: config file: %v\n", err)
	}

	mode := flag.String("mode", cfg.VideoMode, "Video input: camera, screen, none")
	modality := flag.String("modality", cfg.Modality, "Reply modality: auto, audio, text")
	model := flag.String("model", cfg.Model, "Live API model")
	device := flag.Int("device", cfg.CameraDevice, "Camera device index")
	web := flag.Bool("web", cfg.WebEnabled, "Serve the local dashboard")
	webPort := flag.String("web-port", cfg.WebPort, "Dashboard HTTP port")
	watchPort := flag.String("watch", cfg.WatchPort, "Pebble serial port (empty disables)")
	cloudURL := flag.String("cloud", cfg.CloudURL, "Fleet relay WebSocket URL (empty disables)")
	journalPath := flag.String("journal-path", cfg.JournalPath, "Journal file (default ~/.scout/journal.json)")
	debug := flag.Bool("debug", cfg.Debug, "Enable verbose debug logging")
	flag.Parse()

	cfg.VideoMode = *mode
	cfg.Modality = *modality
	cfg.Model = *model
	cfg.CameraDevice = *device
	cfg.WebEnabled = *web
	cfg.WebPort = *webPort
	cfg.WatchPort = *watchPort
	cfg.CloudURL = *cloudURL
	cfg.JournalPath = *journalPath
	cfg.Debug = *debug

	if cfg.Debug {
		log.Init("debug")
	} else {
		log.InitFromEnv()
	}

	return cfg
}
