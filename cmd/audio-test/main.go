// Audio Test - microphone to speaker loopback diagnostic.
// Captures from the default mic, plays the audio straight back, and dumps
// a 5-second recording to /tmp/audio_test.wav so levels and latency can be
// checked before running a live session.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/teslashibe/go-scout/internal/log"
	"github.com/teslashibe/go-scout/pkg/audioio"
)

var (
	chunksCaptured int64
	samplesRead    int64
	playbackErrors int64
	mutex          sync.Mutex
	pcmBuffer      []int16
	recording      bool
	lastRMS        float64
)

func main() {
	loopback := flag.Bool("loopback", true, "Play captured audio back through the speaker")
	wavPath := flag.String("wav", "/tmp/audio_test.wav", "WAV dump path")
	flag.Parse()

	log.InitFromEnv()

	fmt.Println("Audio Test - mic/speaker loopback")
	fmt.Println("=================================")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	capCfg := audioio.CaptureConfig()
	mic, err := audioio.NewSource(capCfg, log.Component("mic"))
	if err != nil {
		fmt.Printf("Failed to open mic: %v\n", err)
		os.Exit(1)
	}
	if err := mic.Start(ctx); err != nil {
		fmt.Printf("Failed to start mic: %v\n", err)
		os.Exit(1)
	}
	defer mic.Close()
	fmt.Printf("Mic: %s (%d Hz mono)\n", mic.Name(), capCfg.SampleRate)

	var speaker audioio.Sink
	if *loopback {
		// Loop back at the capture rate so pitch is preserved.
		speaker, err = audioio.NewSink(capCfg, log.Component("speaker"))
		if err != nil {
			fmt.Printf("Speaker unavailable, capture only: %v\n", err)
		} else if err := speaker.Start(ctx); err != nil {
			fmt.Printf("Speaker start failed, capture only: %v\n", err)
			speaker = nil
		} else {
			defer speaker.Close()
			fmt.Printf("Speaker: %s\n", speaker.Name())
		}
	}

	// Recording test: 3s warmup, then capture 5s to WAV.
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(3 * time.Second):
		}
		fmt.Println("\nStarting 5 second recording test...")

		mutex.Lock()
		pcmBuffer = nil
		recording = true
		mutex.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}

		mutex.Lock()
		recording = false
		samples := pcmBuffer
		mutex.Unlock()

		fmt.Printf("\nRecorded %d samples (%.2f seconds at %d Hz)\n",
			len(samples), float64(len(samples))/float64(capCfg.SampleRate), capCfg.SampleRate)

		if len(samples) > 0 {
			if err := audioio.WriteWAV(*wavPath, samples, capCfg.SampleRate, capCfg.Channels); err != nil {
				fmt.Printf("Failed to write WAV: %v\n", err)
			} else {
				info, _ := os.Stat(*wavPath)
				fmt.Printf("Saved to %s (%d bytes)\n", *wavPath, info.Size())
				fmt.Printf("   Play it with: aplay %s\n", *wavPath)
			}
		}
	}()

	// Stats ticker
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mutex.Lock()
				level := lastRMS
				mutex.Unlock()
				fmt.Printf("\rChunks: %d | Samples: %d | Level: %.4f | Playback errors: %d     ",
					chunksCaptured, samplesRead, level, playbackErrors)
			}
		}
	}()

	fmt.Println("\nCapturing... speak into the mic (Ctrl+C to exit)")

	for {
		chunk, err := mic.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			fmt.Printf("\nRead error: %v\n", err)
			break
		}

		chunksCaptured++
		samplesRead += int64(len(chunk.Samples))

		mutex.Lock()
		lastRMS = audioio.CalculateRMS(chunk.Samples)
		if recording {
			pcmBuffer = append(pcmBuffer, chunk.Samples...)
		}
		mutex.Unlock()

		if speaker != nil {
			if err := speaker.Write(ctx, chunk); err != nil {
				playbackErrors++
			}
		}
	}

	fmt.Printf("\n\nFinal stats:\n")
	fmt.Printf("   Chunks captured: %d\n", chunksCaptured)
	fmt.Printf("   Samples read: %d\n", samplesRead)
	fmt.Printf("   Playback errors: %d\n", playbackErrors)
}
