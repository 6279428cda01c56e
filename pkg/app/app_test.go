package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/teslashibe/go-scout/pkg/journal"
	"github.com/teslashibe/go-scout/pkg/watch"
	"github.com/teslashibe/go-scout/pkg/web"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	t.Setenv("SCOUT_WATCH_PORT", "")
	t.Setenv("GOOGLE_CLIENT_ID", "")
	t.Setenv("GOOGLE_CLIENT_SECRET", "")

	cfg := DefaultConfig()
	cfg.APIKey = "test-key"
	cfg.WatchPort = ""
	return cfg
}

func TestApp_InitSeedsDashboardFromJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.json")

	store, err := journal.NewJSONStore(path)
	if err != nil {
		t.Fatalf("NewJSONStore failed: %v", err)
	}
	older := &journal.Entry{Time: time.Now().Add(-2 * time.Minute), Prompt: "older", Response: "a"}
	newer := &journal.Entry{Time: time.Now(), Prompt: "newer", Response: "b"}
	if err := store.Append(older); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := store.Append(newer); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	cfg := testConfig(t)
	cfg.WebEnabled = true
	cfg.JournalPath = path

	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := a.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	snaps := a.webServer.Snapshots()
	if len(snaps) != 2 {
		t.Fatalf("len(snapshots) = %d, want 2", len(snaps))
	}
	// Chronological: oldest entry first.
	if snaps[0].Prompt != "older" || snaps[1].Prompt != "newer" {
		t.Errorf("unexpected order: %+v", snaps)
	}
	if snaps[1].Response != "b" {
		t.Errorf("unexpected response: %q", snaps[1].Response)
	}
}

func TestApp_InitWithoutJournalFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.WebEnabled = true
	cfg.JournalPath = filepath.Join(t.TempDir(), "missing.json")

	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := a.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	if got := len(a.webServer.Snapshots()); got != 0 {
		t.Errorf("len(snapshots) = %d, want 0", got)
	}
}

func TestApp_HandleFrameCountsFrames(t *testing.T) {
	a, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// No dashboard or uplink: the tap is a no-op, not a panic.
	a.handleFrame([]byte{0xff, 0xd8}, 64, 48)
	if a.frameSeq.Load() != 0 {
		t.Errorf("frameSeq = %d without an uplink", a.frameSeq.Load())
	}

	a.webServer = web.NewServer("0", a.logger)
	a.uplink = NewUplink("ws://localhost:1/ws/scout", a.logger)

	a.handleFrame([]byte{0xff, 0xd8}, 64, 48)
	a.handleFrame([]byte{0xff, 0xd9}, 64, 48)
	if a.frameSeq.Load() != 2 {
		t.Errorf("frameSeq = %d, want 2", a.frameSeq.Load())
	}
}

func TestApp_WatchLinkSwapDuringShutdown(t *testing.T) {
	a, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			tr := watch.NewMockTransport()
			a.setWatchLink(tr, watch.New(tr, watch.Config{Logger: a.logger}))
		}
	}()

	for i := 0; i < 200; i++ {
		a.Shutdown()
	}
	<-done

	if tr, svc := a.watchLink(); tr == nil || svc == nil {
		t.Error("watch link lost after concurrent swaps")
	}
}
