// snapshot: press-Enter camera capture and analysis loop.
// Each Enter grabs a still, sends it to Gemini, and prints the answer.
// Type a question before pressing Enter to ask about the next shot;
// prefix with "?" to run a grounded web search instead. "q" quits.
// --export pushes the accumulated journal to a Google Doc and exits.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/teslashibe/go-scout/internal/config"
	"github.com/teslashibe/go-scout/internal/log"
	"github.com/teslashibe/go-scout/pkg/camera"
	"github.com/teslashibe/go-scout/pkg/journal"
	"github.com/teslashibe/go-scout/pkg/vision"
)

func main() {
	mode := flag.String("mode", "camera", "Capture source: camera, screen")
	device := flag.Int("device", 0, "Camera device index")
	model := flag.String("model", vision.DefaultModel, "Gemini model")
	prompt := flag.String("prompt", vision.DefaultPrompt, "Default analysis prompt")
	useJournal := flag.Bool("journal", true, "Record snapshots in the journal")
	journalPath := flag.String("journal-path", "", "Journal file (default ~/.scout/journal.json)")
	export := flag.Bool("export", false, "Export the journal to a Google Doc and exit")
	search := flag.String("search", "", "Run one grounded web search and exit")
	flag.Parse()

	log.InitFromEnv()

	if *journalPath == "" {
		*journalPath = os.Getenv("SCOUT_JOURNAL_PATH")
	}

	if *export {
		if err := runExport(*journalPath); err != nil {
			fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	apiKey := config.APIKeyRequired()

	analyzer, err := vision.NewAnalyzer(vision.Config{
		APIKey: apiKey,
		Model:  *model,
		Logger: log.L(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *search != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		answer, err := analyzer.Search(ctx, *search)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(answer)
		return
	}

	var store journal.Store
	if *useJournal {
		store, err = openStore(*journalPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: journal disabled: %v\n", err)
			store = nil
		}
	}

	camCfg := camera.StillConfig()
	camCfg.Mode = camera.Mode(*mode)
	camCfg.Device = *device
	src, err := camera.NewSource(camCfg, log.Component("camera"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := src.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: camera: %v\n", err)
		os.Exit(1)
	}
	defer src.Close()

	fmt.Println("Snapshot analyzer ready.")
	fmt.Println("  Enter        capture and describe")
	fmt.Println("  <question>   capture and ask about the shot")
	fmt.Println("  ?<query>     web search, no capture")
	fmt.Println("  q            quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "q":
			return

		case strings.HasPrefix(line, "?"):
			query := strings.TrimSpace(strings.TrimPrefix(line, "?"))
			answer, err := analyzer.Search(ctx, query)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
				continue
			}
			fmt.Println(answer)

		default:
			question := *prompt
			if line != "" {
				question = line
			}
			answer, err := analyzeShot(ctx, src, analyzer, question)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Analysis failed: %v\n", err)
				continue
			}
			fmt.Println(answer)

			if store != nil {
				entry := &journal.Entry{
					Time:     time.Now(),
					Prompt:   question,
					Response: answer,
				}
				if err := store.Append(entry); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: journal write failed: %v\n", err)
				}
			}
		}
	}
}

// openStore opens the journal at path, or the default location when empty.
func openStore(path string) (*journal.JSONStore, error) {
	if path != "" {
		return journal.NewJSONStore(path)
	}
	return journal.NewDefaultStore()
}

// runExport pushes the journal into a new Google Doc, walking the OAuth
// consent flow in the terminal on first use. Requires GOOGLE_CLIENT_ID
// and GOOGLE_CLIENT_SECRET.
func runExport(path string) error {
	store, err := openStore(path)
	if err != nil {
		return err
	}

	exporter, err := journal.NewDocsExporter(journal.DocsConfig{
		ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
	})
	if err != nil {
		return err
	}

	ctx := context.Background()
	if !exporter.IsAuthenticated() {
		fmt.Println("Open this URL, grant access, then paste the \"code\" parameter")
		fmt.Println("from the redirect URL:")
		fmt.Println()
		fmt.Println("  " + exporter.AuthURL())
		fmt.Println()
		fmt.Print("code> ")
		var code string
		if _, err := fmt.Scanln(&code); err != nil {
			return fmt.Errorf("read code: %w", err)
		}
		if err := exporter.HandleCallback(ctx, code); err != nil {
			return err
		}
	}

	entries, err := store.List()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("journal is empty, nothing to export")
	}

	docID, err := exporter.Export(ctx, "Scout Journal "+time.Now().Format("2006-01-02"), entries)
	if err != nil {
		return err
	}

	fmt.Printf("Exported %d entries: %s\n", len(entries), journal.DocURL(docID))
	return nil
}

// analyzeShot grabs one frame, shrinks it, and asks the model about it.
func analyzeShot(ctx context.Context, src camera.Source, analyzer *vision.Analyzer, question string) (string, error) {
	grabCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	frame, err := src.Grab(grabCtx)
	if err != nil {
		return "", fmt.Errorf("capture: %w", err)
	}

	jpeg, err := camera.Thumbnail(frame.Data, camera.ThumbnailMaxDim)
	if err != nil {
		jpeg = frame.Data
	}

	askCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	return analyzer.Analyze(askCtx, jpeg, question)
}
