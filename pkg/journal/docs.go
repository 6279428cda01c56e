package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/docs/v1"
	"google.golang.org/api/option"
)

// DocsExporter syncs the journal to a Google Doc via OAuth2.
type DocsExporter struct {
	config      *oauth2.Config
	tokenPath   string
	docsService *docs.Service
	token       *oauth2.Token

	mu sync.RWMutex
}

// DocsConfig configures the exporter.
type DocsConfig struct {
	ClientID     string
	ClientSecret string

	// RedirectURL receives the OAuth callback.
	// Default: http://localhost:8080/api/journal/callback.
	RedirectURL string

	// TokenPath stores the refresh token.
	// Default: ~/.scout/google_token.json.
	TokenPath string
}

// NewDocsExporter creates an exporter. An existing token on disk is loaded
// so re-auth is only needed when it expires.
func NewDocsExporter(cfg DocsConfig) (*DocsExporter, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("journal: GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required")
	}
	if cfg.RedirectURL == "" {
		cfg.RedirectURL = "http://localhost:8080/api/journal/callback"
	}
	if cfg.TokenPath == "" {
		homeDir, _ := os.UserHomeDir()
		cfg.TokenPath = filepath.Join(homeDir, ".scout", "google_token.json")
	}

	e := &DocsExporter{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/documents",
				"https://www.googleapis.com/auth/drive.file",
			},
			Endpoint: google.Endpoint,
		},
		tokenPath: cfg.TokenPath,
	}

	if err := e.loadToken(); err == nil {
		if err := e.initService(); err != nil {
			// Expired token; re-auth required.
			e.token = nil
		}
	}

	return e, nil
}

// IsAuthenticated returns true when a valid token is held.
func (e *DocsExporter) IsAuthenticated() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.token != nil && e.token.Valid()
}

// AuthURL returns the OAuth2 consent URL.
func (e *DocsExporter) AuthURL() string {
	return e.config.AuthCodeURL("journal-state", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// HandleCallback exchanges the authorization code and stores the token.
func (e *DocsExporter) HandleCallback(ctx context.Context, code string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	token, err := e.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("journal: exchange code: %w", err)
	}

	e.mu.Lock()
	e.token = token
	e.mu.Unlock()

	if err := e.saveToken(); err != nil {
		return fmt.Errorf("journal: save token: %w", err)
	}
	return e.initService()
}

// Disconnect drops the token and removes it from disk.
func (e *DocsExporter) Disconnect() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.token = nil
	e.docsService = nil
	if err := os.Remove(e.tokenPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("journal: remove token file: %w", err)
	}
	return nil
}

// Export writes the given entries into a new Google Doc and returns its
// document ID.
func (e *DocsExporter) Export(ctx context.Context, title string, entries []*Entry) (string, error) {
	e.mu.RLock()
	service := e.docsService
	e.mu.RUnlock()
	if service == nil {
		return "", fmt.Errorf("journal: not authenticated")
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	created, err := service.Documents.Create(&docs.Document{Title: title}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("journal: create document: %w", err)
	}

	content := formatEntries(entries)
	if content != "" {
		_, err = service.Documents.BatchUpdate(created.DocumentId, &docs.BatchUpdateDocumentRequest{
			Requests: []*docs.Request{
				{
					InsertText: &docs.InsertTextRequest{
						Location: &docs.Location{Index: 1},
						Text:     content,
					},
				},
			},
		}).Context(ctx).Do()
		if err != nil {
			return created.DocumentId, fmt.Errorf("journal: created doc but failed to add content: %w", err)
		}
	}

	return created.DocumentId, nil
}

// DocURL returns the edit URL for a document.
func DocURL(docID string) string {
	return fmt.Sprintf("https://docs.google.com/document/d/%s/edit", docID)
}

func (e *DocsExporter) initService() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.token == nil {
		return fmt.Errorf("journal: no token available")
	}

	ctx := context.Background()
	service, err := docs.NewService(ctx, option.WithHTTPClient(e.config.Client(ctx, e.token)))
	if err != nil {
		return fmt.Errorf("journal: create docs service: %w", err)
	}
	e.docsService = service
	return nil
}

func (e *DocsExporter) loadToken() error {
	data, err := os.ReadFile(e.tokenPath)
	if err != nil {
		return err
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return err
	}

	e.mu.Lock()
	e.token = &token
	e.mu.Unlock()
	return nil
}

func (e *DocsExporter) saveToken() error {
	e.mu.RLock()
	token := e.token
	e.mu.RUnlock()
	if token == nil {
		return fmt.Errorf("journal: no token to save")
	}

	if err := os.MkdirAll(filepath.Dir(e.tokenPath), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(e.tokenPath, data, 0600)
}

// formatEntries renders entries for the doc, newest first.
func formatEntries(entries []*Entry) string {
	var content string
	for _, e := range entries {
		content += fmt.Sprintf("%s\n", e.Time.Format("January 2, 2006 3:04 PM"))
		if e.Prompt != "" {
			content += fmt.Sprintf("Q: %s\n", e.Prompt)
		}
		content += fmt.Sprintf("A: %s\n", e.Response)
		if len(e.Tags) > 0 {
			content += "Tags: "
			for i, tag := range e.Tags {
				if i > 0 {
					content += ", "
				}
				content += tag
			}
			content += "\n"
		}
		content += "\n"
	}
	return content
}
