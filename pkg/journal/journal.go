// Package journal keeps a persistent field journal of scout activity:
// every snapshot analysis and dictation exchange becomes an entry, stored
// as a JSON file and optionally exported to Google Docs.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one journal record.
type Entry struct {
	ID        string    `json:"id"`
	Time      time.Time `json:"time"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	ImagePath string    `json:"image_path,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
}

// Store defines journal storage operations.
type Store interface {
	// Append adds an entry, assigning ID and Time when unset.
	Append(entry *Entry) error

	// Get retrieves an entry by ID.
	Get(id string) (*Entry, error)

	// List returns all entries, newest first.
	List() ([]*Entry, error)

	// Search finds entries whose prompt, response, or tags match the query.
	Search(query string) ([]*Entry, error)

	// Delete removes an entry by ID.
	Delete(id string) error

	// Count returns the number of entries.
	Count() int
}

// JSONStore implements Store with a single JSON file.
type JSONStore struct {
	path    string
	entries map[string]*Entry
	mu      sync.RWMutex
}

// storeData is the file structure.
type storeData struct {
	Version   int      `json:"version"`
	UpdatedAt string   `json:"updated_at"`
	Entries   []*Entry `json:"entries"`
}

const currentVersion = 1

// NewJSONStore creates a store at path, loading existing entries if the
// file exists.
func NewJSONStore(path string) (*JSONStore, error) {
	store := &JSONStore{
		path:    path,
		entries: make(map[string]*Entry),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("journal: create directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		if err := store.load(); err != nil {
			return nil, fmt.Errorf("journal: load store: %w", err)
		}
	}

	return store, nil
}

// NewDefaultStore creates a store at ~/.scout/journal.json.
func NewDefaultStore() (*JSONStore, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("journal: home directory: %w", err)
	}
	return NewJSONStore(filepath.Join(homeDir, ".scout", "journal.json"))
}

func (s *JSONStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	var stored storeData
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("parse JSON: %w", err)
	}

	s.entries = make(map[string]*Entry, len(stored.Entries))
	for _, e := range stored.Entries {
		s.entries[e.ID] = e
	}
	return nil
}

// save writes the store to disk. Caller holds the lock. Writes go to a
// temp file first so a crash cannot corrupt the journal.
func (s *JSONStore) save() error {
	entries := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}

	data, err := json.MarshalIndent(storeData{
		Version:   currentVersion,
		UpdatedAt: time.Now().Format(time.RFC3339),
		Entries:   entries,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("journal: marshal: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("journal: write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("journal: rename temp file: %w", err)
	}
	return nil
}

// Append adds an entry, assigning ID and Time when unset.
func (s *JSONStore) Append(entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}

	s.entries[entry.ID] = entry
	return s.save()
}

// Get retrieves an entry by ID.
func (s *JSONStore) Get(id string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("journal: entry not found: %s", id)
	}
	return entry, nil
}

// List returns all entries, newest first.
func (s *JSONStore) List() ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Time.After(entries[j].Time)
	})
	return entries, nil
}

// Search finds entries whose prompt, response, or tags contain the query,
// case-insensitively.
func (s *JSONStore) Search(query string) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(query)
	var results []*Entry

	for _, e := range s.entries {
		if strings.Contains(strings.ToLower(e.Prompt), q) ||
			strings.Contains(strings.ToLower(e.Response), q) {
			results = append(results, e)
			continue
		}
		for _, tag := range e.Tags {
			if strings.Contains(strings.ToLower(tag), q) {
				results = append(results, e)
				break
			}
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Time.After(results[j].Time)
	})
	return results, nil
}

// Delete removes an entry by ID.
func (s *JSONStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return fmt.Errorf("journal: entry not found: %s", id)
	}
	delete(s.entries, id)
	return s.save()
}

// Count returns the number of entries.
func (s *JSONStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Path returns the store's file path.
func (s *JSONStore) Path() string {
	return s.path
}

var _ Store = (*JSONStore)(nil)
