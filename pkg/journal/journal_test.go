package journal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *JSONStore {
	t.Helper()
	store, err := NewJSONStore(filepath.Join(t.TempDir(), "journal.json"))
	if err != nil {
		t.Fatalf("NewJSONStore failed: %v", err)
	}
	return store
}

func TestStore_AppendAssignsIDAndTime(t *testing.T) {
	store := newTestStore(t)

	entry := &Entry{Prompt: "what is this", Response: "a fern"}
	if err := store.Append(entry); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if entry.ID == "" {
		t.Error("ID not assigned")
	}
	if entry.Time.IsZero() {
		t.Error("Time not assigned")
	}

	got, err := store.Get(entry.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Response != "a fern" {
		t.Errorf("unexpected response: %q", got.Response)
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.json")

	store, err := NewJSONStore(path)
	if err != nil {
		t.Fatalf("NewJSONStore failed: %v", err)
	}
	entry := &Entry{Prompt: "p", Response: "r", Tags: []string{"walk"}}
	if err := store.Append(entry); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	reopened, err := NewJSONStore(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if reopened.Count() != 1 {
		t.Fatalf("expected 1 entry after reopen, got %d", reopened.Count())
	}
	got, err := reopened.Get(entry.ID)
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if got.Tags[0] != "walk" {
		t.Errorf("tags not persisted: %v", got.Tags)
	}

	// No stray temp file.
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}

func TestStore_ListNewestFirst(t *testing.T) {
	store := newTestStore(t)

	base := time.Now()
	for i := 0; i < 3; i++ {
		err := store.Append(&Entry{
			Response: strings.Repeat("x", i+1),
			Time:     base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}

	entries, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Time.After(entries[i-1].Time) {
			t.Errorf("entries not newest first at %d", i)
		}
	}
}

func TestStore_Search(t *testing.T) {
	store := newTestStore(t)

	store.Append(&Entry{Prompt: "identify this bird", Response: "a wren"})
	store.Append(&Entry{Prompt: "what plant", Response: "an oak sapling", Tags: []string{"tree"}})
	store.Append(&Entry{Prompt: "weather", Response: "cloudy"})

	tests := []struct {
		query string
		want  int
	}{
		{"bird", 1},
		{"TREE", 1}, // tag, case-insensitive
		{"a", 3},
		{"nothing-matches", 0},
	}
	for _, tt := range tests {
		results, err := store.Search(tt.query)
		if err != nil {
			t.Fatalf("Search(%q) failed: %v", tt.query, err)
		}
		if len(results) != tt.want {
			t.Errorf("Search(%q) = %d results, want %d", tt.query, len(results), tt.want)
		}
	}
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)

	entry := &Entry{Response: "r"}
	store.Append(entry)

	if err := store.Delete(entry.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if store.Count() != 0 {
		t.Errorf("expected empty store, got %d", store.Count())
	}
	if err := store.Delete(entry.ID); err == nil {
		t.Error("expected error deleting missing entry")
	}
}

func TestNewDocsExporter_RequiresCredentials(t *testing.T) {
	if _, err := NewDocsExporter(DocsConfig{}); err == nil {
		t.Error("expected error without client credentials")
	}
}

func TestDocURL(t *testing.T) {
	got := DocURL("abc123")
	if got != "https://docs.google.com/document/d/abc123/edit" {
		t.Errorf("unexpected URL: %q", got)
	}
}

func TestFormatEntries(t *testing.T) {
	entries := []*Entry{
		{
			Time:     time.Date(2026, 3, 14, 15, 4, 0, 0, time.UTC),
			Prompt:   "what mushroom",
			Response: "likely a chanterelle",
			Tags:     []string{"forage", "fungi"},
		},
	}

	got := formatEntries(entries)
	for _, want := range []string{"March 14, 2026", "Q: what mushroom", "A: likely a chanterelle", "Tags: forage, fungi"} {
		if !strings.Contains(got, want) {
			t.Errorf("formatted doc missing %q:\n%s", want, got)
		}
	}
}
