package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// ExportVersion is the version written to exported snapshots.
const ExportVersion = "2"

// ExportFormat represents the JSON structure for cache export/import.
type ExportFormat struct {
	Version    string            `json:"version"`
	ExportedAt string            `json:"exported_at"`
	Entries    []ExportEntry     `json:"entries"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ExportEntry represents a single cache entry. TTLSeconds is the remaining
// lifetime at export time; zero means the store's default.
type ExportEntry struct {
	Key        string `json:"key"`
	Value      string `json:"value"`
	TTLSeconds int64  `json:"ttl_seconds,omitempty"`
}

// Exporter writes a snapshot of an enumerable store.
type Exporter struct {
	store Enumerable
	now   func() time.Time
}

// NewExporter creates a new cache exporter.
func NewExporter(store Enumerable) *Exporter {
	return &Exporter{store: store, now: time.Now}
}

// Export writes every entry matching match to w as JSON and returns the
// number of entries written.
func (e *Exporter) Export(ctx context.Context, w io.Writer, match string, metadata map[string]string) (int, error) {
	entries := make([]ExportEntry, 0)
	err := e.store.Entries(ctx, match, func(entry Entry) error {
		entries = append(entries, ExportEntry{
			Key:        entry.Key,
			Value:      entry.Value,
			TTLSeconds: int64(entry.TTL / time.Second),
		})
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("listing cache entries: %w", err)
	}

	export := ExportFormat{
		Version:    ExportVersion,
		ExportedAt: e.now().UTC().Format(time.RFC3339),
		Entries:    entries,
		Metadata:   metadata,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(export); err != nil {
		return 0, fmt.Errorf("encoding JSON: %w", err)
	}

	return len(entries), nil
}

// ExportToFile exports the cache to a file.
func (e *Exporter) ExportToFile(ctx context.Context, path, match string, metadata map[string]string) (int, error) {
	f, err := os.Create(path) // #nosec G304 - path is intentionally user-provided
	if err != nil {
		return 0, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	return e.Export(ctx, f, match, metadata)
}

// Importer loads a snapshot into a store.
type Importer struct {
	store Store
}

// NewImporter creates a new cache importer.
func NewImporter(store Store) *Importer {
	return &Importer{store: store}
}

// Import reads cache entries from a reader and loads them into the store.
// Entries without a key or value are counted as failed and skipped.
func (i *Importer) Import(ctx context.Context, r io.Reader) (*ImportResult, error) {
	var export ExportFormat
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return nil, fmt.Errorf("decoding JSON: %w", err)
	}

	result := &ImportResult{
		Version:  export.Version,
		Metadata: export.Metadata,
	}

	for _, entry := range export.Entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if entry.Key == "" || entry.Value == "" {
			result.Failed++
			continue
		}
		i.store.Set(ctx, entry.Key, entry.Value, time.Duration(entry.TTLSeconds)*time.Second)
		result.Imported++
	}

	return result, nil
}

// ImportFromFile imports cache entries from a file.
func (i *Importer) ImportFromFile(ctx context.Context, path string) (*ImportResult, error) {
	f, err := os.Open(path) // #nosec G304 - path is intentionally user-provided
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	return i.Import(ctx, f)
}

// ImportResult contains statistics about the import operation.
type ImportResult struct {
	Version  string
	Metadata map[string]string
	Imported int
	Failed   int
}
