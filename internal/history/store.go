// Package history provides a bounded, deduplicated cache of past generation
// configurations, persisted as a single JSON document on disk. History is
// best-effort: it never fails the generation pipeline.
package history

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// MaxEntries is the maximum number of history entries kept.
const MaxEntries = 5

// Entry is a serializable snapshot of a past generation request. Binary
// fields (reference images, video handles, recorded audio) are stripped
// before an entry is created.
type Entry struct {
	ProductName        string `json:"productName"`
	ProductDescription string `json:"productDescription"`
	Prompt             string `json:"prompt"`
	Model              string `json:"model"`
	Resolution         string `json:"resolution"`
	AspectRatio        string `json:"aspectRatio"`
	AutoExtend         bool   `json:"autoExtend"`
	VoiceoverMode      string `json:"voiceoverMode"`
	VoiceoverScript    string `json:"voiceoverScript,omitempty"`
	Voice              string `json:"voice,omitempty"`
}

// Store owns the bounded history list. It is safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// NewStore creates a history store persisting to the given file path.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:   path,
		logger: logger,
	}
}

// Load reads and deserializes the persisted list, most recent first.
// A corrupt or unreadable file is treated as empty and removed so the store
// heals itself; Load never returns an error to the caller.
func (s *Store) Load(ctx context.Context) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

// Save strips a request down to its serializable form, removes any entry
// with an identical serialized form, prepends the new entry, truncates to
// the most recent MaxEntries and persists. Failures are logged and swallowed.
func (s *Store) Save(ctx context.Context, entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.loadLocked(ctx)

	encoded, err := json.Marshal(entry)
	if err != nil {
		s.logger.Warn("history: marshal entry failed",
			slog.String("error", err.Error()),
		)
		return
	}

	deduped := make([]Entry, 0, len(entries)+1)
	deduped = append(deduped, entry)
	for _, existing := range entries {
		existingEncoded, err := json.Marshal(existing)
		if err != nil || bytes.Equal(existingEncoded, encoded) {
			continue
		}
		deduped = append(deduped, existing)
	}

	if len(deduped) > MaxEntries {
		deduped = deduped[:MaxEntries]
	}

	data, err := json.Marshal(deduped)
	if err != nil {
		s.logger.Warn("history: marshal list failed",
			slog.String("error", err.Error()),
		)
		return
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
		s.logger.Warn("history: create directory failed",
			slog.String("path", s.path),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		s.logger.Warn("history: persist failed",
			slog.String("path", s.path),
			slog.String("error", err.Error()),
		)
	}
}

// loadLocked reads the persisted list. The caller must hold the mutex.
func (s *Store) loadLocked(_ context.Context) []Entry {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("history: read failed",
				slog.String("path", s.path),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		// Corrupt store: drop the persisted value and start over.
		s.logger.Warn("history: corrupt store, clearing",
			slog.String("path", s.path),
			slog.String("error", err.Error()),
		)
		_ = os.Remove(s.path)
		return nil
	}

	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}
	return entries
}
