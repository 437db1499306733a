package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// document is the on-disk shape of the file backend.
type document struct {
	Version     int       `json:"version"`
	LastUpdated time.Time `json:"lastUpdated"`
	Scores      []Entry   `json:"scores"`
}

// FileStore keeps the whole log in one JSON document. Every append
// rewrites the file atomically (temp file + rename), so readers never see
// a torn write.
type FileStore struct {
	path string
	now  func() time.Time

	mu  sync.Mutex
	doc document
}

// OpenFile loads the history document at path, creating an empty log when
// the file does not exist yet.
func OpenFile(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history dir: %w", err)
	}
	s := &FileStore{path: path, now: time.Now}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.doc = document{Version: Version}
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading history: %w", err)
	}
	if err := json.Unmarshal(raw, &s.doc); err != nil {
		return fmt.Errorf("parsing history %s: %w", s.path, err)
	}
	if s.doc.Version == 0 {
		s.doc.Version = Version
	}
	return nil
}

func (s *FileStore) Append(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Scores = append(s.doc.Scores, e)
	s.doc.LastUpdated = s.now()
	if err := s.write(); err != nil {
		s.doc.Scores = s.doc.Scores[:len(s.doc.Scores)-1]
		return err
	}
	return nil
}

func (s *FileStore) Window(ctx context.Context, days int) ([]Entry, error) {
	if err := ValidateDays(days); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().AddDate(0, 0, -days)
	var out []Entry
	for _, e := range s.doc.Scores {
		if !e.Timestamp.Before(cutoff) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (s *FileStore) Close() error { return nil }

// write persists the document via a temp file in the same directory
// followed by a rename.
func (s *FileStore) write() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".history-*.json")
	if err != nil {
		return fmt.Errorf("creating temp history: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp history: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing history: %w", err)
	}
	return nil
}
