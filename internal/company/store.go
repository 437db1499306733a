package company

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

//go:embed dataset.json
var embeddedDatasetFS embed.FS

// DefaultTTL bounds how long a parsed dataset is served before the file is
// re-read on the next access.
const DefaultTTL = 5 * time.Minute

type dataset struct {
	Version   int       `json:"version"`
	Companies []Company `json:"companies"`
}

// Store is a read-through cache over the company dataset. The first access
// after construction, TTL expiry, or Invalidate re-reads the backing file
// (or the embedded default when no path is set).
type Store struct {
	path string
	ttl  time.Duration
	now  func() time.Time

	mu        sync.Mutex
	companies []Company
	byID      map[string]int
	loadedAt  time.Time
}

// NewStore builds a store backed by the file at path, or by the embedded
// dataset when path is empty. A non-positive ttl falls back to DefaultTTL.
func NewStore(path string, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{path: path, ttl: ttl, now: time.Now}
}

// All returns every company in the dataset.
func (s *Store) All() ([]Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensure(); err != nil {
		return nil, err
	}
	out := make([]Company, len(s.companies))
	copy(out, s.companies)
	return out, nil
}

// Get looks a company up by its exact ID.
func (s *Store) Get(id string) (Company, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensure(); err != nil {
		return Company{}, false, err
	}
	if i, ok := s.byID[strings.ToLower(id)]; ok {
		return s.companies[i], true, nil
	}
	return Company{}, false, nil
}

// Find resolves an ID, name, or alias case-insensitively.
func (s *Store) Find(q string) (Company, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensure(); err != nil {
		return Company{}, false, err
	}
	q = strings.ToLower(strings.TrimSpace(q))
	if i, ok := s.byID[q]; ok {
		return s.companies[i], true, nil
	}
	for _, c := range s.companies {
		if strings.ToLower(c.Name) == q {
			return c, true, nil
		}
		for _, a := range c.Aliases {
			if strings.ToLower(a) == q {
				return c, true, nil
			}
		}
	}
	return Company{}, false, nil
}

// Invalidate drops the cached dataset so the next access re-reads the file.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.loadedAt = time.Time{}
	s.mu.Unlock()
}

// ensure loads or refreshes the dataset. Callers hold s.mu. A failed
// refresh keeps serving the previously loaded data; the error only
// surfaces when there is nothing to fall back to.
func (s *Store) ensure() error {
	if !s.loadedAt.IsZero() && s.now().Sub(s.loadedAt) < s.ttl {
		return nil
	}
	companies, byID, err := s.load()
	if err != nil {
		if s.companies != nil {
			s.loadedAt = s.now()
			return nil
		}
		return err
	}
	s.companies = companies
	s.byID = byID
	s.loadedAt = s.now()
	return nil
}

func (s *Store) load() ([]Company, map[string]int, error) {
	var raw []byte
	var err error
	if s.path == "" {
		raw, err = embeddedDatasetFS.ReadFile("dataset.json")
		if err != nil {
			return nil, nil, fmt.Errorf("reading embedded dataset: %w", err)
		}
	} else {
		raw, err = os.ReadFile(s.path)
		if err != nil {
			return nil, nil, fmt.Errorf("reading dataset: %w", err)
		}
	}
	var ds dataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil, nil, fmt.Errorf("parsing dataset: %w", err)
	}
	byID := make(map[string]int, len(ds.Companies))
	for i, c := range ds.Companies {
		id := strings.ToLower(c.ID)
		if id == "" {
			return nil, nil, fmt.Errorf("invalid dataset: company %d has no id", i)
		}
		if c.Name == "" {
			return nil, nil, fmt.Errorf("invalid dataset: company %q has no name", c.ID)
		}
		if _, dup := byID[id]; dup {
			return nil, nil, fmt.Errorf("invalid dataset: duplicate company id %q", c.ID)
		}
		byID[id] = i
	}
	return ds.Companies, byID, nil
}
