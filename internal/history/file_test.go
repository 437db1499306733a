package history

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFileStoreAppendAndWindow(t *testing.T) {
	s := openFileStore(t)
	ctx := context.Background()
	now := time.Now()

	for _, age := range []time.Duration{48 * time.Hour, 24 * time.Hour, time.Hour} {
		if err := s.Append(ctx, entry(now.Add(-age), 70)); err != nil {
			t.Fatalf("Append error: %v", err)
		}
	}

	got, err := s.Window(ctx, 7)
	if err != nil {
		t.Fatalf("Window error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Window returned %d entries, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Timestamp.Before(got[i-1].Timestamp) {
			t.Errorf("entries not ascending at %d", i)
		}
	}
	if got[0].Components["github"] != 65 {
		t.Errorf("components not preserved: %v", got[0].Components)
	}
}

func TestFileStoreWindowSortsOutOfOrderEntries(t *testing.T) {
	s := openFileStore(t)
	ctx := context.Background()
	now := time.Now()

	s.Append(ctx, entry(now.Add(-time.Hour), 70))
	s.Append(ctx, entry(now.Add(-72*time.Hour), 60))
	s.Append(ctx, entry(now.Add(-24*time.Hour), 65))

	got, err := s.Window(ctx, 7)
	if err != nil {
		t.Fatalf("Window error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Window returned %d entries, want 3", len(got))
	}
	if got[0].Overall != 60 || got[1].Overall != 65 || got[2].Overall != 70 {
		t.Errorf("order = [%v %v %v], want [60 65 70]",
			got[0].Overall, got[1].Overall, got[2].Overall)
	}
}

func TestFileStoreWindowInclusiveBoundary(t *testing.T) {
	s := openFileStore(t)
	ctx := context.Background()
	fixed := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	onBoundary := fixed.AddDate(0, 0, -7)
	s.Append(ctx, entry(onBoundary.Add(-time.Second), 50))
	s.Append(ctx, entry(onBoundary, 60))
	s.Append(ctx, entry(fixed.Add(-time.Hour), 70))

	got, err := s.Window(ctx, 7)
	if err != nil {
		t.Fatalf("Window error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Window returned %d entries, want 2 (boundary inclusive)", len(got))
	}
	if !got[0].Timestamp.Equal(onBoundary) {
		t.Errorf("first entry = %v, want the boundary entry %v", got[0].Timestamp, onBoundary)
	}
}

func TestFileStoreWindowValidatesDays(t *testing.T) {
	s := openFileStore(t)
	for _, days := range []int{0, -1, 366} {
		if _, err := s.Window(context.Background(), days); err == nil {
			t.Errorf("Window(%d) accepted an out-of-range window", days)
		}
	}
	if _, err := s.Window(context.Background(), 365); err != nil {
		t.Errorf("Window(365) = %v, want nil error", err)
	}
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	s, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile error: %v", err)
	}
	ctx := context.Background()
	s.Append(ctx, entry(time.Now().Add(-time.Hour), 71.4))
	s.Close()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading history file: %v", err)
	}
	for _, want := range []string{`"version": 1`, `"lastUpdated"`, `"scores"`} {
		if !strings.Contains(string(raw), want) {
			t.Errorf("history document missing %s", want)
		}
	}

	reopened, err := OpenFile(path)
	if err != nil {
		t.Fatalf("reopening history: %v", err)
	}
	got, err := reopened.Window(ctx, 7)
	if err != nil {
		t.Fatalf("Window after reopen error: %v", err)
	}
	if len(got) != 1 || got[0].Overall != 71.4 {
		t.Errorf("reopened log = %+v, want one entry with overall 71.4", got)
	}
}

func TestFileStoreStartsEmptyWhenFileMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "history.json")
	s, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile error: %v", err)
	}
	got, err := s.Window(context.Background(), 30)
	if err != nil {
		t.Fatalf("Window error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("new log has %d entries, want 0", len(got))
	}
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	if err := os.WriteFile(path, []byte("{oops"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenFile(path); err == nil {
		t.Fatal("OpenFile accepted a corrupt document")
	}
}

func openFileStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := OpenFile(filepath.Join(t.TempDir(), "history.json"))
	if err != nil {
		t.Fatalf("OpenFile error: %v", err)
	}
	return s
}

func entry(ts time.Time, overall float64) Entry {
	return Entry{
		Timestamp:  ts,
		Overall:    overall,
		Components: map[string]float64{"github": overall - 5, "news": overall + 5},
		Trend:      "stable",
		Confidence: 0.8,
	}
}
