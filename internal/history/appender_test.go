package history

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestAppenderWritesThrough(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := &memStore{}
	a := NewAppender(store, nil)
	a.Enqueue(entry(time.Now(), 70))

	res := waitResult(t, a)
	if res.Err != nil {
		t.Errorf("append result error: %v", res.Err)
	}
	if res.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", res.Attempts)
	}
	a.Close()

	if got := store.count(); got != 1 {
		t.Errorf("store holds %d entries, want 1", got)
	}
}

func TestAppenderRetriesUntilSuccess(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := &memStore{failures: 2}
	a := NewAppender(store, nil)
	a.backoff = time.Millisecond
	a.Enqueue(entry(time.Now(), 70))

	res := waitResult(t, a)
	if res.Err != nil {
		t.Errorf("append should have succeeded on the final retry: %v", res.Err)
	}
	if res.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", res.Attempts)
	}
	a.Close()

	if got := store.count(); got != 1 {
		t.Errorf("store holds %d entries, want 1", got)
	}
}

func TestAppenderReportsPermanentFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := &memStore{failures: 10}
	a := NewAppender(store, nil)
	a.backoff = time.Millisecond
	a.Enqueue(entry(time.Now(), 70))

	res := waitResult(t, a)
	if res.Err == nil {
		t.Error("append against a dead store reported success")
	}
	if res.Attempts != 3 {
		t.Errorf("attempts = %d, want 3 (1 + 2 retries)", res.Attempts)
	}
	a.Close()

	if got := store.count(); got != 0 {
		t.Errorf("store holds %d entries, want 0", got)
	}
}

func TestAppenderDropsWhenQueueFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := newBlockingStore()
	a := NewAppender(store, nil)

	// Let the worker pick up the first entry and block inside Append.
	a.Enqueue(entry(time.Now(), 1))
	<-store.started

	for i := 0; i < queueSize; i++ {
		a.Enqueue(entry(time.Now(), float64(i)))
	}
	a.Enqueue(entry(time.Now(), 99))

	res := waitResult(t, a)
	if res.Err == nil {
		t.Error("overflowing the queue should report a dropped entry")
	}

	close(store.release)
	a.Close()

	if got := store.count(); got != queueSize+1 {
		t.Errorf("store holds %d entries, want %d", got, queueSize+1)
	}
}

func TestAppenderCloseIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	a := NewAppender(&memStore{}, nil)
	a.Close()
	a.Close()
}

func waitResult(t *testing.T, a *Appender) Result {
	t.Helper()
	select {
	case res := <-a.Results():
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for an append result")
		return Result{}
	}
}

// memStore is an in-memory Store that can fail a set number of times.
type memStore struct {
	mu       sync.Mutex
	failures int
	entries  []Entry
}

func (s *memStore) Append(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("store unavailable")
	}
	s.entries = append(s.entries, e)
	return nil
}

func (s *memStore) Window(ctx context.Context, days int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// blockingStore blocks every Append until release is closed.
type blockingStore struct {
	memStore
	started   chan struct{}
	release   chan struct{}
	startOnce sync.Once
}

func newBlockingStore() *blockingStore {
	return &blockingStore{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (s *blockingStore) Append(ctx context.Context, e Entry) error {
	s.startOnce.Do(func() { close(s.started) })
	<-s.release
	return s.memStore.Append(ctx, e)
}
