package history

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	appendRetries = 2
	appendBackoff = 250 * time.Millisecond
	appendTimeout = 5 * time.Second
	queueSize     = 16
)

// Result reports the outcome of one asynchronous append.
type Result struct {
	Entry    Entry
	Attempts int
	Err      error
}

// Appender decouples history writes from request handling. Entries are
// queued and written by a single worker with bounded retry; outcomes are
// published on Results. Failures are logged and reported, never returned
// to the producer.
type Appender struct {
	store   Store
	logger  *zap.Logger
	queue   chan Entry
	results chan Result
	backoff time.Duration

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewAppender starts the worker goroutine. Close releases it.
func NewAppender(store Store, logger *zap.Logger) *Appender {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Appender{
		store:   store,
		logger:  logger,
		queue:   make(chan Entry, queueSize),
		results: make(chan Result, queueSize),
		backoff: appendBackoff,
	}
	a.wg.Add(1)
	go a.run()
	return a
}

// Enqueue hands an entry to the worker without blocking. When the queue is
// full the entry is dropped; the drop is logged and reported on Results.
func (a *Appender) Enqueue(e Entry) {
	select {
	case a.queue <- e:
	default:
		a.logger.Warn("history queue full, dropping entry",
			zap.Time("timestamp", e.Timestamp))
		a.report(Result{Entry: e, Err: errors.New("history queue full")})
	}
}

// Results exposes per-append outcomes. Reading is optional: when nobody
// consumes them, outcomes are dropped rather than blocking the worker.
func (a *Appender) Results() <-chan Result { return a.results }

// Close drains pending entries, stops the worker, and closes Results.
func (a *Appender) Close() {
	a.closeOnce.Do(func() {
		close(a.queue)
		a.wg.Wait()
		close(a.results)
	})
}

func (a *Appender) run() {
	defer a.wg.Done()
	for e := range a.queue {
		res := Result{Entry: e}
		for attempt := 0; attempt <= appendRetries; attempt++ {
			if attempt > 0 {
				time.Sleep(a.backoff)
			}
			res.Attempts = attempt + 1
			ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
			res.Err = a.store.Append(ctx, e)
			cancel()
			if res.Err == nil {
				break
			}
		}
		if res.Err != nil {
			a.logger.Error("history append failed",
				zap.Int("attempts", res.Attempts),
				zap.Error(res.Err))
		}
		a.report(res)
	}
}

func (a *Appender) report(r Result) {
	select {
	case a.results <- r:
	default:
	}
}
