// Package audit implements the optional, best-effort audit sink: a
// channel-buffered queue drained by a single writer goroutine, enabled only
// when a database is configured.
package audit

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Kind enumerates the event categories the sink records.
type Kind string

const (
	KindDenied        Kind = "denied"
	KindCacheEviction Kind = "cache_eviction"
	KindBackendEmpty  Kind = "backend_empty"
)

// Entry is a single audit record.
type Entry struct {
	Kind   Kind
	Detail string
	Bytes  int64 // reclaimed bytes, for cache_eviction entries
	Time   time.Time
}

// Recorder persists a single Entry. Implemented by *Store in production
// and satisfied trivially in tests.
type Recorder interface {
	RecordAudit(ctx context.Context, kind, detail string, bytes int64, at time.Time) error
}

// Worker buffers Entry values and writes them via a single goroutine, so
// concurrent proxy handlers never block on database I/O.
type Worker struct {
	recorder Recorder
	log      *logrus.Logger
	jobs     chan *Entry
}

// NewWorker creates a Worker with the given queue capacity. A non-positive
// queueSize defaults to 1000.
func NewWorker(recorder Recorder, log *logrus.Logger, queueSize int) *Worker {
	if queueSize <= 0 {
		queueSize = 1000
	}
	return &Worker{
		recorder: recorder,
		log:      log,
		jobs:     make(chan *Entry, queueSize),
	}
}

// Enqueue submits an entry. Non-blocking; drops the entry if the queue is
// full, logging the drop so operators can size the queue appropriately.
func (w *Worker) Enqueue(e *Entry) {
	select {
	case w.jobs <- e:
	default:
		w.log.WithField("kind", e.Kind).Warn("audit queue full, dropping entry")
	}
}

// Run processes entries until ctx is cancelled, then drains whatever
// remains in the queue before returning.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case e := <-w.jobs:
			w.process(e)
		}
	}
}

func (w *Worker) drain() {
	for {
		select {
		case e := <-w.jobs:
			w.process(e)
		default:
			return
		}
	}
}

func (w *Worker) process(e *Entry) {
	if err := w.recorder.RecordAudit(context.Background(), string(e.Kind), e.Detail, e.Bytes, e.Time); err != nil {
		w.log.WithError(err).Warn("audit record failed")
	}
}
