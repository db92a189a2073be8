package alert

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultQueueSize    = 64
	defaultDrainTimeout = 5 * time.Second
)

// AsyncOption configures an Async queue.
type AsyncOption func(*Async)

// WithQueueSize sets the channel buffer capacity. Default: 64.
func WithQueueSize(n int) AsyncOption {
	return func(a *Async) { a.bufSize = n }
}

// Async decouples alert delivery from log ingestion via a buffered channel
// drained by a single consumer goroutine, so a slow or failing webhook never
// stalls the tailer. Order is preserved; when the buffer is full the alert
// is dropped with a logged warning rather than blocking.
type Async struct {
	inner     *Dispatcher
	ch        chan Alert
	done      chan struct{}
	bufSize   int
	closeOnce sync.Once
}

// NewAsync wraps a dispatcher in an async queue. The drain goroutine starts
// immediately.
func NewAsync(inner *Dispatcher, opts ...AsyncOption) *Async {
	a := &Async{
		inner:   inner,
		bufSize: defaultQueueSize,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.ch = make(chan Alert, a.bufSize)
	a.done = make(chan struct{})
	go a.drain()
	return a
}

// Fire enqueues the alert for delivery. Returns false when the queue is
// full and the alert was dropped.
func (a *Async) Fire(_ context.Context, alert Alert) bool {
	select {
	case a.ch <- alert:
		return true
	default:
		log.Warn().
			Str("type", string(alert.Type)).
			Str("id", alert.ID).
			Msg("alert queue full, dropping alert")
		return false
	}
}

// Close stops accepting alerts and waits for the queue to drain, bounded by
// a timeout.
func (a *Async) Close() {
	a.closeOnce.Do(func() {
		close(a.ch)
		select {
		case <-a.done:
		case <-time.After(defaultDrainTimeout):
			log.Warn().Msg("alert queue drain timed out")
		}
	})
}

func (a *Async) drain() {
	defer close(a.done)
	for alert := range a.ch {
		a.inner.Fire(context.Background(), alert)
	}
}
