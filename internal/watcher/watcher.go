// Package watcher wires the pipeline together: tailer -> parser ->
// detectors -> dispatcher. One goroutine processes records strictly in
// arrival order; both detectors carry order-dependent state.
package watcher

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/poolwatch/poolwatch/internal/alert"
	"github.com/poolwatch/poolwatch/internal/detector"
	"github.com/poolwatch/poolwatch/internal/parser"
	"github.com/poolwatch/poolwatch/internal/tailer"
)

const restartBackoff = 5 * time.Second

// Firer is the dispatch entry point. Satisfied by both alert.Dispatcher and
// alert.Async.
type Firer interface {
	Fire(ctx context.Context, a alert.Alert) bool
}

// Watcher drives the log-analysis pipeline.
type Watcher struct {
	tailer    *tailer.Tailer
	failover  *detector.Failover
	errorRate *detector.ErrorRate
	threshold float64 // percent, echoed into error-rate alerts
	firer     Firer
}

// New assembles a Watcher from its components.
func New(t *tailer.Tailer, fo *detector.Failover, er *detector.ErrorRate, threshold float64, firer Firer) *Watcher {
	return &Watcher{
		tailer:    t,
		failover:  fo,
		errorRate: er,
		threshold: threshold,
		firer:     firer,
	}
}

// Run follows the log file until the context is cancelled. Tail failures are
// caught here at the loop boundary: logged, backed off, and retried in a
// bounded loop rather than recursing or crashing the process.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		err := w.tailer.Follow(ctx, w.ProcessLine)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		log.Error().Err(err).Msg("tail loop failed, restarting after backoff")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(restartBackoff):
		}
	}
}

// ProcessLine runs one raw line through the parser and both detectors,
// dispatching at most one alert per detector. A line with no recognizable
// fields is a no-op.
func (w *Watcher) ProcessLine(line string) {
	rec := parser.Parse(line)

	if rec.Pool.Valid() {
		if ev, ok := w.failover.Observe(rec.Pool); ok {
			a, err := alert.NewFailover(ev.From, ev.To, rec.Timestamp)
			if err != nil {
				log.Warn().Err(err).Msg("failover event rejected")
			} else {
				w.firer.Fire(context.Background(), a)
			}
		}
	}

	// A record with no status code is not appended to the window.
	if rec.HasStatus() {
		w.errorRate.Observe(rec.StatusCode, rec.UpstreamStatus)
		if stats, ok := w.errorRate.ShouldAlert(); ok {
			a, err := alert.NewErrorRate(stats.Rate, w.threshold, stats.Errors, stats.Size, rec.Timestamp)
			if err != nil {
				log.Warn().Err(err).Msg("error-rate event rejected")
			} else {
				w.firer.Fire(context.Background(), a)
			}
		}
	}
}
