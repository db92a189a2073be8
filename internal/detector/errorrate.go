// Package detector holds the two detection state machines: the windowed
// error-rate detector and the blue/green failover detector. Both are
// level-triggered, cooldown-gated, and suppressed by maintenance mode.
package detector

import (
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/poolwatch/poolwatch/internal/clock"
)

// upstreamErrorMarkers are non-numeric upstream_status values that count as
// errors. A dash means "no upstream" and is not an error.
var upstreamErrorMarkers = map[string]bool{
	"timeout": true,
	"error":   true,
}

// IsError classifies a request as an error: HTTP 5xx, an upstream status that
// parses as an integer >= 500, or one of the sentinel upstream markers.
func IsError(statusCode int, upstreamStatus string) bool {
	if statusCode >= 500 {
		return true
	}
	if upstreamStatus != "" {
		if n, err := strconv.Atoi(upstreamStatus); err == nil {
			return n >= 500
		}
		return upstreamErrorMarkers[upstreamStatus]
	}
	return false
}

// Stats describes the window at the moment an error-rate alert fired.
type Stats struct {
	Rate   float64 // percent
	Errors int
	Size   int
}

// ErrorRate maintains a bounded sliding window of error flags and decides,
// gated by a warm-up threshold and a cooldown, when the windowed error rate
// justifies an alert.
type ErrorRate struct {
	mu          sync.Mutex
	window      *Window
	threshold   float64 // percent
	cooldown    time.Duration
	warmup      int // min samples before evaluating
	clk         clock.Clock
	maintenance func() bool
	lastAlert   time.Time
}

// ErrorRateConfig configures an ErrorRate detector.
type ErrorRateConfig struct {
	WindowSize int
	Threshold  float64 // percent, alert when rate >= Threshold
	Cooldown   time.Duration
	// Warmup is the minimum number of observations required before the
	// threshold is evaluated. 0 means the window must be full.
	Warmup int
	// Maintenance is checked fresh on every ShouldAlert call. nil means
	// never in maintenance.
	Maintenance func() bool
	Clock       clock.Clock
}

// NewErrorRate creates an error-rate detector. Panics if WindowSize < 1.
func NewErrorRate(cfg ErrorRateConfig) *ErrorRate {
	warmup := cfg.Warmup
	if warmup <= 0 || warmup > cfg.WindowSize {
		warmup = cfg.WindowSize
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewReal()
	}
	maint := cfg.Maintenance
	if maint == nil {
		maint = func() bool { return false }
	}
	return &ErrorRate{
		window:      NewWindow(cfg.WindowSize),
		threshold:   cfg.Threshold,
		cooldown:    cfg.Cooldown,
		warmup:      warmup,
		clk:         clk,
		maintenance: maint,
	}
}

// Observe classifies one request and appends its error flag to the window.
// Callers skip records that carried no status code at all.
func (d *ErrorRate) Observe(statusCode int, upstreamStatus string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.window.Push(IsError(statusCode, upstreamStatus))
}

// ShouldAlert evaluates the window. It returns true at most once per
// cooldown period, and only when the warm-up threshold has been reached and
// the error rate is at or above the configured threshold. Maintenance mode
// suppresses evaluation entirely.
func (d *ErrorRate) ShouldAlert() (Stats, bool) {
	if d.maintenance() {
		return Stats{}, false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.window.Len() < d.warmup {
		return Stats{}, false
	}

	now := d.clk.Now()
	if !d.lastAlert.IsZero() && now.Sub(d.lastAlert) < d.cooldown {
		return Stats{}, false
	}

	rate := d.window.Rate()
	if rate < d.threshold {
		return Stats{}, false
	}

	d.lastAlert = now
	stats := Stats{Rate: rate, Errors: d.window.Errors(), Size: d.window.Len()}
	log.Warn().
		Float64("rate", stats.Rate).
		Float64("threshold", d.threshold).
		Int("errors", stats.Errors).
		Int("window", stats.Size).
		Msg("high_error_rate")
	return stats, true
}

// Rate returns the current windowed error percentage.
func (d *ErrorRate) Rate() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.window.Rate()
}
