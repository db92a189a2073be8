package alert

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/poolwatch/poolwatch/internal/clock"
)

// ErrNotConfigured is returned by a Notifier whose delivery target is not
// set. Delivery is disabled but processing continues.
var ErrNotConfigured = errors.New("alert: notifier not configured")

// Notifier delivers one alert to an external transport. Implementations
// must honor the context deadline.
type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// Recorder persists delivered alerts for auditing. Implemented by the
// history package; recording failures are non-fatal.
type Recorder interface {
	Record(ctx context.Context, a Alert) error
}

// Dispatcher is the final gate before any network call. It enforces a
// per-alert-type cooldown that is independent of the detectors' own
// cooldowns: detectors may be rebuilt without resetting dispatch history,
// so both layers must agree before a notification leaves the process.
type Dispatcher struct {
	notifier    Notifier
	recorder    Recorder // nil disables auditing
	cooldown    time.Duration
	timeout     time.Duration
	maintenance func() bool
	clk         clock.Clock

	mu       sync.Mutex
	lastSent map[Type]time.Time
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	Notifier Notifier
	// Recorder is optional; nil disables the audit sink.
	Recorder Recorder
	Cooldown time.Duration
	// Timeout bounds each outbound notification call. Defaults to 10s.
	Timeout time.Duration
	// Maintenance is checked fresh on every Fire call. nil means never in
	// maintenance.
	Maintenance func() bool
	Clock       clock.Clock
}

// NewDispatcher creates a dispatcher around the given notifier.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewReal()
	}
	maint := cfg.Maintenance
	if maint == nil {
		maint = func() bool { return false }
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		notifier:    cfg.Notifier,
		recorder:    cfg.Recorder,
		cooldown:    cfg.Cooldown,
		timeout:     timeout,
		maintenance: maint,
		clk:         clk,
		lastSent:    make(map[Type]time.Time),
	}
}

// Fire attempts to deliver the alert. It returns true only when the
// transport accepted it. Suppressed or failed deliveries do not consume the
// cooldown, so the next qualifying event may retry.
func (d *Dispatcher) Fire(ctx context.Context, a Alert) bool {
	if d.maintenance() {
		log.Info().Str("type", string(a.Type)).Msg("maintenance mode active, alert suppressed")
		return false
	}

	d.mu.Lock()
	last, seen := d.lastSent[a.Type]
	now := d.clk.Now()
	if seen && now.Sub(last) < d.cooldown {
		d.mu.Unlock()
		log.Info().Str("type", string(a.Type)).Msg("dispatch cooldown active, alert suppressed")
		return false
	}
	d.mu.Unlock()

	nctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.notifier.Notify(nctx, a); err != nil {
		if errors.Is(err, ErrNotConfigured) {
			log.Warn().Str("type", string(a.Type)).Msg("no delivery target configured, alert dropped")
		} else {
			log.Error().Err(err).Str("type", string(a.Type)).Str("id", a.ID).Msg("alert delivery failed")
		}
		return false
	}

	d.mu.Lock()
	d.lastSent[a.Type] = d.clk.Now()
	d.mu.Unlock()

	log.Info().Str("type", string(a.Type)).Str("id", a.ID).Msg("alert delivered")

	if d.recorder != nil {
		if err := d.recorder.Record(ctx, a); err != nil {
			log.Warn().Err(err).Str("id", a.ID).Msg("alert history record failed")
		}
	}
	return true
}
