package detector

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/poolwatch/poolwatch/internal/clock"
	"github.com/poolwatch/poolwatch/internal/parser"
)

// Event describes one observed pool change.
type Event struct {
	From parser.Pool
	To   parser.Pool
}

// Failover tracks the last observed pool and emits an Event when traffic
// moves to the other pool. The first valid observation establishes the
// baseline silently unless a seed pool was configured. A change seen inside
// the cooldown window still advances the tracked pool but emits nothing, so
// flapping is followed without re-alerting.
type Failover struct {
	mu          sync.Mutex
	cooldown    time.Duration
	clk         clock.Clock
	maintenance func() bool
	last        parser.Pool
	initialized bool
	lastAlert   time.Time
}

// FailoverConfig configures a Failover detector.
type FailoverConfig struct {
	Cooldown time.Duration
	// Seed, when valid, starts the detector already tracking that pool, so
	// the first observation of a different pool is a real failover.
	Seed parser.Pool
	// Maintenance is checked fresh on every Observe call. nil means never
	// in maintenance.
	Maintenance func() bool
	Clock       clock.Clock
}

// NewFailover creates a failover detector.
func NewFailover(cfg FailoverConfig) *Failover {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewReal()
	}
	maint := cfg.Maintenance
	if maint == nil {
		maint = func() bool { return false }
	}
	d := &Failover{
		cooldown:    cfg.Cooldown,
		clk:         clk,
		maintenance: maint,
	}
	if cfg.Seed.Valid() {
		d.last = cfg.Seed
		d.initialized = true
	}
	return d
}

// Observe processes one pool observation. The second return value is true
// only when a failover event should be alerted on.
func (d *Failover) Observe(p parser.Pool) (Event, bool) {
	if d.maintenance() || !p.Valid() {
		return Event{}, false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized {
		d.last = p
		d.initialized = true
		log.Info().Str("pool", p.String()).Msg("failover detector baseline established")
		return Event{}, false
	}

	if d.last == p {
		return Event{}, false
	}

	from, to := d.last, p
	d.last = p

	now := d.clk.Now()
	if !d.lastAlert.IsZero() && now.Sub(d.lastAlert) < d.cooldown {
		log.Info().
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("failover within cooldown, tracking silently")
		return Event{}, false
	}

	// A degenerate change never leaves the detector.
	if from == to {
		return Event{}, false
	}

	d.lastAlert = now
	log.Warn().
		Str("from", from.String()).
		Str("to", to.String()).
		Msg("failover_detected")
	return Event{From: from, To: to}, true
}

// Current returns the last tracked pool, which may be empty before the
// baseline is established.
func (d *Failover) Current() parser.Pool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}
