package clock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/poolwatch/poolwatch/internal/clock"
)

func TestVirtual_AdvanceAndSince(t *testing.T) {
	start := time.Date(2026, 8, 21, 12, 0, 0, 0, time.UTC)
	c := clock.NewVirtual(start)

	assert.Equal(t, start, c.Now())
	assert.Equal(t, time.Duration(0), c.Since(start))

	c.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), c.Now())
	assert.Equal(t, 90*time.Second, c.Since(start))
}

func TestVirtual_Set(t *testing.T) {
	start := time.Date(2026, 8, 21, 12, 0, 0, 0, time.UTC)
	c := clock.NewVirtual(start)

	later := start.Add(time.Hour)
	c.Set(later)
	assert.Equal(t, later, c.Now())

	assert.Panics(t, func() { c.Set(start) })
	assert.Panics(t, func() { c.Advance(-time.Second) })
}

func TestReal_TracksSystemClock(t *testing.T) {
	c := clock.NewReal()
	before := time.Now()
	now := c.Now()
	assert.False(t, now.Before(before))
	assert.GreaterOrEqual(t, c.Since(before), time.Duration(0))
}
