package alert_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolwatch/poolwatch/internal/alert"
	"github.com/poolwatch/poolwatch/internal/clock"
	"github.com/poolwatch/poolwatch/internal/parser"
)

// fakeNotifier records every Notify call and returns a scripted error.
type fakeNotifier struct {
	mu   sync.Mutex
	sent []alert.Alert
	err  error
}

func (f *fakeNotifier) Notify(_ context.Context, a alert.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, a)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeRecorder struct {
	mu       sync.Mutex
	recorded []alert.Alert
}

func (f *fakeRecorder) Record(_ context.Context, a alert.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, a)
	return nil
}

func mustFailover(t *testing.T) alert.Alert {
	t.Helper()
	a, err := alert.NewFailover(parser.PoolBlue, parser.PoolGreen, time.Time{})
	require.NoError(t, err)
	return a
}

func mustErrorRate(t *testing.T) alert.Alert {
	t.Helper()
	a, err := alert.NewErrorRate(3.0, 2.0, 6, 200, time.Time{})
	require.NoError(t, err)
	return a
}

func TestDispatcher_DeliversAndRecordsCooldown(t *testing.T) {
	n := &fakeNotifier{}
	clk := clock.NewVirtual(time.Now())
	d := alert.NewDispatcher(alert.DispatcherConfig{
		Notifier: n,
		Cooldown: 300 * time.Second,
		Clock:    clk,
	})

	assert.True(t, d.Fire(context.Background(), mustFailover(t)))
	assert.Equal(t, 1, n.count())

	// Within the cooldown a second alert of the same type is suppressed
	// before any network call.
	assert.False(t, d.Fire(context.Background(), mustFailover(t)))
	assert.Equal(t, 1, n.count())

	// After the cooldown it goes through again.
	clk.Advance(300 * time.Second)
	assert.True(t, d.Fire(context.Background(), mustFailover(t)))
	assert.Equal(t, 2, n.count())
}

func TestDispatcher_CooldownIsPerAlertType(t *testing.T) {
	n := &fakeNotifier{}
	clk := clock.NewVirtual(time.Now())
	d := alert.NewDispatcher(alert.DispatcherConfig{
		Notifier: n,
		Cooldown: 300 * time.Second,
		Clock:    clk,
	})

	assert.True(t, d.Fire(context.Background(), mustFailover(t)))
	// A different alert type has its own registry entry.
	assert.True(t, d.Fire(context.Background(), mustErrorRate(t)))
	assert.Equal(t, 2, n.count())
}

func TestDispatcher_FailedDeliveryDoesNotConsumeCooldown(t *testing.T) {
	n := &fakeNotifier{err: errors.New("connection refused")}
	clk := clock.NewVirtual(time.Now())
	d := alert.NewDispatcher(alert.DispatcherConfig{
		Notifier: n,
		Cooldown: 300 * time.Second,
		Clock:    clk,
	})

	assert.False(t, d.Fire(context.Background(), mustFailover(t)))

	// The transport recovers; the very next qualifying event may retry
	// immediately because the failed send consumed no cooldown.
	n.mu.Lock()
	n.err = nil
	n.mu.Unlock()
	assert.True(t, d.Fire(context.Background(), mustFailover(t)))
}

func TestDispatcher_NotConfiguredSuppressed(t *testing.T) {
	d := alert.NewDispatcher(alert.DispatcherConfig{
		Notifier: alert.NewSlack(""),
		Cooldown: time.Minute,
	})
	assert.False(t, d.Fire(context.Background(), mustFailover(t)))
}

func TestDispatcher_MaintenanceSuppressed(t *testing.T) {
	n := &fakeNotifier{}
	maintenance := true
	d := alert.NewDispatcher(alert.DispatcherConfig{
		Notifier:    n,
		Cooldown:    time.Minute,
		Maintenance: func() bool { return maintenance },
	})

	assert.False(t, d.Fire(context.Background(), mustFailover(t)))
	assert.Equal(t, 0, n.count())

	maintenance = false
	assert.True(t, d.Fire(context.Background(), mustFailover(t)))
}

func TestDispatcher_RecordsDeliveredAlerts(t *testing.T) {
	n := &fakeNotifier{}
	r := &fakeRecorder{}
	clk := clock.NewVirtual(time.Now())
	d := alert.NewDispatcher(alert.DispatcherConfig{
		Notifier: n,
		Recorder: r,
		Cooldown: time.Minute,
		Clock:    clk,
	})

	a := mustFailover(t)
	require.True(t, d.Fire(context.Background(), a))

	r.mu.Lock()
	defer r.mu.Unlock()
	require.Len(t, r.recorded, 1)
	assert.Equal(t, a.ID, r.recorded[0].ID)
}
