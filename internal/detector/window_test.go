package detector_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/poolwatch/poolwatch/internal/detector"
)

func TestWindow_Empty(t *testing.T) {
	w := detector.NewWindow(5)
	assert.Equal(t, 0, w.Len())
	assert.Equal(t, 0, w.Errors())
	assert.Equal(t, 0.0, w.Rate())
}

func TestWindow_FIFOEviction(t *testing.T) {
	w := detector.NewWindow(3)

	// Fill: [err, ok, ok]
	w.Push(true)
	w.Push(false)
	w.Push(false)
	assert.Equal(t, 3, w.Len())
	assert.Equal(t, 1, w.Errors())

	// Push evicts the oldest (the error): [ok, ok, ok]
	w.Push(false)
	assert.Equal(t, 3, w.Len())
	assert.Equal(t, 0, w.Errors())

	// Errors roll through in arrival order.
	w.Push(true)
	w.Push(true)
	assert.Equal(t, 2, w.Errors())
	w.Push(false)
	assert.Equal(t, 2, w.Errors()) // evicted a success
	w.Push(false)
	assert.Equal(t, 1, w.Errors()) // evicted the older error
}

func TestWindow_LenNeverExceedsCapacity(t *testing.T) {
	w := detector.NewWindow(10)
	for i := 0; i < 1000; i++ {
		w.Push(i%3 == 0)
		assert.LessOrEqual(t, w.Len(), 10)
	}
	assert.Equal(t, 10, w.Len())
}

func TestWindow_ReflectsMostRecentObservations(t *testing.T) {
	w := detector.NewWindow(4)
	// 6 pushes; only the last 4 (true, true, false, false) remain.
	for _, f := range []bool{false, false, true, true, false, false} {
		w.Push(f)
	}
	assert.Equal(t, 4, w.Len())
	assert.Equal(t, 2, w.Errors())
	assert.Equal(t, 50.0, w.Rate())
}

func TestWindow_RateFormula(t *testing.T) {
	w := detector.NewWindow(8)
	w.Push(true)
	assert.Equal(t, 100.0, w.Rate())
	w.Push(false)
	assert.Equal(t, 50.0, w.Rate())
	w.Push(false)
	w.Push(false)
	assert.Equal(t, 25.0, w.Rate())
}

func TestWindow_AllError(t *testing.T) {
	w := detector.NewWindow(5)
	for i := 0; i < 5; i++ {
		w.Push(true)
	}
	assert.Equal(t, 100.0, w.Rate())
}

func TestNewWindow_PanicsOnZeroCapacity(t *testing.T) {
	assert.Panics(t, func() { detector.NewWindow(0) })
}
