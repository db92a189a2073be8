package detector

// Window is a fixed-capacity FIFO of per-request error flags with a running
// error count. When full, pushing evicts the oldest flag, so the window
// always reflects the most recent observations.
//
// Not safe for concurrent use; callers guard it (ErrorRate does).
type Window struct {
	flags  []bool
	head   int // index of the oldest flag
	size   int
	errors int
}

// NewWindow creates a window with the given capacity. Panics if capacity < 1.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		panic("detector: window capacity must be >= 1")
	}
	return &Window{flags: make([]bool, capacity)}
}

// Push appends an error flag, evicting the oldest flag when at capacity.
func (w *Window) Push(isError bool) {
	if w.size == len(w.flags) {
		if w.flags[w.head] {
			w.errors--
		}
		w.flags[w.head] = isError
		w.head = (w.head + 1) % len(w.flags)
	} else {
		w.flags[(w.head+w.size)%len(w.flags)] = isError
		w.size++
	}
	if isError {
		w.errors++
	}
}

// Len returns the number of flags currently held.
func (w *Window) Len() int { return w.size }

// Cap returns the window capacity.
func (w *Window) Cap() int { return len(w.flags) }

// Errors returns the number of error flags currently held.
func (w *Window) Errors() int { return w.errors }

// Rate returns the error percentage over the current contents,
// 0.0 for an empty window.
func (w *Window) Rate() float64 {
	if w.size == 0 {
		return 0.0
	}
	return float64(w.errors) / float64(w.size) * 100.0
}
