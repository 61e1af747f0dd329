package util

import "sync"

// Window keeps the last N feature values in arrival order, dropping the oldest on overflow.
type Window struct {
	mu   sync.RWMutex
	data []float64
	size int
	pos  int // proxima escrita
	n    int
}

func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{data: make([]float64, size), size: size}
}

func (w *Window) Push(v float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.data[w.pos] = v
	w.pos = (w.pos + 1) % w.size
	if w.n < w.size {
		w.n++
	}
}

// Values returns a copy, oldest first, most recent last.
func (w *Window) Values() []float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]float64, w.n)
	start := (w.pos - w.n + w.size) % w.size
	for i := 0; i < w.n; i++ {
		out[i] = w.data[(start+i)%w.size]
	}
	return out
}

func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.n
}

func (w *Window) Cap() int { return w.size }

func (w *Window) Full() bool { return w.Len() == w.size }

func (w *Window) Reset() {
	w.mu.Lock()
	w.pos, w.n = 0, 0
	w.mu.Unlock()
}
