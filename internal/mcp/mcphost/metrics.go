package mcphost

import (
	"slices"
	"sync"
)

// latencyWindow keeps the last N tool call latencies in a ring buffer for
// percentile calculation. All methods are safe for concurrent use.
type latencyWindow struct {
	mu      sync.Mutex
	samples []int64
	pos     int
	count   int // total writes, may exceed len(samples)
	errors  int
	size    int
}

func newLatencyWindow(size int) *latencyWindow {
	if size <= 0 {
		size = 100
	}
	return &latencyWindow{
		samples: make([]int64, size),
		size:    size,
	}
}

// Record adds one measurement, overwriting the oldest when the buffer is
// full. Error counts are approximate across wraps and clamped to the window
// size.
func (w *latencyWindow) Record(latencyMs int64, isError bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.samples[w.pos] = latencyMs
	w.pos = (w.pos + 1) % w.size
	w.count++

	if isError {
		w.errors++
		if w.errors > w.size {
			w.errors = w.size
		}
	}
}

func (w *latencyWindow) windowLen() int {
	if w.count >= w.size {
		return w.size
	}
	return w.count
}

func (w *latencyWindow) sortedCopy() []int64 {
	n := w.windowLen()
	if n == 0 {
		return nil
	}
	cp := make([]int64, n)
	if w.count >= w.size {
		for i := 0; i < w.size; i++ {
			cp[i] = w.samples[(w.pos+i)%w.size]
		}
	} else {
		copy(cp, w.samples[:n])
	}
	slices.Sort(cp)
	return cp
}

// P50 returns the median latency in ms, or 0 without measurements.
func (w *latencyWindow) P50() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	sorted := w.sortedCopy()
	if len(sorted) == 0 {
		return 0
	}
	return sorted[len(sorted)/2]
}

// P99 returns the 99th-percentile latency in ms, or 0 without measurements.
func (w *latencyWindow) P99() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	sorted := w.sortedCopy()
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * 0.99)
	return sorted[idx]
}

// ErrorRate returns the fraction of windowed calls that errored (0.0-1.0).
func (w *latencyWindow) ErrorRate() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := w.windowLen()
	if n == 0 {
		return 0
	}
	return float64(min(w.errors, n)) / float64(n)
}

// Count returns the total number of recorded calls.
func (w *latencyWindow) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}
