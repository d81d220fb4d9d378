package pipeline

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker writes a single updating progress line.
type ProgressTracker struct {
	writer    io.Writer
	unit      string
	total     int
	current   int
	startTime time.Time
	mu        sync.Mutex
}

// NewProgressTracker creates a tracker for total items of the given unit.
// A nil writer disables output.
func NewProgressTracker(writer io.Writer, unit string, total int) *ProgressTracker {
	return &ProgressTracker{
		writer:    writer,
		unit:      unit,
		total:     total,
		startTime: time.Now(),
	}
}

// Increment advances progress by delta, capped at the total.
func (p *ProgressTracker) Increment(delta int) {
	if p == nil || p.writer == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = min(p.current+delta, p.total)
	p.report()
}

// Finish prints the final line.
func (p *ProgressTracker) Finish() {
	if p == nil || p.writer == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = p.total
	p.report()
	fmt.Fprintln(p.writer)
}

// report must be called with the lock held.
func (p *ProgressTracker) report() {
	elapsed := time.Since(p.startTime).Seconds()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(p.current) / elapsed
	}
	percentage := 100.0
	if p.total > 0 {
		percentage = float64(p.current) / float64(p.total) * 100.0
	}
	fmt.Fprintf(p.writer, "\rProgress: %d/%d (%.1f%%) - %.1f %s/s",
		p.current, p.total, percentage, rate, p.unit)
}
