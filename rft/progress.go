package rft

import (
	"sync"
	"time"
)

// ProgressTracker rate-limits progress callbacks for one transfer.
type ProgressTracker struct {
	mu sync.Mutex

	name        string
	transferred int64
	total       int64
	startTime   time.Time
	lastUpdate  time.Time
	lastBytes   int64

	callback func(string, int64, int64, float64)
	interval time.Duration
}

// NewProgressTracker creates a tracker that invokes callback at most once
// per interval.
func NewProgressTracker(callback func(string, int64, int64, float64), interval time.Duration) *ProgressTracker {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &ProgressTracker{
		callback: callback,
		interval: interval,
	}
}

// Start begins tracking a transfer. total is -1 when unknown.
func (pt *ProgressTracker) Start(name string, total int64) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	pt.name = name
	pt.total = total
	pt.transferred = 0
	pt.startTime = time.Now()
	pt.lastUpdate = pt.startTime
	pt.lastBytes = 0
}

// Add records n more bytes and reports progress if the interval elapsed.
func (pt *ProgressTracker) Add(n int64) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	pt.transferred += n

	now := time.Now()
	elapsed := now.Sub(pt.lastUpdate)
	if elapsed < pt.interval {
		return
	}

	rate := float64(pt.transferred-pt.lastBytes) / elapsed.Seconds()
	if pt.callback != nil {
		pt.callback(pt.name, pt.transferred, pt.total, rate)
	}

	pt.lastUpdate = now
	pt.lastBytes = pt.transferred
}

// Complete issues a final update and returns the transfer duration.
func (pt *ProgressTracker) Complete() time.Duration {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	duration := time.Since(pt.startTime)

	var rate float64
	if duration > 0 {
		rate = float64(pt.transferred) / duration.Seconds()
	}
	if pt.callback != nil {
		pt.callback(pt.name, pt.transferred, pt.total, rate)
	}
	return duration
}

// Transferred returns the bytes recorded so far.
func (pt *ProgressTracker) Transferred() int64 {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	return pt.transferred
}
