package common

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of triggers into one trailing-edge call:
// the function runs once the triggers have been quiet for the configured
// interval. A new Trigger before the interval elapses restarts the wait
// and replaces the pending function.
type Debouncer struct {
	mu       sync.Mutex
	interval time.Duration
	timer    *time.Timer
}

func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval}
}

func (d *Debouncer) SetInterval(interval time.Duration) {
	d.mu.Lock()
	d.interval = interval
	d.mu.Unlock()
}

func (d *Debouncer) Interval() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.interval
}

// Trigger schedules fn to run after the quiet interval, replacing any
// previously pending call. With a non-positive interval fn runs
// synchronously.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	if d.interval <= 0 {
		d.mu.Unlock()
		fn()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, fn)
	d.mu.Unlock()
}

// Stop cancels any pending call. Further Triggers work normally.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()
}
