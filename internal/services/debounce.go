package services

import (
	"strings"
	"sync"
	"time"
)

const defaultDebounceDelay = 350 * time.Millisecond

// Debouncer delivers only the last value pushed within a quiet period.
// Values are trimmed before delivery.
type Debouncer struct {
	delay time.Duration
	fn    func(string)

	mu      sync.Mutex
	timer   *time.Timer
	seq     uint64
	stopped bool
}

func NewDebouncer(delay time.Duration, fn func(string)) *Debouncer {
	if delay <= 0 {
		delay = defaultDebounceDelay
	}
	return &Debouncer{delay: delay, fn: fn}
}

// Push restarts the quiet period with value as the pending value.
func (d *Debouncer) Push(value string) {
	value = strings.TrimSpace(value)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.seq++
	seq := d.seq
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		// a later push or Stop supersedes this timer even if it already fired
		if d.stopped || seq != d.seq {
			d.mu.Unlock()
			return
		}
		d.mu.Unlock()
		d.fn(value)
	})
}

// Stop drops any pending value. Later pushes are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
