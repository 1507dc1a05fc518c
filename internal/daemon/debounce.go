package daemon

import (
	"context"
	"sync"
	"time"

	"github.com/lejeunerenard/file-assets/internal/errors"
)

// Debouncer coalesces bursts of change notifications into single export
// triggers: a quiet window that resets on every notification, bounded by a
// max delay so a steady stream of changes cannot postpone the export
// indefinitely.
//
// It is safe to run as a single goroutine.
type Debouncer struct {
	quiet    time.Duration
	maxDelay time.Duration
	requests chan struct{}
	fire     func(cause string)

	readyOnce sync.Once
	ready     chan struct{}
}

// NewDebouncer creates a debouncer that calls fire once per settled burst.
// maxDelay bounds how long a continuous stream of requests can hold the
// trigger back.
func NewDebouncer(quiet, maxDelay time.Duration, fire func(cause string)) (*Debouncer, error) {
	if quiet <= 0 {
		return nil, errors.DaemonError("debounce quiet window must be positive")
	}
	if maxDelay < quiet {
		maxDelay = 10 * quiet
	}
	if fire == nil {
		return nil, errors.DaemonError("debounce fire callback is required")
	}
	return &Debouncer{
		quiet:    quiet,
		maxDelay: maxDelay,
		requests: make(chan struct{}, 64),
		fire:     fire,
		ready:    make(chan struct{}),
	}, nil
}

// Request records one change notification. It never blocks: an overflowing
// burst keeps its pending state, the max-delay timer bounds how long that
// state can live.
func (d *Debouncer) Request() {
	select {
	case d.requests <- struct{}{}:
	default:
	}
}

// Ready is closed once Run is receiving requests, for deterministic
// startup sequencing in tests.
func (d *Debouncer) Ready() <-chan struct{} {
	return d.ready
}

// Run processes notifications until the context is cancelled.
func (d *Debouncer) Run(ctx context.Context) {
	quietTimer := time.NewTimer(time.Hour)
	stopTimer(quietTimer)
	maxTimer := time.NewTimer(time.Hour)
	stopTimer(maxTimer)

	var (
		quietC  <-chan time.Time
		maxC    <-chan time.Time
		pending bool
	)

	d.readyOnce.Do(func() { close(d.ready) })

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.requests:
			resetTimer(quietTimer, d.quiet)
			quietC = quietTimer.C
			if !pending {
				pending = true
				resetTimer(maxTimer, d.maxDelay)
				maxC = maxTimer.C
			}
		case <-quietC:
			d.fire("quiet")
			pending = false
			quietC, maxC = nil, nil
			stopTimer(maxTimer)
		case <-maxC:
			d.fire("max_delay")
			pending = false
			quietC, maxC = nil, nil
			stopTimer(quietTimer)
		}
	}
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

func resetTimer(t *time.Timer, after time.Duration) {
	stopTimer(t)
	t.Reset(after)
}
