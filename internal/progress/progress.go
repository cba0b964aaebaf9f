// Package progress carries (label, percent) events from the engine to whoever
// started the operation.
package progress

import (
	"sync"

	"github.com/rs/zerolog"
)

// Func receives progress events. Percent is in 0..100.
type Func func(label string, percent int)

// Nop discards events.
func Nop(string, int) {}

// Log returns a sink that writes every event at info level.
func Log(log zerolog.Logger) Func {
	return func(label string, percent int) {
		log.Info().Str("step", label).Int("percent", percent).Msg("progress")
	}
}

// Tracker converts completed steps into percentages and never reports a value
// lower than one it already reported.
type Tracker struct {
	mu    sync.Mutex
	sink  Func
	total int
	done  int
	last  int
}

// NewTracker expects total to be an estimate of the number of steps; done may
// exceed it, in which case progress is capped at 100.
func NewTracker(sink Func, total int) *Tracker {
	if sink == nil {
		sink = Nop
	}
	return &Tracker{sink: sink, total: total}
}

// Report emits the current percentage under label without advancing.
func (t *Tracker) Report(label string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emit(label)
}

// Step marks one step as finished and emits the new percentage.
func (t *Tracker) Step(label string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done++
	t.emit(label)
}

// Finish emits 100 percent.
func (t *Tracker) Finish(label string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = 100
	t.sink(label, 100)
}

func (t *Tracker) emit(label string) {
	pct := 100
	if t.total > 0 {
		pct = t.done * 100 / t.total
	}
	if pct > 100 {
		pct = 100
	}
	if pct < t.last {
		pct = t.last
	}
	t.last = pct
	t.sink(label, pct)
}
