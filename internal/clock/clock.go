// Package clock provides the monotonic millisecond time source consumed by
// the quarantine/migrate pipeline.
package clock

import "time"

// Source yields monotonic milliseconds. Production code uses System; tests
// inject a Manual source so migrate-interval expiry is deterministic.
type Source interface {
	NowMS() uint64
}

// systemSource reads the real monotonic clock via time.Now.
type systemSource struct{ start time.Time }

func newSystemSource() *systemSource {
	return &systemSource{start: time.Now()}
}

func (s *systemSource) NowMS() uint64 {
	return uint64(time.Since(s.start).Milliseconds())
}

var system = newSystemSource()

// System is the process-wide monotonic clock.
var System Source = system

// NowMS returns the current time in milliseconds on the process-wide clock.
func NowMS() uint64 { return System.NowMS() }

// Manual is a Source a test can advance explicitly, avoiding any dependency
// on wall-clock sleeps to exercise MIGRATE_INTERVAL_MS expiry.
type Manual struct {
	ms uint64
}

// NewManual returns a Manual clock starting at the given millisecond value.
func NewManual(startMS uint64) *Manual {
	return &Manual{ms: startMS}
}

func (m *Manual) NowMS() uint64 { return m.ms }

// Advance moves the clock forward by delta milliseconds.
func (m *Manual) Advance(delta uint64) { m.ms += delta }

// Set pins the clock to an absolute millisecond value.
func (m *Manual) Set(ms uint64) { m.ms = ms }
