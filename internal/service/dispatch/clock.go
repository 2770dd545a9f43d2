package dispatch

import "time"

// Timer is a cancellable timer handle.
type Timer interface {
	Stop() bool
}

// Clock abstracts time so the timer-heavy offer machinery is
// deterministic under test.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

// NewSystemClock returns a Clock backed by the runtime timers.
func NewSystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
