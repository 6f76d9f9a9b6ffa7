package council

import "time"

// Timer is a pending callback. Stop may be called any number of times; it
// reports whether this call prevented the callback from running.
type Timer interface {
	Stop() bool
}

// Clock supplies time and one-shot timers. Callbacks may run on any
// goroutine.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemClock is the wall clock.
func SystemClock() Clock { return systemClock{} }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
