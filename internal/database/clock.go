package database

import "time"

// Clock schedules deferred work. The manager never sleeps; every retry goes
// through AfterFunc so tests can drive the schedule by hand.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
	Now() time.Time
}

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// SystemClock is the wall-clock implementation backed by the time package.
type SystemClock struct{}

func (SystemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

func (SystemClock) Now() time.Time { return time.Now() }
