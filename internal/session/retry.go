package session

import "time"

// RetryPolicy decides how long a session waits before reinitializing after
// its attempt-th consecutive failed cycle.
type RetryPolicy interface {
	Delay(attempt int) time.Duration
}

// FixedDelay waits the same duration before every attempt.
type FixedDelay time.Duration

func (d FixedDelay) Delay(int) time.Duration { return time.Duration(d) }

// NoDelay reinitializes immediately.
var NoDelay RetryPolicy = FixedDelay(0)
