package clients

import (
	"time"

	"github.com/dspygo/simba/internal/simbaerr"
)

// transientKinds are the error kinds the retry policy will retry:
// network, rate_limit, and server_5xx.
var transientKinds = map[simbaerr.Kind]bool{
	simbaerr.KindNetwork:   true,
	simbaerr.KindRateLimit: true,
	simbaerr.KindServer5xx: true,
}

// IsTransient reports whether err's Kind is one the retry policy
// should retry. Auth, bad_request, timeout, and parse errors are
// never retried.
func IsTransient(err error) bool {
	e, ok := err.(*simbaerr.Error)
	if !ok {
		return false
	}
	return transientKinds[e.Kind]
}

// BackoffSchedule computes the exponential-backoff-with-jitter wait
// duration for the given (zero-indexed) retry attempt.
type BackoffSchedule struct {
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
	Jitter      func(time.Duration) time.Duration
}

// DefaultBackoffSchedule returns the module's default retry timing.
func DefaultBackoffSchedule() BackoffSchedule {
	return BackoffSchedule{
		InitialWait: 250 * time.Millisecond,
		MaxWait:     10 * time.Second,
		Multiplier:  2.0,
		Jitter:      defaultJitter,
	}
}

// Wait returns the backoff duration for the given attempt (0-indexed),
// with jitter applied.
func (b BackoffSchedule) Wait(attempt int) time.Duration {
	wait := float64(b.InitialWait)
	for i := 0; i < attempt; i++ {
		wait *= b.Multiplier
	}
	d := time.Duration(wait)
	if d > b.MaxWait {
		d = b.MaxWait
	}
	if b.Jitter != nil {
		d = b.Jitter(d)
	}
	return d
}
