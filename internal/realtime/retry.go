package realtime

import (
	"context"
	"time"
)

// RetryPolicy bounds redelivery of a failed send.  Attempts counts the
// first try; Backoff is the pause between tries.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultRetryPolicy is used for critical events when none is configured.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Backoff: time.Second}

// once is applied to routine events.
var once = RetryPolicy{Attempts: 1}

// Do calls fn with attempt numbers starting at 1 until it succeeds, the
// attempts are used up or ctx ends.  The last error from fn is returned,
// or ctx.Err() if ctx ended during a backoff.
func (p RetryPolicy) Do(ctx context.Context, fn func(attempt int) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(attempt); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		if p.Backoff > 0 {
			t := time.NewTimer(p.Backoff)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		} else if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}
