package genqueue

import (
	"context"
	"time"

	"github.com/jpillora/backoff"
)

const (
	defaultPollMin = 100 * time.Millisecond
	defaultPollMax = 2 * time.Second
)

func newPollBackoff(min, max time.Duration) *backoff.Backoff {
	return &backoff.Backoff{
		Min:    min,
		Max:    max,
		Factor: 1.5,
		Jitter: true,
	}
}

// pollUntil calls done until it returns true, sleeping between attempts with
// b. Each call of done takes its own locks; nothing is held while sleeping.
func pollUntil(ctx context.Context, b *backoff.Backoff, done func() bool) error {
	for {
		if done() {
			return nil
		}
		if !sleep(ctx, b.Duration()) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
