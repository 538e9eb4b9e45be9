package genqueue

import (
	"io"
	"sync"
	"time"

	"golang.org/x/exp/slog"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCoordinator(clk *fakeClock, opts ...func(*Coordinator)) *Coordinator {
	base := []func(*Coordinator){WithClock(clk), WithLogger(discardLogger())}
	return NewCoordinator(append(base, opts...)...)
}
