package clock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/beevik/ntp"
	"golang.org/x/exp/slog"
)

// NTPClock is the local clock corrected by the offset reported by an NTP
// server. Replicas that share rate windows through a broker stamp events
// with this clock so their timestamps agree.
type NTPClock struct {
	server   string
	interval time.Duration
	query    func(host string) (*ntp.Response, error)
	logger   *slog.Logger

	mu     sync.RWMutex
	offset time.Duration
}

// NewNTPClock creates a clock synchronized against server every interval.
// Call Sync once before use, then Run to keep the offset fresh.
func NewNTPClock(server string, interval time.Duration, opts ...func(*NTPClock)) *NTPClock {
	c := &NTPClock{
		server:   server,
		interval: interval,
		query:    ntp.Query,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithNTPLogger sets the logger used for sync failures.
func WithNTPLogger(logger *slog.Logger) func(*NTPClock) {
	return func(c *NTPClock) {
		c.logger = logger
	}
}

// Now returns the corrected time.
func (c *NTPClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Now().Add(c.offset)
}

// Offset returns the last measured offset.
func (c *NTPClock) Offset() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}

// Sync queries the server once and stores the measured offset.
func (c *NTPClock) Sync() error {
	resp, err := c.query(c.server)
	if err != nil {
		return fmt.Errorf("query ntp server %s: %w", c.server, err)
	}
	if err := resp.Validate(); err != nil {
		return fmt.Errorf("validate ntp response from %s: %w", c.server, err)
	}

	c.mu.Lock()
	c.offset = resp.ClockOffset
	c.mu.Unlock()
	return nil
}

// Run re-syncs every interval until ctx is done. Failures keep the previous
// offset.
func (c *NTPClock) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.Sync(); err != nil {
				c.logger.Warn("ntp sync failed", slog.String("server", c.server), slog.Any("error", err))
			}
		}
	}
}
