package genqueue

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
)

// Result is the outcome of one generation.
type Result struct {
	ItemID      string        `json:"id"`
	RequesterID string        `json:"requester"`
	Data        []byte        `json:"data,omitempty"`
	Err         string        `json:"error,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Duration    time.Duration `json:"duration"`
}

// Failed reports whether the generation returned an error.
func (r Result) Failed() bool { return r.Err != "" }

// ResultCache holds recent results by item id so that callers can collect
// them after the worker finishes. Entries cost their size in bytes and
// expire after the configured TTL.
type ResultCache struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

// NewResultCache creates a cache bounded to maxBytes of results.
func NewResultCache(maxBytes int64, ttl time.Duration) (*ResultCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create result cache: %w", err)
	}

	return &ResultCache{cache: cache, ttl: ttl}, nil
}

// Put stores res. It returns false if the cache dropped the entry.
func (rc *ResultCache) Put(res Result) bool {
	cost := int64(len(res.Data) + len(res.Err) + 1)
	if !rc.cache.SetWithTTL(res.ItemID, res, cost, rc.ttl) {
		return false
	}

	// Sets are buffered; make this one visible to readers.
	rc.cache.Wait()
	return true
}

// Get returns the result of itemID.
func (rc *ResultCache) Get(itemID string) (Result, bool) {
	v, ok := rc.cache.Get(itemID)
	if !ok {
		return Result{}, false
	}
	res, ok := v.(Result)
	return res, ok
}

// Close stops the cache's background goroutines.
func (rc *ResultCache) Close() {
	rc.cache.Close()
}
