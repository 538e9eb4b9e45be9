package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/redis/go-redis/v9"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/semaphore"
)

// ErrPublishBufferFull is returned by Publish when the publisher cannot keep up.
var ErrPublishBufferFull = errors.New("publish buffer full")

const (
	defaultStream     = "genqueue"
	defaultBatchSize  = 100
	defaultReadBlock  = time.Second
	publishTimeout    = 500 * time.Millisecond
	defaultBufferSize = 100
)

// RedisMessageBroker is an implementation of the MessageBroker interface
// that uses a Redis stream. Events are batched by a background publisher and
// each batch is one stream entry.
type RedisMessageBroker struct {
	stream string
	client *redis.Client

	// initialLoadOffset replays events this old on startup so a restarted
	// replica does not forget recent admissions.
	initialLoadOffset time.Duration
	maxStreamLen      int64

	backoff        *backoff.Backoff
	publishChannel chan Event
	logger         *slog.Logger

	sem *semaphore.Weighted
}

// NewRedisMessageBroker creates a broker on rdb.
func NewRedisMessageBroker(rdb *redis.Client, opts ...func(*RedisMessageBroker)) *RedisMessageBroker {
	b := backoff.Backoff{
		Min:    100 * time.Millisecond,
		Max:    10 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	rb := &RedisMessageBroker{
		client:         rdb,
		stream:         defaultStream,
		backoff:        &b,
		publishChannel: make(chan Event, defaultBufferSize),
		logger:         slog.Default(),
		sem:            semaphore.NewWeighted(int64(100)), // default to 100 publish routines
	}

	for _, opt := range opts {
		opt(rb)
	}

	return rb
}

// WithMaxThreads sets the maximum number of concurrent batch publishes.
func WithMaxThreads(maxThreads int) func(*RedisMessageBroker) {
	return func(rb *RedisMessageBroker) {
		rb.sem = semaphore.NewWeighted(int64(maxThreads))
	}
}

// WithStream sets the Redis stream name. Replicas sharing rate windows must
// use the same stream. Default "genqueue".
func WithStream(stream string) func(*RedisMessageBroker) {
	return func(rb *RedisMessageBroker) {
		rb.stream = stream
	}
}

// WithCappedStream sets the approximate Redis stream max length.
func WithCappedStream(maxLen int64) func(*RedisMessageBroker) {
	return func(rb *RedisMessageBroker) {
		rb.maxStreamLen = maxLen
	}
}

// WithInitLoadOffset replays events newer than now-offset on startup. Set it
// to the rate window.
func WithInitLoadOffset(offset time.Duration) func(*RedisMessageBroker) {
	return func(rb *RedisMessageBroker) {
		rb.initialLoadOffset = offset
	}
}

// WithBufferSize sets how many events may wait for the publisher.
func WithBufferSize(size int) func(*RedisMessageBroker) {
	return func(rb *RedisMessageBroker) {
		rb.publishChannel = make(chan Event, size)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) func(*RedisMessageBroker) {
	return func(rb *RedisMessageBroker) {
		rb.logger = logger
	}
}

// Start runs the publisher and the consumer in the background.
func (r *RedisMessageBroker) Start(ctx context.Context, handlerFunc func(Event)) {
	go func() {
		if err := r.StartPublisher(ctx); err != nil {
			r.logger.Error("error publishing messages in publisher", slog.Any("error", err))
		}
	}()

	go func() {
		if err := r.Consume(ctx, handlerFunc); err != nil {
			r.logger.Error("error consuming messages", slog.Any("error", err))
		}
	}()
}

// Publish hands ev to the background publisher without blocking.
func (r *RedisMessageBroker) Publish(ctx context.Context, ev Event) error {
	select {
	case r.publishChannel <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrPublishBufferFull
	}
}

// StartPublisher drains the publish channel in batches until ctx is done.
func (r *RedisMessageBroker) StartPublisher(ctx context.Context) error {
	for {
		events, ok := r.nextBatch(ctx)
		if !ok {
			return nil
		}

		if err := r.sem.Acquire(ctx, 1); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("acquire publish slot: %w", err)
		}

		go func(events []Event) {
			defer r.sem.Release(1)

			publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
			defer cancel()

			if err := r.publish(publishCtx, events); err != nil {
				r.logger.Error("error publishing message to redis",
					slog.Int("events", len(events)),
					slog.Any("error", err),
				)
			}
		}(events)
	}
}

// nextBatch blocks for the first event and then gathers whatever else is
// ready, up to defaultBatchSize.
func (r *RedisMessageBroker) nextBatch(ctx context.Context) ([]Event, bool) {
	events := make([]Event, 0, defaultBatchSize)

	select {
	case ev := <-r.publishChannel:
		events = append(events, ev)
	case <-ctx.Done():
		return nil, false
	}

	for len(events) < defaultBatchSize {
		select {
		case ev := <-r.publishChannel:
			events = append(events, ev)
		default:
			return events, true
		}
	}
	return events, true
}

// Consume reads the stream and calls handlerFunc for every event until ctx
// is done. Read errors are retried with backoff.
func (r *RedisMessageBroker) Consume(ctx context.Context, handlerFunc func(Event)) error {
	lastMessageID := r.loadInitialMessageID(time.Now())

	for {
		if ctx.Err() != nil {
			return nil
		}

		streams, err := r.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{r.stream, lastMessageID},
			Count:   defaultBatchSize,
			Block:   defaultReadBlock,
		}).Result()

		switch {
		case errors.Is(err, redis.Nil):
			continue
		case ctx.Err() != nil:
			return nil
		case err != nil:
			r.logger.Error("error reading messages from stream",
				slog.String("stream", r.stream),
				slog.Any("error", err),
			)
			if !sleepCtx(ctx, r.backoff.Duration()) {
				return nil
			}
			continue
		}
		r.backoff.Reset()

		// Handle the whole read before moving on to the next one.
		var wg sync.WaitGroup
		for _, stream := range streams {
			for _, xMessage := range stream.Messages {
				lastMessageID = xMessage.ID

				events, err := decodeEvents(xMessage.Values)
				if err != nil {
					r.logger.Warn("skipping malformed stream entry",
						slog.String("id", xMessage.ID),
						slog.Any("error", err),
					)
					continue
				}

				for _, ev := range events {
					wg.Add(1)
					go func(ev Event) {
						defer wg.Done()
						handlerFunc(ev)
					}(ev)
				}
			}
		}
		wg.Wait()
	}
}

// loadInitialMessageID returns "$" (only new entries) or, with an initial
// load offset, the stream id of now-offset.
func (r *RedisMessageBroker) loadInitialMessageID(now time.Time) string {
	if r.initialLoadOffset <= 0 {
		return "$"
	}
	return strconv.FormatInt(now.Add(-r.initialLoadOffset).UnixMilli(), 10)
}

func (r *RedisMessageBroker) publish(ctx context.Context, events []Event) error {
	payload, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("encode events: %w", err)
	}

	return r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]interface{}{"events": payload},
		MaxLen: r.maxStreamLen,
		Approx: r.maxStreamLen > 0,
	}).Err()
}

func decodeEvents(values map[string]interface{}) ([]Event, error) {
	raw, ok := values["events"].(string)
	if !ok {
		return nil, errors.New("missing events field")
	}

	var events []Event
	if err := json.Unmarshal([]byte(raw), &events); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	return events, nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
