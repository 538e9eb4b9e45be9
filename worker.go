package genqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jpillora/backoff"
	"golang.org/x/exp/slog"
)

// ErrGeneratorPanic wraps a panic recovered from a Generator.
var ErrGeneratorPanic = errors.New("generator panicked")

// Generator calls the external generation backend.
type Generator interface {
	Generate(ctx context.Context, item QueueItem) ([]byte, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, item QueueItem) ([]byte, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, item QueueItem) ([]byte, error) {
	return f(ctx, item)
}

// ResultHandler receives every finished generation, successful or not.
type ResultHandler func(Result)

// Worker takes items from a Coordinator and runs them through a Generator.
// Every item it takes is completed, whatever the generator does.
type Worker struct {
	coord    *Coordinator
	gen      Generator
	timeout  time.Duration
	backoff  *backoff.Backoff
	onResult ResultHandler
	logger   *slog.Logger
}

// NewWorker creates a Worker. By default it polls between 100ms and 2s when
// the queue is empty and applies no generation timeout.
func NewWorker(coord *Coordinator, gen Generator, opts ...func(*Worker)) *Worker {
	w := &Worker{
		coord:    coord,
		gen:      gen,
		backoff:  newPollBackoff(defaultPollMin, defaultPollMax),
		onResult: func(Result) {},
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// WithGenerationTimeout bounds each generation call. When it fires the
// processing slot is released even if the generator ignores its context and
// keeps running, so with WithMaxProcessing the backend may briefly see more
// calls than the cap. Such abandoned calls are logged.
func WithGenerationTimeout(timeout time.Duration) func(*Worker) {
	return func(w *Worker) {
		w.timeout = timeout
	}
}

// WithPollInterval sets the idle polling backoff bounds.
func WithPollInterval(min, max time.Duration) func(*Worker) {
	return func(w *Worker) {
		w.backoff = newPollBackoff(min, max)
	}
}

// WithResultHandler sets the handler called for every finished item.
func WithResultHandler(h ResultHandler) func(*Worker) {
	return func(w *Worker) {
		w.onResult = h
	}
}

// WithWorkerLogger sets the logger.
func WithWorkerLogger(logger *slog.Logger) func(*Worker) {
	return func(w *Worker) {
		w.logger = logger
	}
}

// Run processes items until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		item, ok := w.coord.GetNext()
		if !ok {
			if !sleep(ctx, w.backoff.Duration()) {
				return nil
			}
			continue
		}

		w.backoff.Reset()
		w.process(ctx, item)
	}
}

// process runs one item. The processing slot is released last, after the
// result handler has seen the outcome.
func (w *Worker) process(ctx context.Context, item QueueItem) {
	defer w.coord.CompleteRequest(item.RequesterID)

	start := w.coord.Now()
	data, err := w.generate(ctx, item)
	end := w.coord.Now()

	res := Result{
		ItemID:      item.ID,
		RequesterID: item.RequesterID,
		Data:        data,
		StartedAt:   start,
		CompletedAt: end,
		Duration:    end.Sub(start),
	}

	if err != nil {
		res.Err = err.Error()
		w.logger.Error("generation failed",
			slog.String("requester", item.RequesterID),
			slog.String("item", item.ID),
			slog.Any("error", err),
		)
	} else {
		w.logger.Info("generation finished",
			slog.String("requester", item.RequesterID),
			slog.String("item", item.ID),
			slog.Duration("duration", res.Duration),
		)
	}

	w.onResult(res)
}

type generation struct {
	data []byte
	err  error
}

// generate calls the generator in its own goroutine so that the timeout
// frees the slot even if the generator ignores its context.
func (w *Worker) generate(ctx context.Context, item QueueItem) ([]byte, error) {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	done := make(chan generation, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- generation{err: fmt.Errorf("%w: %v", ErrGeneratorPanic, r)}
			}
		}()

		data, err := w.gen.Generate(ctx, item)
		done <- generation{data: data, err: err}
	}()

	select {
	case g := <-done:
		return g.data, g.err
	case <-ctx.Done():
		w.logger.Warn("abandoning generation, slot released while generator still runs",
			slog.String("requester", item.RequesterID),
			slog.String("item", item.ID),
			slog.Any("error", ctx.Err()),
		)
		return nil, fmt.Errorf("generate %s: %w", item.ID, ctx.Err())
	}
}
