package genqueue

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/parkerroan/genqueue/broker"
	"golang.org/x/exp/slog"
)

// Service is the caller-facing layer around a Coordinator. It collects
// worker results and, given a MessageBroker, shares rate windows with other
// replicas: every attempt that consumed quota here is published, and
// attempts published by other replicas are recorded locally. Queues are
// never shared.
type Service struct {
	coord    *Coordinator
	results  *ResultCache
	broker   broker.MessageBroker
	brokerID string
	pollMin  time.Duration
	pollMax  time.Duration
	logger   *slog.Logger
}

// NewService creates a Service over coord storing results in results.
func NewService(coord *Coordinator, results *ResultCache, opts ...func(*Service)) *Service {
	s := &Service{
		coord:    coord,
		results:  results,
		brokerID: uuid.NewString(),
		pollMin:  defaultPollMin,
		pollMax:  defaultPollMax,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// WithBroker shares rate windows through mb.
func WithBroker(mb broker.MessageBroker) func(*Service) {
	return func(s *Service) {
		s.broker = mb
	}
}

// WithBrokerID overrides the random replica id stamped on published events.
func WithBrokerID(id string) func(*Service) {
	return func(s *Service) {
		s.brokerID = id
	}
}

// WithResultPollInterval sets the polling backoff bounds used by Wait.
func WithResultPollInterval(min, max time.Duration) func(*Service) {
	return func(s *Service) {
		s.pollMin = min
		s.pollMax = max
	}
}

// WithServiceLogger sets the logger.
func WithServiceLogger(logger *slog.Logger) func(*Service) {
	return func(s *Service) {
		s.logger = logger
	}
}

// Coordinator returns the underlying coordinator.
func (s *Service) Coordinator() *Coordinator { return s.coord }

// Start begins consuming events from other replicas. It is a no-op without
// a broker.
func (s *Service) Start(ctx context.Context) {
	if s.broker == nil {
		return
	}
	s.broker.Start(ctx, s.handleEvent)
}

// Submit admits a request. Publishing to the broker happens after the
// coordinator has released its lock and never fails the submission.
func (s *Service) Submit(ctx context.Context, requesterID, prompt string, priority int) AddResult {
	res := s.coord.AddRequest(requesterID, prompt, priority)

	if s.broker != nil && res.Reason != ReasonRateLimited {
		ev := broker.Event{
			BrokerID:  s.brokerID,
			Event:     broker.RequestAdmitted,
			Timestamp: res.At,
			Key:       requesterID,
		}
		if err := s.broker.Publish(ctx, ev); err != nil {
			s.logger.Warn("failed to publish admission",
				slog.String("requester", requesterID),
				slog.Any("error", err),
			)
		}
	}

	return res
}

// Cancel removes the requester's pending request.
func (s *Service) Cancel(requesterID string) bool {
	return s.coord.CancelRequest(requesterID)
}

// Status reports the requester's state, queue position and window.
func (s *Service) Status(requesterID string) Status {
	return s.coord.Status(requesterID)
}

// HandleResult stores a worker result. Pass it to WithResultHandler.
func (s *Service) HandleResult(res Result) {
	if !s.results.Put(res) {
		s.logger.Warn("result dropped by cache",
			slog.String("item", res.ItemID),
			slog.Int("bytes", len(res.Data)),
		)
	}
}

// Result returns the stored result of itemID.
func (s *Service) Result(itemID string) (Result, bool) {
	return s.results.Get(itemID)
}

// Wait polls for the result of itemID until it is available or ctx is done.
func (s *Service) Wait(ctx context.Context, itemID string) (Result, error) {
	var res Result
	err := pollUntil(ctx, newPollBackoff(s.pollMin, s.pollMax), func() bool {
		var ok bool
		res, ok = s.results.Get(itemID)
		return ok
	})
	return res, err
}

func (s *Service) handleEvent(ev broker.Event) {
	if ev.BrokerID == s.brokerID || ev.Event != broker.RequestAdmitted {
		return
	}
	s.coord.RecordRemote(ev.Key, ev.Timestamp)
}
