// Package broker distributes admission events between replicas so that
// every replica's rate windows count requests admitted anywhere.
package broker

import (
	"context"
	"time"
)

const (
	// RequestAdmitted is the event type for an admission attempt that passed
	// the rate check and consumed quota.
	RequestAdmitted = "REQUEST_ADMITTED"
)

// Event is the data sent through the broker.
type Event struct {
	BrokerID  string    `json:"broker_id"` // The ID of the publishing replica
	Event     string    `json:"event"`     // Type of event, e.g. RequestAdmitted
	Timestamp time.Time `json:"timestamp"` // When the event occurred
	Key       string    `json:"key"`       // The requester id
}

// MessageBroker publishes and consumes events. It could be implemented on
// any message broker, e.g. Redis streams or Kafka.
type MessageBroker interface {
	// Start consumes events in the background until ctx is done, calling
	// handlerFunc for each one.
	Start(ctx context.Context, handlerFunc func(Event))
	Publish(ctx context.Context, ev Event) error
}
