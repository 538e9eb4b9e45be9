package genqueue

import (
	"context"
	"testing"
	"time"

	"github.com/parkerroan/genqueue/broker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, clk *fakeClock, opts ...func(*Service)) *Service {
	t.Helper()

	c := newTestCoordinator(clk, WithMaxRequests(2))
	base := []func(*Service){
		WithServiceLogger(discardLogger()),
		WithResultPollInterval(time.Millisecond, 5*time.Millisecond),
	}
	return NewService(c, newTestResultCache(t), append(base, opts...)...)
}

func TestService_SharesRateWindows(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clk := newFakeClock()
	mb := broker.NewLocalBroker()
	east := newTestService(t, clk, WithBroker(mb), WithBrokerID("east"))
	west := newTestService(t, clk, WithBroker(mb), WithBrokerID("west"))
	east.Start(ctx)
	west.Start(ctx)

	require.True(t, east.Submit(ctx, "r", "p", 0).Accepted)
	assert.Equal(t, 1, east.Status("r").RateLimit.Count, "own events are not counted twice")
	assert.Equal(t, 1, west.Status("r").RateLimit.Count)

	// Queues stay local, so west admits the same requester.
	require.True(t, west.Submit(ctx, "r", "p", 0).Accepted)

	res := east.Submit(ctx, "r", "p", 0)
	assert.Equal(t, ReasonRateLimited, res.Reason)

	// Rate limited attempts are not published.
	assert.Equal(t, 2, west.Status("r").RateLimit.Count)
}

func TestService_Status(t *testing.T) {
	svc := newTestService(t, newFakeClock())
	ctx := context.Background()

	require.True(t, svc.Submit(ctx, "a", "p", 0).Accepted)
	require.True(t, svc.Submit(ctx, "b", "p", 0).Accepted)

	st := svc.Status("b")
	assert.Equal(t, StateQueued, st.State)
	assert.Equal(t, "queued", st.StateName)
	assert.Equal(t, 2, st.Position)
	assert.Equal(t, 1, st.RateLimit.Count)

	_, ok := svc.Coordinator().GetNext()
	require.True(t, ok)

	st = svc.Status("a")
	assert.Equal(t, StateProcessing, st.State)
	assert.Zero(t, st.Position)

	assert.False(t, svc.Cancel("a"))
	assert.True(t, svc.Cancel("b"))
	assert.Equal(t, StateIdle, svc.Status("b").State)
}

func TestService_Wait(t *testing.T) {
	svc := newTestService(t, newFakeClock())

	go func() {
		time.Sleep(20 * time.Millisecond)
		svc.HandleResult(Result{ItemID: "item-1", RequesterID: "r", Data: []byte("done")})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := svc.Wait(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, "done", string(res.Data))

	got, ok := svc.Result("item-1")
	assert.True(t, ok)
	assert.Equal(t, res, got)
}

func TestService_WaitTimeout(t *testing.T) {
	svc := newTestService(t, newFakeClock())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := svc.Wait(ctx, "never")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestService_IgnoresUnknownEvents(t *testing.T) {
	clk := newFakeClock()
	svc := newTestService(t, clk, WithBrokerID("self"))

	svc.handleEvent(broker.Event{BrokerID: "self", Event: broker.RequestAdmitted, Key: "r", Timestamp: clk.Now()})
	svc.handleEvent(broker.Event{BrokerID: "other", Event: "SOMETHING_ELSE", Key: "r", Timestamp: clk.Now()})
	assert.Equal(t, 0, svc.Status("r").RateLimit.Count)

	svc.handleEvent(broker.Event{BrokerID: "other", Event: broker.RequestAdmitted, Key: "r", Timestamp: clk.Now()})
	assert.Equal(t, 1, svc.Status("r").RateLimit.Count)
}
