package genqueue_test

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/parkerroan/genqueue"
	"github.com/parkerroan/genqueue/limiter"
	"golang.org/x/exp/slog"
)

// ExampleCoordinator shows the admission lifecycle of two requesters.
func ExampleCoordinator() {
	coord := genqueue.NewCoordinator(
		genqueue.WithMaxQueueSize(3),
		genqueue.WithMaxRequests(5),
		genqueue.WithWindow(time.Minute),
		genqueue.WithLimiterConstructorFunc(limiter.NewRingLimiterConstructorFunc()),
		genqueue.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	r1 := coord.AddRequest("R1", "a lighthouse at dusk", 0)
	r2 := coord.AddRequest("R2", "a fox in snow", 1)
	fmt.Println(r1.Position, r2.Position)

	pos, _ := coord.PositionOf("R1")
	fmt.Println(pos)

	item, _ := coord.GetNext()
	fmt.Println(item.RequesterID, coord.State("R2"))

	dup := coord.AddRequest("R2", "another fox", 0)
	fmt.Println(dup.Reason, dup.Err())

	coord.CompleteRequest(item.RequesterID)
	fmt.Println(coord.State("R2"))
	// Output:
	// 1 1
	// 2
	// R2 processing
	// AlreadyProcessing requester already has a request in progress
	// idle
}

// ExampleWorker shows a worker draining the queue into a result cache.
func ExampleWorker() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	coord := genqueue.NewCoordinator(genqueue.WithMaxProcessing(1), genqueue.WithLogger(logger))

	results, err := genqueue.NewResultCache(1<<20, time.Minute)
	if err != nil {
		panic(err)
	}
	defer results.Close()

	svc := genqueue.NewService(coord, results, genqueue.WithServiceLogger(logger))

	gen := genqueue.GeneratorFunc(func(ctx context.Context, item genqueue.QueueItem) ([]byte, error) {
		return []byte("rendered: " + item.Payload), nil
	})
	worker := genqueue.NewWorker(coord, gen,
		genqueue.WithResultHandler(svc.HandleResult),
		genqueue.WithPollInterval(time.Millisecond, 10*time.Millisecond),
		genqueue.WithWorkerLogger(logger),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go worker.Run(ctx)

	res := svc.Submit(ctx, "R1", "a lighthouse at dusk", 0)
	out, err := svc.Wait(ctx, res.ItemID)
	if err != nil {
		panic(err)
	}
	fmt.Println(string(out.Data))
	// Output:
	// rendered: a lighthouse at dusk
}
