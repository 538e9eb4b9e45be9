/*
Package genqueue provides admission control for a shared generation backend:
a bounded priority queue with per-requester rate limiting and at most one
pending or in-flight request per requester.

The Coordinator is the core. It owns a RateLimiter, an AdmissionQueue and a
ProcessingRegistry and serializes every operation on them under one lock.
Expected rejections (rate limited, queue full, duplicates) are ordinary
results described by a Reason, never errors or panics.

Example:

	import (
		"time"
		"github.com/parkerroan/genqueue"
	)

	coord := genqueue.NewCoordinator(
		genqueue.WithMaxQueueSize(10),
		genqueue.WithMaxRequests(5),
		genqueue.WithWindow(60*time.Second),
	)

	res := coord.AddRequest("user-1", "a red fox", 0)
	if !res.Accepted {
		// res.Reason, res.RateLimit.Reset
	}

A Worker drains the coordinator into a Generator and always completes the
request, including after timeouts and panics. The caller decides how many
workers run; WithMaxProcessing caps in-flight work inside the coordinator.

The Service wraps a coordinator for callers: it keeps worker results in a
ResultCache and, with a broker.MessageBroker, shares rate windows between
replicas. NewHTTPHandler exposes a Service over HTTP.

Per-requester windows are built by a limiter.NewLimiterFunc. The default is
the heap based sliding window; limiter also provides a ring buffer and a
token bucket:
- Heap  (https://github.com/parkerroan/genqueue/limiter)
- Ring
- Token
*/
package genqueue
