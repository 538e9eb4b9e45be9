package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/parkerroan/genqueue"
	"github.com/parkerroan/genqueue/limiter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func TestLimiterFunc(t *testing.T) {
	testCases := []struct {
		kind string
		want limiter.Limiter
	}{
		{"heap", &limiter.HeapLimiter{}},
		{"ring", &limiter.RingLimiter{}},
		{"token", &limiter.TokenLimiter{}},
	}

	for _, tc := range testCases {
		t.Run(tc.kind, func(t *testing.T) {
			fn, err := limiterFunc(tc.kind)
			require.NoError(t, err)
			assert.IsType(t, tc.want, fn(5, time.Minute))
		})
	}

	_, err := limiterFunc("bucket")
	assert.Error(t, err)
}

func TestHTTPGenerator(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.Prompt == "fail" {
			http.Error(w, "out of memory", http.StatusInternalServerError)
			return
		}
		w.Write([]byte("image for " + req.Prompt))
	}))
	defer backend.Close()

	gen := &httpGenerator{url: backend.URL, client: backend.Client()}

	data, err := gen.Generate(context.Background(), genqueue.QueueItem{Payload: "a cat"})
	require.NoError(t, err)
	assert.Equal(t, "image for a cat", string(data))

	_, err = gen.Generate(context.Background(), genqueue.QueueItem{Payload: "fail"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend returned 500: out of memory")
}

func TestLoggingMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
