package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/parkerroan/genqueue"
	"github.com/parkerroan/genqueue/broker"
	"github.com/parkerroan/genqueue/clock"
	"github.com/parkerroan/genqueue/limiter"
	"github.com/redis/go-redis/v9"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	Port              int           `envconfig:"SERVER_PORT" default:"8080"`
	MaxQueueSize      int           `envconfig:"MAX_QUEUE_SIZE" default:"10"`
	RateLimit         int           `envconfig:"RATE_LIMIT" default:"5"`
	RateWindow        time.Duration `envconfig:"RATE_WINDOW" default:"60s"`
	MaxProcessing     int           `envconfig:"MAX_PROCESSING" default:"1"`
	Limiter           string        `envconfig:"LIMITER" default:"heap"`
	Workers           int           `envconfig:"WORKERS" default:"1"`
	GenerationTimeout time.Duration `envconfig:"GENERATION_TIMEOUT" default:"5m"`
	BackendURL        string        `envconfig:"BACKEND_URL" required:"true"`
	RedisURL          string        `envconfig:"REDIS_URL"`
	RedisStream       string        `envconfig:"REDIS_STREAM" default:"genqueue"`
	NTPServer         string        `envconfig:"NTP_SERVER"`
	ResultTTL         time.Duration `envconfig:"RESULT_TTL" default:"10m"`
	ResultCacheBytes  int64         `envconfig:"RESULT_CACHE_BYTES" default:"268435456"`
	RequesterHeader   string        `envconfig:"REQUESTER_HEADER" default:"X-Requester-ID"`
	LogLevel          string        `envconfig:"LOG_LEVEL" default:"info"`
}

func main() {
	loadEnvFile()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("genqueued stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	newLimiter, err := limiterFunc(cfg.Limiter)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	var clk clock.Clock = clock.System{}
	if cfg.NTPServer != "" {
		ntpClock := clock.NewNTPClock(cfg.NTPServer, 10*time.Minute, clock.WithNTPLogger(logger))
		if err := ntpClock.Sync(); err != nil {
			return err
		}
		logger.Info("clock synchronized", slog.String("server", cfg.NTPServer), slog.Duration("offset", ntpClock.Offset()))
		g.Go(func() error { return ntpClock.Run(ctx) })
		clk = ntpClock
	}

	coord := genqueue.NewCoordinator(
		genqueue.WithMaxQueueSize(cfg.MaxQueueSize),
		genqueue.WithMaxRequests(cfg.RateLimit),
		genqueue.WithWindow(cfg.RateWindow),
		genqueue.WithMaxProcessing(cfg.MaxProcessing),
		genqueue.WithLimiterConstructorFunc(newLimiter),
		genqueue.WithClock(clk),
		genqueue.WithLogger(logger),
	)

	results, err := genqueue.NewResultCache(cfg.ResultCacheBytes, cfg.ResultTTL)
	if err != nil {
		return err
	}
	defer results.Close()

	svcOpts := []func(*genqueue.Service){genqueue.WithServiceLogger(logger)}
	if cfg.RedisURL != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis at %s: %w", cfg.RedisURL, err)
		}

		mb := broker.NewRedisMessageBroker(rdb,
			broker.WithStream(cfg.RedisStream),
			broker.WithInitLoadOffset(cfg.RateWindow),
			broker.WithLogger(logger),
		)
		svcOpts = append(svcOpts, genqueue.WithBroker(mb))
	}

	svc := genqueue.NewService(coord, results, svcOpts...)
	svc.Start(ctx)

	gen := &httpGenerator{url: cfg.BackendURL, client: &http.Client{}}
	for i := 0; i < cfg.Workers; i++ {
		worker := genqueue.NewWorker(coord, gen,
			genqueue.WithGenerationTimeout(cfg.GenerationTimeout),
			genqueue.WithResultHandler(svc.HandleResult),
			genqueue.WithWorkerLogger(logger.With(slog.Int("worker", i))),
		)
		g.Go(func() error { return worker.Run(ctx) })
	}

	keyGetter := func(r *http.Request) string {
		return r.Header.Get(cfg.RequesterHeader)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           LoggingMiddleware(logger)(genqueue.NewHTTPHandler(svc, keyGetter)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info("listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func limiterFunc(kind string) (limiter.NewLimiterFunc, error) {
	switch kind {
	case "heap":
		return limiter.NewHeapLimiterConstructorFunc(), nil
	case "ring":
		return limiter.NewRingLimiterConstructorFunc(), nil
	case "token":
		return limiter.NewTokenLimiterConstructorFunc(), nil
	default:
		return nil, fmt.Errorf("unknown limiter %q, want heap, ring or token", kind)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code and writes it to the response.
func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs every request once it has been served.
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			recorder := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK, // Default to 200 OK if WriteHeader is not called.
			}
			start := time.Now()

			next.ServeHTTP(recorder, r)

			logger.Info("http request",
				slog.String("method", r.Method),
				slog.String("path", r.RequestURI),
				slog.Int("status", recorder.statusCode),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}

func loadEnvFile() {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			log.Fatalf("Error loading .env file: %s", err)
		}
	} else if !os.IsNotExist(err) {
		slog.Warn(fmt.Sprintf("Unexpected error looking for .env file: %s", err))
	}
}
