// Package main is the entry point for the bulletin board API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/openaid/bulletin/internal/api"
	"github.com/openaid/bulletin/internal/config"
	"github.com/openaid/bulletin/internal/feed"
	"github.com/openaid/bulletin/internal/health"
	"github.com/openaid/bulletin/internal/middleware"
	"github.com/openaid/bulletin/internal/post"
	"github.com/openaid/bulletin/internal/ranking"
)

// cleanupInterval is how often the in-memory rate limit store sweeps
// expired buckets.
const cleanupInterval = 5 * time.Minute

func main() {
	configFile := flag.String("config", "", "path to YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Bulletin Board API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configFile)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config error:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	// Scoring weights: calibration file overrides merge onto defaults;
	// a broken file degrades to defaults.
	weights, err := ranking.LoadCalibration(cfg.CalibrationFile)
	if err != nil {
		logger.Warn("using default scoring weights", "error", err)
	}

	// The repository recomputes priority on every write so the feed's
	// priority sort reads a field consistent with the post's counters.
	repo := post.NewInMemoryRepository(func(p *post.Post) int {
		return ranking.Score(ranking.Params{
			Category:  p.Category,
			Urgency:   p.Urgency,
			CreatedAt: p.CreatedAt,
			Views:     p.Views,
			Reported:  p.Reported,
			Now:       time.Now(),
		}, weights)
	})
	assembler := feed.NewAssembler(repo)

	metrics := middleware.NewMetrics()
	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		logger.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	// Rate limiting: shared Redis counter when configured, otherwise a
	// per-instance in-memory store with a periodic cleanup sweep.
	var store middleware.RateLimitStore
	var redisClient *redis.Client
	checkers := make(map[string]health.Checker)
	stopCleanup := make(chan struct{})

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		store = middleware.NewRedisRateLimitStore(redisClient, metrics)
		checkers["redis"] = health.NewRedisChecker(redisClient)
	} else {
		inMem := middleware.NewInMemoryRateLimitStore()
		store = inMem
		go func() {
			ticker := time.NewTicker(cleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					inMem.Cleanup()
				case <-stopCleanup:
					return
				}
			}
		}()
	}

	postHandlers := api.NewPostHandlers(repo)
	feedHandlers := api.NewFeedHandlers(assembler)
	suggestHandlers := api.NewSuggestHandlers()
	healthHandlers := api.NewHealthHandlers(checkers)

	keyFunc := middleware.UserKeyFunc()

	// The feed and suggest endpoints carry tighter per-endpoint limits on
	// top of the global one; suggest-as-you-type fires on every keystroke.
	feedLimiter := middleware.RateLimiter(store, middleware.DefaultFeedLimit(), keyFunc, metrics)
	suggestLimiter := middleware.RateLimiter(store, middleware.DefaultSuggestLimit(), keyFunc, metrics)

	mux := http.NewServeMux()
	mux.Handle("/posts/feed", feedLimiter(requireMethod(http.MethodGet, feedHandlers.GetFeed)))
	mux.Handle("/posts/suggest", suggestLimiter(requireMethod(http.MethodPost, suggestHandlers.Suggest)))
	mux.HandleFunc("/posts", requireMethod(http.MethodPost, postHandlers.CreatePost))
	mux.HandleFunc("/posts/", postHandlers.HandlePostByID)
	mux.HandleFunc("/health", healthHandlers.Health)
	mux.HandleFunc("/ready", healthHandlers.Ready)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// Only handle exact root path, everything else returns 404
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
			api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"bulletin-api","version":"0.1.0"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	rateLimit := middleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimitPerMinute,
		WindowDuration:    time.Minute,
	}

	// Apply middleware: RequestID -> Logging -> HTTPMetrics -> RateLimiter
	var handler http.Handler = mux
	handler = middleware.RateLimiter(store, rateLimit, keyFunc, metrics)(handler)
	handler = middleware.HTTPMetrics(metrics)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.RequestID(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	close(stopCleanup)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Warn("failed to close redis client", "error", err)
		}
	}

	logger.Info("server stopped")
}

// requireMethod rejects requests with the wrong HTTP method.
func requireMethod(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeBadRequest)
			api.WriteError(w, ctx, http.StatusMethodNotAllowed, api.ErrCodeBadRequest, "Method not allowed")
			return
		}
		next(w, r)
	}
}
