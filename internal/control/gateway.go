// Package control wires the rewrite gateway together and manages its
// lifecycle. All components are explicitly constructed and injected;
// there are no process-wide singletons.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vietddude/rewriter/internal/core/apierror"
	"github.com/vietddude/rewriter/internal/core/config"
	"github.com/vietddude/rewriter/internal/core/domain"
	"github.com/vietddude/rewriter/internal/infra/ai"
	"github.com/vietddude/rewriter/internal/infra/cache"
	"github.com/vietddude/rewriter/internal/perf"
	"github.com/vietddude/rewriter/internal/queue"
	"github.com/vietddude/rewriter/internal/retry"
	"github.com/vietddude/rewriter/internal/server"
)

// Gateway is the main application struct.
type Gateway struct {
	cfg       *config.AppConfig
	scheduler *queue.Scheduler
	executor  *retry.Executor
	monitor   *perf.Monitor
	cache     *cache.Cache
	srv       *server.Server
	log       *slog.Logger
}

// NewGateway creates a gateway with all dependencies initialized.
// Misconfiguration (a missing completion endpoint or API key, an
// unreachable configured cache) fails here, not on first use.
func NewGateway(cfg *config.AppConfig, log *slog.Logger) (*Gateway, error) {
	if log == nil {
		log = slog.Default()
	}

	client, err := ai.NewClient(ai.Config{
		Endpoint: cfg.Completion.Endpoint,
		APIKey:   cfg.Completion.APIKey,
		Model:    cfg.Completion.Model,
		Timeout:  time.Duration(cfg.Completion.TimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init completion client: %w", err)
	}

	var resultCache *cache.Cache
	var cacheIface server.ResultCache
	if cfg.Cache.URL != "" {
		resultCache, err = cache.New(cache.Config{
			URL:      cfg.Cache.URL,
			Password: cfg.Cache.Password,
			TTL:      time.Duration(cfg.Cache.TTLMs) * time.Millisecond,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to init result cache: %w", err)
		}
		cacheIface = resultCache
		log.Info("Result cache enabled", "ttl_ms", cfg.Cache.TTLMs)
	} else {
		log.Info("Result cache disabled")
	}

	scheduler := queue.NewScheduler(cfg.Queue.SchedulerConfig(), log)
	executor := retry.NewExecutor(cfg.Retry.Policy(), log)
	monitor := perf.NewMonitor(cfg.Monitor.Thresholds())

	srv := server.New(
		cfg.Server.Port,
		scheduler,
		executor,
		client,
		cacheIface,
		monitor,
		server.Limits{
			MaxPromptChars:  cfg.Server.MaxPromptChars,
			MaxContextChars: cfg.Server.MaxContextChars,
		},
		log,
	)

	return &Gateway{
		cfg:       cfg,
		scheduler: scheduler,
		executor:  executor,
		monitor:   monitor,
		cache:     resultCache,
		srv:       srv,
		log:       log,
	}, nil
}

// Start begins serving. It returns once the listener is started.
func (g *Gateway) Start(ctx context.Context) error {
	go func() {
		g.log.Info("Rewrite gateway listening", "port", g.cfg.Server.Port)
		if err := g.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.log.Error("HTTP server failed", "error", err)
		}
	}()
	return nil
}

// Stop shuts the gateway down: the HTTP server stops accepting
// requests, backlogged tasks are rejected, and the cache connection is
// closed. Already-active tasks run to completion.
func (g *Gateway) Stop(ctx context.Context) error {
	if err := g.srv.Stop(ctx); err != nil {
		g.log.Warn("HTTP server shutdown failed", "error", err)
	}

	g.scheduler.Clear(apierror.New(domain.ErrAPIUnavailable,
		fmt.Errorf("gateway shutting down")))

	if g.cache != nil {
		if err := g.cache.Close(); err != nil {
			g.log.Warn("Cache close failed", "error", err)
		}
	}

	g.log.Info("Gateway stopped")
	return nil
}
