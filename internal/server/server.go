// Package server exposes the HTTP surface of the rewrite gateway:
// the rewrite endpoint, health endpoints and prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/rewriter/internal/core/apierror"
	"github.com/vietddude/rewriter/internal/core/domain"
	"github.com/vietddude/rewriter/internal/metrics"
	"github.com/vietddude/rewriter/internal/perf"
	"github.com/vietddude/rewriter/internal/queue"
	"github.com/vietddude/rewriter/internal/retry"
)

// Rewriter is the remote completion collaborator.
type Rewriter interface {
	Rewrite(ctx context.Context, prompt, contextText string) (string, error)
}

// ResultCache is the optional rewrite-result cache.
type ResultCache interface {
	Get(ctx context.Context, prompt, contextText string) (string, bool)
	Set(ctx context.Context, prompt, contextText, result string)
}

// Limits bounds accepted input sizes.
type Limits struct {
	MaxPromptChars  int
	MaxContextChars int
}

// Server wires the scheduler, retry executor and completion client
// behind HTTP handlers.
type Server struct {
	scheduler *queue.Scheduler
	executor  *retry.Executor
	rewriter  Rewriter
	cache     ResultCache // nil when caching is disabled
	monitor   *perf.Monitor
	limits    Limits
	log       *slog.Logger
	server    *http.Server
}

// New creates a server listening on port.
func New(
	port int,
	scheduler *queue.Scheduler,
	executor *retry.Executor,
	rewriter Rewriter,
	cache ResultCache,
	monitor *perf.Monitor,
	limits Limits,
	log *slog.Logger,
) *Server {
	if log == nil {
		log = slog.Default()
	}
	mux := http.NewServeMux()
	s := &Server{
		scheduler: scheduler,
		executor:  executor,
		rewriter:  rewriter,
		cache:     cache,
		monitor:   monitor,
		limits:    limits,
		log:       log,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/v1/rewrite", s.handleRewrite)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/detailed", s.handleDetailed)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler returns the underlying handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) handleRewrite(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rctx := &domain.RequestContext{
		RequestID: uuid.New().String(),
		Endpoint:  "/v1/rewrite",
		UserAgent: r.UserAgent(),
		Origin:    r.RemoteAddr,
		Timestamp: start,
	}

	if r.Method != http.MethodPost {
		s.writeError(w, apierror.New(domain.ErrMethodNotAllowed, nil).WithContext(rctx))
		return
	}

	var req domain.RewriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apierror.New(domain.ErrInvalidText,
			fmt.Errorf("decode body: %w", err)).WithContext(rctx))
		return
	}

	if aerr := s.validate(req); aerr != nil {
		s.writeError(w, aerr.WithContext(rctx))
		return
	}

	prompt := strings.TrimSpace(req.Prompt)
	contextText := req.Context

	if s.cache != nil {
		if text, ok := s.cache.Get(r.Context(), prompt, contextText); ok {
			s.log.Debug("cache hit", "request_id", rctx.RequestID)
			s.writeResult(w, domain.RewriteResult{Text: text, Cached: true}, start)
			return
		}
	}

	op := s.rewriteOperation(prompt, contextText)
	fut := s.scheduler.Enqueue(op, rctx.RequestID)

	value, err := fut.Wait(r.Context())
	if err != nil {
		aerr := apierror.From(err).WithContext(rctx)
		apierror.Log(s.log, aerr)
		s.writeError(w, aerr)
		return
	}

	text, _ := value.(string)
	if s.cache != nil {
		s.cache.Set(r.Context(), prompt, contextText, text)
	}
	s.writeResult(w, domain.RewriteResult{Text: text}, start)
}

// rewriteOperation wraps the retry-executed completion call as a
// scheduler operation and feeds the performance monitor on completion.
func (s *Server) rewriteOperation(prompt, contextText string) queue.Operation {
	return func(ctx context.Context) (any, error) {
		res := s.executor.Execute(ctx, func(ctx context.Context) (any, error) {
			return s.rewriter.Rewrite(ctx, prompt, contextText)
		}, "rewrite")

		metric := perf.Metric{
			Duration:   res.Elapsed,
			PromptSize: len(prompt) + len(contextText),
			Retries:    len(res.Attempts) - 1,
			Success:    res.Success,
		}
		if res.Success {
			if text, ok := res.Value.(string); ok {
				metric.ResponseSize = len(text)
			}
			s.monitor.Record(metric)
			return res.Value, nil
		}
		metric.Code = res.Err.Code
		s.monitor.Record(metric)
		return nil, res.Err
	}
}

func (s *Server) validate(req domain.RewriteRequest) *apierror.Error {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return apierror.New(domain.ErrInvalidPrompt, nil)
	}
	if s.limits.MaxPromptChars > 0 && len(prompt) > s.limits.MaxPromptChars {
		return apierror.New(domain.ErrInvalidPrompt,
			fmt.Errorf("prompt length %d exceeds %d", len(prompt), s.limits.MaxPromptChars))
	}
	if s.limits.MaxContextChars > 0 && len(req.Context) > s.limits.MaxContextChars {
		return apierror.New(domain.ErrInvalidText,
			fmt.Errorf("context length %d exceeds %d", len(req.Context), s.limits.MaxContextChars))
	}
	return nil
}

func (s *Server) writeResult(w http.ResponseWriter, result domain.RewriteResult, start time.Time) {
	metrics.RewriteRequests.WithLabelValues("ok").Inc()
	metrics.RewriteDuration.Observe(time.Since(start).Seconds())
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// writeError returns the stable {code, message} pair. Internal detail
// stays in the logs.
func (s *Server) writeError(w http.ResponseWriter, aerr *apierror.Error) {
	metrics.RewriteRequests.WithLabelValues("error").Inc()
	metrics.RewriteErrors.WithLabelValues(string(aerr.Code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(aerr.Status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    string(aerr.Code),
			"message": aerr.Message,
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	healthy := s.scheduler.Healthy() && s.monitor.Healthy()

	status := "healthy"
	code := http.StatusOK
	if !healthy {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	report := map[string]any{
		"healthy":         s.scheduler.Healthy() && s.monitor.Healthy(),
		"queue":           s.scheduler.Stats(),
		"performance":     s.monitor.Stats(),
		"recommendations": s.monitor.Recommendations(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}
