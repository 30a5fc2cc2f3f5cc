package inference

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spigell/prospector/internal/logger"
	"github.com/spigell/prospector/internal/retry"
	"github.com/spigell/prospector/internal/utils"
)

const (
	tracerName   = "github.com/spigell/prospector/internal/inference"
	maxLogLength = 200
)

// Client is safe for concurrent use.
type Client struct {
	backend Backend
	opts    Options
	logger  *zap.Logger
	limiter *rate.Limiter
	tracer  trace.Tracer

	mu       sync.Mutex
	state    State
	failures int
	lastErr  error

	qmu      sync.RWMutex
	queue    chan job
	running  bool
	closed   bool
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New probes the backend and returns a client in the resulting state. It never
// fails: an unreachable or missing backend yields a client in the failed state
// that serves fallbacks and tries to recover on every request.
func New(ctx context.Context, backend Backend, opts Options, log *zap.Logger) *Client {
	opts = opts.withDefaults()

	provider, model := "", ""
	if backend != nil {
		provider, model = backend.Provider(), backend.Model()
	}

	c := &Client{
		backend: backend,
		opts:    opts,
		logger:  logger.WithInferenceFields(logger.Component(log, "inference"), provider, model),
		tracer:  otel.Tracer(tracerName),
		state:   StateUnavailable,
		queue:   make(chan job, opts.QueueSize),
		done:    make(chan struct{}),
	}

	if opts.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(float64(opts.RequestsPerMinute)/60.0), 1)
	}

	if backend == nil {
		c.transition(StateFailed, "no backend configured", ErrNoBackend)
		return c
	}

	policy := retry.Policy{
		Attempts: opts.MaxRetries,
		Base:     opts.RetryDelay,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			c.logger.Warn("inference probe failed, retrying",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", delay),
				zap.Error(err),
			)
		},
	}

	err := policy.Do(ctx, func(ctx context.Context, attempt int) error {
		_, err := c.call(ctx, opts.ProbePrompt, CategoryProbe, attempt)
		return err
	})
	if err != nil {
		c.transition(StateFailed, "initial probe failed", err)
		return c
	}

	c.transition(StateHealthy, "initial probe succeeded", nil)
	return c
}

// State returns the current health state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Infer returns the model answer for prompt or the category fallback. It never fails.
func (c *Client) Infer(ctx context.Context, prompt, category string) string {
	return c.Do(ctx, Request{Prompt: prompt, Category: category}).Content
}

// Do serves one request through the state machine.
func (c *Client) Do(ctx context.Context, req Request) Response {
	if c.backend == nil {
		return c.fallback(req, ErrNoBackend, 0)
	}

	switch c.State() {
	case StateFailed, StateUnavailable:
		if !c.tryRecover(ctx) {
			return c.fallback(req, ErrBackendFailed, 0)
		}
	}

	var (
		content string
		retries int
	)

	policy := retry.Policy{
		Attempts: c.opts.MaxRetries,
		Base:     c.opts.RetryDelay,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			c.logger.Debug("inference attempt failed, retrying",
				zap.String("category", req.Category),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", delay),
				zap.Error(err),
			)
		},
	}

	err := policy.Do(ctx, func(ctx context.Context, attempt int) error {
		retries = attempt
		out, err := c.call(ctx, req.Prompt, req.Category, attempt)
		if err != nil {
			c.markDegraded(err)
			return err
		}
		content = out
		return nil
	})
	if err != nil {
		c.transition(StateFailed, "retries exhausted", err)
		return c.fallback(req, err, retries)
	}

	c.markHealthy()
	return Response{Content: content, Success: true, RetryCount: retries}
}

// HealthCheck probes a failed backend and reports whether requests can be served.
func (c *Client) HealthCheck(ctx context.Context) bool {
	if c.backend == nil {
		return false
	}
	switch c.State() {
	case StateFailed, StateUnavailable:
		return c.tryRecover(ctx)
	default:
		return true
	}
}

// Status is a point in time snapshot of the client.
type Status struct {
	State               string `json:"state"`
	Provider            string `json:"provider,omitempty"`
	Model               string `json:"model,omitempty"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	LastError           string `json:"last_error,omitempty"`
	QueueLength         int    `json:"queue_length"`
	QueueCapacity       int    `json:"queue_capacity"`
	WorkerRunning       bool   `json:"worker_running"`
}

func (c *Client) Status() Status {
	c.mu.Lock()
	st := Status{
		State:               c.state.String(),
		ConsecutiveFailures: c.failures,
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	c.mu.Unlock()

	if c.backend != nil {
		st.Provider = c.backend.Provider()
		st.Model = c.backend.Model()
	}

	c.qmu.RLock()
	st.QueueLength = len(c.queue)
	st.QueueCapacity = cap(c.queue)
	st.WorkerRunning = c.running && !c.closed
	c.qmu.RUnlock()

	return st
}

// tryRecover runs a single probe and moves the client to healthy on success.
func (c *Client) tryRecover(ctx context.Context) bool {
	if _, err := c.call(ctx, c.opts.ProbePrompt, CategoryProbe, 0); err != nil {
		c.mu.Lock()
		c.failures++
		c.lastErr = err
		c.mu.Unlock()
		c.logger.Debug("inference recovery probe failed", zap.Error(err))
		return false
	}
	c.transition(StateHealthy, "recovery probe succeeded", nil)
	return true
}

func (c *Client) call(ctx context.Context, prompt, category string, attempt int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "inference.generate", trace.WithAttributes(
		attribute.String("inference.category", category),
		attribute.Int("inference.attempt", attempt),
		attribute.String("inference.provider", c.backend.Provider()),
	))
	defer span.End()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return "", fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	c.logger.Debug("inference request",
		zap.String("category", category),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, maxLogLength)),
	)

	out, err := c.backend.Generate(ctx, prompt)
	if err == nil && strings.TrimSpace(out) == "" {
		err = ErrEmptyResponse
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	out = strings.TrimSpace(out)
	c.logger.Debug("inference response",
		zap.String("category", category),
		zap.Int("response_length", utf8.RuneCountInString(out)),
		zap.String("response_preview", utils.TruncateForLog(out, maxLogLength)),
	)
	return out, nil
}

func (c *Client) fallback(req Request, err error, retries int) Response {
	content := Fallback(req.Category)
	c.logger.Warn("inference fallback used",
		zap.String("category", req.Category),
		zap.String("fallback", content),
		zap.Error(err),
	)
	return Response{
		Content:      content,
		Err:          err,
		RetryCount:   retries,
		FallbackUsed: true,
	}
}

func (c *Client) markDegraded(err error) {
	c.mu.Lock()
	c.failures++
	c.lastErr = err
	c.mu.Unlock()
	c.transition(StateDegraded, "attempt failed", err)
}

func (c *Client) markHealthy() {
	c.transition(StateHealthy, "request succeeded", nil)
}

func (c *Client) transition(to State, reason string, err error) {
	c.mu.Lock()
	from := c.state
	c.state = to
	if to == StateHealthy {
		c.failures = 0
		c.lastErr = nil
	} else if err != nil {
		c.lastErr = err
	}
	c.mu.Unlock()

	if from == to {
		return
	}

	fields := []zap.Field{
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.String("reason", reason),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}

	switch to {
	case StateFailed:
		c.logger.Error("inference state changed", fields...)
	case StateDegraded:
		c.logger.Warn("inference state changed", fields...)
	default:
		c.logger.Info("inference state changed", fields...)
	}
}
