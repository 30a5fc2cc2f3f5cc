// Package inference wraps a language model backend with a health state
// machine, bounded retries, category specific fallbacks and an async queue.
package inference

import (
	"context"
	"errors"
	"time"

	"github.com/spigell/prospector/internal/leads"
)

// Backend is a single language model provider.
type Backend interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Provider() string
	Model() string
}

// State is the health of the backend as observed by the client.
type State int

const (
	StateUnavailable State = iota
	StateHealthy
	StateDegraded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateFailed:
		return "failed"
	default:
		return "unavailable"
	}
}

// Request categories. The category selects the fallback text.
const (
	CategoryEmailFinder     = "email_finder"
	CategoryContentParser   = "content_parser"
	CategoryRelevanceScorer = "relevance_scorer"
	CategoryCompany         = "company_extraction"
	CategoryPerson          = "person_extraction"
	CategoryQueryExpansion  = "query_expansion"
	CategoryProbe           = "probe"
)

const (
	FallbackEmail     = leads.EmailNeedsValidation
	FallbackContent   = "Content parsing failed - manual review required"
	FallbackRelevance = "Unable to score relevance - manual review required"
	FallbackDefault   = "Service temporarily unavailable"
)

var (
	ErrNoBackend        = errors.New("inference backend is not configured")
	ErrEmptyResponse    = errors.New("inference backend returned empty response")
	ErrQueueFull        = errors.New("inference queue is full")
	ErrQueueUnavailable = errors.New("inference queue is not running")
	ErrBackendFailed    = errors.New("inference backend is failed")
)

// Fallback returns the placeholder text used when a request of the given
// category cannot be served.
func Fallback(category string) string {
	switch category {
	case CategoryEmailFinder:
		return FallbackEmail
	case CategoryContentParser:
		return FallbackContent
	case CategoryRelevanceScorer:
		return FallbackRelevance
	default:
		return FallbackDefault
	}
}

// IsFallback reports whether s is one of the fallback texts.
func IsFallback(s string) bool {
	switch s {
	case FallbackEmail, FallbackContent, FallbackRelevance, FallbackDefault:
		return true
	}
	return false
}

type Request struct {
	Prompt   string
	Category string
}

type Response struct {
	Content      string
	Success      bool
	Err          error
	RetryCount   int
	FallbackUsed bool
}

type Options struct {
	MaxRetries int
	// RetryDelay is the base backoff. The delay after attempt n is RetryDelay * 2^n.
	RetryDelay time.Duration
	// Timeout bounds every single backend call.
	Timeout           time.Duration
	QueueSize         int
	RequestsPerMinute int
	ProbePrompt       string
}

const (
	defaultMaxRetries  = 3
	defaultRetryDelay  = 2 * time.Second
	defaultTimeout     = 30 * time.Second
	defaultQueueSize   = 100
	defaultProbePrompt = "Test: What is HR tech?"
)

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		MaxRetries:  defaultMaxRetries,
		RetryDelay:  defaultRetryDelay,
		Timeout:     defaultTimeout,
		QueueSize:   defaultQueueSize,
		ProbePrompt: defaultProbePrompt,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetries
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = 0
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.QueueSize <= 0 {
		o.QueueSize = defaultQueueSize
	}
	if o.ProbePrompt == "" {
		o.ProbePrompt = defaultProbePrompt
	}
	return o
}
