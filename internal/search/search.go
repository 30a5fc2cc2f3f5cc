// Package search drives paginated news search providers under a shared daily
// call budget and a publication domain allow-list.
package search

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spigell/prospector/internal/leads"
	"github.com/spigell/prospector/internal/logger"
	"github.com/spigell/prospector/internal/retry"
)

// Provider turns a query into normalized articles.
type Provider interface {
	Search(ctx context.Context, query string, maxResults int, allowedDomains []string) ([]leads.Article, error)
}

// Page is one page of provider results. An empty Next means there are no more pages.
type Page struct {
	Articles []leads.Article
	Next     string
}

// Pager fetches single pages from a provider API. The cursor is empty for the first page.
type Pager interface {
	Name() string
	Fetch(ctx context.Context, query, cursor string) (Page, error)
}

var (
	ErrUnauthorized    = errors.New("search provider rejected credentials")
	ErrBadRequest      = errors.New("search provider rejected the query")
	ErrProvider        = errors.New("search provider returned an error")
	ErrBudgetExhausted = errors.New("daily search budget exhausted")
)

// StatusError is a non-200 provider response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("bad status: %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("bad status: %d %s: %s", e.Code, http.StatusText(e.Code), e.Body)
}

func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusUnprocessableEntity:
		return ErrBadRequest
	default:
		return nil
	}
}

type outcomeKind int

const (
	outcomeContinue outcomeKind = iota
	outcomeStop
	outcomeAbort
)

// outcome is the decision taken after one page request.
type outcome struct {
	kind   outcomeKind
	reason string
	err    error
}

func classify(err error) outcome {
	if err == nil {
		return outcome{kind: outcomeContinue}
	}

	var status *StatusError
	switch {
	case errors.Is(err, ErrBudgetExhausted):
		return outcome{kind: outcomeStop, reason: "daily budget exhausted"}
	case errors.As(err, &status) && status.Code == http.StatusTooManyRequests:
		return outcome{kind: outcomeStop, reason: "rate limited by provider"}
	default:
		return outcome{kind: outcomeAbort, err: err}
	}
}

// transient reports whether a failed page request is worth retrying.
func transient(err error) bool {
	var status *StatusError
	if errors.As(err, &status) {
		return status.Code >= http.StatusInternalServerError
	}
	if errors.Is(err, ErrBudgetExhausted) || errors.Is(err, ErrProvider) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

type Options struct {
	MaxPages   int
	PagePause  time.Duration
	Retries    int
	RetryDelay time.Duration
}

const (
	defaultMaxPages   = 5
	defaultRetries    = 3
	defaultRetryDelay = time.Second
)

// Searcher runs the pagination loop shared by all pagers.
type Searcher struct {
	pager    Pager
	budget   *Budget
	limiter  *rate.Limiter
	policy   retry.Policy
	maxPages int
	logger   *zap.Logger
}

func New(pager Pager, budget *Budget, opts Options, log *zap.Logger) *Searcher {
	if opts.MaxPages <= 0 {
		opts.MaxPages = defaultMaxPages
	}
	if opts.Retries <= 0 {
		opts.Retries = defaultRetries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if budget == nil {
		budget = NewBudget(0)
	}

	limit := rate.Inf
	if opts.PagePause > 0 {
		limit = rate.Every(opts.PagePause)
	}

	l := logger.Component(log, "search").With(zap.String("provider", pager.Name()))

	return &Searcher{
		pager:    pager,
		budget:   budget,
		limiter:  rate.NewLimiter(limit, 1),
		maxPages: opts.MaxPages,
		logger:   l,
		policy: retry.Policy{
			Attempts:  opts.Retries,
			Base:      opts.RetryDelay,
			Retryable: transient,
			OnRetry: func(attempt int, delay time.Duration, err error) {
				l.Warn("search request failed, retrying",
					zap.Int("attempt", attempt+1),
					zap.Duration("backoff", delay),
					zap.Error(err),
				)
			},
		},
	}
}

// Search collects up to maxResults usable articles from allowed domains. It stops
// early on the page cap, the last page, an exhausted budget or a provider rate
// limit, returning what was gathered so far. Credential and query rejections
// abort with an error wrapping ErrUnauthorized or ErrBadRequest.
func (s *Searcher) Search(ctx context.Context, query string, maxResults int, allowedDomains []string) ([]leads.Article, error) {
	if maxResults <= 0 {
		return nil, nil
	}

	domains := NewDomainSet(allowedDomains)
	articles := make([]leads.Article, 0, maxResults)
	skipped := 0
	cursor := ""

	for page := 0; page < s.maxPages && len(articles) < maxResults; page++ {
		result, err := s.fetch(ctx, query, cursor)

		switch o := classify(err); o.kind {
		case outcomeStop:
			s.logger.Warn("search stopped early",
				zap.String("query", query),
				zap.String("reason", o.reason),
				zap.Int("page", page),
				zap.Int("collected", len(articles)),
			)
			return articles, nil
		case outcomeAbort:
			return articles, fmt.Errorf("searching %q page %d: %w", query, page, o.err)
		}

		for _, article := range result.Articles {
			if !article.Usable() || !domains.Allows(article.URL) {
				skipped++
				continue
			}
			articles = append(articles, article)
			if len(articles) == maxResults {
				break
			}
		}

		if result.Next == "" {
			break
		}
		cursor = result.Next
	}

	s.logger.Debug("search finished",
		zap.String("query", query),
		zap.Int("collected", len(articles)),
		zap.Int("skipped", skipped),
		zap.Int("budget_used", s.budget.Used()),
	)

	return articles, nil
}

func (s *Searcher) fetch(ctx context.Context, query, cursor string) (Page, error) {
	var page Page
	err := s.policy.Do(ctx, func(ctx context.Context, _ int) error {
		if s.budget.Exhausted() {
			return ErrBudgetExhausted
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}
		if !s.budget.Take() {
			return ErrBudgetExhausted
		}

		var err error
		page, err = s.pager.Fetch(ctx, query, cursor)
		return err
	})
	return page, err
}

// Disabled is a provider that always returns no results, used when the
// configured provider cannot run, for example without an api key.
type Disabled struct {
	Reason string
	Logger *zap.Logger
}

func (d Disabled) Search(_ context.Context, query string, _ int, _ []string) ([]leads.Article, error) {
	if d.Logger != nil {
		d.Logger.Warn("search provider disabled", zap.String("query", query), zap.String("reason", d.Reason))
	}
	return nil, nil
}
