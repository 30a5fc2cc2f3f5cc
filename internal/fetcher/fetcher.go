// Package fetcher downloads article pages and reduces them to plain text.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/spigell/prospector/internal/config"
	"github.com/spigell/prospector/internal/logger"
	"github.com/spigell/prospector/internal/retry"
	"github.com/spigell/prospector/internal/utils"
)

const (
	DefaultUserAgent  = "Mozilla/5.0 (compatible; prospector/1.0)"
	defaultTimeout    = 30 * time.Second
	defaultAttempts   = 3
	defaultRetryDelay = time.Second
	defaultMaxBody    = 5 << 20
	minContentLength  = 100
)

// Page is the extracted text of one article page.
type Page struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type Options struct {
	Timeout       time.Duration
	Attempts      int
	RetryDelay    time.Duration
	UserAgent     string
	RespectRobots bool
	MaxBodyBytes  int64
	Extractor     Extractor
	Cache         *Cache
	HTTPClient    *http.Client
}

type Fetcher struct {
	client    *http.Client
	agent     string
	maxBody   int64
	extractor Extractor
	cache     *Cache
	robots    *robots
	policy    retry.Policy
	logger    *zap.Logger
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("bad status: %d %s", e.code, http.StatusText(e.code))
}

func New(opts Options, log *zap.Logger) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Attempts <= 0 {
		opts.Attempts = defaultAttempts
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBody
	}
	if opts.Extractor == nil {
		opts.Extractor = Goquery{}
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	l := logger.Component(log, "fetcher").With(zap.String("extractor", opts.Extractor.Name()))

	f := &Fetcher{
		client:    client,
		agent:     opts.UserAgent,
		maxBody:   opts.MaxBodyBytes,
		extractor: opts.Extractor,
		cache:     opts.Cache,
		logger:    l,
		policy: retry.Policy{
			Attempts:  opts.Attempts,
			Base:      opts.RetryDelay,
			Retryable: transient,
			OnRetry: func(attempt int, delay time.Duration, err error) {
				l.Debug("fetch failed, retrying",
					zap.Int("attempt", attempt+1),
					zap.Duration("backoff", delay),
					zap.Error(err),
				)
			},
		},
	}
	if opts.RespectRobots {
		f.robots = newRobots(client, opts.UserAgent, l)
	}
	return f
}

// Fetch returns the page behind rawURL. The boolean is false when the url is
// invalid, disallowed by robots.txt, unreachable after retries or carries too
// little text to be useful.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Page, bool) {
	ctx, span := otel.Tracer("prospector/fetcher").Start(ctx, "fetcher.Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("url", rawURL))

	log := f.logger.With(zap.String("url", rawURL))

	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		log.Debug("skip invalid url")
		return Page{}, false
	}

	if f.cache != nil {
		if page, ok := f.cache.Get(u.String()); ok {
			log.Debug("page served from cache")
			return page, true
		}
	}

	if f.robots != nil && !f.robots.allowed(ctx, u) {
		log.Info("fetch disallowed by robots.txt")
		return Page{}, false
	}

	var page Page
	err = f.policy.Do(ctx, func(ctx context.Context, _ int) error {
		var err error
		page, err = f.get(ctx, u)
		return err
	})
	if err != nil {
		span.RecordError(err)
		log.Warn("fetch failed", zap.Error(err))
		return Page{}, false
	}

	if len([]rune(page.Content)) < minContentLength {
		log.Debug("page has too little text", zap.Int("length", len(page.Content)))
		return Page{}, false
	}

	if f.cache != nil {
		if err := f.cache.Put(page); err != nil {
			log.Debug("cache write failed", zap.Error(err))
		}
	}

	log.Debug("page fetched",
		zap.String("title", page.Title),
		zap.String("preview", utils.TruncateForLog(page.Content, 120)),
	)
	return page, true
}

func (f *Fetcher) get(ctx context.Context, u *url.URL) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Page{}, retry.Permanent(err)
	}
	req.Header.Set("User-Agent", f.agent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Page{}, &statusError{code: resp.StatusCode}
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, f.maxBody), resp.Header.Get("Content-Type"))
	if err != nil {
		return Page{}, retry.Permanent(fmt.Errorf("decode charset: %w", err))
	}

	title, text, err := f.extractor.Extract(body, resp.Request.URL)
	if err != nil {
		return Page{}, retry.Permanent(err)
	}
	if title == "" {
		title = noTitle
	}

	return Page{URL: u.String(), Title: title, Content: text}, nil
}

// transient marks network failures, timeouts, server errors and throttling as
// retryable. A client timeout also matches context.DeadlineExceeded, so the
// timeout check runs first; a done parent context ends the retry loop itself.
func transient(err error) bool {
	var status *statusError
	if errors.As(err, &status) {
		return status.code >= http.StatusInternalServerError || status.code == http.StatusTooManyRequests
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.As(err, &netErr)
}

// FromConfig builds fetcher options from the fetcher config section.
func FromConfig(cfg *config.Fetcher, userAgent string) (Options, error) {
	ex, err := NewExtractor(cfg.Extractor)
	if err != nil {
		return Options{}, err
	}

	opts := Options{
		Timeout:       cfg.Timeout,
		Attempts:      cfg.Retries,
		RetryDelay:    defaultRetryDelay,
		UserAgent:     userAgent,
		RespectRobots: cfg.RespectRobots,
		MaxBodyBytes:  cfg.MaxBodyBytes,
		Extractor:     ex,
	}
	if cfg.CacheDir != "" {
		cache, err := NewCache(cfg.CacheDir, cfg.CacheTTL)
		if err != nil {
			return Options{}, err
		}
		opts.Cache = cache
	}
	return opts, nil
}
