// Package orchestrator runs signal searches and turns the results into ranked leads.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/prospector/internal/filtering"
	"github.com/spigell/prospector/internal/leads"
	"github.com/spigell/prospector/internal/logger"
	"github.com/spigell/prospector/internal/search"
)

const (
	defaultWorkers          = 5
	defaultResultsPerSignal = 10
	defaultTarget           = 50
	defaultSignalPause      = 2 * time.Second
	defaultTimeout          = time.Hour
)

var tracer = otel.Tracer("prospector/orchestrator")

var ErrUnknownSignal = errors.New("unknown signal type")

// Extractor turns one article into an opportunity or rejects it.
type Extractor interface {
	Extract(ctx context.Context, article leads.Article, signalType int) (leads.Opportunity, error)
}

// Inferer answers prompts; used for optional query expansion.
type Inferer interface {
	Infer(ctx context.Context, prompt, category string) string
}

type Options struct {
	Workers          int
	ResultsPerSignal int
	Target           int
	// SignalPause is waited between signals. Negative disables the pause.
	SignalPause time.Duration
	Timeout     time.Duration
	Domains     []string
	Filter      filtering.Config
	// Filters builds a fresh filtering pipeline. Defaults to filtering.Default.
	Filters       func() []filtering.Filter
	ExpandQueries bool
	Inferer       Inferer
	Now           func() time.Time
}

type Orchestrator struct {
	searcher  search.Provider
	extractor Extractor
	signals   leads.Signals
	opts      Options
	logger    *zap.Logger
}

func New(searcher search.Provider, extractor Extractor, signals leads.Signals, opts Options, log *zap.Logger) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.ResultsPerSignal <= 0 {
		opts.ResultsPerSignal = defaultResultsPerSignal
	}
	if opts.Target <= 0 {
		opts.Target = defaultTarget
	}
	if opts.SignalPause == 0 {
		opts.SignalPause = defaultSignalPause
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Filters == nil {
		opts.Filters = filtering.Default
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if signals == nil {
		signals = leads.DefaultSignals()
	}
	if opts.Filter.Signals == nil {
		opts.Filter.Signals = signals
	}

	return &Orchestrator{
		searcher:  searcher,
		extractor: extractor,
		signals:   signals,
		opts:      opts,
		logger:    logger.Component(log, "orchestrator"),
	}
}

// Queries returns the catalog queries of a signal.
func (o *Orchestrator) Queries(signalID int) []string {
	return o.signals.Queries(signalID)
}

// signalRun is the outcome of processing one signal.
type signalRun struct {
	Articles      int
	Opportunities []leads.Opportunity
}

// ProcessSignal searches every query of the signal, extracts opportunities
// from the unique articles in parallel, then filters and ranks them. Only a
// rejected search credential is returned as an error.
func (o *Orchestrator) ProcessSignal(ctx context.Context, signalID, maxResults int) ([]leads.Opportunity, error) {
	run, err := o.processSignal(ctx, o.logger, signalID, maxResults)
	return run.Opportunities, err
}

func (o *Orchestrator) processSignal(ctx context.Context, log *zap.Logger, signalID, maxResults int) (signalRun, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.ProcessSignal")
	defer span.End()
	span.SetAttributes(attribute.Int("signal_type", signalID))

	log = log.With(zap.Int(logger.FieldSignal, signalID), zap.String("signal_name", o.signals.Name(signalID)))

	if !leads.ValidSignal(signalID) {
		return signalRun{}, fmt.Errorf("%w: %d", ErrUnknownSignal, signalID)
	}
	if maxResults <= 0 {
		maxResults = o.opts.ResultsPerSignal
	}

	queries := o.Queries(signalID)
	if o.opts.ExpandQueries && o.opts.Inferer != nil {
		queries = o.ExpandQueries(ctx, signalID, queries)
	}
	if len(queries) == 0 {
		log.Warn("signal has no queries")
		return signalRun{}, nil
	}

	perQuery := max(1, maxResults/len(queries))

	articles, err := o.collect(ctx, log, queries, perQuery)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search aborted")
		return signalRun{}, err
	}

	extracted := o.extractAll(ctx, signalID, articles)

	filtered, err := filtering.Run(ctx, &o.opts.Filter, filtering.Deps{Logger: log}, o.opts.Filters(), leads.NewOpportunities(extracted...))
	if err != nil {
		return signalRun{}, fmt.Errorf("filtering signal %d: %w", signalID, err)
	}
	filtered.Rank()

	span.SetAttributes(attribute.Int("articles", len(articles)), attribute.Int("opportunities", filtered.Len()))

	if filtered.Len() == 0 {
		log.Warn("no opportunities found for signal", zap.Int("articles", len(articles)))
	} else {
		log.Info("signal processed",
			zap.Int("articles", len(articles)),
			zap.Int("extracted", len(extracted)),
			zap.Int("opportunities", filtered.Len()),
		)
	}

	return signalRun{Articles: len(articles), Opportunities: filtered.Items}, nil
}

// collect runs the queries in order and keeps the first article seen for every url.
func (o *Orchestrator) collect(ctx context.Context, log *zap.Logger, queries []string, perQuery int) ([]leads.Article, error) {
	seen := make(map[string]struct{})
	var articles []leads.Article

	for _, query := range queries {
		if ctx.Err() != nil {
			break
		}

		found, err := o.searcher.Search(ctx, query, perQuery, o.opts.Domains)
		if err != nil {
			if errors.Is(err, search.ErrUnauthorized) {
				return nil, err
			}
			log.Warn("search failed", zap.String("query", query), zap.Error(err))
		}

		for _, article := range found {
			if _, dup := seen[article.URL]; dup {
				continue
			}
			seen[article.URL] = struct{}{}
			articles = append(articles, article)
		}
	}

	return articles, nil
}

// extractAll fans articles out to a bounded worker pool. Results keep
// completion order and per-article failures stay inside the worker.
func (o *Orchestrator) extractAll(ctx context.Context, signalID int, articles []leads.Article) []leads.Opportunity {
	var (
		mu      sync.Mutex
		results []leads.Opportunity
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Workers)

	for _, article := range articles {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			opp, err := o.extractor.Extract(gctx, article, signalID)
			if err != nil {
				return nil
			}
			mu.Lock()
			results = append(results, opp)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}
