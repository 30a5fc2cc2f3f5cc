package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/spigell/prospector/internal/filtering"
	"github.com/spigell/prospector/internal/leads"
	"github.com/spigell/prospector/internal/logger"
	"github.com/spigell/prospector/internal/search"
	"github.com/spigell/prospector/internal/utils"
)

// Stats describes one lead generation run.
type Stats struct {
	RunID              string        `json:"run_id"`
	StartedAt          time.Time     `json:"started_at"`
	FinishedAt         time.Time     `json:"finished_at"`
	Duration           time.Duration `json:"duration"`
	SignalsProcessed   int           `json:"signals_processed"`
	Errors             int           `json:"errors"`
	ArticlesFound      int           `json:"articles_found"`
	OpportunitiesFound int           `json:"opportunities_found"`
	PerSignal          map[int]int   `json:"per_signal"`
	TargetReached      bool          `json:"target_reached"`
	TimedOut           bool          `json:"timed_out"`
}

// Result is the outcome of GenerateLeads.
type Result struct {
	Opportunities *leads.Opportunities
	Stats         Stats
	Quality       leads.Quality
}

// GenerateLeads processes signals in order until target opportunities are
// collected. A nil signalIDs processes the whole catalog. Signal failures are
// counted and skipped, except rejected search credentials which end the run
// with an error. The run deadline returns what was gathered so far.
func (o *Orchestrator) GenerateLeads(ctx context.Context, signalIDs []int, target int) (*Result, error) {
	if target <= 0 {
		target = o.opts.Target
	}
	if signalIDs == nil {
		signalIDs = o.signals.IDs()
	}

	stats := Stats{
		RunID:     uuid.New().String(),
		StartedAt: o.opts.Now(),
		PerSignal: make(map[int]int, len(signalIDs)),
	}
	log := logger.WithRun(o.logger, stats.RunID)

	ctx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "orchestrator.GenerateLeads")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", stats.RunID), attribute.Int("target", target))

	log.Info("lead generation started",
		zap.Ints("signals", signalIDs),
		zap.Int("target", target),
		zap.Int("workers", o.opts.Workers),
	)

	all := leads.NewOpportunities()
	result := &Result{Opportunities: all}

	for i, id := range signalIDs {
		if all.Len() >= target {
			stats.TargetReached = true
			log.Info("target reached, skipping remaining signals", zap.Int("collected", all.Len()))
			break
		}

		if i > 0 && o.opts.SignalPause > 0 {
			if err := utils.WaitFor(ctx, o.opts.SignalPause); err != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}

		run, err := o.processSignal(ctx, log, id, o.opts.ResultsPerSignal)
		stats.ArticlesFound += run.Articles
		if err != nil {
			if errors.Is(err, search.ErrUnauthorized) {
				span.RecordError(err)
				span.SetStatus(codes.Error, "search credentials rejected")
				log.Error("search provider rejected credentials, aborting run", zap.Error(err))
				result.Stats = o.finish(stats, all)
				return result, err
			}
			stats.Errors++
			log.Error("signal failed", zap.Int(logger.FieldSignal, id), zap.Error(err))
			continue
		}

		stats.SignalsProcessed++
		stats.PerSignal[id] = len(run.Opportunities)
		all.Append(run.Opportunities...)
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		stats.TimedOut = true
		log.Warn("run timeout reached, returning partial results", zap.Duration("timeout", o.opts.Timeout))
	}

	// The union is filtered again so cross-signal duplicates collapse.
	final, err := filtering.Run(context.WithoutCancel(ctx), &o.opts.Filter, filtering.Deps{Logger: log}, o.opts.Filters(), all)
	if err != nil {
		result.Stats = o.finish(stats, all)
		return result, err
	}
	final.Rank()

	result.Opportunities = final
	result.Stats = o.finish(stats, final)
	result.Quality = final.Quality(o.opts.Now())

	log.Info("lead generation finished",
		zap.Int("opportunities", final.Len()),
		zap.Int("signals_processed", result.Stats.SignalsProcessed),
		zap.Int("errors", result.Stats.Errors),
		zap.Duration("duration", result.Stats.Duration),
		zap.Float64("average_score", result.Quality.AverageScore),
	)

	return result, nil
}

func (o *Orchestrator) finish(stats Stats, all *leads.Opportunities) Stats {
	stats.FinishedAt = o.opts.Now()
	stats.Duration = stats.FinishedAt.Sub(stats.StartedAt)
	stats.OpportunitiesFound = all.Len()
	return stats
}
