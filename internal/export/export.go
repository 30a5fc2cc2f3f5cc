// Package export persists accepted opportunities to an external sink.
package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/prospector/internal/config"
	"github.com/spigell/prospector/internal/leads"
	"github.com/spigell/prospector/internal/logger"
)

var ErrUnknownSink = errors.New("unknown sink kind")

// Sink receives one row per accepted opportunity.
type Sink interface {
	Append(ctx context.Context, row leads.Row) error
	Close() error
}

// Report summarizes a Persist call.
type Report struct {
	Written int
	Failed  int
}

// New builds the sink described by cfg. A "none" kind returns a nil sink.
func New(ctx context.Context, cfg *config.Sink, dsn string) (Sink, error) {
	if cfg == nil {
		return nil, nil
	}

	switch cfg.Kind {
	case "", "none":
		return nil, nil
	case "file":
		return NewFileSink(cfg.Path)
	case "postgres":
		return OpenPostgres(ctx, dsn, cfg.Table)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSink, cfg.Kind)
	}
}

// Persist appends every opportunity to the sink. Failures are logged and
// counted but never returned: persistence must not fail a run.
func Persist(ctx context.Context, sink Sink, o *leads.Opportunities, runID string, now time.Time, log *zap.Logger) Report {
	var report Report
	if sink == nil || o == nil {
		return report
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = logger.WithRun(logger.Component(log, "export"), runID)

	for _, item := range o.Items {
		row := item.Row(now)
		row.RunID = runID

		if err := sink.Append(ctx, row); err != nil {
			report.Failed++
			log.Warn("failed to persist opportunity",
				zap.String("company", row.Company),
				zap.String("person", row.Person),
				zap.Error(err),
			)
			continue
		}
		report.Written++
	}

	log.Info("opportunities persisted", zap.Int("written", report.Written), zap.Int("failed", report.Failed))
	return report
}
