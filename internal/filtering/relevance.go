package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/prospector/internal/leads"
)

type relevanceFilter struct {
	disabled  bool
	reason    string
	threshold float64
	signals   leads.Signals
}

// NewRelevance creates a filter that removes opportunities scored below their signal threshold.
func NewRelevance() Filter {
	return &relevanceFilter{}
}

func (f *relevanceFilter) Name() string { return "relevance" }

func (f *relevanceFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *relevanceFilter) IsEnabled() bool { return !f.disabled }

func (f *relevanceFilter) Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if cfg.MinRelevance < 0 || cfg.MinRelevance > 1 {
		return fmt.Errorf("min relevance must be within [0, 1], got %v", cfg.MinRelevance)
	}
	f.threshold = cfg.MinRelevance
	f.signals = cfg.Signals
	return nil
}

func (f *relevanceFilter) Apply(_ context.Context, deps Deps, o *leads.Opportunities) (*leads.Opportunities, Step, error) {
	initial := o.Len()
	excluded := o.Exclude(func(item leads.Opportunity) bool {
		return item.RelevanceScore() < f.signals.ThresholdFor(item.SignalType(), f.threshold)
	})
	if len(excluded) > 0 {
		deps.Logger.Info("excluding opportunities below relevance threshold",
			zap.Strings("excluded_companies", companies(excluded)),
			zap.Float64("threshold", f.threshold),
			zap.Int("opportunities_left", o.Len()),
		)
	}

	return o, Step{Initial: initial, Dropped: len(excluded), Left: o.Len()}, nil
}

func (f *relevanceFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"min_relevance": fmt.Sprintf("%.2f", f.threshold)},
	}
}
