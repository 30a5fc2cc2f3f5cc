package filtering

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/prospector/internal/leads"
)

type dedupeFilter struct{}

// NewDedupe creates a filter that keeps one opportunity per company and person.
func NewDedupe() Filter {
	return &dedupeFilter{}
}

func (f *dedupeFilter) Name() string { return "dedupe" }

func (f *dedupeFilter) Disable(string) {}

func (f *dedupeFilter) IsEnabled() bool { return true }

func (f *dedupeFilter) Validate(*Config) error { return nil }

func (f *dedupeFilter) Apply(_ context.Context, deps Deps, o *leads.Opportunities) (*leads.Opportunities, Step, error) {
	initial := o.Len()
	dropped := o.Dedupe()
	if len(dropped) > 0 {
		deps.Logger.Debug("dropping duplicate opportunities",
			zap.Strings("duplicate_companies", companies(dropped)),
			zap.Int("opportunities_left", o.Len()),
		)
	}
	return o, Step{Initial: initial, Dropped: len(dropped), Left: o.Len()}, nil
}
