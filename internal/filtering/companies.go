package filtering

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/prospector/internal/leads"
)

type excludedCompaniesFilter struct {
	companies []string
}

// NewExcludedCompanies creates a filter that removes opportunities for companies configured in the config.
func NewExcludedCompanies() Filter {
	return &excludedCompaniesFilter{}
}

func (f *excludedCompaniesFilter) Name() string { return "excluded_companies" }

func (f *excludedCompaniesFilter) Disable(string) {}

func (f *excludedCompaniesFilter) IsEnabled() bool { return true }

func (f *excludedCompaniesFilter) Validate(cfg *Config) error {
	f.companies = nil
	if cfg != nil {
		f.companies = append(f.companies, cfg.ExcludedCompanies...)
	}
	return nil
}

func (f *excludedCompaniesFilter) Apply(_ context.Context, deps Deps, o *leads.Opportunities) (*leads.Opportunities, Step, error) {
	initial := o.Len()
	if len(f.companies) == 0 {
		return o, Step{Initial: initial, Dropped: 0, Left: o.Len()}, nil
	}

	excluded := o.ExcludeCompanies(f.companies)
	if len(excluded) > 0 {
		deps.Logger.Info("excluding opportunities by companies",
			zap.Strings("excluded_companies", companies(excluded)),
			zap.Int("opportunities_left", o.Len()),
		)
	}

	return o, Step{Initial: initial, Dropped: len(excluded), Left: o.Len()}, nil
}

func (f *excludedCompaniesFilter) Status() Status {
	details := map[string]string{}
	if len(f.companies) > 0 {
		details["companies"] = strings.Join(f.companies, ",")
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}
