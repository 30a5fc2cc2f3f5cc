package filtering

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/prospector/internal/leads"
)

type excludeFileFilter struct {
	path string
}

// NewExcludeFile creates a filter that removes companies found in the contacted history file.
func NewExcludeFile() Filter {
	return &excludeFileFilter{}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Disable(string) {}

func (f *excludeFileFilter) IsEnabled() bool { return true }

func (f *excludeFileFilter) Validate(cfg *Config) error {
	f.path = ""
	if cfg != nil {
		f.path = strings.TrimSpace(cfg.ExcludeFile)
	}
	return nil
}

func (f *excludeFileFilter) Apply(_ context.Context, deps Deps, o *leads.Opportunities) (*leads.Opportunities, Step, error) {
	initial := o.Len()
	if f.path == "" {
		return o, Step{Initial: initial, Dropped: 0, Left: o.Len()}, nil
	}

	contacted, err := leads.ContactedFromFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		deps.Logger.Debug("exclude file does not exist yet", zap.String("path", f.path))
		return o, Step{Initial: initial, Dropped: 0, Left: o.Len()}, nil
	}
	if err != nil {
		return o, Step{}, fmt.Errorf("getting contacted companies from file: %w", err)
	}

	removed := o.ExcludeCompanies(contacted.Companies())
	if len(removed) > 0 {
		deps.Logger.Info("excluding opportunities based on exclude file",
			zap.String("path", f.path),
			zap.Strings("excluded_companies", companies(removed)),
			zap.Int("opportunities_left", o.Len()),
		)
	}

	return o, Step{Initial: initial, Dropped: len(removed), Left: o.Len()}, nil
}

func (f *excludeFileFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}
