package orchestrator

import (
	"context"
	"strconv"
	"strings"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/prospector/internal/extractor"
	"github.com/spigell/prospector/internal/inference"
)

//go:embed expand.md
var expandPrompt string

const maxExpandedQueries = 3

// ExpandQueries asks the model for extra queries and appends the new ones to
// base. Any unusable answer leaves base unchanged.
func (o *Orchestrator) ExpandQueries(ctx context.Context, signalID int, base []string) []string {
	if o.opts.Inferer == nil {
		return base
	}

	prompt := strings.TrimSpace(expandPrompt)
	prompt = strings.ReplaceAll(prompt, "{{SIGNAL}}", o.signals.Name(signalID))
	prompt = strings.ReplaceAll(prompt, "{{QUERIES}}", "- "+strings.Join(base, "\n- "))
	prompt = strings.ReplaceAll(prompt, "{{COUNT}}", strconv.Itoa(maxExpandedQueries))

	answer := o.opts.Inferer.Infer(ctx, prompt, inference.CategoryQueryExpansion)
	if inference.IsFallback(answer) {
		return base
	}

	suggested, err := extractor.ParseList(answer)
	if err != nil {
		o.logger.Debug("query expansion answer unusable", zap.Int("signal_type", signalID), zap.Error(err))
		return base
	}

	seen := make(map[string]struct{}, len(base))
	for _, q := range base {
		seen[strings.ToLower(q)] = struct{}{}
	}

	out := append([]string(nil), base...)
	added := 0
	for _, q := range suggested {
		key := strings.ToLower(q)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
		if added++; added == maxExpandedQueries {
			break
		}
	}

	if added > 0 {
		o.logger.Info("queries expanded", zap.Int("signal_type", signalID), zap.Strings("added", out[len(base):]))
	}
	return out
}
