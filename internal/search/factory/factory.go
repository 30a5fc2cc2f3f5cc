// Package factory builds the configured search provider.
package factory

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/prospector/internal/config"
	"github.com/spigell/prospector/internal/search"
	"github.com/spigell/prospector/internal/search/newsdata"
	"github.com/spigell/prospector/internal/search/searxng"
)

// New returns a provider for cfg sharing budget. A newsdata provider without an
// api key is replaced by a disabled provider that logs and returns no results.
func New(cfg *config.Search, apiKey string, budget *search.Budget, logger *zap.Logger) (search.Provider, error) {
	opts := search.Options{
		MaxPages:   cfg.MaxPages,
		PagePause:  cfg.PagePause,
		Retries:    cfg.Retries,
		RetryDelay: cfg.PagePause,
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "newsdata", "":
		if strings.TrimSpace(apiKey) == "" {
			return search.Disabled{Reason: "newsdata api key is not configured", Logger: logger}, nil
		}
		client := newsdata.New(apiKey, cfg.Language, cfg.Timeout, logger)
		if cfg.BaseURL != "" {
			client.APIURL = cfg.BaseURL
		}
		return search.New(client, budget, opts, logger), nil
	case "searxng":
		if strings.TrimSpace(cfg.BaseURL) == "" {
			return nil, fmt.Errorf("searxng requires search.base-url")
		}
		return search.New(searxng.New(cfg.BaseURL, cfg.Language, cfg.Timeout), budget, opts, logger), nil
	default:
		return nil, fmt.Errorf("unsupported search provider: %s", cfg.Provider)
	}
}
