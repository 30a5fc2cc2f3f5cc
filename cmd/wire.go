package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/prospector/internal/config"
	"github.com/spigell/prospector/internal/export"
	"github.com/spigell/prospector/internal/extractor"
	"github.com/spigell/prospector/internal/fetcher"
	"github.com/spigell/prospector/internal/filtering"
	"github.com/spigell/prospector/internal/inference"
	"github.com/spigell/prospector/internal/inference/gemini"
	"github.com/spigell/prospector/internal/inference/ollama"
	"github.com/spigell/prospector/internal/inference/openai"
	"github.com/spigell/prospector/internal/leads"
	"github.com/spigell/prospector/internal/orchestrator"
	"github.com/spigell/prospector/internal/search"
	"github.com/spigell/prospector/internal/search/factory"
	"github.com/spigell/prospector/internal/secrets"
	"github.com/spigell/prospector/internal/verify"
)

const (
	envGeminiKey   = "GEMINI_API_KEY"
	envOpenAIKey   = "OPENAI_API_KEY"
	envNewsdataKey = "NEWSDATA_API_KEY"
	envHunterKey   = "HUNTER_API_KEY"
	envDatabaseURL = "PROSPECTOR_DATABASE_URL"
)

// pipeline holds every collaborator of a lead generation run.
type pipeline struct {
	cfg          *config.Config
	signals      leads.Signals
	inference    *inference.Client
	budget       *search.Budget
	orchestrator *orchestrator.Orchestrator
	logger       *zap.Logger
}

// asyncInferer routes prompts through the inference queue.
type asyncInferer struct {
	client *inference.Client
}

func (a asyncInferer) Infer(ctx context.Context, prompt, category string) string {
	return a.client.InferAsync(ctx, prompt, category)
}

func newPipeline(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pipeline, error) {
	signals := leads.DefaultSignals().WithOverrides(cfg.SignalOverrides())

	client := newInference(ctx, cfg.Inference, logger)

	var inferer extractor.Inferer = client
	if cfg.Inference.Async {
		client.Start(ctx)
		inferer = asyncInferer{client: client}
	}

	apiKey, err := secrets.Optional(secrets.Source{
		Name:  "search api key",
		Value: cfg.Search.APIKey,
		File:  cfg.Search.APIKeyFile,
		Env:   envNewsdataKey,
	})
	if err != nil {
		client.Close()
		return nil, err
	}

	budget := search.NewBudget(cfg.Search.DailyCallLimit)
	searcher, err := factory.New(cfg.Search, apiKey, budget, logger)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("building search provider: %w", err)
	}

	fetchOpts, err := fetcher.FromConfig(cfg.Fetcher, cfg.UserAgent)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("building fetcher: %w", err)
	}
	pages := fetcher.New(fetchOpts, logger)

	extractOpts := extractor.Options{
		Keywords:     cfg.Quality.Keywords,
		MinRelevance: cfg.Quality.MinRelevance,
		Signals:      signals,
	}
	verifier, err := newVerifier(cfg.Verify, logger)
	if err != nil {
		client.Close()
		return nil, err
	}
	if verifier != nil {
		extractOpts.Verifier = verifier
	}

	pause := cfg.Run.SignalPause
	if pause == 0 {
		pause = -1
	}

	orch := orchestrator.New(searcher, extractor.New(inferer, pages, extractOpts, logger), signals, orchestrator.Options{
		Workers:          cfg.Run.Workers,
		ResultsPerSignal: cfg.Run.ResultsPerSignal,
		Target:           cfg.Run.Target,
		SignalPause:      pause,
		Timeout:          cfg.Run.Timeout,
		Domains:          cfg.Search.Domains,
		Filter: filtering.Config{
			MinRelevance:      cfg.Quality.MinRelevance,
			Signals:           signals,
			ExcludedCompanies: cfg.Quality.ExcludedCompanies,
			ExcludeFile:       cfg.ExcludeFile,
		},
		ExpandQueries: cfg.Run.ExpandQueries,
		Inferer:       inferer,
	}, logger)

	return &pipeline{
		cfg:          cfg,
		signals:      signals,
		inference:    client,
		budget:       budget,
		orchestrator: orch,
		logger:       logger,
	}, nil
}

func (p *pipeline) Close() {
	p.inference.Close()
}

// newInference builds the configured backend and probes it. A backend that
// cannot be built leaves the client failed and serving fallbacks.
func newInference(ctx context.Context, cfg *config.Inference, logger *zap.Logger) *inference.Client {
	opts := inference.Options{
		MaxRetries:        cfg.MaxRetries,
		RetryDelay:        cfg.RetryDelay,
		Timeout:           cfg.Timeout,
		QueueSize:         cfg.QueueSize,
		RequestsPerMinute: cfg.RequestsPerMinute,
	}

	backend, err := newBackend(ctx, cfg)
	if err != nil {
		logger.Warn("inference backend is not available, serving fallbacks",
			zap.String("ai_provider", cfg.Provider),
			zap.Error(err),
		)
		backend = nil
	}

	return inference.New(ctx, backend, opts, logger)
}

func newBackend(ctx context.Context, cfg *config.Inference) (inference.Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "none":
		return nil, inference.ErrNoBackend
	case "gemini", "":
		key, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: cfg.APIKey,
			File:  cfg.APIKeyFile,
			Env:   envGeminiKey,
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set inference.api-key-file or %s)", err, envGeminiKey)
		}
		return gemini.New(ctx, key, cfg.Model)
	case "openai":
		key, err := secrets.Load(secrets.Source{
			Name:  "openai api key",
			Value: cfg.APIKey,
			File:  cfg.APIKeyFile,
			Env:   envOpenAIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set inference.api-key-file or %s)", err, envOpenAIKey)
		}
		return openai.New(ctx, openai.Config{BaseURL: cfg.BaseURL, APIKey: key, Model: cfg.Model})
	case "ollama":
		return ollama.New(cfg.BaseURL, cfg.Model)
	default:
		return nil, fmt.Errorf("unsupported inference provider: %s", cfg.Provider)
	}
}

// newVerifier returns nil when verification is disabled or has no key.
func newVerifier(cfg *config.Verify, logger *zap.Logger) (*verify.Client, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	key, err := secrets.Optional(secrets.Source{
		Name:  "hunter api key",
		Value: cfg.APIKey,
		File:  cfg.APIKeyFile,
		Env:   envHunterKey,
	})
	if err != nil {
		return nil, err
	}
	if key == "" {
		logger.Warn("email verification enabled without an api key, skipping", zap.String("hint", "set "+envHunterKey))
		return nil, nil
	}

	v := verify.New(key, 15*time.Second, logger)
	if cfg.BaseURL != "" {
		v.BaseURL = cfg.BaseURL
	}
	return v, nil
}

func newSink(ctx context.Context, cfg *config.Sink) (export.Sink, error) {
	dsn := ""
	if cfg.Kind == "postgres" {
		var err error
		dsn, err = secrets.Load(secrets.Source{
			Name:  "database url",
			Value: cfg.DSN,
			File:  cfg.DSNFile,
			Env:   envDatabaseURL,
		})
		if err != nil {
			return nil, err
		}
	}
	return export.New(ctx, cfg, dsn)
}
