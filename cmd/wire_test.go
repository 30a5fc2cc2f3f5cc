package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/prospector/internal/config"
	"github.com/spigell/prospector/internal/inference"
	"github.com/spigell/prospector/internal/leads"
	"github.com/spigell/prospector/internal/orchestrator"
)

func offlineConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv(envNewsdataKey, "")
	t.Setenv(envHunterKey, "")

	cfg := config.Default()
	cfg.Inference.Provider = "none"
	cfg.Run.SignalPause = 0
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestNewBackendNone(t *testing.T) {
	_, err := newBackend(context.Background(), &config.Inference{Provider: "none"})
	assert.ErrorIs(t, err, inference.ErrNoBackend)

	_, err = newBackend(context.Background(), &config.Inference{Provider: "claude"})
	assert.Error(t, err)
}

func TestNewPipelineWithoutCredentials(t *testing.T) {
	cfg := offlineConfig(t)

	p, err := newPipeline(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, inference.StateFailed, p.inference.State())

	result, err := p.orchestrator.GenerateLeads(context.Background(), []int{leads.SignalHRTechEvaluations}, 5)
	require.NoError(t, err)
	assert.Zero(t, result.Opportunities.Len())
	assert.Zero(t, p.budget.Used())
}

func TestNewVerifier(t *testing.T) {
	t.Setenv(envHunterKey, "")

	v, err := newVerifier(&config.Verify{Enabled: false, APIKey: "k"}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = newVerifier(&config.Verify{Enabled: true}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = newVerifier(&config.Verify{Enabled: true, APIKey: "k", BaseURL: "http://hunter.local"}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "http://hunter.local", v.BaseURL)
}

func TestOutputAll(t *testing.T) {
	dir := t.TempDir()
	cfg := offlineConfig(t)
	cfg.Output.CSV = filepath.Join(dir, "opportunities.csv")
	cfg.Output.DraftsDir = filepath.Join(dir, "drafts")
	cfg.ExcludeFile = filepath.Join(dir, "contacted.json")
	cfg.Sink.Kind = "file"
	cfg.Sink.Path = filepath.Join(dir, "sink.csv")

	opp, err := leads.NewOpportunity(leads.OpportunityParams{
		Title:          "Acme names new CHRO",
		Company:        "Acme Corp",
		Person:         "Jane Roe",
		Email:          "jane.roe@acme.com",
		URL:            "https://hrdive.com/acme",
		Date:           "2026-10-01",
		RelevanceScore: 0.9,
		SignalType:     leads.SignalNewLeadership,
		Source:         "hrdive",
	})
	require.NoError(t, err)

	out := &output{
		cfg:     cfg,
		signals: leads.DefaultSignals(),
		result: &orchestrator.Result{
			Opportunities: leads.NewOpportunities(opp),
			Stats:         orchestrator.Stats{RunID: "run-1"},
		},
		logger: zap.NewNop(),
	}

	require.NoError(t, out.all(context.Background()))

	for _, path := range []string{cfg.Output.CSV, cfg.Sink.Path, cfg.ExcludeFile, filepath.Join(cfg.Output.DraftsDir, "001-acme-corp.txt")} {
		_, err := os.Stat(path)
		assert.NoError(t, err, path)
	}

	contacted, err := leads.ContactedFromFile(cfg.ExcludeFile)
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme Corp"}, contacted.Companies())
}
