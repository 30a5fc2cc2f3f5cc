package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/prospector/internal/config"
	"github.com/spigell/prospector/internal/search"
)

func TestNewProviders(t *testing.T) {
	cfg := *config.Default().Search
	budget := search.NewBudget(cfg.DailyCallLimit)

	p, err := New(&cfg, "", budget, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, search.Disabled{}, p)

	p, err = New(&cfg, "key", budget, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &search.Searcher{}, p)

	cfg.Provider = "searxng"
	_, err = New(&cfg, "", budget, zap.NewNop())
	assert.Error(t, err, "searxng needs a base url")

	cfg.BaseURL = "http://localhost:8888"
	p, err = New(&cfg, "", budget, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &search.Searcher{}, p)

	cfg.Provider = "bing"
	_, err = New(&cfg, "", budget, zap.NewNop())
	assert.Error(t, err)
}
