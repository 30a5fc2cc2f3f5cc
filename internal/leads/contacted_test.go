package leads

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContactedRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacted.json")
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	first := NewOpportunities(mustOpportunity(t, "Acme", "Jane Roe", 0.9)).ToContacted(now)
	require.NoError(t, first.ToFile(path))

	history, err := ContactedFromFile(path)
	require.NoError(t, err)
	history.Append(NewOpportunities(
		mustOpportunity(t, "acme", "John Doe", 0.8),
		mustOpportunity(t, "Globex", "", 0.8),
	).ToContacted(now))
	require.NoError(t, history.ToFile(path))

	reloaded, err := ContactedFromFile(path)
	require.NoError(t, err)
	assert.Len(t, reloaded.Items, 3)
	assert.Equal(t, []string{"Acme", "Globex"}, reloaded.Companies())
	assert.Equal(t, now, reloaded.Items[0].ContactedAt)
}

func TestContactedEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	history, err := ContactedFromFile(path)
	require.NoError(t, err)
	assert.Empty(t, history.Items)

	_, err = ContactedFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
