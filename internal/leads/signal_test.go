package leads

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultSignalsCatalog(t *testing.T) {
	signals := DefaultSignals()

	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, signals.IDs())
	for _, id := range signals.IDs() {
		assert.Len(t, signals.Queries(id), 3, "signal %d", id)
		assert.NotEmpty(t, signals[id].TemplateID)
	}
	assert.Equal(t, "new_leadership", signals[SignalNewLeadership].TemplateID)
}

func TestQueriesUnknownSignalFallsBack(t *testing.T) {
	signals := DefaultSignals()
	assert.Equal(t, signals.Queries(SignalHRTechEvaluations), signals.Queries(42))
	assert.False(t, ValidSignal(42))
}

func TestWithOverrides(t *testing.T) {
	base := DefaultSignals()
	signals := base.WithOverrides(map[int]Override{
		SignalExpansion: {Threshold: 0.8, TemplateID: "growth"},
		99:              {Threshold: 0.5},
	})

	assert.Equal(t, 0.8, signals.ThresholdFor(SignalExpansion, 0.7))
	assert.Equal(t, 0.7, signals.ThresholdFor(SignalTechStackChange, 0.7))
	assert.Equal(t, "growth", signals[SignalExpansion].TemplateID)
	assert.Equal(t, "expansion", base[SignalExpansion].TemplateID)
	_, ok := signals.Lookup(99)
	assert.False(t, ok)
}

func TestArticleUsable(t *testing.T) {
	assert.True(t, Article{URL: "https://a.com", Title: "t"}.Usable())
	assert.False(t, Article{URL: "https://a.com", Title: "  "}.Usable())
	assert.False(t, Article{Title: "t"}.Usable())
}
