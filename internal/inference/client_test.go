package inference

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeResult struct {
	out string
	err error
}

type fakeBackend struct {
	mu      sync.Mutex
	results []fakeResult
	def     fakeResult
	prompts []string
}

func (f *fakeBackend) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if len(f.results) == 0 {
		return f.def.out, f.def.err
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r.out, r.err
}

func (f *fakeBackend) Provider() string { return "fake" }
func (f *fakeBackend) Model() string    { return "fake-1" }

func (f *fakeBackend) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

func (f *fakeBackend) set(def fakeResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = nil
	f.def = def
}

func testOptions() Options {
	return Options{MaxRetries: 3, RetryDelay: 0, Timeout: time.Second, QueueSize: 2}
}

var errBoom = errors.New("boom")

func TestNewHealthyAfterProbe(t *testing.T) {
	backend := &fakeBackend{def: fakeResult{out: "Acme"}}

	client := New(context.Background(), backend, testOptions(), zap.NewNop())

	assert.Equal(t, StateHealthy, client.State())
	assert.Equal(t, "Acme", client.Infer(context.Background(), "who?", CategoryCompany))
	assert.Equal(t, []string{defaultProbePrompt, "who?"}, backend.calls())
}

func TestNewFailedAfterExhaustedProbes(t *testing.T) {
	backend := &fakeBackend{def: fakeResult{err: errBoom}}

	client := New(context.Background(), backend, testOptions(), zap.NewNop())

	assert.Equal(t, StateFailed, client.State())
	assert.Len(t, backend.calls(), 3)

	resp := client.Do(context.Background(), Request{Prompt: "who?", Category: CategoryEmailFinder})
	assert.True(t, resp.FallbackUsed)
	assert.False(t, resp.Success)
	assert.Equal(t, FallbackEmail, resp.Content)
	assert.ErrorIs(t, resp.Err, ErrBackendFailed)

	calls := backend.calls()
	require.Len(t, calls, 4)
	assert.Equal(t, defaultProbePrompt, calls[3], "failed state must only probe, never run the real prompt")
}

func TestFailedClientRecoversOnProbe(t *testing.T) {
	backend := &fakeBackend{def: fakeResult{err: errBoom}}
	client := New(context.Background(), backend, testOptions(), zap.NewNop())
	require.Equal(t, StateFailed, client.State())

	backend.set(fakeResult{out: "Jane Roe"})

	assert.Equal(t, "Jane Roe", client.Infer(context.Background(), "person?", CategoryPerson))
	assert.Equal(t, StateHealthy, client.State())
	assert.Equal(t, []string{defaultProbePrompt, "person?"}, backend.calls()[3:])
}

func TestRetryMarksDegradedThenHealthy(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	backend := &fakeBackend{def: fakeResult{out: "ok"}}
	client := New(context.Background(), backend, testOptions(), zap.New(core))

	backend.mu.Lock()
	backend.results = []fakeResult{{err: errBoom}, {out: "Globex"}}
	backend.mu.Unlock()

	resp := client.Do(context.Background(), Request{Prompt: "company?", Category: CategoryCompany})

	assert.True(t, resp.Success)
	assert.Equal(t, "Globex", resp.Content)
	assert.Equal(t, 1, resp.RetryCount)
	assert.Equal(t, StateHealthy, client.State())

	var states []string
	for _, entry := range logs.FilterMessage("inference state changed").All() {
		states = append(states, entry.ContextMap()["to"].(string))
	}
	assert.Equal(t, []string{"healthy", "degraded", "healthy"}, states)
}

func TestExhaustedRetriesFailAndFallBack(t *testing.T) {
	backend := &fakeBackend{results: []fakeResult{{out: "ok"}}, def: fakeResult{err: errBoom}}
	client := New(context.Background(), backend, testOptions(), zap.NewNop())
	require.Equal(t, StateHealthy, client.State())

	resp := client.Do(context.Background(), Request{Prompt: "parse", Category: CategoryContentParser})

	assert.True(t, resp.FallbackUsed)
	assert.Equal(t, FallbackContent, resp.Content)
	assert.Equal(t, 2, resp.RetryCount)
	assert.ErrorIs(t, resp.Err, errBoom)
	assert.Equal(t, StateFailed, client.State())
	assert.Len(t, backend.calls(), 4)
}

func TestEmptyResponseCountsAsFailure(t *testing.T) {
	backend := &fakeBackend{def: fakeResult{out: "   "}}
	client := New(context.Background(), backend, testOptions(), zap.NewNop())

	assert.Equal(t, StateFailed, client.State())
	assert.Equal(t, ErrEmptyResponse.Error(), client.Status().LastError)
}

func TestNilBackend(t *testing.T) {
	client := New(context.Background(), nil, Options{}, nil)

	assert.Equal(t, StateFailed, client.State())
	assert.Equal(t, FallbackDefault, client.Infer(context.Background(), "x", CategoryCompany))
	assert.False(t, client.HealthCheck(context.Background()))
}

func TestCallTimeout(t *testing.T) {
	backend := &blockingBackend{}
	opts := testOptions()
	opts.Timeout = 10 * time.Millisecond
	opts.MaxRetries = 1

	client := New(context.Background(), backend, opts, zap.NewNop())

	assert.Equal(t, StateFailed, client.State())
	assert.Contains(t, client.Status().LastError, context.DeadlineExceeded.Error())
}

type blockingBackend struct{}

func (blockingBackend) Generate(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}
func (blockingBackend) Provider() string { return "blocking" }
func (blockingBackend) Model() string    { return "" }

func TestHealthCheck(t *testing.T) {
	backend := &fakeBackend{def: fakeResult{err: errBoom}}
	client := New(context.Background(), backend, testOptions(), zap.NewNop())
	assert.False(t, client.HealthCheck(context.Background()))

	backend.set(fakeResult{out: "ok"})
	assert.True(t, client.HealthCheck(context.Background()))
	assert.Equal(t, "healthy", client.Status().State)
}

func TestFallbackByCategory(t *testing.T) {
	tests := map[string]string{
		CategoryEmailFinder:     "Manual validation needed",
		CategoryContentParser:   "Content parsing failed - manual review required",
		CategoryRelevanceScorer: "Unable to score relevance - manual review required",
		CategoryCompany:         "Service temporarily unavailable",
		"anything":              "Service temporarily unavailable",
	}
	for category, want := range tests {
		assert.Equal(t, want, Fallback(category), category)
		assert.True(t, IsFallback(want))
	}
	assert.False(t, IsFallback("Acme"))
}
