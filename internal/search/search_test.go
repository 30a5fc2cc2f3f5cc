package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/prospector/internal/leads"
)

type pagerStep struct {
	page Page
	err  error
}

// fakePager serves scripted steps in order, then endless pages of two articles.
type fakePager struct {
	mu    sync.Mutex
	steps []pagerStep
	calls []string
}

func (f *fakePager) Name() string { return "fake" }

func (f *fakePager) Fetch(_ context.Context, _ string, cursor string) (Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, cursor)
	if len(f.steps) > 0 {
		s := f.steps[0]
		f.steps = f.steps[1:]
		return s.page, s.err
	}
	n := len(f.calls)
	return Page{Articles: articlesFor("hrdive.com", n, 2), Next: strconv.Itoa(n)}, nil
}

func articlesFor(domain string, page, count int) []leads.Article {
	out := make([]leads.Article, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, leads.Article{
			URL:   fmt.Sprintf("https://www.%s/p%d/a%d", domain, page, i),
			Title: fmt.Sprintf("article %d-%d", page, i),
		})
	}
	return out
}

func testOptions() Options {
	return Options{MaxPages: 5, Retries: 3, RetryDelay: time.Nanosecond}
}

func TestSearchStopsAtMaxResults(t *testing.T) {
	pager := &fakePager{}
	s := New(pager, NewBudget(50), testOptions(), zap.NewNop())

	articles, err := s.Search(context.Background(), "hr tech", 3, []string{"hrdive.com"})

	require.NoError(t, err)
	assert.Len(t, articles, 3)
	assert.Len(t, pager.calls, 2)
	assert.Equal(t, []string{"", "1"}, pager.calls)
}

func TestSearchPageCap(t *testing.T) {
	pager := &fakePager{}
	budget := NewBudget(50)
	s := New(pager, budget, testOptions(), zap.NewNop())

	articles, err := s.Search(context.Background(), "hr tech", 100, nil)

	require.NoError(t, err)
	assert.Len(t, articles, 10)
	assert.Len(t, pager.calls, 5)
	assert.Equal(t, 5, budget.Used())
}

func TestSearchStopsWithoutNextPage(t *testing.T) {
	pager := &fakePager{steps: []pagerStep{{page: Page{Articles: articlesFor("hrdive.com", 1, 1)}}}}
	s := New(pager, NewBudget(50), testOptions(), zap.NewNop())

	articles, err := s.Search(context.Background(), "q", 10, nil)

	require.NoError(t, err)
	assert.Len(t, articles, 1)
	assert.Len(t, pager.calls, 1)
}

func TestSearchFiltersDomainsAndUnusableArticles(t *testing.T) {
	mixed := append(articlesFor("spam.example", 1, 2), articlesFor("reuters.com", 1, 1)...)
	mixed = append(mixed, leads.Article{URL: "https://reuters.com/untitled"})
	pager := &fakePager{steps: []pagerStep{{page: Page{Articles: mixed}}}}
	budget := NewBudget(50)
	s := New(pager, budget, testOptions(), zap.NewNop())

	articles, err := s.Search(context.Background(), "q", 10, []string{"https://www.Reuters.com/"})

	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "https://www.reuters.com/p1/a0", articles[0].URL)
	assert.Equal(t, 1, budget.Used())
}

func TestSearchStopsWhenBudgetExhausted(t *testing.T) {
	pager := &fakePager{}
	s := New(pager, NewBudget(2), testOptions(), zap.NewNop())

	articles, err := s.Search(context.Background(), "q", 100, nil)

	require.NoError(t, err)
	assert.Len(t, articles, 4)
	assert.Len(t, pager.calls, 2)
}

func TestSearchSkipsPauseOnceBudgetIsSpent(t *testing.T) {
	pager := &fakePager{}
	opts := testOptions()
	opts.PagePause = time.Second
	s := New(pager, NewBudget(1), opts, zap.NewNop())

	first, err := s.Search(context.Background(), "q", 100, nil)
	require.NoError(t, err)
	assert.Len(t, first, 2)

	start := time.Now()
	second, err := s.Search(context.Background(), "q", 100, nil)

	require.NoError(t, err)
	assert.Empty(t, second)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Len(t, pager.calls, 1)
}

func TestSearchRateLimitReturnsPartialResults(t *testing.T) {
	pager := &fakePager{steps: []pagerStep{
		{page: Page{Articles: articlesFor("hrdive.com", 1, 2), Next: "n"}},
		{err: &StatusError{Code: http.StatusTooManyRequests}},
	}}
	s := New(pager, NewBudget(50), testOptions(), zap.NewNop())

	articles, err := s.Search(context.Background(), "q", 100, nil)

	require.NoError(t, err)
	assert.Len(t, articles, 2)
	assert.Len(t, pager.calls, 2)
}

func TestSearchUnauthorizedAborts(t *testing.T) {
	for _, code := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		pager := &fakePager{steps: []pagerStep{{err: &StatusError{Code: code}}}}
		s := New(pager, NewBudget(50), testOptions(), zap.NewNop())

		_, err := s.Search(context.Background(), "q", 10, nil)

		assert.ErrorIs(t, err, ErrUnauthorized, "code %d", code)
		assert.Len(t, pager.calls, 1, "auth errors must not be retried")
	}
}

func TestSearchUnprocessableAborts(t *testing.T) {
	pager := &fakePager{steps: []pagerStep{{err: &StatusError{Code: http.StatusUnprocessableEntity}}}}
	s := New(pager, NewBudget(50), testOptions(), zap.NewNop())

	_, err := s.Search(context.Background(), "q", 10, nil)

	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestSearchRetriesServerErrors(t *testing.T) {
	pager := &fakePager{steps: []pagerStep{
		{err: &StatusError{Code: http.StatusBadGateway}},
		{page: Page{Articles: articlesFor("hrdive.com", 1, 1)}},
	}}
	budget := NewBudget(50)
	s := New(pager, budget, testOptions(), zap.NewNop())

	articles, err := s.Search(context.Background(), "q", 10, nil)

	require.NoError(t, err)
	assert.Len(t, articles, 1)
	assert.Equal(t, 2, budget.Used(), "every attempt is a call")
}

func TestSearchProviderErrorIsNotRetried(t *testing.T) {
	pager := &fakePager{steps: []pagerStep{{err: fmt.Errorf("%w: quota", ErrProvider)}}}
	s := New(pager, NewBudget(50), testOptions(), zap.NewNop())

	_, err := s.Search(context.Background(), "q", 10, nil)

	assert.ErrorIs(t, err, ErrProvider)
	assert.Len(t, pager.calls, 1)
}

func TestDisabledProvider(t *testing.T) {
	articles, err := Disabled{Reason: "no key"}.Search(context.Background(), "q", 10, nil)
	assert.NoError(t, err)
	assert.Empty(t, articles)
}

func TestStatusErrorUnwrap(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &StatusError{Code: http.StatusForbidden, Body: "nope"})
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.Contains(t, err.Error(), "403 Forbidden: nope")
	assert.False(t, errors.Is(&StatusError{Code: http.StatusNotFound}, ErrUnauthorized))
}
