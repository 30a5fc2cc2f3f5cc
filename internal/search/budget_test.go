package search

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBudgetIsSharedAcrossGoroutines(t *testing.T) {
	budget := NewBudget(5)

	var granted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if budget.Take() {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), granted.Load())
	assert.Equal(t, 0, budget.Remaining())
}

func TestBudgetResetsOnNewDay(t *testing.T) {
	now := time.Date(2026, 10, 14, 23, 59, 0, 0, time.UTC)
	budget := NewBudget(1)
	budget.now = func() time.Time { return now }

	assert.True(t, budget.Take())
	assert.False(t, budget.Take())

	now = now.Add(2 * time.Minute)
	assert.True(t, budget.Take())
	assert.Equal(t, 1, budget.Used())
}

func TestBudgetExhaustedDoesNotTake(t *testing.T) {
	budget := NewBudget(1)

	assert.False(t, budget.Exhausted())
	assert.Equal(t, 0, budget.Used())
	assert.True(t, budget.Take())
	assert.True(t, budget.Exhausted())
	assert.False(t, NewBudget(0).Exhausted())
}

func TestUnlimitedBudget(t *testing.T) {
	budget := NewBudget(0)
	for i := 0; i < 100; i++ {
		assert.True(t, budget.Take())
	}
	assert.Equal(t, -1, budget.Remaining())
}

func TestNormalizeDomain(t *testing.T) {
	tests := map[string]string{
		"https://www.HRDive.com/news/x":  "hrdive.com",
		"http://reuters.com:8080/a?b=c":  "reuters.com",
		"www.forbes.com":                 "forbes.com",
		"ft.com/content":                 "ft.com",
		"  ":                             "",
		"https://blog.techcrunch.com/a":  "blog.techcrunch.com",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeDomain(in), in)
	}

	set := NewDomainSet([]string{"techcrunch.com"})
	assert.True(t, set.Allows("https://www.techcrunch.com/2026/10/01/x"))
	assert.False(t, set.Allows("https://blog.techcrunch.com/a"))
	assert.True(t, NewDomainSet(nil).Allows("https://anything.io"))
}
