package search

import (
	"sync"
	"time"
)

// Budget is a daily call allowance shared by every provider of a process.
// The counter resets when the calendar date changes.
type Budget struct {
	mu    sync.Mutex
	limit int
	used  int
	day   string
	now   func() time.Time
}

func NewBudget(limit int) *Budget {
	return &Budget{limit: limit, now: time.Now}
}

// Take reserves one call. It returns false once the daily limit is reached.
// A non-positive limit means unlimited.
func (b *Budget) Take() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollover()
	if b.limit > 0 && b.used >= b.limit {
		return false
	}
	b.used++
	return true
}

// Exhausted reports whether today's limit is already spent without taking a call.
func (b *Budget) Exhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()
	return b.limit > 0 && b.used >= b.limit
}

// Used returns the number of calls made today.
func (b *Budget) Used() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()
	return b.used
}

// Remaining returns the calls left today, or -1 when unlimited.
func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()
	if b.limit <= 0 {
		return -1
	}
	return b.limit - b.used
}

func (b *Budget) rollover() {
	day := b.now().Format("2006-01-02")
	if day != b.day {
		b.day = day
		b.used = 0
	}
}
