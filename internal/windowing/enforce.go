// Package windowing keeps the conversation log within a token budget.
//
// Invariants:
//   - The entry at index 0 (the directive, when present) is never evicted.
//   - Eviction removes the oldest entry after index 0, one at a time.
//   - Retained messages keep their relative order.
//   - A log of one message is never shrunk, even when it alone exceeds the budget.
package windowing

import (
	"github.com/petasbytes/budgetchat/internal/tokenizer"
	"github.com/petasbytes/budgetchat/memory"
)

// Stats summarizes one EnforceBudget call.
//
// Fields:
// - Budget: the limit that was applied.
// - Before: token total on entry.
// - Total: token total of the returned log.
// - Evicted: number of messages removed.
// - OverBudget: true when the returned log still exceeds Budget (single-entry case).
type Stats struct {
	Budget     int
	Before     int
	Total      int
	Evicted    int
	OverBudget bool
}

// EnforceBudget evicts the oldest non-leading messages of log until its token
// total is at most limit or only one message remains. The limit is inclusive.
//
// The returned slice shares its backing array with log; callers should replace
// their log with the result.
func EnforceBudget(log []memory.Message, limit int, c tokenizer.Counter) ([]memory.Message, Stats) {
	total := tokenizer.CountTotal(c, log)
	stats := Stats{Budget: limit, Before: total}

	for total > limit {
		if len(log) <= 1 {
			break
		}
		total -= c.Count(log[1].Content)
		log = append(log[:1], log[2:]...)
		stats.Evicted++
	}

	stats.Total = total
	stats.OverBudget = total > limit
	return log, stats
}
