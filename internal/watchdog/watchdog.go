// Package watchdog implements the Budget Watchdog (spec §4.7): tracks
// cumulative elapsed time against a batch budget and yields per-item
// deadlines that let fast items bank time for slow ones.
package watchdog

import "sync"

// Watchdog is advisory, not preemptive (spec §9): callers wrap the LLM
// dispatch with the deadline BeginItem returns, but compute-bound stages
// are never interrupted by it.
type Watchdog struct {
	mu               sync.Mutex
	batchBudgetS     float64
	cumulativeElapse float64
	slack            float64
	perItemBudgetS   float64
}

// New creates a Watchdog for a batch of nItems, each allotted
// perItemBudgetS seconds before amortization, with the given slack
// multiplier (spec §3 "Batch budget").
func New(nItems int, perItemBudgetS, slack float64) *Watchdog {
	return &Watchdog{
		batchBudgetS:   float64(nItems) * perItemBudgetS,
		perItemBudgetS: perItemBudgetS,
		slack:          slack,
	}
}

// BeginItem returns this item's deadline: min(PER_ITEM_BUDGET_S * SLACK,
// remaining) (spec §4.7). Must be called once per item, before dispatch.
func (w *Watchdog) BeginItem() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	remaining := w.batchBudgetS - w.cumulativeElapse
	if remaining < 0 {
		remaining = 0
	}

	cap := w.perItemBudgetS * w.slack
	if remaining < cap {
		return remaining
	}
	return cap
}

// EndItem records elapsed seconds actually spent on the just-finished
// item, advancing cumulative_elapsed monotonically.
func (w *Watchdog) EndItem(elapsedSeconds float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cumulativeElapse += elapsedSeconds
}

// Remaining reports the batch time left under the budget, never negative.
func (w *Watchdog) Remaining() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	remaining := w.batchBudgetS - w.cumulativeElapse
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Exhausted reports whether the batch has consumed its entire budget.
func (w *Watchdog) Exhausted() bool {
	return w.Remaining() <= 0
}
