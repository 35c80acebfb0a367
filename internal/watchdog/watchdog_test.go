package watchdog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBeginItemCapsAtPerItemBudgetTimesSlack(t *testing.T) {
	w := New(10, 10, 1.5)
	assert.Equal(t, 15.0, w.BeginItem())
}

func TestBeginItemTracksCumulativeElapsedAcrossItems(t *testing.T) {
	// Three items, budget 10s each -> batch budget 30s.
	w := New(3, 10, 1.5)

	w.EndItem(8)
	w.EndItem(8)

	// Remaining = 30 - 16 = 14, below the 15s per-item*slack cap.
	assert.InDelta(t, 14.0, w.BeginItem(), 0.0001)
}

func TestBeginItemNeverExceedsRemainingBudget(t *testing.T) {
	w := New(1, 10, 1.5)
	w.EndItem(9.5)

	// Remaining = 10 - 9.5 = 0.5, below the 15s cap.
	assert.InDelta(t, 0.5, w.BeginItem(), 0.0001)
}

func TestRemainingNeverGoesNegative(t *testing.T) {
	w := New(1, 10, 1.0)
	w.EndItem(999)

	assert.Equal(t, 0.0, w.Remaining())
	assert.True(t, w.Exhausted())
}

func TestExhaustedFalseWhileBudgetRemains(t *testing.T) {
	w := New(2, 10, 1.0)
	assert.False(t, w.Exhausted())
}
