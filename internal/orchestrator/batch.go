package orchestrator

import (
	"context"

	"github.com/google/uuid"

	"github.com/ternarybob/extractionengine/internal/model"
	"github.com/ternarybob/extractionengine/internal/watchdog"
)

// RunBatch implements spec §5's concurrency model: the outer batch loop
// is single-threaded, each item is processed in turn against a single
// Watchdog shared across the whole batch (spec §3 "Lifecycles": the
// watchdog is created at batch start, destroyed at batch end). Each
// batch gets a correlation ID for log tracing, since the batch itself
// carries no natural identifier of its own.
func (o *Orchestrator) RunBatch(ctx context.Context, items []model.DocumentRequest) []model.ItemResult {
	batchID := uuid.New().String()
	wd := watchdog.New(len(items), o.thresholds.PerItemBudgetSeconds, o.thresholds.Slack)

	if o.logger != nil {
		o.logger.Info().Str("batch_id", batchID).Int("items", len(items)).Msg("batch started")
	}

	results := make([]model.ItemResult, len(items))
	for i, item := range items {
		result := o.Process(ctx, item, wd)
		results[i] = result

		if o.audit != nil {
			if err := o.audit.RecordItem(ctx, result); err != nil && o.logger != nil {
				o.logger.Warn().Err(err).Str("batch_id", batchID).Str("label", item.Label).Msg("failed to record batch audit entry")
			}
		}
	}

	if o.logger != nil {
		o.logger.Info().Str("batch_id", batchID).Int("items", len(items)).Msg("batch completed")
	}

	return results
}
