package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

// BatchProcessor runs one conversion attempt for a batch.
type BatchProcessor interface {
	Process(ctx context.Context, batchID int64) error
}

// NewBatchProcessHandler adapts the processor to an Asynq handler. A
// non-nil error from the processor propagates so Asynq retries with
// backoff; this is how a locked batch gets its run deferred.
func NewBatchProcessHandler(processor BatchProcessor, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload BatchProcessPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.BatchID <= 0 {
			return asynq.SkipRetry
		}
		logger.Info("processing batch", slog.Int64("batch_id", payload.BatchID))
		return processor.Process(ctx, payload.BatchID)
	}
}
