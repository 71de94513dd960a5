package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProcessor struct {
	processed []int64
	err       error
}

func (p *stubProcessor) Process(ctx context.Context, batchID int64) error {
	p.processed = append(p.processed, batchID)
	return p.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBatchProcessHandlerRunsProcessor(t *testing.T) {
	proc := &stubProcessor{}
	handler := NewBatchProcessHandler(proc, testLogger())

	task, err := NewBatchProcessTask(BatchProcessPayload{BatchID: 42})
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), task))
	assert.Equal(t, []int64{42}, proc.processed)
}

func TestBatchProcessHandlerSkipsBadPayload(t *testing.T) {
	proc := &stubProcessor{}
	handler := NewBatchProcessHandler(proc, testLogger())

	err := handler(context.Background(), asynq.NewTask(TaskTypeBatchProcess, []byte("not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	payload, _ := json.Marshal(BatchProcessPayload{BatchID: 0})
	err = handler(context.Background(), asynq.NewTask(TaskTypeBatchProcess, payload))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	assert.Empty(t, proc.processed)
}

func TestBatchProcessHandlerPropagatesProcessorError(t *testing.T) {
	wantErr := errors.New("lock held")
	proc := &stubProcessor{err: wantErr}
	handler := NewBatchProcessHandler(proc, testLogger())

	task, err := NewBatchProcessTask(BatchProcessPayload{BatchID: 7})
	require.NoError(t, err)

	assert.ErrorIs(t, handler(context.Background(), task), wantErr)
}
