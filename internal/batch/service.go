package batch

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/contaflow/contaflow/internal/convert"
	"github.com/contaflow/contaflow/internal/layout"
	"github.com/contaflow/contaflow/internal/mapping"
)

// ErrRunInProgress is returned when another run holds the batch lock.
// Callers on the queue path surface it so the task is retried later.
var ErrRunInProgress = errors.New("batch run already in progress")

// errorMessageLimit caps the message persisted on a failed batch.
const errorMessageLimit = 1000

// TxStore is the transactional slice of the repository used by a run.
type TxStore interface {
	GetBatch(ctx context.Context, id int64) (Batch, error)
	DeleteStagingForBatch(ctx context.Context, batchID int64) (int64, error)
	InsertStagingEntries(ctx context.Context, entries []StagingEntry) error
	UpdateBatchOutcome(ctx context.Context, out Outcome) error
}

// Store is the persistence port of the processor.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
	MarkError(ctx context.Context, batchID int64, message string) error
}

// LayoutSource resolves layout names to column configurations.
type LayoutSource interface {
	Get(ctx context.Context, name string) (layout.Config, error)
}

// Locker serialises runs per batch id.
type Locker interface {
	Acquire(ctx context.Context, batchID int64, token string) (bool, error)
	Release(ctx context.Context, batchID int64, token string) error
}

// Notifier announces completed batches; delivery is best effort.
type Notifier interface {
	NotifyCompleted(ctx context.Context, b Batch) error
}

// Processor runs the spreadsheet-to-ledger conversion for one batch:
// layout, extraction, period enforcement, account resolution, then a
// single transactional outcome write.
type Processor struct {
	store      Store
	layouts    LayoutSource
	mappings   mapping.Backend
	locks      Locker
	notifier   Notifier
	strictRows bool
	logger     *slog.Logger
}

// NewProcessor constructs a Processor.
func NewProcessor(store Store, layouts LayoutSource, mappings mapping.Backend, locks Locker, notifier Notifier, strictRows bool, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		store:      store,
		layouts:    layouts,
		mappings:   mappings,
		locks:      locks,
		notifier:   notifier,
		strictRows: strictRows,
		logger:     logger,
	}
}

// Process executes one conversion run. Domain failures are written to
// the batch row as status ERROR and swallowed; the batch record is the
// error surface, not the task return. Only lock contention propagates,
// so the queue retries instead of interleaving two runs.
func (p *Processor) Process(ctx context.Context, batchID int64) error {
	token := uuid.NewString()
	ok, err := p.locks.Acquire(ctx, batchID, token)
	if err != nil {
		return fmt.Errorf("batch %d: %w", batchID, err)
	}
	if !ok {
		return fmt.Errorf("batch %d: %w", batchID, ErrRunInProgress)
	}
	defer func() {
		if err := p.locks.Release(ctx, batchID, token); err != nil {
			p.logger.Warn("release batch lock", slog.Int64("batch_id", batchID), slog.Any("error", err))
		}
	}()

	var completed *Batch
	runErr := p.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		b, err := p.run(ctx, tx, batchID)
		if err != nil {
			return err
		}
		completed = b
		return nil
	})
	if runErr != nil {
		p.logger.Error("batch run failed", slog.Int64("batch_id", batchID), slog.Any("error", runErr))
		msg := runErr.Error()
		if len(msg) > errorMessageLimit {
			msg = msg[:errorMessageLimit]
		}
		if err := p.store.MarkError(ctx, batchID, msg); err != nil {
			p.logger.Error("mark batch error", slog.Int64("batch_id", batchID), slog.Any("error", err))
		}
		return nil
	}

	if completed != nil && p.notifier != nil {
		if err := p.notifier.NotifyCompleted(ctx, *completed); err != nil {
			p.logger.Warn("notify completion", slog.Int64("batch_id", batchID), slog.Any("error", err))
		}
	}
	return nil
}

// run holds the transactional body; it returns the batch when the run
// completed so the caller can notify after commit.
func (p *Processor) run(ctx context.Context, tx TxStore, batchID int64) (*Batch, error) {
	b, err := tx.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	cfg, err := p.layouts.Get(ctx, b.LayoutName)
	if err != nil {
		return nil, err
	}
	cols, err := cfg.Columns()
	if err != nil {
		return nil, err
	}
	period, err := convert.NewPeriod(b.Period)
	if err != nil {
		return nil, err
	}

	// Reprocessing replaces the previous run's pendencies wholesale.
	removed, err := tx.DeleteStagingForBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if removed > 0 {
		p.logger.Info("cleared staging entries for reprocess",
			slog.Int64("batch_id", batchID), slog.Int64("entries", removed))
	}

	rows, dropped, err := convert.NewExtractor(cols, p.strictRows).Parse(b.RawFileB64)
	if err != nil {
		return nil, err
	}
	if dropped > 0 {
		p.logger.Warn("dropped malformed rows",
			slog.Int64("batch_id", batchID), slog.Int("rows", dropped))
	}

	resolver := mapping.NewResolver(b.CompanyID, p.mappings)
	ledger := convert.NewLedgerBuilder(b.CompanyID, b.BranchCodeString())
	var violations []convert.Violation
	var pending []StagingEntry

	for i, row := range rows {
		rowNum := i + 2
		if !period.Contains(row.Date) {
			violations = append(violations, convert.Violation{RowNumber: rowNum, Date: row.Date})
			continue
		}

		debit, err := resolver.Resolve(ctx, row.RawDebitAccount, mapping.MovementDebit)
		if err != nil {
			return nil, err
		}
		credit, err := resolver.Resolve(ctx, row.RawCreditAccount, mapping.MovementCredit)
		if err != nil {
			return nil, err
		}

		if debit == "" || credit == "" {
			pending = append(pending, StagingEntry{
				BatchID:          batchID,
				EntryDate:        row.Date,
				Amount:           row.Amount,
				RawDebitAccount:  row.RawDebitAccount,
				RawCreditAccount: row.RawCreditAccount,
				History:          row.History,
				HistoryCode:      row.HistoryCode,
			})
			continue
		}
		ledger.Add(row, debit, credit)
	}

	if err := period.Check(violations); err != nil {
		return nil, err
	}

	out := Outcome{BatchID: batchID, DroppedRows: dropped}
	if len(pending) > 0 {
		if err := tx.InsertStagingEntries(ctx, pending); err != nil {
			return nil, err
		}
		out.Status = StatusWaitingMapping
		p.logger.Info("batch waiting for account mappings",
			slog.Int64("batch_id", batchID), slog.Int("pendencies", len(pending)))
	} else {
		out.Status = StatusCompleted
		out.ResultB64 = base64.StdEncoding.EncodeToString([]byte(ledger.Render()))
		p.logger.Info("batch completed",
			slog.Int64("batch_id", batchID), slog.Int("rows", ledger.Len()))
	}
	if err := tx.UpdateBatchOutcome(ctx, out); err != nil {
		return nil, err
	}

	if out.Status != StatusCompleted {
		return nil, nil
	}
	b.Status = StatusCompleted
	b.ResultB64 = out.ResultB64
	b.DroppedRows = dropped
	return &b, nil
}
