package mapping

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

// Store abstracts mapping persistence for the resolution service.
type Store interface {
	Upsert(ctx context.Context, m Mapping) error
	Lookup(ctx context.Context, companyID, clientAccount string, t MovementType) (string, error)
}

// PendingEntry carries the raw accounts of one staged pendency.
type PendingEntry struct {
	RawDebitAccount  string
	RawCreditAccount string
}

// PendingBatch is the waiting-mapping view of a batch.
type PendingBatch struct {
	CompanyID  string
	HasRawFile bool
	Entries    []PendingEntry
}

// BatchSource loads pendency state for a batch.
type BatchSource interface {
	Pending(ctx context.Context, batchID int64) (PendingBatch, error)
}

// Enqueuer schedules a reprocessing run.
type Enqueuer interface {
	EnqueueBatchProcess(ctx context.Context, batchID int64) error
}

// ResolveInput is one human-resolved account mapping.
type ResolveInput struct {
	BatchID       int64
	CompanyID     string
	ClientAccount string
	LedgerAccount string
	Type          MovementType
}

// ResolveResult reports what happened after saving a mapping.
type ResolveResult struct {
	Reprocessing   bool
	MissingRawFile bool
	Remaining      []string
}

// ResolutionService persists resolved mappings and triggers the
// reprocessing run once a batch has no unmapped account left.
type ResolutionService struct {
	store    Store
	batches  BatchSource
	enqueuer Enqueuer
	logger   *slog.Logger
}

// NewResolutionService constructs a ResolutionService.
func NewResolutionService(store Store, batches BatchSource, enqueuer Enqueuer, logger *slog.Logger) *ResolutionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResolutionService{store: store, batches: batches, enqueuer: enqueuer, logger: logger}
}

// Resolve upserts the mapping, then recomputes which staged accounts of
// the batch still lack one. When none remain and the raw upload is
// still stored, a reprocessing run is enqueued; the run itself replaces
// the batch's staging entries.
func (s *ResolutionService) Resolve(ctx context.Context, in ResolveInput) (ResolveResult, error) {
	if !in.Type.Valid() {
		return ResolveResult{}, fmt.Errorf("mapping: invalid movement type %q", in.Type)
	}
	if err := s.store.Upsert(ctx, Mapping{
		CompanyID:     in.CompanyID,
		ClientAccount: in.ClientAccount,
		LedgerAccount: in.LedgerAccount,
		Type:          in.Type,
	}); err != nil {
		return ResolveResult{}, fmt.Errorf("mapping: upsert: %w", err)
	}

	pending, err := s.batches.Pending(ctx, in.BatchID)
	if err != nil {
		return ResolveResult{}, err
	}

	remaining, err := s.unmappedAccounts(ctx, pending)
	if err != nil {
		return ResolveResult{}, err
	}
	if len(remaining) > 0 {
		return ResolveResult{Remaining: remaining}, nil
	}
	if !pending.HasRawFile {
		return ResolveResult{MissingRawFile: true}, nil
	}

	if err := s.enqueuer.EnqueueBatchProcess(ctx, in.BatchID); err != nil {
		return ResolveResult{}, fmt.Errorf("mapping: enqueue reprocess: %w", err)
	}
	s.logger.Info("pendencies cleared, reprocessing enqueued", slog.Int64("batch_id", in.BatchID))
	return ResolveResult{Reprocessing: true}, nil
}

func (s *ResolutionService) unmappedAccounts(ctx context.Context, pending PendingBatch) ([]string, error) {
	resolver := NewResolver(pending.CompanyID, s.store)
	missing := make(map[string]struct{})
	for _, entry := range pending.Entries {
		for _, side := range []struct {
			account string
			typ     MovementType
		}{
			{entry.RawDebitAccount, MovementDebit},
			{entry.RawCreditAccount, MovementCredit},
		} {
			code, err := resolver.Resolve(ctx, side.account, side.typ)
			if err != nil {
				return nil, fmt.Errorf("mapping: lookup: %w", err)
			}
			if code == "" {
				missing[string(side.typ)+":"+side.account] = struct{}{}
			}
		}
	}
	if len(missing) == 0 {
		return nil, nil
	}
	remaining := make([]string, 0, len(missing))
	for key := range missing {
		remaining = append(remaining, key)
	}
	sort.Strings(remaining)
	return remaining, nil
}
