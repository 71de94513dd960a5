package mapping

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	mappings map[cacheKey]string
	upserts  []Mapping
}

func (s *stubStore) Upsert(ctx context.Context, m Mapping) error {
	if s.mappings == nil {
		s.mappings = make(map[cacheKey]string)
	}
	s.mappings[cacheKey{Type: m.Type, Account: m.ClientAccount}] = m.LedgerAccount
	s.upserts = append(s.upserts, m)
	return nil
}

func (s *stubStore) Lookup(ctx context.Context, companyID, clientAccount string, t MovementType) (string, error) {
	return s.mappings[cacheKey{Type: t, Account: clientAccount}], nil
}

type stubBatchSource struct {
	pending PendingBatch
	err     error
}

func (s *stubBatchSource) Pending(ctx context.Context, batchID int64) (PendingBatch, error) {
	return s.pending, s.err
}

type stubEnqueuer struct {
	enqueued []int64
}

func (s *stubEnqueuer) EnqueueBatchProcess(ctx context.Context, batchID int64) error {
	s.enqueued = append(s.enqueued, batchID)
	return nil
}

func TestResolveReportsRemainingAccounts(t *testing.T) {
	store := &stubStore{}
	batches := &stubBatchSource{pending: PendingBatch{
		CompanyID:  "12345678000190",
		HasRawFile: true,
		Entries: []PendingEntry{
			{RawDebitAccount: "100", RawCreditAccount: "200"},
			{RawDebitAccount: "100", RawCreditAccount: "300"},
		},
	}}
	enqueuer := &stubEnqueuer{}
	svc := NewResolutionService(store, batches, enqueuer, nil)

	res, err := svc.Resolve(context.Background(), ResolveInput{
		BatchID:       1,
		CompanyID:     "12345678000190",
		ClientAccount: "100",
		LedgerAccount: "1.01",
		Type:          MovementDebit,
	})
	require.NoError(t, err)

	assert.False(t, res.Reprocessing)
	assert.Equal(t, []string{"CREDITO:200", "CREDITO:300"}, res.Remaining)
	assert.Empty(t, enqueuer.enqueued)
}

func TestResolveEnqueuesWhenAllMapped(t *testing.T) {
	store := &stubStore{mappings: map[cacheKey]string{
		{Type: MovementCredit, Account: "200"}: "2.01",
	}}
	batches := &stubBatchSource{pending: PendingBatch{
		CompanyID:  "12345678000190",
		HasRawFile: true,
		Entries:    []PendingEntry{{RawDebitAccount: "100", RawCreditAccount: "200"}},
	}}
	enqueuer := &stubEnqueuer{}
	svc := NewResolutionService(store, batches, enqueuer, nil)

	res, err := svc.Resolve(context.Background(), ResolveInput{
		BatchID:       7,
		CompanyID:     "12345678000190",
		ClientAccount: "100",
		LedgerAccount: "1.01",
		Type:          MovementDebit,
	})
	require.NoError(t, err)

	assert.True(t, res.Reprocessing)
	assert.Empty(t, res.Remaining)
	assert.Equal(t, []int64{7}, enqueuer.enqueued)
}

func TestResolveWithoutRawFileDoesNotEnqueue(t *testing.T) {
	store := &stubStore{}
	batches := &stubBatchSource{pending: PendingBatch{
		CompanyID: "12345678000190",
		Entries:   []PendingEntry{{RawDebitAccount: "100", RawCreditAccount: "200"}},
	}}
	enqueuer := &stubEnqueuer{}
	svc := NewResolutionService(store, batches, enqueuer, nil)

	_, err := svc.Resolve(context.Background(), ResolveInput{
		BatchID: 1, CompanyID: "12345678000190",
		ClientAccount: "100", LedgerAccount: "1.01", Type: MovementDebit,
	})
	require.NoError(t, err)

	res, err := svc.Resolve(context.Background(), ResolveInput{
		BatchID: 1, CompanyID: "12345678000190",
		ClientAccount: "200", LedgerAccount: "2.01", Type: MovementCredit,
	})
	require.NoError(t, err)

	assert.True(t, res.MissingRawFile)
	assert.False(t, res.Reprocessing)
	assert.Empty(t, enqueuer.enqueued)
}

func TestResolveUpsertOverwritesLedgerAccount(t *testing.T) {
	store := &stubStore{}
	batches := &stubBatchSource{pending: PendingBatch{CompanyID: "12345678000190", HasRawFile: true}}
	svc := NewResolutionService(store, batches, &stubEnqueuer{}, nil)

	for _, code := range []string{"1.01", "1.99"} {
		_, err := svc.Resolve(context.Background(), ResolveInput{
			BatchID: 1, CompanyID: "12345678000190",
			ClientAccount: "100", LedgerAccount: code, Type: MovementDebit,
		})
		require.NoError(t, err)
	}

	assert.Equal(t, "1.99", store.mappings[cacheKey{Type: MovementDebit, Account: "100"}])
	assert.Len(t, store.upserts, 2)
}

func TestResolveRejectsUnknownType(t *testing.T) {
	svc := NewResolutionService(&stubStore{}, &stubBatchSource{}, &stubEnqueuer{}, nil)
	_, err := svc.Resolve(context.Background(), ResolveInput{Type: MovementType("TRANSFER")})
	require.Error(t, err)
}
