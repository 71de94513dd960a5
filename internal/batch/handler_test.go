package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contaflow/contaflow/internal/shared"
)

type stubStorage struct {
	created   []Batch
	createErr error
	batches   map[string]Batch
	waiting   []Batch
	staging   map[int64][]StagingEntry
	deleted   []string
	deleteErr error
}

func (s *stubStorage) Create(ctx context.Context, b Batch) (int64, error) {
	if s.createErr != nil {
		return 0, s.createErr
	}
	s.created = append(s.created, b)
	return int64(len(s.created)), nil
}

func (s *stubStorage) GetByNumber(ctx context.Context, protocol string) (Batch, error) {
	b, ok := s.batches[protocol]
	if !ok {
		return Batch{}, fmt.Errorf("protocol %q: %w", protocol, shared.ErrNotFound)
	}
	return b, nil
}

func (s *stubStorage) ListByCompany(ctx context.Context, companyID string) ([]Summary, error) {
	var out []Summary
	for _, b := range s.batches {
		if b.CompanyID == companyID {
			out = append(out, Summary{ID: b.ID, Protocol: b.Protocol, Status: b.Status, ErrorMessage: b.ErrorMessage, CreatedAt: b.CreatedAt})
		}
	}
	return out, nil
}

func (s *stubStorage) ListByStatus(ctx context.Context, status Status) ([]Batch, error) {
	return s.waiting, nil
}

func (s *stubStorage) ListStagingEntries(ctx context.Context, batchID int64) ([]StagingEntry, error) {
	return s.staging[batchID], nil
}

func (s *stubStorage) Delete(ctx context.Context, protocol string) (int64, error) {
	if s.deleteErr != nil {
		return 0, s.deleteErr
	}
	s.deleted = append(s.deleted, protocol)
	return 3, nil
}

type stubQueue struct {
	enqueued []int64
	err      error
}

func (q *stubQueue) EnqueueBatchProcess(ctx context.Context, batchID int64) error {
	if q.err != nil {
		return q.err
	}
	q.enqueued = append(q.enqueued, batchID)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(store *stubStorage, queue *stubQueue) http.Handler {
	r := chi.NewRouter()
	NewHandler(testLogger(), store, queue).MountRoutes(r)
	return r
}

func validCreateBody() map[string]any {
	return map[string]any{
		"protocolo":          "1711900000",
		"cnpj":               "12345678000190",
		"periodo":            "2024-03",
		"codigo_matriz":      1,
		"codigo_filial":      2,
		"email_destinatario": "contador@example.com",
		"layout_nome":        "layout_brastelha_1",
		"arquivo_base64":     "UEsDBA==",
	}
}

func doJSON(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateBatchEnqueuesProcessing(t *testing.T) {
	store := &stubStorage{}
	queue := &stubQueue{}
	rec := doJSON(t, newTestRouter(store, queue), http.MethodPost, "/lancamento_lote_contabil", validCreateBody())

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["sucesso"])
	assert.Equal(t, "1711900000", resp["protocolo"])

	require.Len(t, store.created, 1)
	assert.Equal(t, "12345678000190", store.created[0].CompanyID)
	assert.Equal(t, "layout_brastelha_1", store.created[0].LayoutName)
	assert.Equal(t, []int64{1}, queue.enqueued)
}

func TestCreateBatchRejectsInvalidBody(t *testing.T) {
	store := &stubStorage{}
	queue := &stubQueue{}
	router := newTestRouter(store, queue)

	for name, mutate := range map[string]func(map[string]any){
		"short cnpj":      func(b map[string]any) { b["cnpj"] = "123" },
		"non numeric":     func(b map[string]any) { b["cnpj"] = "1234567800019a" },
		"missing file":    func(b map[string]any) { delete(b, "arquivo_base64") },
		"bad email":       func(b map[string]any) { b["email_destinatario"] = "not-an-email" },
		"zero matriz":     func(b map[string]any) { b["codigo_matriz"] = 0 },
		"missing layout":  func(b map[string]any) { delete(b, "layout_nome") },
		"filial too high": func(b map[string]any) { b["codigo_filial"] = 20000 },
	} {
		t.Run(name, func(t *testing.T) {
			body := validCreateBody()
			mutate(body)
			rec := doJSON(t, router, http.MethodPost, "/lancamento_lote_contabil", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Empty(t, store.created)
	assert.Empty(t, queue.enqueued)
}

func TestCreateBatchDuplicateProtocol(t *testing.T) {
	store := &stubStorage{createErr: fmt.Errorf("protocol %q: %w", "1711900000", ErrDuplicateProtocol)}
	rec := doJSON(t, newTestRouter(store, &stubQueue{}), http.MethodPost, "/lancamento_lote_contabil", validCreateBody())

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Protocolo já existente.")
}

func TestQueryBatchByProtocol(t *testing.T) {
	store := &stubStorage{batches: map[string]Batch{
		"P-001": {ID: 1, Protocol: "P-001", Status: StatusCompleted, ResultB64: "dHh0"},
		"P-002": {ID: 2, Protocol: "P-002", Status: StatusError, ErrorMessage: "layout não encontrado"},
		"P-003": {ID: 3, Protocol: "P-003", Status: StatusPending},
	}}
	router := newTestRouter(store, &stubQueue{})

	rec := doJSON(t, router, http.MethodGet, "/lancamento_lote_contabil?protocolo=P-001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var completed statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &completed))
	assert.Equal(t, "COMPLETED", completed.Status)
	assert.Equal(t, "dHh0", completed.Result)
	assert.Nil(t, completed.ErrorMessage)

	rec = doJSON(t, router, http.MethodGet, "/lancamento_lote_contabil?protocolo=P-002", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var failed statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &failed))
	assert.Equal(t, "ERROR", failed.Status)
	require.NotNil(t, failed.ErrorMessage)
	assert.Equal(t, "layout não encontrado", *failed.ErrorMessage)

	rec = doJSON(t, router, http.MethodGet, "/lancamento_lote_contabil?protocolo=P-003", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pending statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pending))
	assert.Equal(t, "pendente", pending.Result)

	rec = doJSON(t, router, http.MethodGet, "/lancamento_lote_contabil?protocolo=missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQueryBatchByCompany(t *testing.T) {
	store := &stubStorage{batches: map[string]Batch{
		"P-001": {ID: 1, Protocol: "P-001", CompanyID: "12345678000190", Status: StatusCompleted, CreatedAt: time.Now()},
	}}
	rec := doJSON(t, newTestRouter(store, &stubQueue{}), http.MethodGet, "/lancamento_lote_contabil?cnpj=12345678000190", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Sucesso    bool              `json:"sucesso"`
		Protocolos []summaryResponse `json:"protocolos"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Sucesso)
	require.Len(t, resp.Protocolos, 1)
	assert.Equal(t, "P-001", resp.Protocolos[0].Protocol)
}

func TestQueryBatchRequiresFilter(t *testing.T) {
	rec := doJSON(t, newTestRouter(&stubStorage{}, &stubQueue{}), http.MethodGet, "/lancamento_lote_contabil", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Informe protocolo ou cnpj.")
}

func TestDeleteBatch(t *testing.T) {
	store := &stubStorage{}
	rec := doJSON(t, newTestRouter(store, &stubQueue{}), http.MethodDelete, "/lancamento_lote_contabil/P-001", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"P-001"}, store.deleted)
	assert.Contains(t, rec.Body.String(), "Protocolo P-001 excluído.")
}

func TestDeleteBatchConflictsWhilePending(t *testing.T) {
	store := &stubStorage{deleteErr: fmt.Errorf("protocol %q: %w", "P-001", ErrBatchProcessing)}
	rec := doJSON(t, newTestRouter(store, &stubQueue{}), http.MethodDelete, "/lancamento_lote_contabil/P-001", nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "Aguarde o processamento antes de excluir.")
}

func TestListPendenciesGroupsByBatch(t *testing.T) {
	store := &stubStorage{
		waiting: []Batch{{ID: 1, Protocol: "P-001", CompanyID: "12345678000190", Status: StatusWaitingMapping}},
		staging: map[int64][]StagingEntry{
			1: {
				{ID: 10, BatchID: 1, EntryDate: "15/03/2024", Amount: 10.5, RawDebitAccount: "999", RawCreditAccount: "200", History: "Sem mapa"},
			},
		},
	}
	rec := doJSON(t, newTestRouter(store, &stubQueue{}), http.MethodGet, "/pendencias", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Sucesso    bool            `json:"sucesso"`
		Pendencias []pendencyGroup `json:"pendencias"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Sucesso)
	require.Len(t, resp.Pendencias, 1)
	group := resp.Pendencias[0]
	assert.Equal(t, int64(1), group.BatchID)
	assert.Equal(t, "P-001", group.Protocol)
	require.Len(t, group.Entries, 1)
	assert.Equal(t, "999", group.Entries[0].RawDebitAccount)
	assert.InDelta(t, 10.5, group.Entries[0].Amount, 1e-9)
}
