package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/contaflow/contaflow/internal/platform/httpx"
	"github.com/contaflow/contaflow/internal/shared"
)

// Storage is the persistence surface the HTTP layer needs.
type Storage interface {
	Create(ctx context.Context, b Batch) (int64, error)
	GetByNumber(ctx context.Context, protocol string) (Batch, error)
	ListByCompany(ctx context.Context, companyID string) ([]Summary, error)
	ListByStatus(ctx context.Context, status Status) ([]Batch, error)
	ListStagingEntries(ctx context.Context, batchID int64) ([]StagingEntry, error)
	Delete(ctx context.Context, protocol string) (int64, error)
}

// Enqueuer schedules the background processing run for a batch.
type Enqueuer interface {
	EnqueueBatchProcess(ctx context.Context, batchID int64) error
}

// Handler wires the batch upload, status and pendency listing routes.
type Handler struct {
	logger    *slog.Logger
	store     Storage
	enqueuer  Enqueuer
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, store Storage, enqueuer Enqueuer) *Handler {
	return &Handler{
		logger:    logger,
		store:     store,
		enqueuer:  enqueuer,
		validator: validator.New(),
	}
}

// MountRoutes registers batch routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/lancamento_lote_contabil", h.createBatch)
	r.Get("/lancamento_lote_contabil", h.queryBatch)
	r.Delete("/lancamento_lote_contabil/{numero_protocolo}", h.deleteBatch)
	r.Get("/pendencias", h.listPendencies)
}

type createRequest struct {
	Protocol       string `json:"protocolo" validate:"required"`
	CompanyID      string `json:"cnpj" validate:"required,len=14,numeric"`
	Period         string `json:"periodo" validate:"required"`
	HeadOfficeCode int    `json:"codigo_matriz" validate:"required,gte=1,lte=10000"`
	BranchCode     *int   `json:"codigo_filial" validate:"omitempty,gte=1,lte=10000"`
	InitialLot     *int   `json:"lote_inicial"`
	Email          string `json:"email_destinatario" validate:"required,email"`
	LayoutName     string `json:"layout_nome" validate:"required"`
	FileB64        string `json:"arquivo_base64" validate:"required"`
}

func (h *Handler) createBatch(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "corpo inválido", "o corpo da requisição não é um JSON válido")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "dados inválidos", err.Error())
		return
	}

	id, err := h.store.Create(r.Context(), Batch{
		Protocol:       req.Protocol,
		CompanyID:      req.CompanyID,
		Period:         req.Period,
		HeadOfficeCode: req.HeadOfficeCode,
		BranchCode:     req.BranchCode,
		InitialLot:     req.InitialLot,
		Email:          req.Email,
		LayoutName:     req.LayoutName,
		RawFileB64:     req.FileB64,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateProtocol) {
			httpx.Problem(w, http.StatusBadRequest, "protocolo duplicado", "Protocolo já existente.")
			return
		}
		h.logger.Error("create batch", slog.String("protocol", req.Protocol), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "erro interno", "falha ao registrar o lote")
		return
	}

	if err := h.enqueuer.EnqueueBatchProcess(r.Context(), id); err != nil {
		h.logger.Error("enqueue batch process", slog.Int64("batch_id", id), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "erro interno", "falha ao agendar o processamento")
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"sucesso":   true,
		"protocolo": req.Protocol,
	})
}

type statusResponse struct {
	Sucesso      bool    `json:"sucesso"`
	Protocol     string  `json:"protocolo"`
	Status       string  `json:"status"`
	Result       string  `json:"resultado"`
	ErrorMessage *string `json:"error_message"`
}

type summaryResponse struct {
	ID           int64     `json:"id"`
	Protocol     string    `json:"protocolo"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"data"`
	ErrorMessage *string   `json:"error_message"`
}

func (h *Handler) queryBatch(w http.ResponseWriter, r *http.Request) {
	protocol := r.URL.Query().Get("protocolo")
	companyID := r.URL.Query().Get("cnpj")

	switch {
	case protocol != "":
		h.queryByProtocol(w, r, protocol)
	case companyID != "":
		h.queryByCompany(w, r, companyID)
	default:
		httpx.Problem(w, http.StatusBadRequest, "parâmetros ausentes", "Informe protocolo ou cnpj.")
	}
}

func (h *Handler) queryByProtocol(w http.ResponseWriter, r *http.Request, protocol string) {
	b, err := h.store.GetByNumber(r.Context(), protocol)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "protocolo não encontrado", "Protocolo não encontrado.")
			return
		}
		h.logger.Error("query batch", slog.String("protocol", protocol), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "erro interno", "falha ao consultar o protocolo")
		return
	}

	resp := statusResponse{
		Sucesso:  true,
		Protocol: b.Protocol,
		Status:   string(b.Status),
		Result:   "pendente",
	}
	if b.Status == StatusCompleted {
		resp.Result = b.ResultB64
	}
	if b.Status == StatusError {
		resp.ErrorMessage = &b.ErrorMessage
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) queryByCompany(w http.ResponseWriter, r *http.Request, companyID string) {
	summaries, err := h.store.ListByCompany(r.Context(), companyID)
	if err != nil {
		h.logger.Error("list batches", slog.String("cnpj", companyID), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "erro interno", "falha ao consultar os protocolos")
		return
	}

	out := make([]summaryResponse, 0, len(summaries))
	for _, s := range summaries {
		item := summaryResponse{
			ID:        s.ID,
			Protocol:  s.Protocol,
			Status:    string(s.Status),
			CreatedAt: s.CreatedAt,
		}
		if s.Status == StatusError {
			msg := s.ErrorMessage
			item.ErrorMessage = &msg
		}
		out = append(out, item)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"sucesso":    true,
		"protocolos": out,
	})
}

func (h *Handler) deleteBatch(w http.ResponseWriter, r *http.Request) {
	protocol := chi.URLParam(r, "numero_protocolo")

	entries, err := h.store.Delete(r.Context(), protocol)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrNotFound):
			httpx.Problem(w, http.StatusNotFound, "protocolo não encontrado", "Protocolo não encontrado.")
		case errors.Is(err, ErrBatchProcessing):
			httpx.Problem(w, http.StatusConflict, "lote em processamento", "Aguarde o processamento antes de excluir.")
		default:
			h.logger.Error("delete batch", slog.String("protocol", protocol), slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "erro interno", "falha ao excluir o protocolo")
		}
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"sucesso":           true,
		"mensagem":          fmt.Sprintf("Protocolo %s excluído.", protocol),
		"entries_deletados": entries,
	})
}

type pendencyEntry struct {
	ID               int64   `json:"id"`
	RawDebitAccount  string  `json:"conta_debito_raw"`
	RawCreditAccount string  `json:"conta_credito_raw"`
	EntryDate        string  `json:"data_lancamento"`
	Amount           float64 `json:"valor"`
	History          string  `json:"historico"`
	HistoryCode      string  `json:"cod_historico"`
}

type pendencyGroup struct {
	BatchID   int64           `json:"protocolo_id"`
	Protocol  string          `json:"numero_protocolo"`
	CompanyID string          `json:"cnpj"`
	Entries   []pendencyEntry `json:"entries"`
}

func (h *Handler) listPendencies(w http.ResponseWriter, r *http.Request) {
	batches, err := h.store.ListByStatus(r.Context(), StatusWaitingMapping)
	if err != nil {
		h.logger.Error("list waiting batches", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "erro interno", "falha ao listar as pendências")
		return
	}

	groups := make([]pendencyGroup, 0, len(batches))
	for _, b := range batches {
		entries, err := h.store.ListStagingEntries(r.Context(), b.ID)
		if err != nil {
			h.logger.Error("list staging entries", slog.Int64("batch_id", b.ID), slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "erro interno", "falha ao listar as pendências")
			return
		}
		group := pendencyGroup{
			BatchID:   b.ID,
			Protocol:  b.Protocol,
			CompanyID: b.CompanyID,
			Entries:   make([]pendencyEntry, 0, len(entries)),
		}
		for _, e := range entries {
			group.Entries = append(group.Entries, pendencyEntry{
				ID:               e.ID,
				RawDebitAccount:  e.RawDebitAccount,
				RawCreditAccount: e.RawCreditAccount,
				EntryDate:        e.EntryDate,
				Amount:           e.Amount,
				History:          e.History,
				HistoryCode:      e.HistoryCode,
			})
		}
		groups = append(groups, group)
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"sucesso":    true,
		"pendencias": groups,
	})
}
