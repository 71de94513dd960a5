package mapping

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/contaflow/contaflow/internal/platform/httpx"
	"github.com/contaflow/contaflow/internal/shared"
)

// Handler wires the pendency resolution endpoint.
type Handler struct {
	logger    *slog.Logger
	service   *ResolutionService
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *ResolutionService) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

// MountRoutes registers mapping routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/pendencias/resolver", h.resolvePendency)
}

type resolveRequest struct {
	BatchID       int64  `json:"protocolo_id" validate:"required"`
	CompanyID     string `json:"cnpj_empresa" validate:"required,len=14,numeric"`
	ClientAccount string `json:"conta_cliente" validate:"required"`
	LedgerAccount string `json:"conta_contabilidade" validate:"required"`
	Type          string `json:"tipo" validate:"required,oneof=DEBITO CREDITO"`
}

type resolveResponse struct {
	Sucesso       bool     `json:"sucesso"`
	Mensagem      string   `json:"mensagem"`
	Reprocessando bool     `json:"reprocessando"`
	Pendencias    []string `json:"contas_pendentes,omitempty"`
}

func (h *Handler) resolvePendency(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "corpo inválido", "o corpo da requisição não é um JSON válido")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "dados inválidos", err.Error())
		return
	}

	res, err := h.service.Resolve(r.Context(), ResolveInput{
		BatchID:       req.BatchID,
		CompanyID:     req.CompanyID,
		ClientAccount: req.ClientAccount,
		LedgerAccount: req.LedgerAccount,
		Type:          MovementType(req.Type),
	})
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "protocolo não encontrado", err.Error())
			return
		}
		h.logger.Error("resolve pendency", slog.Int64("batch_id", req.BatchID), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "erro interno", "falha ao resolver a pendência")
		return
	}

	resp := resolveResponse{Sucesso: true, Reprocessando: res.Reprocessing}
	switch {
	case res.Reprocessing:
		resp.Mensagem = "Todas as pendências foram resolvidas. Reprocessando o arquivo..."
	case res.MissingRawFile:
		resp.Mensagem = "Mapeamento salvo. Arquivo original não disponível para reprocessamento."
	default:
		resp.Mensagem = fmt.Sprintf("Mapeamento salvo. Ainda restam %d conta(s) sem mapeamento.", len(res.Remaining))
		resp.Pendencias = res.Remaining
	}
	httpx.JSON(w, http.StatusOK, resp)
}
