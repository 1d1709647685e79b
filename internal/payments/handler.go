package payments

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/quillbooks/quillbooks/internal/platform/httpx"
)

// Handler wires HTTP endpoints for payment reconciliation.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the payments handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers payment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleRecordPayment)
	r.Get("/", h.handleListPayments)
	r.Delete("/{id}", h.handleDeletePayment)
	r.Get("/documents/{kind}/{id}/status", h.handleDocumentStatus)
	r.Get("/outstanding", h.handleOutstandingSummary)
}

type paymentRequest struct {
	DocumentKind string `json:"document_kind" validate:"required,oneof=invoice purchase"`
	DocumentID   int64  `json:"document_id" validate:"required"`
	Amount       string `json:"amount" validate:"required"`
	Mode         string `json:"mode" validate:"required"`
	PaymentDate  string `json:"payment_date"`
	Reference    string `json:"reference"`
}

func (h *Handler) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.Identity(w, r)
	if !ok {
		return
	}
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "validation failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "validation failed", "amount is not a valid decimal")
		return
	}
	var paymentDate time.Time
	if req.PaymentDate != "" {
		paymentDate, err = time.Parse("2006-01-02", req.PaymentDate)
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, "validation failed", "payment_date must be YYYY-MM-DD")
			return
		}
	}
	payment, err := h.service.RecordPayment(r.Context(), PaymentInput{
		OrgID:        id.OrgID,
		ActorID:      id.ActorID,
		DocumentKind: DocumentKind(req.DocumentKind),
		DocumentID:   req.DocumentID,
		Amount:       amount,
		Mode:         req.Mode,
		PaymentDate:  paymentDate,
		Reference:    req.Reference,
	})
	if err != nil {
		h.logger.Error("record payment", slog.Any("error", err), slog.Int64("document_id", req.DocumentID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

func (h *Handler) handleDeletePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.Identity(w, r)
	if !ok {
		return
	}
	paymentID, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err := h.service.DeletePayment(r.Context(), id.OrgID, id.ActorID, paymentID); err != nil {
		h.logger.Error("delete payment", slog.Any("error", err), slog.Int64("payment_id", paymentID))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.Identity(w, r)
	if !ok {
		return
	}
	kind := DocumentKind(r.URL.Query().Get("document_kind"))
	documentID, _ := strconv.ParseInt(r.URL.Query().Get("document_id"), 10, 64)
	list, err := h.service.ListPayments(r.Context(), id.OrgID, kind, documentID)
	if err != nil {
		h.logger.Error("list payments", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payments": list})
}

func (h *Handler) handleDocumentStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.Identity(w, r)
	if !ok {
		return
	}
	kind := DocumentKind(chi.URLParam(r, "kind"))
	documentID, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	report, err := h.service.DocumentStatus(r.Context(), id.OrgID, kind, documentID)
	if err != nil {
		h.logger.Error("document status", slog.Any("error", err), slog.Int64("document_id", documentID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleOutstandingSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.Identity(w, r)
	if !ok {
		return
	}
	summary, err := h.service.OutstandingSummary(r.Context(), id.OrgID)
	if err != nil {
		h.logger.Error("outstanding summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}
