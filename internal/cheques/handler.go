package cheques

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/quillbooks/quillbooks/internal/platform/httpx"
	"github.com/quillbooks/quillbooks/internal/shared"
)

// Handler wires HTTP endpoints for cheque tracking.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the cheques handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers cheque routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleIssue)
	r.Get("/", h.handleList)
	r.Get("/summary", h.handleSummary)
	r.Get("/{id}", h.handleGet)
	r.Post("/{id}/transitions", h.handleTransition)
}

type issueRequest struct {
	ChequeNumber    string `json:"cheque_number" validate:"required"`
	Amount          string `json:"amount" validate:"required"`
	ChequeDate      string `json:"cheque_date" validate:"required"`
	BankName        string `json:"bank_name"`
	LinkedPaymentID *int64 `json:"linked_payment_id"`
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.Identity(w, r)
	if !ok {
		return
	}
	var req issueRequest
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
	chequeDate, err := time.Parse("2006-01-02", req.ChequeDate)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "validation failed", "cheque_date must be YYYY-MM-DD")
		return
	}
	cheque, err := h.service.Issue(r.Context(), IssueInput{
		OrgID:           id.OrgID,
		ActorID:         id.ActorID,
		ChequeNumber:    req.ChequeNumber,
		Amount:          amount,
		ChequeDate:      chequeDate,
		BankName:        req.BankName,
		LinkedPaymentID: req.LinkedPaymentID,
	})
	if err != nil {
		h.logger.Error("issue cheque", slog.Any("error", err), slog.String("cheque_number", req.ChequeNumber))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, cheque)
}

type transitionRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.Identity(w, r)
	if !ok {
		return
	}
	chequeID, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var req transitionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "validation failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}
	cheque, err := h.service.Transition(r.Context(), id.OrgID, id.ActorID, chequeID, Status(req.Status))
	if err != nil {
		h.logger.Error("transition cheque", slog.Any("error", err), slog.Int64("cheque_id", chequeID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cheque)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.Identity(w, r)
	if !ok {
		return
	}
	chequeID, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	cheque, err := h.service.Get(r.Context(), id.OrgID, chequeID)
	if err != nil {
		h.logger.Error("get cheque", slog.Any("error", err), slog.Int64("cheque_id", chequeID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cheque)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.Identity(w, r)
	if !ok {
		return
	}
	page, perPage := shared.PageFromQuery(r.URL.Query())
	list, pagination, err := h.service.List(r.Context(), id.OrgID, page, perPage)
	if err != nil {
		h.logger.Error("list cheques", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"cheques": list, "pagination": pagination})
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.Identity(w, r)
	if !ok {
		return
	}
	summary, err := h.service.Summary(r.Context(), id.OrgID)
	if err != nil {
		h.logger.Error("cheque summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}
