package bankrecon

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

// Handler wires HTTP endpoints for bank reconciliation.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the bank reconciliation handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers reconciliation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleOpen)
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Post("/{id}/transactions", h.handleAddTransaction)
	r.Post("/{id}/complete", h.handleComplete)
	r.Post("/transactions/{id}/match", h.handleMatch)
}

type openRequest struct {
	BankAccount    string `json:"bank_account" validate:"required"`
	StatementDate  string `json:"statement_date" validate:"required"`
	OpeningBalance string `json:"opening_balance"`
	ClosingBalance string `json:"closing_balance"`
}

func parseAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.Identity(w, r)
	if !ok {
		return
	}
	var req openRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "validation failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}
	statementDate, err := time.Parse("2006-01-02", req.StatementDate)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "validation failed", "statement_date must be YYYY-MM-DD")
		return
	}
	opening, err := parseAmount(req.OpeningBalance)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "validation failed", "opening_balance is not a valid decimal")
		return
	}
	closing, err := parseAmount(req.ClosingBalance)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "validation failed", "closing_balance is not a valid decimal")
		return
	}
	recon, err := h.service.Open(r.Context(), OpenInput{
		OrgID:          id.OrgID,
		ActorID:        id.ActorID,
		BankAccount:    req.BankAccount,
		StatementDate:  statementDate,
		OpeningBalance: opening,
		ClosingBalance: closing,
	})
	if err != nil {
		h.logger.Error("open reconciliation", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, recon)
}

type transactionRequest struct {
	Date        string `json:"date" validate:"required"`
	Description string `json:"description"`
	Amount      string `json:"amount" validate:"required"`
	Type        string `json:"type" validate:"required,oneof=DEPOSIT WITHDRAWAL TRANSFER INTEREST"`
	ReferenceNo string `json:"reference_no"`
}

func (h *Handler) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.Identity(w, r)
	if !ok {
		return
	}
	reconID, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var req transactionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "validation failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "validation failed", "date must be YYYY-MM-DD")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "validation failed", "amount is not a valid decimal")
		return
	}
	txn, err := h.service.AddTransaction(r.Context(), TransactionInput{
		OrgID:            id.OrgID,
		ActorID:          id.ActorID,
		ReconciliationID: reconID,
		Date:             date,
		Description:      req.Description,
		Amount:           amount,
		Type:             TransactionType(req.Type),
		ReferenceNo:      req.ReferenceNo,
	})
	if err != nil {
		h.logger.Error("add bank transaction", slog.Any("error", err), slog.Int64("reconciliation_id", reconID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, txn)
}

type matchRequest struct {
	PaymentID int64 `json:"payment_id" validate:"required"`
}

func (h *Handler) handleMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.Identity(w, r)
	if !ok {
		return
	}
	txnID, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var req matchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "validation failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}
	if err := h.service.Match(r.Context(), id.OrgID, id.ActorID, txnID, req.PaymentID); err != nil {
		h.logger.Error("match bank transaction", slog.Any("error", err), slog.Int64("transaction_id", txnID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"matched": true})
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.Identity(w, r)
	if !ok {
		return
	}
	reconID, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	recon, err := h.service.Complete(r.Context(), id.OrgID, id.ActorID, reconID)
	if err != nil {
		h.logger.Error("complete reconciliation", slog.Any("error", err), slog.Int64("reconciliation_id", reconID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, recon)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.Identity(w, r)
	if !ok {
		return
	}
	reconID, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	recon, err := h.service.Get(r.Context(), id.OrgID, reconID)
	if err != nil {
		h.logger.Error("get reconciliation", slog.Any("error", err), slog.Int64("reconciliation_id", reconID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, recon)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.Identity(w, r)
	if !ok {
		return
	}
	page, perPage := shared.PageFromQuery(r.URL.Query())
	sessions, pagination, err := h.service.List(r.Context(), id.OrgID, page, perPage)
	if err != nil {
		h.logger.Error("list reconciliations", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"reconciliations": sessions, "pagination": pagination})
}
