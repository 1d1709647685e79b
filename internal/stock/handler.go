package stock

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/quillbooks/quillbooks/internal/platform/httpx"
	"github.com/quillbooks/quillbooks/internal/shared"
)

// Handler wires HTTP endpoints for the stock ledger.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the stock handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/movements", h.handleRecordMovement)
	r.Get("/movements", h.handleListMovements)
	r.Get("/snapshot", h.handleSnapshot)
	r.Get("/reorder-suggestions", h.handleReorderSuggestions)
	r.Get("/forecast", h.handleForecast)
	r.Get("/health-score", h.handleHealthScore)
}

type movementRequest struct {
	ProductID int64   `json:"product_id" validate:"required"`
	Type      string  `json:"type" validate:"required"`
	Quantity  float64 `json:"quantity" validate:"required,gt=0"`
	Reference string  `json:"reference"`
	Notes     string  `json:"notes"`
}

func (h *Handler) handleRecordMovement(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.Identity(w, r)
	if !ok {
		return
	}
	var req movementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "validation failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}
	movement, err := h.service.RecordMovement(r.Context(), MovementInput{
		OrgID:     id.OrgID,
		ActorID:   id.ActorID,
		ProductID: req.ProductID,
		Type:      MovementType(req.Type),
		Quantity:  req.Quantity,
		Reference: req.Reference,
		Notes:     req.Notes,
	})
	if err != nil {
		h.logger.Error("record movement", slog.Any("error", err), slog.Int64("product_id", req.ProductID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, movement)
}

func (h *Handler) handleListMovements(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.Identity(w, r)
	if !ok {
		return
	}
	productID, _ := strconv.ParseInt(r.URL.Query().Get("product_id"), 10, 64)
	page, perPage := shared.PageFromQuery(r.URL.Query())
	movements, pagination, err := h.service.ListMovements(r.Context(), id.OrgID, productID, page, perPage)
	if err != nil {
		h.logger.Error("list movements", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": movements, "pagination": pagination})
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.Identity(w, r)
	if !ok {
		return
	}
	productID, _ := strconv.ParseInt(r.URL.Query().Get("product_id"), 10, 64)
	snapshot, err := h.service.Snapshot(r.Context(), id.OrgID, productID)
	if err != nil {
		h.logger.Error("inventory snapshot", slog.Any("error", err), slog.Int64("product_id", productID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snapshot)
}

func (h *Handler) handleReorderSuggestions(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.Identity(w, r)
	if !ok {
		return
	}
	suggestions, err := h.service.ReorderSuggestions(r.Context(), id.OrgID)
	if err != nil {
		h.logger.Error("reorder suggestions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

func (h *Handler) handleForecast(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.Identity(w, r)
	if !ok {
		return
	}
	windowDays, _ := strconv.Atoi(r.URL.Query().Get("window_days"))
	if windowDays <= 0 {
		windowDays = 30
	}
	entries, err := h.service.Forecast(r.Context(), id.OrgID, windowDays)
	if err != nil {
		h.logger.Error("stock forecast", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"window_days": windowDays, "entries": entries})
}

func (h *Handler) handleHealthScore(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.Identity(w, r)
	if !ok {
		return
	}
	report, err := h.service.HealthScore(r.Context(), id.OrgID)
	if err != nil {
		h.logger.Error("health score", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}
