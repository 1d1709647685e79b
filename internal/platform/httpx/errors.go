package httpx

import (
	"errors"
	"net/http"

	"github.com/quillbooks/quillbooks/internal/shared"
)

// RespondError maps domain errors onto the HTTP error envelope. Validation,
// conflict and transition failures surface their message; anything else is a
// storage-layer failure and returns a sanitized 500.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrValidation):
		Error(w, http.StatusBadRequest, "validation failed", err.Error())
	case errors.Is(err, shared.ErrConflict):
		Error(w, http.StatusBadRequest, "conflict", err.Error())
	case errors.Is(err, shared.ErrInvalidTransition):
		Error(w, http.StatusBadRequest, "invalid transition", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Error(w, http.StatusNotFound, "not found", "")
	default:
		Error(w, http.StatusInternalServerError, "internal error", "")
	}
}
