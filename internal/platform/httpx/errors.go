package httpx

import (
	"errors"
	"net/http"

	"github.com/quoteflow-erp/quoteflow/internal/shared"
)

// RespondError maps domain errors to HTTP responses. Validation and revert
// target errors are the caller's fault; quantity, lock and pricing collisions
// are state conflicts; everything unrecognized is a 500 without detail.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrInvalidRevert):
		Problem(w, http.StatusBadRequest, "Invalid Revert Target", err.Error())
	case errors.Is(err, shared.ErrQuantityConflict):
		Problem(w, http.StatusConflict, "Quantity Conflict", err.Error())
	case errors.Is(err, shared.ErrDocumentLocked):
		Problem(w, http.StatusConflict, "Document Locked", err.Error())
	case errors.Is(err, shared.ErrDocumentFrozen):
		Problem(w, http.StatusConflict, "Document Frozen", err.Error())
	case errors.Is(err, shared.ErrConflictingPricingMode):
		Problem(w, http.StatusConflict, "Conflicting Pricing Mode", err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
