package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/basharatali122/hamza-website-backend/internal/apperrors"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, code int, msg string) {
	WriteJSON(w, code, ErrorResponse{Error: msg})
}

// WriteAppError maps domain errors onto HTTP status codes. Unrecognized
// errors become a generic 500 so internals never leak to clients.
func WriteAppError(w http.ResponseWriter, err error) {
	var ve *apperrors.ValidationError
	var ge *apperrors.GatewayError
	switch {
	case errors.As(err, &ve):
		WriteError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, apperrors.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not found")
	case errors.Is(err, apperrors.ErrAlreadyExists):
		WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, apperrors.ErrInsufficientFunds):
		WriteError(w, http.StatusUnprocessableEntity, "insufficient funds")
	case errors.Is(err, apperrors.ErrConcurrencyConflict):
		WriteError(w, http.StatusConflict, "conflicting update, retry the request")
	case errors.Is(err, apperrors.ErrInvalidStateTransition):
		WriteError(w, http.StatusConflict, err.Error())
	case errors.As(err, &ge):
		WriteError(w, http.StatusBadGateway, "payment gateway error")
	default:
		WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}

func DecodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.Validation("body", "invalid json")
	}
	return nil
}
