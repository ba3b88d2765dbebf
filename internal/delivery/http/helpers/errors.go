package helpers

import (
	"errors"
	"log/slog"
	"net/http"

	"eventcheckin/internal/domain"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

// errorTable is checked in order; the first errors.Is match wins.
var errorTable = []errorMapping{
	{domain.ErrInvalidInput, http.StatusBadRequest, ErrCodeValidation},
	{domain.ErrEventNotAvailable, http.StatusNotFound, ErrCodeEventNotAvailable},
	{domain.ErrDeadlinePassed, http.StatusBadRequest, ErrCodeDeadlinePassed},
	{domain.ErrAlreadyRegistered, http.StatusConflict, ErrCodeAlreadyRegistered},
	{domain.ErrNotFound, http.StatusNotFound, ErrCodeNotFound},
	{domain.ErrAlreadyApproved, http.StatusConflict, ErrCodeAlreadyApproved},
	{domain.ErrInvalidTransition, http.StatusConflict, ErrCodeInvalidTransition},
	{domain.ErrNotApproved, http.StatusBadRequest, ErrCodeNotApproved},
	{domain.ErrAlreadyCheckedIn, http.StatusConflict, ErrCodeAlreadyCheckedIn},
	{domain.ErrInvalidToken, http.StatusUnauthorized, ErrCodeInvalidQRCode},
	{domain.ErrExpiredToken, http.StatusUnauthorized, ErrCodeInvalidQRCode},
	{domain.ErrEncoding, http.StatusInternalServerError, ErrCodeQRGeneration},
}

// WriteDomainError maps err to a status and stable code and writes the error
// envelope. Unknown errors are logged and reported as a generic 500 so storage
// details never reach the client.
func WriteDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			msg := m.err.Error()
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				msg = verr.Error()
			}
			WriteJSONError(w, m.status, m.code, msg)
			return
		}
	}
	logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	WriteJSONError(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
}
