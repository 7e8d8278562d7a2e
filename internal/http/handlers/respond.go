package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/storefront/identity/internal/auth"
)

const maxBodyBytes = 1 << 20

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// respondWithServiceError maps domain errors to status codes. Anything
// unrecognized is logged and reported as a bare 500.
func respondWithServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, auth.ErrValidation):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrConflict):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrPreconditionFailed):
		respondWithError(w, http.StatusPreconditionFailed, err.Error())
	case errors.Is(err, auth.ErrInvalidOrExpiredChallenge):
		respondWithError(w, http.StatusUnauthorized, auth.ErrInvalidOrExpiredChallenge.Error())
	case errors.Is(err, auth.ErrIncorrectOtp):
		respondWithError(w, http.StatusBadRequest, auth.ErrIncorrectOtp.Error())
	case errors.Is(err, auth.ErrInvalidExternalToken):
		respondWithError(w, http.StatusUnauthorized, auth.ErrInvalidExternalToken.Error())
	case errors.Is(err, auth.ErrAccountDisabled):
		respondWithError(w, http.StatusForbidden, auth.ErrAccountDisabled.Error())
	case errors.Is(err, auth.ErrUnauthorized):
		respondWithError(w, http.StatusUnauthorized, auth.ErrUnauthorized.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondWithError(w, http.StatusUnauthorized, auth.ErrInvalidCredentials.Error())
	case errors.Is(err, auth.ErrNotFound):
		respondWithError(w, http.StatusNotFound, auth.ErrNotFound.Error())
	default:
		logger.Error("request failed", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}
