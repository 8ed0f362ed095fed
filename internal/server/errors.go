package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/hourinbox/webmail/internal/mail"
	"github.com/hourinbox/webmail/internal/store"
)

// apiError is an error with a fixed HTTP status and a stable machine
// code alongside the human message.
type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	return e.Message
}

func errBadRequest(message string) *apiError {
	return &apiError{Status: http.StatusBadRequest, Code: "validation_error", Message: message}
}

func errUnauthenticated() *apiError {
	return &apiError{Status: http.StatusUnauthorized, Code: "unauthenticated", Message: "not logged in"}
}

func errNotFound(message string) *apiError {
	return &apiError{Status: http.StatusNotFound, Code: "not_found", Message: message}
}

func errConflict(message string) *apiError {
	return &apiError{Status: http.StatusConflict, Code: "conflict", Message: message}
}

func errRateLimited() *apiError {
	return &apiError{
		Status:  http.StatusTooManyRequests,
		Code:    "rate_limited",
		Message: "too many login attempts, try again later",
	}
}

func errUnprocessable(message string) *apiError {
	return &apiError{Status: http.StatusUnprocessableEntity, Code: "unreachable", Message: message}
}

// writeError maps an error to its HTTP status and writes the JSON
// error body. Gateway errors carry their own classification; anything
// unrecognized is a 500.
func (s *Server) writeError(w http.ResponseWriter, log zerolog.Logger, err error) {
	var (
		api      *apiError
		authErr  *mail.AuthError
		upstream *mail.UpstreamError
	)

	switch {
	case errors.As(err, &api):
	case errors.As(err, &authErr):
		api = &apiError{
			Status:  http.StatusUnauthorized,
			Code:    "auth_failed",
			Message: authErr.Message,
		}
	case errors.Is(err, mail.ErrNotFound):
		api = errNotFound(err.Error())
	case errors.As(err, &upstream):
		api = &apiError{
			Status:  http.StatusBadGateway,
			Code:    "upstream_unavailable",
			Message: upstream.Error(),
		}
	case errors.Is(err, store.ErrDuplicateDomain):
		api = errConflict(err.Error())
	default:
		log.Error().Err(err).Msg("request failed")
		api = &apiError{
			Status:  http.StatusInternalServerError,
			Code:    "internal",
			Message: "internal server error",
		}
	}

	if api.Status >= http.StatusInternalServerError || api.Status == http.StatusBadGateway {
		log.Warn().Err(err).Int("status", api.Status).Msg("upstream failure")
	}

	writeJSON(w, api.Status, map[string]any{"error": api})
}

// writeJSON writes v as the JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
