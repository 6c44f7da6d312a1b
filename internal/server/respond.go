package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/drive"
	"github.com/marmos91/dittodrive/pkg/resource"
	"github.com/marmos91/dittodrive/pkg/store"
	"github.com/marmos91/dittodrive/pkg/user"
)

// errorBody is the uniform error payload: a machine-readable reason under a
// single "message" key.
type errorBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			logger.Warn("Failed to encode response: %v", err)
		}
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Message: message})
}

// statusFor maps the closed error taxonomy to a status code and a response
// message. This is the only place that mapping happens; nothing below the
// boundary switches on error kinds.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, resource.ErrInvalidArgument):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, resource.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, resource.ErrAlreadyExists), errors.Is(err, user.ErrUsernameTaken):
		return http.StatusConflict, err.Error()
	case errors.Is(err, resource.ErrUnsupportedOperation):
		return http.StatusConflict, err.Error()
	case errors.Is(err, resource.ErrStoreUnavailable), errors.Is(err, store.ErrStoreUnavailable):
		logger.Error("Object store failure: %v", err)
		return http.StatusInternalServerError, "object store unavailable"
	default:
		logger.Error("Unhandled error: %v", err)
		return http.StatusInternalServerError, "internal error"
	}
}

// partialBody extends the error payload with progress counts when a
// directory-wide operation failed mid-iteration, so callers can tell a clean
// failure from one that left some objects processed.
type partialBody struct {
	Message   string `json:"message"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
}

func writeError(w http.ResponseWriter, err error) {
	status, message := statusFor(err)

	var partial *drive.PartialError
	if errors.As(err, &partial) {
		writeJSON(w, status, partialBody{Message: message, Completed: partial.Completed, Total: partial.Total})
		return
	}

	writeMessage(w, status, message)
}
