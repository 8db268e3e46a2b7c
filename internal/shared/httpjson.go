package shared

import (
	"encoding/json"
	"errors"
	"net/http"
)

type errorBody struct {
	Error     string           `json:"error"`
	Conflicts []ConflictDetail `json:"conflicts,omitempty"`
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps the closed error taxonomy to HTTP statuses. The mapping
// lives only here; services never pick status codes.
func WriteError(w http.ResponseWriter, err error) {
	body := errorBody{Error: err.Error()}

	var conflictErr *ConflictError
	if errors.As(err, &conflictErr) {
		body.Conflicts = conflictErr.Conflicts
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, ErrCapacity):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrPrecondition), errors.Is(err, ErrConflict):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		body.Error = http.StatusText(http.StatusInternalServerError)
	}
	WriteJSON(w, status, body)
}
