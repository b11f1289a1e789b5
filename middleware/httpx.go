package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
)

const maxBodyBytes = 1 << 20

// ErrBadRequestBody wraps every body decoding failure.
var ErrBadRequestBody = errors.New("middleware: invalid request body")

// APIError is the stable error envelope returned to clients.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string { return e.Code + ": " + e.Message }

type errorBody struct {
	RequestID string   `json:"request_id"`
	Error     APIError `json:"error"`
}

// NewRequestID returns an id for correlating an error response with logs.
func NewRequestID() string { return "req_" + uuid.NewString() }

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ReadJSON decodes exactly one JSON value from the body and rejects unknown fields.
func ReadJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequestBody, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", ErrBadRequestBody)
	}
	return nil
}

// WriteError writes apiErr with a fresh request id and returns that id.
func WriteError(w http.ResponseWriter, apiErr *APIError) string {
	id := NewRequestID()
	status := apiErr.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	WriteJSON(w, status, errorBody{RequestID: id, Error: *apiErr})
	return id
}

var (
	ErrAuthenticationRequired = &APIError{Status: http.StatusUnauthorized, Code: "AUTHENTICATION_REQUIRED", Message: "sign in to continue"}
	ErrRateLimited            = &APIError{Status: http.StatusTooManyRequests, Code: "RATE_LIMITED", Message: "too many requests, please retry later"}
	ErrInternal               = &APIError{Status: http.StatusInternalServerError, Code: "INTERNAL_ERROR", Message: "internal server error"}
)
