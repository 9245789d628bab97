// Package http exposes the ledger, auth and live feed over a JSON API.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	applog "cashstash/internal/log"
	"cashstash/internal/middleware/trace"
)

const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error     string `json:"error"`
	Status    int    `json:"status"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// writeError logs err with the request logger and replies with a generic
// message. Internal details never reach the client.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	logger := applog.FromContext(r.Context())
	fields := applog.NewFields().WithErrorType(errorType(status))
	if err != nil {
		fields = fields.WithError(err)
	}
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), message, fields.ToSlice()...)
	} else {
		logger.DebugContext(r.Context(), message, fields.ToSlice()...)
	}
	writeJSON(w, status, ErrorResponse{
		Error:     message,
		Status:    status,
		RequestID: trace.FromRequest(r),
	})
}

func errorType(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return applog.ErrorTypeAuth
	case status == http.StatusNotFound:
		return applog.ErrorTypeNotFound
	case status == http.StatusTooManyRequests:
		return applog.ErrorTypeRateLimit
	case status >= 500:
		return applog.ErrorTypeInternal
	default:
		return applog.ErrorTypeValidation
	}
}

var errBadBody = errors.New("malformed request body")

// decodeJSON reads a single JSON object into dst and runs struct validation.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("%w: trailing data", errBadBody)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	return nil
}

// queryInt reads a non-negative integer query parameter, returning def when
// it is absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", errBadBody, name)
	}
	return n, nil
}
