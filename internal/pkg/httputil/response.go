// Package httputil provides HTTP response helpers and middleware.
package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// FieldError describes one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// JSON writes data as the raw response body.
func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

// Text writes a plain text response.
func Text(w http.ResponseWriter, statusCode int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(statusCode)
	if _, err := w.Write([]byte(text)); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// Error writes a JSON response with a {"detail": ...} body.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"detail": message})
}

// ValidationError writes a 422 response.
// validator.ValidationErrors become one entry per field; any other error
// becomes a single entry with an empty field name.
func ValidationError(w http.ResponseWriter, err error) {
	var details []FieldError

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		details = make([]FieldError, 0, len(validationErrors))
		for _, e := range validationErrors {
			details = append(details, FieldError{
				Field:   e.Field(),
				Message: e.Tag(),
			})
		}
	} else {
		details = []FieldError{{Message: err.Error()}}
	}

	JSON(w, http.StatusUnprocessableEntity, map[string]interface{}{"detail": details})
}
