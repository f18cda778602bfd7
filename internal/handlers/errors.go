package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"codequest/internal/apperr"
	"codequest/internal/logger"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// statusFor maps the error taxonomy onto HTTP. Transient is checked before
// anything else because it wraps the underlying conflict.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrTransient):
		return http.StatusServiceUnavailable
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrUnauthorized):
		if apperr.CodeOf(err) == "forbidden" {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondWithError(w http.ResponseWriter, log *logger.Logger, err error) {
	status := statusFor(err)

	detail := errorDetail{Message: "internal server error", Code: "internal"}
	var domainErr *apperr.Error
	if errors.As(err, &domainErr) {
		detail.Code = domainErr.Code
		detail.Message = domainErr.Error()
		if errors.Is(err, apperr.ErrTransient) {
			detail.Message = domainErr.Message
		}
	}

	if status >= http.StatusInternalServerError {
		log.Error("request failed", "status", status, "error", err)
	} else {
		log.Debug("request rejected", "status", status, "code", detail.Code, "error", err)
	}

	respondJSON(w, log, status, errorBody{Error: detail})
}

func respondJSON(w http.ResponseWriter, log *logger.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("failed to write response", "error", err)
	}
}

// decodeJSON reads a single JSON object from the request body
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.InvalidInput("request body is required")
		}
		return apperr.InvalidInput("invalid request body: %v", err)
	}
	if dec.More() {
		return apperr.InvalidInput("request body must contain a single JSON object")
	}
	return nil
}

func requiredField(name string) error {
	return apperr.InvalidInput("%s is required", name)
}
