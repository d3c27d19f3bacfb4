package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ansuz/internal/apperr"
)

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 10 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error   string `json:"error" validate:"required"`
	Code    string `json:"code" validate:"required"`
	Indexed *bool  `json:"indexed,omitempty"`
}

func errorBody(code, msg string) errResponse {
	return errResponse{Error: msg, Code: code}
}

// Error codes returned in errResponse.Code.
const (
	codeInvalidRequest    = "invalid_request"
	codeInvalidName       = "invalid_name"
	codeNotFound          = "not_found"
	codeAlreadyExists     = "already_exists"
	codeWriteVerification = "write_verification"
	codeIndexCreation     = "index_creation"
	codeIndex             = "index"
	codeUnauthorized      = "unauthorized"
	codeInternal          = "internal"
)

// statusFor maps a domain error to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrInvalidName):
		return http.StatusBadRequest, codeInvalidName
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, apperr.ErrAlreadyExists):
		return http.StatusConflict, codeAlreadyExists
	case errors.Is(err, apperr.ErrWriteVerification):
		return http.StatusUnprocessableEntity, codeWriteVerification
	case errors.Is(err, apperr.ErrIndexCreation):
		return http.StatusInternalServerError, codeIndexCreation
	case errors.Is(err, apperr.ErrIndex):
		return http.StatusInternalServerError, codeIndex
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

// writeError logs server-side failures and writes the structured error body.
func writeError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Error(op+" failed", slog.String("error", err.Error()))
		if code == codeInternal {
			msg = "internal error"
		}
	}
	writeJSON(w, status, errorBody(code, msg))
}

// validatable is implemented by every request DTO.
type validatable interface {
	Validate() error
}

// decode reads a JSON body into v and validates it. It writes a 400 and returns
// false on failure.
func decode(w http.ResponseWriter, r *http.Request, v validatable) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(codeInvalidRequest, "invalid JSON body"))
		return false
	}
	if err := v.Validate(); err != nil {
		var verrs validation.Errors
		if errors.As(err, &verrs) {
			writeJSON(w, http.StatusBadRequest, errorBody(codeInvalidRequest, verrs.Error()))
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorBody(codeInvalidRequest, err.Error()))
		return false
	}
	return true
}
