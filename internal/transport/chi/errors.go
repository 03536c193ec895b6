package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/feedtag/internal/domain"
)

// ErrorCode is the machine-readable error kind in an ErrorResponse.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest          ErrorCode = "bad_request"
	CodeUnauthorized        ErrorCode = "unauthorized"
	CodeTagNotFound         ErrorCode = "tag_not_found"
	CodeTagExists           ErrorCode = "tag_already_exists"
	CodeInvalidTag          ErrorCode = "invalid_tag"
	CodeEmptyDocument       ErrorCode = "empty_document"
	CodeInvalidReduceConfig ErrorCode = "invalid_reduce_config"
	CodeFlushFailed         ErrorCode = "flush_failed"
	CodeInternalError       ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

var sentinels = []error{
	domain.ErrTagNotFound,
	domain.ErrTagExists,
	domain.ErrInvalidTag,
	domain.ErrEmptyDocument,
	domain.ErrInvalidReduceConfig,
}

func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		sentinelHandler(domain.ErrTagNotFound, http.StatusNotFound, CodeTagNotFound),
		sentinelHandler(domain.ErrTagExists, http.StatusConflict, CodeTagExists),
		detailHandler(domain.ErrInvalidTag, http.StatusBadRequest, CodeInvalidTag),
		sentinelHandler(domain.ErrEmptyDocument, http.StatusBadRequest, CodeEmptyDocument),
		detailHandler(domain.ErrInvalidReduceConfig, http.StatusBadRequest, CodeInvalidReduceConfig),
	}
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, safeDomainMessage(err))
		return true
	}
}

// detailHandler is sentinelHandler for validation errors whose wrapped text
// describes client input (the offending tag or threshold), so it is returned as is.
func detailHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, err.Error())
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	for _, h := range s.errorHandlers {
		if h(w, err) {
			s.logger.Debug("domain error", zap.Error(err))
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
