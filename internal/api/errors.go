// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ManuGH/qod/internal/domain/qos/lifecycle"
	xglog "github.com/ManuGH/qod/internal/log"
)

// Problem is the error body returned for every failed request.
type Problem struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// writeBadRequest reports a body that could not be decoded.
func writeBadRequest(w http.ResponseWriter, format string, args ...any) {
	writeProblem(w, Problem{
		Status:  http.StatusBadRequest,
		Code:    string(lifecycle.CodeInvalidArgument),
		Message: fmt.Sprintf(format, args...),
	})
}

// statusFor maps an error class onto its HTTP status.
func statusFor(class error) int {
	switch class {
	case lifecycle.ErrNotFound:
		return http.StatusNotFound
	case lifecycle.ErrConflict:
		return http.StatusConflict
	case lifecycle.ErrValidation, lifecycle.ErrOutOfRange:
		return http.StatusBadRequest
	case lifecycle.ErrUnidentified:
		return http.StatusUnauthorized
	case lifecycle.ErrUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case lifecycle.ErrUpstreamRejected:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders a coordinator error. Internal details never reach the
// caller, and conflicting session ids are masked when masking is on.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	class := lifecycle.ClassOf(err)
	p := Problem{
		Status: statusFor(class),
		Code:   string(lifecycle.CodeOf(err)),
	}

	var le *lifecycle.Error
	switch {
	case class == lifecycle.ErrInternal:
		p.Code = string(lifecycle.CodeInternal)
		p.Message = "internal error"
		logger := xglog.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	case errors.As(err, &le) && le.ConflictSessionID != "":
		p.Message = s.conflictMessage(le)
	case errors.As(err, &le):
		p.Message = le.Message
	default:
		p.Message = err.Error()
	}
	writeProblem(w, p)
}

func (s *Server) conflictMessage(le *lifecycle.Error) string {
	id := le.ConflictSessionID
	if s.cfg.MaskSensitiveData {
		id = maskID(id)
	}
	return fmt.Sprintf("conflict with existing session %s until %s", id, le.ConflictExpiresAt.UTC().Format(time.RFC3339))
}

// maskID keeps the first and last four characters of an identifier.
func maskID(id string) string {
	const keep = 4
	if len(id) <= 2*keep {
		return strings.Repeat("*", len(id))
	}
	return id[:keep] + strings.Repeat("*", len(id)-2*keep) + id[len(id)-keep:]
}
