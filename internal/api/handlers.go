// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	xglog "github.com/ManuGH/qod/internal/log"
	"github.com/ManuGH/qod/internal/network"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sess, err := s.coord.Create(r.Context(), req.toManager())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/sessions/"+sess.SessionID)
	writeJSON(w, http.StatusCreated, sessionInfo(sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.coord.Get(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionInfo(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.Delete(r.Context(), chi.URLParam(r, "sessionId")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExtendSession(w http.ResponseWriter, r *http.Request) {
	var req ExtendSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sess, err := s.coord.Extend(r.Context(), chi.URLParam(r, "sessionId"), req.RequestedAdditionalDuration)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionInfo(sess))
}

func (s *Server) handleRetrieveSessions(w http.ResponseWriter, r *http.Request) {
	var req RetrieveSessionsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sessions, err := s.coord.ListByDevice(r.Context(), req.Device)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sessionInfo(sess))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleNotifications receives network provider callbacks. Processing
// failures are logged and still acknowledged so the provider does not retry
// notifications that can never apply.
func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	batch, err := network.DecodeNotification(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeBadRequest(w, "malformed notification: %v", err)
		return
	}
	if err := s.coord.HandleNotifications(r.Context(), batch); err != nil {
		logger := xglog.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Int("notifications", len(batch)).Msg("notification processing failed")
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeBody strictly decodes a JSON body and writes a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			writeBadRequest(w, "request body is required")
		} else {
			writeBadRequest(w, "invalid request body: %v", err)
		}
		return false
	}
	return true
}
