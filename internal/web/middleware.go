// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackCraft Contributors

package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/trackcraft/trackcraft/internal/auth"
	"github.com/trackcraft/trackcraft/pkg/errutil"
)

type contextKey int

const sessionContextKey contextKey = iota

// sessionFromContext returns the authenticated session, or nil when
// the request did not pass the session middleware.
func sessionFromContext(ctx context.Context) *auth.SessionContext {
	sessCtx, _ := ctx.Value(sessionContextKey).(*auth.SessionContext)
	return sessCtx
}

// requireSession validates the session cookie and stores the session
// context on the request.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil {
			s.writeErrorCode(w, http.StatusUnauthorized, "SESSION_INVALID", "authentication required")
			return
		}

		sessCtx, err := s.authSvc.ValidateSession(r.Context(), cookie.Value)
		if err != nil {
			s.writeError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), sessionContextKey, sessCtx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// statusRecorder captures the response status for request metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// countRequests records per-path request counts by status.
func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if s.metrics != nil {
			s.metrics.HTTPRequestsTotal.WithLabelValues(r.URL.Path, strconv.Itoa(rec.status)).Inc()
		}
	})
}

func (s *Server) countLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.LoginsTotal.WithLabelValues(outcome).Inc()
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

func (s *Server) writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// writeError maps a service error to an HTTP response. Unrecognized
// errors are logged and returned as a generic 500 without detail.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := errutil.Code(err)
	status, known := statusForCode(code)
	if !known {
		errutil.LogError(s.logger, "request failed", err)
		s.writeErrorCode(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	s.writeErrorCode(w, status, code, err.Error())
}

func statusForCode(code string) (int, bool) {
	switch code {
	case "AUTH_INVALID_CREDENTIALS", "SESSION_INVALID", "SESSION_EXPIRED", "SESSION_TOKEN_EMPTY":
		return http.StatusUnauthorized, true
	case "AUTH_ACCOUNT_LOCKED":
		return http.StatusForbidden, true
	case "REGISTER_MISSING_FIELD", "REGISTER_INVALID_ROLE", "AUTH_EMPTY_PASSWORD",
		"RESET_TOKEN_INVALID", "PROGRESS_EMPTY_DESCRIPTION", "PROGRESS_INVALID_REGISTRATION":
		return http.StatusBadRequest, true
	case "REGISTER_DUPLICATE_EMAIL":
		return http.StatusConflict, true
	case "RESET_UNKNOWN_EMAIL":
		return http.StatusNotFound, true
	default:
		return 0, false
	}
}
