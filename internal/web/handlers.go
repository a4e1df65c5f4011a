// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackCraft Contributors

package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/trackcraft/trackcraft/internal/auth"
	"github.com/trackcraft/trackcraft/pkg/errutil"
)

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type loginResponse struct {
	PrincipalID string `json:"principal_id"`
	Kind        string `json:"kind"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	sessCtx, token, err := s.authSvc.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		s.countLogin("failure")
		s.writeError(w, err)
		return
	}
	s.countLogin("success")

	http.SetCookie(w, s.sessionCookie(token, time.Now().Add(auth.SessionTokenExpiry)))
	s.writeJSON(w, http.StatusOK, loginResponse{
		PrincipalID: sessCtx.PrincipalID.String(),
		Kind:        string(sessCtx.Kind),
		DisplayName: sessCtx.DisplayName,
		Role:        string(sessCtx.Role),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if err := s.authSvc.Logout(r.Context(), cookie.Value); err != nil {
			errutil.LogError(s.logger, "logout failed", err)
		}
	}

	expired := s.sessionCookie("", time.Unix(0, 0))
	expired.MaxAge = -1
	http.SetCookie(w, expired)
	w.WriteHeader(http.StatusNoContent)
}

type registerRequest struct {
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Role       string `json:"role"`
	Title      string `json:"title"`
	Password   string `json:"password"`
}

type registerResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	principal, err := s.registerSvc.Register(r.Context(), auth.RegistrationInput{
		GivenName:  req.GivenName,
		FamilyName: req.FamilyName,
		Email:      req.Email,
		Phone:      req.Phone,
		Role:       auth.Role(req.Role),
		Title:      req.Title,
		Password:   req.Password,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, registerResponse{
		ID:    principal.ID.String(),
		Email: principal.Email,
		Role:  string(principal.Role),
	})
}

type changePasswordRequest struct {
	Email       string `json:"email"`
	NewPassword string `json:"new_password"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	if err := s.resetSvc.RequestReset(r.Context(), req.Email, req.NewPassword); err != nil {
		s.writeError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.ResetsRequestedTotal.Inc()
	}

	s.writeJSON(w, http.StatusAccepted, messageResponse{
		Message: "check your email to confirm the password change",
	})
}

func (s *Server) handleActivatePassword(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	if err := s.resetSvc.Redeem(r.Context(), token); err != nil {
		if s.metrics != nil {
			s.metrics.ResetsRedeemedTotal.WithLabelValues("failure").Inc()
		}
		s.writeError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.ResetsRedeemedTotal.WithLabelValues("success").Inc()
	}

	s.writeJSON(w, http.StatusOK, messageResponse{
		Message: "password updated, you can now log in",
	})
}

type addProgressRequest struct {
	Description string `json:"description"`
	Percent     int    `json:"percent"`
}

type progressResponse struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Percent     int       `json:"percent"`
	CreatedAt   time.Time `json:"created_at"`
}

func (s *Server) handleAddProgress(w http.ResponseWriter, r *http.Request) {
	sessCtx := sessionFromContext(r.Context())
	if sessCtx == nil || sessCtx.Role != auth.RoleDeveloper {
		s.writeErrorCode(w, http.StatusForbidden, "FORBIDDEN", "only developers can record progress")
		return
	}

	var req addProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	record, err := s.progressSvc.Add(r.Context(), sessCtx.PrincipalID, req.Description, req.Percent)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, progressResponse{
		ID:          record.ID.String(),
		Description: record.Description,
		Percent:     record.Percent,
		CreatedAt:   record.CreatedAt,
	})
}

type developerAverageResponse struct {
	RegistrationID string  `json:"registration_id"`
	DisplayName    string  `json:"display_name"`
	Average        float64 `json:"average"`
}

func (s *Server) handleListProgress(w http.ResponseWriter, r *http.Request) {
	sessCtx := sessionFromContext(r.Context())
	if sessCtx == nil {
		s.writeErrorCode(w, http.StatusUnauthorized, "SESSION_INVALID", "session is not valid")
		return
	}

	// Administrators get the per-developer overview. Everyone else
	// lists records for a single registration, their own by default.
	if sessCtx.Kind == auth.KindAdmin {
		averages, err := s.progressSvc.DeveloperAverages(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		out := make([]developerAverageResponse, 0, len(averages))
		for _, avg := range averages {
			out = append(out, developerAverageResponse{
				RegistrationID: avg.RegistrationID.String(),
				DisplayName:    avg.Name,
				Average:        avg.AveragePercent,
			})
		}
		s.writeJSON(w, http.StatusOK, out)
		return
	}

	registrationID := sessCtx.PrincipalID
	if raw := r.URL.Query().Get("registration_id"); raw != "" && sessCtx.Role == auth.RoleClient {
		parsed, err := ulid.Parse(raw)
		if err != nil {
			s.writeErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "invalid registration_id")
			return
		}
		registrationID = parsed
	}

	records, err := s.progressSvc.List(r.Context(), registrationID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]progressResponse, 0, len(records))
	for _, record := range records {
		out = append(out, progressResponse{
			ID:          record.ID.String(),
			Description: record.Description,
			Percent:     record.Percent,
			CreatedAt:   record.CreatedAt,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}
