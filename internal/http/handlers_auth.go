package http

import (
	"errors"
	"net/http"

	"benta/internal/audit"
	"benta/internal/auth"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	body, err := requestBody(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, codeValidation, "malformed request body")
		return
	}

	username := body.Get("username")
	email := body.Get("email")
	password := body.Get("password")

	if body.Has("confirm_password") && body.Get("confirm_password") != password {
		respondError(w, http.StatusBadRequest, codeValidation, "passwords do not match")
		return
	}

	user, err := s.auth.Register(r.Context(), username, email, password)
	if err != nil {
		if errors.Is(err, auth.ErrDuplicateUser) {
			respondError(w, http.StatusBadRequest, codeDuplicateUser, "username or email already taken")
			return
		}
		if isValidationErr(err) {
			respondError(w, http.StatusBadRequest, codeValidation, err.Error())
			return
		}
		s.internalError(w, r, err)
		return
	}

	s.audit.Record(r.Context(), audit.Event{
		Level:     audit.LevelInfo,
		Message:   "user registered",
		Context:   map[string]any{"username": user.Username},
		UserID:    &user.ID,
		IP:        s.detector.ExtractClientIP(r),
		UserAgent: r.UserAgent(),
	})

	respondSuccess(w, http.StatusCreated, "registration successful", map[string]any{
		"user": newUserView(user),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	body, err := requestBody(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, codeValidation, "malformed request body")
		return
	}

	identifier := body.Get("username")
	if identifier == "" {
		identifier = body.Get("email")
	}
	password := body.Get("password")
	if identifier == "" || password == "" {
		respondError(w, http.StatusBadRequest, codeValidation, "username and password are required")
		return
	}

	// A CSRF token on login is only checkable when the request still
	// carries a live session; token against a dead session is ignored.
	if token := body.Get("csrf_token"); token != "" {
		if cookie, cerr := r.Cookie(sessionCookieName); cerr == nil && cookie.Value != "" {
			if _, sess, cuErr := s.auth.CurrentUser(r.Context(), cookie.Value); cuErr == nil {
				if s.auth.ValidateCSRF(sess, token) != nil {
					respondError(w, http.StatusForbidden, codeCSRFInvalid, "invalid CSRF token")
					return
				}
			}
		}
	}

	result, err := s.auth.Login(r.Context(), identifier, password)
	if err != nil {
		ip := s.detector.ExtractClientIP(r)
		switch {
		case errors.Is(err, auth.ErrAccountLocked):
			s.audit.Record(r.Context(), audit.Event{
				Level:     audit.LevelWarning,
				Message:   "login attempt on locked account",
				Context:   map[string]any{"identifier": identifier},
				IP:        ip,
				UserAgent: r.UserAgent(),
			})
			respondError(w, http.StatusLocked, codeAccountLocked, "account temporarily locked, try again later")
		case errors.Is(err, auth.ErrInvalidCredentials):
			s.audit.Record(r.Context(), audit.Event{
				Level:     audit.LevelWarning,
				Message:   "failed login",
				Context:   map[string]any{"identifier": identifier},
				IP:        ip,
				UserAgent: r.UserAgent(),
			})
			respondError(w, http.StatusUnauthorized, codeAuthRequired, "invalid username or password")
		default:
			s.internalError(w, r, err)
		}
		return
	}

	s.setSessionCookie(w, result.SessionID, result.ExpiresAt)

	s.audit.Record(r.Context(), audit.Event{
		Level:     audit.LevelInfo,
		Message:   "login successful",
		UserID:    &result.User.ID,
		IP:        s.detector.ExtractClientIP(r),
		UserAgent: r.UserAgent(),
	})

	respondSuccess(w, http.StatusOK, "login successful", map[string]any{
		"user":       newUserView(result.User),
		"csrf_token": result.CSRFToken,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		if err := s.auth.Logout(r.Context(), cookie.Value); err != nil {
			s.internalError(w, r, err)
			return
		}
	}
	s.clearSessionCookie(w)
	respondSuccess(w, http.StatusOK, "logged out", nil)
}

// handleAuthCheck reports the current session state and hands out the
// active CSRF token so clients can recover it after a page reload.
func (s *Server) handleAuthCheck(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		respondSuccess(w, http.StatusOK, "", map[string]any{"authenticated": false})
		return
	}

	user, sess, err := s.auth.CurrentUser(r.Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, auth.ErrNoSession) {
			s.clearSessionCookie(w)
			respondSuccess(w, http.StatusOK, "", map[string]any{"authenticated": false})
			return
		}
		s.internalError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusOK, "", map[string]any{
		"authenticated": true,
		"user":          newUserView(user),
		"csrf_token":    sess.CSRFToken,
	})
}
