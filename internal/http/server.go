// Package http exposes the JSON API: authentication, category and
// transaction CRUD, settings, and reports.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"benta/internal/audit"
	"benta/internal/auth"
	"benta/internal/core"
	"benta/internal/log"
	"benta/internal/middleware/security"
	"benta/internal/middleware/trace"
	"benta/internal/ratelimit"
	"benta/internal/services"
)

const sessionCookieName = "benta_session"

type ctxKey int

const (
	ctxKeyUser ctxKey = iota
	ctxKeyBody
)

// Pinger is the readiness probe dependency.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps carries everything the server needs.
type Deps struct {
	Auth         *auth.Service
	Categories   *services.CategoryService
	Transactions *services.TransactionService
	Settings     *services.SettingsService
	Reports      *services.ReportService
	Limiter      *ratelimit.Limiter
	Audit        *audit.Recorder
	DB           Pinger
	Logger       *log.Logger
	SecureCookie bool
}

type Server struct {
	http.Server

	auth         *auth.Service
	categories   *services.CategoryService
	transactions *services.TransactionService
	settings     *services.SettingsService
	reports      *services.ReportService
	limiter      *ratelimit.Limiter
	audit        *audit.Recorder
	db           Pinger
	logger       *log.Logger
	detector     *security.Detector
	secureCookie bool

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server.
func NewServer(addr string, deps Deps) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           nil, // set below, after middleware wrapping
			ReadHeaderTimeout: 10 * time.Second,
		},
		auth:         deps.Auth,
		categories:   deps.Categories,
		transactions: deps.Transactions,
		settings:     deps.Settings,
		reports:      deps.Reports,
		limiter:      deps.Limiter,
		audit:        deps.Audit,
		db:           deps.DB,
		logger:       deps.Logger.WithComponent(log.ComponentHTTP),
		detector:     security.NewDetector(),
		secureCookie: deps.SecureCookie,
	}

	mux.HandleFunc("/login", s.public(s.handleLogin, ratelimit.ActionAuth, http.MethodPost))
	mux.HandleFunc("/register", s.public(s.handleRegister, ratelimit.ActionAuth, http.MethodPost))
	mux.HandleFunc("/logout", s.public(s.handleLogout, ratelimit.ActionGeneral, http.MethodPost))
	mux.HandleFunc("/auth_check", s.public(s.handleAuthCheck, ratelimit.ActionGeneral, http.MethodGet))

	mux.HandleFunc("/categories", s.authed(s.handleCategories,
		http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete))
	mux.HandleFunc("/transactions", s.authed(s.handleTransactions,
		http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete))
	mux.HandleFunc("/settings", s.authed(s.handleSettings,
		http.MethodGet, http.MethodPut))
	mux.HandleFunc("/reports", s.authed(s.handleReports, http.MethodGet))

	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)

	traceMW := trace.NewMiddleware(s.detector.ExtractClientIP, deps.Logger)
	headersMW := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Server.Handler = traceMW.Middleware(headersMW.Middleware(s.suspicionFilter(mux)))

	return s
}

// Shutdown stops background work, then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		if s.auth != nil {
			s.auth.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// suspicionFilter rejects obvious scanner traffic before routing.
func (s *Server) suspicionFilter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			s.logger.WarnContext(r.Context(), "suspicious request rejected",
				log.FieldClientIP, s.detector.ExtractClientIP(r),
				log.FieldPath, r.URL.Path)
			respondError(w, http.StatusBadRequest, codeValidation, "invalid request")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// public wraps unauthenticated endpoints: method check, then rate limit
// keyed by client IP.
func (s *Server) public(h http.HandlerFunc, action string, methods ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !methodAllowed(r.Method, methods) {
			respondMethodNotAllowed(w, methods...)
			return
		}
		ip := s.detector.ExtractClientIP(r)
		if res := s.limiter.CheckLimit(r.Context(), ip, action); !res.Allowed {
			s.audit.Record(r.Context(), audit.Event{
				Level:     audit.LevelWarning,
				Message:   "rate limit exceeded",
				Context:   map[string]any{"action": action, "path": r.URL.Path},
				IP:        ip,
				UserAgent: r.UserAgent(),
			})
			respondRateLimited(w, res)
			return
		}
		h(w, r)
	}
}

// authed wraps endpoints that need a session: method check, session
// resolution, per-user rate limit, body parsing, and CSRF validation
// for mutating verbs.
func (s *Server) authed(h http.HandlerFunc, methods ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !methodAllowed(r.Method, methods) {
			respondMethodNotAllowed(w, methods...)
			return
		}

		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || cookie.Value == "" {
			respondError(w, http.StatusUnauthorized, codeAuthRequired, "authentication required")
			return
		}

		user, sess, err := s.auth.CurrentUser(r.Context(), cookie.Value)
		if err != nil {
			if errors.Is(err, auth.ErrNoSession) {
				s.clearSessionCookie(w)
				respondError(w, http.StatusUnauthorized, codeInvalidSession, "session expired or invalid")
				return
			}
			s.internalError(w, r, err)
			return
		}

		action := ratelimit.ActionGeneral
		if r.Method != http.MethodGet {
			action = ratelimit.ActionSensitive
		}
		identifier := fmt.Sprintf("user_%d", user.ID)
		if res := s.limiter.CheckLimit(r.Context(), identifier, action); !res.Allowed {
			s.audit.Record(r.Context(), audit.Event{
				Level:     audit.LevelWarning,
				Message:   "rate limit exceeded",
				Context:   map[string]any{"action": action, "path": r.URL.Path},
				UserID:    &user.ID,
				IP:        s.detector.ExtractClientIP(r),
				UserAgent: r.UserAgent(),
			})
			respondRateLimited(w, res)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyUser, user)

		if r.Method != http.MethodGet {
			body, err := parseRequestBody(r)
			if err != nil {
				respondError(w, http.StatusBadRequest, codeValidation, "malformed request body")
				return
			}
			ctx = context.WithValue(ctx, ctxKeyBody, body)

			token := r.Header.Get("X-CSRF-Token")
			if token == "" {
				token = body.Get("csrf_token")
			}
			if err := s.auth.ValidateCSRF(sess, token); err != nil {
				s.audit.Record(ctx, audit.Event{
					Level:     audit.LevelWarning,
					Message:   "csrf validation failed",
					UserID:    &user.ID,
					IP:        s.detector.ExtractClientIP(r),
					UserAgent: r.UserAgent(),
				})
				respondError(w, http.StatusForbidden, codeCSRFInvalid, "invalid or missing CSRF token")
				return
			}
		}

		h(w, r.WithContext(ctx))
	}
}

func methodAllowed(method string, allowed []string) bool {
	for _, m := range allowed {
		if m == method {
			return true
		}
	}
	return false
}

func currentUser(r *http.Request) *core.User {
	u, _ := r.Context().Value(ctxKeyUser).(*core.User)
	return u
}

// requestBody returns the body parsed by the authed wrapper, or parses
// it on the spot for public endpoints.
func requestBody(r *http.Request) (*requestValues, error) {
	if body, ok := r.Context().Value(ctxKeyBody).(*requestValues); ok {
		return body, nil
	}
	return parseRequestBody(r)
}

// internalError logs the real error and returns an opaque response.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.ErrorContext(r.Context(), "request failed",
		log.FieldRequestID, trace.GetRequestID(r.Context()),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path,
		log.FieldError, err)
	respondError(w, http.StatusInternalServerError, codeDatabase, "an internal error occurred")
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sessionID string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, "ok", nil)
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, codeDatabase, "database unavailable")
		return
	}
	respondSuccess(w, http.StatusOK, "ready", nil)
}
