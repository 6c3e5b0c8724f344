package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"benta/internal/core"
	"benta/internal/log"
	"benta/internal/storage"
)

var (
	// ErrInvalidCredentials covers both unknown users and wrong
	// passwords so responses cannot be used to enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid username or password")

	ErrAccountLocked = errors.New("account locked")
	ErrDuplicateUser = errors.New("username or email already taken")
	ErrCSRFInvalid   = errors.New("invalid csrf token")
	ErrNoSession     = errors.New("no active session")
)

// UserStore is the slice of storage the auth service needs for accounts.
type UserStore interface {
	CreateUserWithDefaults(ctx context.Context, username, email, passwordHash string) (*core.User, error)
	GetUserByUsernameOrEmail(ctx context.Context, identifier string) (*core.User, error)
	GetUserByID(ctx context.Context, id int64) (*core.User, error)
	IncrementLoginAttempts(ctx context.Context, userID int64) (int, error)
	LockUser(ctx context.Context, userID int64, until time.Time) error
	ResetLoginAttempts(ctx context.Context, userID int64) error
}

// SessionStore is the slice of storage the auth service needs for sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, s storage.Session) error
	GetSession(ctx context.Context, id string) (*storage.Session, error)
	DeleteSession(ctx context.Context, id string) error
	RotateCSRF(ctx context.Context, sessionID, token string, rotatedAt time.Time) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// Config controls lockout and session timing.
type Config struct {
	BcryptCost      int
	MaxAttempts     int
	LockoutDuration time.Duration
	SessionTTL      time.Duration
	CSRFRotation    time.Duration

	// SessionCleanup is how often expired session rows are pruned.
	// Zero means hourly.
	SessionCleanup time.Duration
}

type Service struct {
	users    UserStore
	sessions SessionStore
	cfg      Config
	logger   *log.Logger

	stopCleanup chan struct{}
	stopOnce    sync.Once
}

func NewService(users UserStore, sessions SessionStore, cfg Config, logger *log.Logger) *Service {
	if cfg.SessionCleanup <= 0 {
		cfg.SessionCleanup = time.Hour
	}
	s := &Service{
		users:       users,
		sessions:    sessions,
		cfg:         cfg,
		logger:      logger.WithComponent(log.ComponentAuth),
		stopCleanup: make(chan struct{}),
	}
	go s.startCleanup(cfg.SessionCleanup)
	return s
}

// startCleanup prunes expired session rows on a fixed tick. GetSession
// already filters them out, so this only bounds table growth.
func (s *Service) startCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := s.PruneExpiredSessions(ctx); err != nil {
				s.logger.Error("session cleanup failed", log.FieldError, err)
			}
			cancel()
		}
	}
}

// PruneExpiredSessions deletes every session past its expiry.
func (s *Service) PruneExpiredSessions(ctx context.Context) error {
	n, err := s.sessions.DeleteExpiredSessions(ctx)
	if err != nil {
		return fmt.Errorf("delete expired sessions: %w", err)
	}
	if n > 0 {
		s.logger.Info("expired sessions pruned", "count", n)
	}
	return nil
}

// Stop halts the cleanup goroutine.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopCleanup) })
}

// Register validates credentials, hashes the password and creates the
// account with its seeded categories and settings.
func (s *Service) Register(ctx context.Context, username, email, password string) (*core.User, error) {
	username = core.SanitizeText(username)
	email = core.SanitizeText(email)

	if err := core.ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := core.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := core.ValidatePassword(password, username); err != nil {
		return nil, err
	}

	hash, err := HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	user, err := s.users.CreateUserWithDefaults(ctx, username, email, hash)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, ErrDuplicateUser
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "user registered",
		log.FieldUserID, user.ID,
		log.FieldUsername, user.Username)
	return user, nil
}

// LoginResult carries the authenticated user plus the session the
// handler should set as a cookie.
type LoginResult struct {
	User      *core.User
	SessionID string
	CSRFToken string
	ExpiresAt time.Time
}

// Login authenticates by username or email. Lockout is checked before
// the password so a locked account never reveals whether the password
// was right. Failed attempts are counted atomically; the account locks
// once the threshold is reached.
func (s *Service) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	user, err := s.users.GetUserByUsernameOrEmail(ctx, core.SanitizeText(identifier))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	now := time.Now().UTC()
	if user.LockedUntil != nil && user.LockedUntil.After(now) {
		return nil, ErrAccountLocked
	}

	if !VerifyPassword(user.PasswordHash, password) {
		attempts, err := s.users.IncrementLoginAttempts(ctx, user.ID)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to record login attempt",
				log.FieldUserID, user.ID, log.FieldError, err)
			return nil, ErrInvalidCredentials
		}
		s.logger.WarnContext(ctx, "login failed",
			log.FieldUserID, user.ID,
			"attempts", attempts)
		if attempts >= s.cfg.MaxAttempts {
			until := now.Add(s.cfg.LockoutDuration)
			if err := s.users.LockUser(ctx, user.ID, until); err != nil {
				s.logger.ErrorContext(ctx, "failed to lock account",
					log.FieldUserID, user.ID, log.FieldError, err)
			} else {
				s.logger.WarnContext(ctx, "account locked",
					log.FieldUserID, user.ID,
					"locked_until", until)
			}
			return nil, ErrAccountLocked
		}
		return nil, ErrInvalidCredentials
	}

	if err := s.users.ResetLoginAttempts(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("reset login attempts: %w", err)
	}

	sess := storage.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		CSRFToken: newCSRFToken(),
		CreatedAt: now,
		RotatedAt: now,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
	}
	if err := s.sessions.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.logger.InfoContext(ctx, "login succeeded",
		log.FieldUserID, user.ID,
		log.FieldUsername, user.Username)

	return &LoginResult{
		User:      user,
		SessionID: sess.ID,
		CSRFToken: sess.CSRFToken,
		ExpiresAt: sess.ExpiresAt,
	}, nil
}

// CurrentUser resolves a session ID to its user. The user row is
// re-fetched so a deleted account invalidates its stale sessions.
func (s *Service) CurrentUser(ctx context.Context, sessionID string) (*core.User, *storage.Session, error) {
	sess, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, ErrNoSession
		}
		return nil, nil, fmt.Errorf("get session: %w", err)
	}

	user, err := s.users.GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Account is gone; drop the orphaned session.
			_ = s.sessions.DeleteSession(ctx, sessionID)
			return nil, nil, ErrNoSession
		}
		return nil, nil, fmt.Errorf("get user: %w", err)
	}

	// Rotate the CSRF token once the rotation interval has elapsed.
	if time.Since(sess.RotatedAt) >= s.cfg.CSRFRotation {
		token := newCSRFToken()
		now := time.Now().UTC()
		if err := s.sessions.RotateCSRF(ctx, sess.ID, token, now); err != nil {
			s.logger.WarnContext(ctx, "csrf rotation failed",
				log.FieldSessionID, sess.ID, log.FieldError, err)
		} else {
			sess.CSRFToken = token
			sess.RotatedAt = now
		}
	}

	return user, sess, nil
}

// Logout destroys the session. Unknown sessions are not an error.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// ValidateCSRF compares the supplied token against the session's token
// in constant time.
func (s *Service) ValidateCSRF(sess *storage.Session, token string) error {
	if sess == nil || token == "" {
		return ErrCSRFInvalid
	}
	if subtle.ConstantTimeCompare([]byte(sess.CSRFToken), []byte(token)) != 1 {
		return ErrCSRFInvalid
	}
	return nil
}

func newCSRFToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return hex.EncodeToString(b)
}
