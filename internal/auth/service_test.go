package auth

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"benta/internal/core"
	"benta/internal/log"
	"benta/internal/storage"
)

func newTestService(t *testing.T) (*Service, *storage.Repository) {
	t.Helper()
	repo, err := storage.New(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	svc := NewService(repo, repo, Config{
		BcryptCost:      4, // minimum cost keeps tests fast
		MaxAttempts:     5,
		LockoutDuration: 15 * time.Minute,
		SessionTTL:      time.Hour,
		CSRFRotation:    30 * time.Minute,
	}, logger)
	t.Cleanup(svc.Stop)
	return svc, repo
}

func TestPruneExpiredSessions(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "alice@example.com", "Str0ngPass")
	require.NoError(t, err)

	live, err := svc.Login(ctx, "alice", "Str0ngPass")
	require.NoError(t, err)

	expired := storage.Session{
		ID:        "expired-session",
		UserID:    user.ID,
		CSRFToken: "token",
		CreatedAt: time.Now().UTC().Add(-2 * time.Hour),
		RotatedAt: time.Now().UTC().Add(-2 * time.Hour),
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(t, repo.CreateSession(ctx, expired))

	require.NoError(t, svc.PruneExpiredSessions(ctx))

	// The live session survives, the expired row is gone.
	_, _, err = svc.CurrentUser(ctx, live.SessionID)
	require.NoError(t, err)
	_, err = repo.GetSession(ctx, expired.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		email    string
		password string
		wantErr  error
	}{
		{"short username", "ab", "a@b.co", "Str0ngPass", core.ErrInvalidUsername},
		{"bad email", "alice", "not-an-email", "Str0ngPass", core.ErrInvalidEmail},
		{"weak password", "alice", "a@b.co", "password", core.ErrWeakPassword},
		{"common password", "alice", "a@b.co", "Password123", core.ErrCommonPassword},
		{"password contains username", "alice", "a@b.co", "Alice2024x", core.ErrPasswordHasUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.username, tt.email, tt.password)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRegisterAndLogin(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "alice@example.com", "Sup3rSecret")
	require.NoError(t, err)
	assert.NotZero(t, user.ID)

	cats, err := repo.ListCategories(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, cats, 8)

	_, err = svc.Register(ctx, "alice", "other@example.com", "Sup3rSecret")
	assert.ErrorIs(t, err, ErrDuplicateUser)

	// Login by username and by email.
	res, err := svc.Login(ctx, "alice", "Sup3rSecret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, res.User.ID)
	assert.NotEmpty(t, res.SessionID)
	assert.Len(t, res.CSRFToken, 64)

	res2, err := svc.Login(ctx, "alice@example.com", "Sup3rSecret")
	require.NoError(t, err)
	assert.NotEqual(t, res.SessionID, res2.SessionID)
	assert.NotEqual(t, res.CSRFToken, res2.CSRFToken)
}

func TestLoginUnknownUser(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Login(context.Background(), "ghost", "Whatever1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginLockout(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "bob", "bob@example.com", "Sup3rSecret")
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, err := svc.Login(ctx, "bob", "WrongPass1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	// The fifth failure reaches the threshold and locks the account.
	_, err = svc.Login(ctx, "bob", "WrongPass1")
	assert.ErrorIs(t, err, ErrAccountLocked)

	// Even the correct password is rejected while locked.
	_, err = svc.Login(ctx, "bob", "Sup3rSecret")
	assert.ErrorIs(t, err, ErrAccountLocked)
}

func TestLoginResetsAttempts(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, "carol", "carol@example.com", "Sup3rSecret")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "carol", "WrongPass1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "carol", "Sup3rSecret")
	require.NoError(t, err)

	stored, err := repo.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.LoginAttempts)
	assert.Nil(t, stored.LockedUntil)
}

func TestCurrentUserAndLogout(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "dave", "dave@example.com", "Sup3rSecret")
	require.NoError(t, err)
	res, err := svc.Login(ctx, "dave", "Sup3rSecret")
	require.NoError(t, err)

	user, sess, err := svc.CurrentUser(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "dave", user.Username)
	assert.Equal(t, res.CSRFToken, sess.CSRFToken)

	require.NoError(t, svc.Logout(ctx, res.SessionID))
	_, _, err = svc.CurrentUser(ctx, res.SessionID)
	assert.ErrorIs(t, err, ErrNoSession)

	// Logging out an already-dead session is a no-op.
	assert.NoError(t, svc.Logout(ctx, res.SessionID))
	assert.NoError(t, svc.Logout(ctx, ""))
}

func TestValidateCSRF(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "erin", "erin@example.com", "Sup3rSecret")
	require.NoError(t, err)
	res, err := svc.Login(ctx, "erin", "Sup3rSecret")
	require.NoError(t, err)

	_, sess, err := svc.CurrentUser(ctx, res.SessionID)
	require.NoError(t, err)

	assert.NoError(t, svc.ValidateCSRF(sess, res.CSRFToken))
	assert.ErrorIs(t, svc.ValidateCSRF(sess, "forged"), ErrCSRFInvalid)
	assert.ErrorIs(t, svc.ValidateCSRF(sess, ""), ErrCSRFInvalid)
	assert.ErrorIs(t, svc.ValidateCSRF(nil, res.CSRFToken), ErrCSRFInvalid)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("Sup3rSecret", 4)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "Sup3rSecret"))
	assert.False(t, VerifyPassword(hash, "sup3rsecret"))
}
