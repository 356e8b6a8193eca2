package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/RahulSGosavi/KABS-Annotation-AI/internal/store"
)

func newTestService(t *testing.T, cfg *Config) Service {
	t.Helper()
	fs, err := store.NewFileStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	if cfg == nil {
		cfg = DefaultConfig()
		cfg.BcryptCost = bcrypt.MinCost // keep the tests fast
	}
	svc, err := NewService(cfg, fs, zap.NewNop())
	require.NoError(t, err)
	return svc
}

func TestNewService_RequiresStore(t *testing.T) {
	_, err := NewService(nil, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store is required")
}

func TestSignupAndLogin(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	u, err := svc.Signup(ctx, "alice@example.com", "hunter2hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.NotEqual(t, "hunter2hunter2", u.PasswordHash)

	sess, err := svc.Login(ctx, "alice@example.com", "hunter2hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, u.ID, sess.UserID)
	assert.True(t, sess.ExpiresAt.After(time.Now()))
}

func TestSignup_Validation(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "not-an-email", "longenoughpw")
	assert.Error(t, err)

	_, err = svc.Signup(ctx, "ok@example.com", "short")
	assert.Error(t, err)
}

func TestSignup_DuplicateEmail(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "bob@example.com", "password123")
	require.NoError(t, err)

	_, err = svc.Signup(ctx, "bob@example.com", "password456")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLogin_BadCredentials(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "carol@example.com", "password123")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "carol@example.com", "wrongpassword")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticate(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	u, err := svc.Signup(ctx, "dave@example.com", "password123")
	require.NoError(t, err)
	sess, err := svc.Login(ctx, "dave@example.com", "password123")
	require.NoError(t, err)

	got, err := svc.Authenticate(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = svc.Authenticate(ctx, "bogus-token")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.Authenticate(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthenticate_MalformedTokenRejected(t *testing.T) {
	fs, err := store.NewFileStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.BcryptCost = bcrypt.MinCost
	svc, err := NewService(cfg, fs, zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	u, err := svc.Signup(ctx, "trudy@example.com", "password123")
	require.NoError(t, err)

	// Tokens are uuids; a path-shaped token must be rejected outright and
	// must not disturb other records via the lazy purge.
	_, err = svc.Authenticate(ctx, "../users/"+u.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	got, err := fs.UserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, got.Email)
}

func TestAuthenticate_ExpiredTokenPurged(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BcryptCost = bcrypt.MinCost
	cfg.TokenTTL = -time.Minute // already expired on issue
	svc := newTestService(t, cfg)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "eve@example.com", "password123")
	require.NoError(t, err)
	sess, err := svc.Login(ctx, "eve@example.com", "password123")
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestLogout(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "frank@example.com", "password123")
	require.NoError(t, err)
	sess, err := svc.Login(ctx, "frank@example.com", "password123")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, sess.Token))
	_, err = svc.Authenticate(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}
