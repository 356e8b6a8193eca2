// Package auth provides signup, login and bearer-token authentication.
// Passwords are stored as bcrypt hashes; sessions are opaque uuid tokens
// with a TTL.
package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/RahulSGosavi/KABS-Annotation-AI/internal/store"
)

const instrumentationName = "github.com/RahulSGosavi/KABS-Annotation-AI/internal/auth"

var (
	// ErrInvalidCredentials covers both unknown email and wrong password so
	// login failures do not leak which one it was.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrEmailTaken is returned when signing up an existing email.
	ErrEmailTaken = errors.New("auth: email already registered")

	// ErrUnauthorized is returned for missing, unknown or expired tokens.
	ErrUnauthorized = errors.New("auth: unauthorized")
)

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 8

// Config configures the auth service.
type Config struct {
	// BcryptCost for password hashing (default bcrypt.DefaultCost).
	BcryptCost int `koanf:"bcrypt_cost"`

	// TokenTTL is the session lifetime (default 24h).
	TokenTTL time.Duration `koanf:"token_ttl"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BcryptCost: bcrypt.DefaultCost,
		TokenTTL:   24 * time.Hour,
	}
}

// Service provides account and session operations.
type Service interface {
	// Signup creates a user. The password is validated and hashed.
	Signup(ctx context.Context, email, password string) (*store.User, error)

	// Login verifies credentials and issues a session token.
	Login(ctx context.Context, email, password string) (*store.Session, error)

	// Logout revokes a session token.
	Logout(ctx context.Context, token string) error

	// Authenticate resolves a bearer token to its user. Expired sessions
	// are purged and rejected.
	Authenticate(ctx context.Context, token string) (*store.User, error)
}

type service struct {
	cfg    *Config
	store  store.Store
	logger *zap.Logger

	tracer       trace.Tracer
	meter        metric.Meter
	loginCounter metric.Int64Counter
}

// NewService creates the auth service.
func NewService(cfg *Config, st store.Store, logger *zap.Logger) (Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if st == nil {
		return nil, errors.New("auth: store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = 24 * time.Hour
	}

	s := &service{
		cfg:    cfg,
		store:  st,
		logger: logger,
		tracer: otel.Tracer(instrumentationName),
		meter:  otel.Meter(instrumentationName),
	}

	var err error
	s.loginCounter, err = s.meter.Int64Counter(
		"annotation.auth.logins_total",
		metric.WithDescription("Total login attempts labeled by outcome"),
		metric.WithUnit("{login}"),
	)
	if err != nil {
		logger.Warn("failed to create login counter", zap.Error(err))
	}

	return s, nil
}

func (s *service) Signup(ctx context.Context, email, password string) (*store.User, error) {
	ctx, span := s.tracer.Start(ctx, "auth.signup")
	defer span.End()

	if !emailRe.MatchString(email) {
		return nil, fmt.Errorf("auth: invalid email %q", email)
	}
	if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("auth: password must be at least %d characters", MinPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}

	u := &store.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("auth: create user: %w", err)
	}

	s.logger.Info("user signed up", zap.String("user_id", u.ID))
	span.SetAttributes(attribute.String("user_id", u.ID))
	return u, nil
}

func (s *service) Login(ctx context.Context, email, password string) (*store.Session, error) {
	ctx, span := s.tracer.Start(ctx, "auth.login")
	defer span.End()

	u, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.recordLogin(ctx, "unknown_email")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("auth: lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.recordLogin(ctx, "bad_password")
		return nil, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	sess := &store.Session{
		Token:     uuid.New().String(),
		UserID:    u.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.TokenTTL),
	}
	if err := s.store.PutSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("auth: store session: %w", err)
	}

	s.recordLogin(ctx, "ok")
	s.logger.Info("user logged in", zap.String("user_id", u.ID))
	return sess, nil
}

func (s *service) Logout(ctx context.Context, token string) error {
	ctx, span := s.tracer.Start(ctx, "auth.logout")
	defer span.End()

	if err := s.store.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("auth: delete session: %w", err)
	}
	return nil
}

func (s *service) Authenticate(ctx context.Context, token string) (*store.User, error) {
	ctx, span := s.tracer.Start(ctx, "auth.authenticate")
	defer span.End()

	// Issued tokens are always uuids; anything else (including path-shaped
	// garbage) is rejected before it reaches the store.
	if token == "" || uuid.Validate(token) != nil {
		return nil, ErrUnauthorized
	}
	sess, err := s.store.Session(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("auth: lookup session: %w", err)
	}
	if sess.Expired(time.Now()) {
		// Lazy purge: expired tokens are removed on first use.
		_ = s.store.DeleteSession(ctx, token)
		return nil, ErrUnauthorized
	}

	u, err := s.store.UserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("auth: lookup user: %w", err)
	}
	return u, nil
}

func (s *service) recordLogin(ctx context.Context, outcome string) {
	if s.loginCounter != nil {
		s.loginCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("outcome", outcome),
		))
	}
}
