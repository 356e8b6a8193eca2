// Package store provides JSON-document persistence for users, sessions,
// projects and per-page annotation documents. Two providers exist: an
// embedded file store (default, no external services) and a Couchbase
// adapter for server deployments. The provider is selected by config.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/RahulSGosavi/KABS-Annotation-AI/internal/annotation"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is returned when a unique constraint is violated, e.g.
	// signing up an email twice.
	ErrConflict = errors.New("store: conflict")
)

// User is an account record. PasswordHash is a bcrypt hash; the plaintext
// never reaches the store.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is an opaque bearer token with an expiry.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Project is a user's uploaded PDF plus conversion metadata.
type Project struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Filename  string    `json:"filename"`
	PageCount int       `json:"page_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists all application records. Implementations must make each
// Put atomic: a reader never observes a partially written document.
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	UserByEmail(ctx context.Context, email string) (*User, error)
	UserByID(ctx context.Context, id string) (*User, error)

	PutSession(ctx context.Context, s *Session) error
	Session(ctx context.Context, token string) (*Session, error)
	DeleteSession(ctx context.Context, token string) error

	PutProject(ctx context.Context, p *Project) error
	Project(ctx context.Context, id string) (*Project, error)
	ProjectsByOwner(ctx context.Context, ownerID string) ([]*Project, error)
	DeleteProject(ctx context.Context, id string) error

	PutPageAnnotations(ctx context.Context, doc *annotation.PageAnnotations) error
	PageAnnotations(ctx context.Context, projectID string, page int) (*annotation.PageAnnotations, error)
	DeletePageAnnotations(ctx context.Context, projectID string, page int) error
	// DeleteProjectAnnotations removes every page document of a project.
	// Used by the project delete cascade.
	DeleteProjectAnnotations(ctx context.Context, projectID string) error

	Close() error
}

// Config selects and configures a provider.
type Config struct {
	// Provider is "file" (default) or "couchbase".
	Provider string `koanf:"provider"`

	File      FileConfig      `koanf:"file"`
	Couchbase CouchbaseConfig `koanf:"couchbase"`
}

// FileConfig configures the embedded file store.
type FileConfig struct {
	// Path is the root directory for JSON documents.
	Path string `koanf:"path"`
}

// New creates a Store for the configured provider.
func New(cfg Config, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Provider {
	case "", "file":
		return NewFileStore(cfg.File.Path, logger)
	case "couchbase":
		return NewCouchbaseStore(cfg.Couchbase, logger)
	default:
		return nil, fmt.Errorf("store: unknown provider %q", cfg.Provider)
	}
}
