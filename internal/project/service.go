// Package project provides project CRUD on top of the store: a project is
// one uploaded PDF plus its conversion metadata and per-page annotation
// documents. Every operation checks ownership.
package project

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/RahulSGosavi/KABS-Annotation-AI/internal/store"
)

const instrumentationName = "github.com/RahulSGosavi/KABS-Annotation-AI/internal/project"

var (
	// ErrNotFound is returned when the project does not exist or belongs
	// to another user. The two cases are indistinguishable on purpose.
	ErrNotFound = errors.New("project: not found")

	// ErrInvalidName is returned for empty or oversized names.
	ErrInvalidName = errors.New("project: invalid name")
)

// maxNameLength bounds project names.
const maxNameLength = 200

// PageCache removes cached page images for a project. Implemented by the
// convert package; used by the delete cascade.
type PageCache interface {
	Remove(projectID string) error
}

// Service provides project operations.
type Service interface {
	// Create registers a new project for owner. Filename and page count
	// are filled in by the upload handler after conversion.
	Create(ctx context.Context, ownerID, name string) (*store.Project, error)

	// Get returns a project owned by ownerID.
	Get(ctx context.Context, ownerID, projectID string) (*store.Project, error)

	// List returns all projects of ownerID, newest first.
	List(ctx context.Context, ownerID string) ([]*store.Project, error)

	// Rename changes the project name.
	Rename(ctx context.Context, ownerID, projectID, name string) (*store.Project, error)

	// SetUpload records the uploaded filename and page count.
	SetUpload(ctx context.Context, ownerID, projectID, filename string, pageCount int) (*store.Project, error)

	// Delete removes the project, its annotation documents and its cached
	// page images.
	Delete(ctx context.Context, ownerID, projectID string) error
}

type service struct {
	store  store.Store
	cache  PageCache
	logger *zap.Logger
	tracer trace.Tracer
}

// NewService creates the project service. cache may be nil when no image
// cache exists (e.g. the admin CLI).
func NewService(st store.Store, cache PageCache, logger *zap.Logger) (Service, error) {
	if st == nil {
		return nil, errors.New("project: store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		store:  st,
		cache:  cache,
		logger: logger,
		tracer: otel.Tracer(instrumentationName),
	}, nil
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLength {
		return "", ErrInvalidName
	}
	return name, nil
}

// owned fetches a project and enforces ownership.
func (s *service) owned(ctx context.Context, ownerID, projectID string) (*store.Project, error) {
	p, err := s.store.Project(ctx, projectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("project: get: %w", err)
	}
	if p.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return p, nil
}

func (s *service) Create(ctx context.Context, ownerID, name string) (*store.Project, error) {
	ctx, span := s.tracer.Start(ctx, "project.create")
	defer span.End()

	name, err := validateName(name)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p := &store.Project{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.PutProject(ctx, p); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("project: create: %w", err)
	}

	s.logger.Info("created project",
		zap.String("project_id", p.ID),
		zap.String("owner_id", ownerID))
	span.SetAttributes(attribute.String("project_id", p.ID))
	return p, nil
}

func (s *service) Get(ctx context.Context, ownerID, projectID string) (*store.Project, error) {
	ctx, span := s.tracer.Start(ctx, "project.get")
	defer span.End()
	return s.owned(ctx, ownerID, projectID)
}

func (s *service) List(ctx context.Context, ownerID string) ([]*store.Project, error) {
	ctx, span := s.tracer.Start(ctx, "project.list")
	defer span.End()

	out, err := s.store.ProjectsByOwner(ctx, ownerID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("project: list: %w", err)
	}
	span.SetAttributes(attribute.Int("result_count", len(out)))
	return out, nil
}

func (s *service) Rename(ctx context.Context, ownerID, projectID, name string) (*store.Project, error) {
	ctx, span := s.tracer.Start(ctx, "project.rename")
	defer span.End()

	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	p, err := s.owned(ctx, ownerID, projectID)
	if err != nil {
		return nil, err
	}
	p.Name = name
	p.UpdatedAt = time.Now().UTC()
	if err := s.store.PutProject(ctx, p); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("project: rename: %w", err)
	}
	return p, nil
}

func (s *service) SetUpload(ctx context.Context, ownerID, projectID, filename string, pageCount int) (*store.Project, error) {
	ctx, span := s.tracer.Start(ctx, "project.set_upload")
	defer span.End()

	if pageCount < 1 {
		return nil, fmt.Errorf("project: page count must be >= 1, got %d", pageCount)
	}
	p, err := s.owned(ctx, ownerID, projectID)
	if err != nil {
		return nil, err
	}
	p.Filename = filename
	p.PageCount = pageCount
	p.UpdatedAt = time.Now().UTC()
	if err := s.store.PutProject(ctx, p); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("project: set upload: %w", err)
	}

	s.logger.Info("recorded upload",
		zap.String("project_id", p.ID),
		zap.String("filename", filename),
		zap.Int("pages", pageCount))
	return p, nil
}

func (s *service) Delete(ctx context.Context, ownerID, projectID string) error {
	ctx, span := s.tracer.Start(ctx, "project.delete")
	defer span.End()

	if _, err := s.owned(ctx, ownerID, projectID); err != nil {
		return err
	}

	// Cascade order: annotations, cached images, then the project record.
	// A crash mid-cascade leaves orphans but never a dangling project.
	if err := s.store.DeleteProjectAnnotations(ctx, projectID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("project: delete annotations: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Remove(projectID); err != nil {
			s.logger.Warn("failed to remove cached pages",
				zap.String("project_id", projectID), zap.Error(err))
		}
	}
	if err := s.store.DeleteProject(ctx, projectID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("project: delete: %w", err)
	}

	s.logger.Info("deleted project", zap.String("project_id", projectID))
	return nil
}
