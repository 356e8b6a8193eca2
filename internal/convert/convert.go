// Package convert turns uploaded PDFs into per-page PNG images served to
// the editor canvas, plus a small JPEG thumbnail of the first page. Results
// are cached on disk per project; at most one conversion runs per project
// at a time.
package convert

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
	"golang.org/x/sync/singleflight"
)

const instrumentationName = "github.com/RahulSGosavi/KABS-Annotation-AI/internal/convert"

// ErrNotConverted is returned when page images are requested for a project
// that has no completed conversion.
var ErrNotConverted = errors.New("convert: project not converted")

// Config configures the conversion pipeline.
type Config struct {
	// CacheDir is the page image cache root.
	CacheDir string `koanf:"cache_dir"`

	// DPI pages are rendered at (default 150).
	DPI float64 `koanf:"dpi"`

	// MaxPages rejects oversized uploads. Zero disables the limit.
	MaxPages int `koanf:"max_pages"`

	// ThumbnailWidth is the thumbnail width in pixels (default 320).
	ThumbnailWidth int `koanf:"thumbnail_width"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DPI:            150,
		MaxPages:       200,
		ThumbnailWidth: 320,
	}
}

// Service converts PDFs and serves the cached results.
type Service interface {
	// Inspect validates an uploaded PDF and returns its page count.
	Inspect(ctx context.Context, path string) (int, error)

	// Convert renders every page of the PDF at path into the project's
	// cache directory and returns the page metadata. Concurrent calls for
	// the same project share one conversion; a completed conversion is
	// returned from cache.
	Convert(ctx context.Context, projectID, path string) ([]PageMeta, error)

	// Pages returns the metadata of a completed conversion.
	Pages(ctx context.Context, projectID string) ([]PageMeta, error)

	// PagePath returns the PNG path of one rendered page.
	PagePath(ctx context.Context, projectID string, page int) (string, error)

	// ThumbnailPath returns the JPEG thumbnail path.
	ThumbnailPath(ctx context.Context, projectID string) (string, error)

	// Remove drops all cached images of a project.
	Remove(projectID string) error
}

type service struct {
	cfg    *Config
	cache  *Cache
	render Renderer
	group  singleflight.Group
	logger *zap.Logger

	tracer        trace.Tracer
	meter         metric.Meter
	pagesRendered metric.Int64Counter
}

// NewService creates the conversion service. renderer may be nil, in which
// case the MuPDF renderer is used.
func NewService(cfg *Config, renderer Renderer, logger *zap.Logger) (Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 150
	}
	if cfg.ThumbnailWidth <= 0 {
		cfg.ThumbnailWidth = 320
	}
	if renderer == nil {
		renderer = NewFitzRenderer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cache, err := NewCache(cfg.CacheDir)
	if err != nil {
		return nil, err
	}

	s := &service{
		cfg:    cfg,
		cache:  cache,
		render: renderer,
		logger: logger,
		tracer: otel.Tracer(instrumentationName),
		meter:  otel.Meter(instrumentationName),
	}

	s.pagesRendered, err = s.meter.Int64Counter(
		"annotation.convert.pages_rendered_total",
		metric.WithDescription("Total PDF pages rendered to images"),
		metric.WithUnit("{page}"),
	)
	if err != nil {
		logger.Warn("failed to create pages counter", zap.Error(err))
	}

	return s, nil
}

func (s *service) Inspect(ctx context.Context, path string) (int, error) {
	_, span := s.tracer.Start(ctx, "convert.inspect")
	defer span.End()

	n, err := Inspect(path, s.cfg.MaxPages)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	span.SetAttributes(attribute.Int("page_count", n))
	return n, nil
}

func (s *service) Convert(ctx context.Context, projectID, path string) ([]PageMeta, error) {
	ctx, span := s.tracer.Start(ctx, "convert.convert",
		trace.WithAttributes(attribute.String("project_id", projectID)))
	defer span.End()

	// singleflight collapses concurrent conversions of the same project
	// into one render pass; latecomers get the shared result.
	v, err, shared := s.group.Do(projectID, func() (any, error) {
		if meta, err := s.cache.Meta(projectID); err != nil {
			return nil, err
		} else if meta != nil {
			return meta, nil
		}
		return s.convertLocked(ctx, projectID, path)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Bool("shared", shared))
	return v.([]PageMeta), nil
}

func (s *service) convertLocked(ctx context.Context, projectID, path string) ([]PageMeta, error) {
	start := time.Now()
	if err := s.cache.EnsureDir(projectID); err != nil {
		return nil, fmt.Errorf("convert: create project dir: %w", err)
	}

	var meta []PageMeta
	err := s.render.Render(path, s.cfg.DPI, func(p *PageImage) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.writePNG(s.cache.PagePath(projectID, p.Page), p.Image); err != nil {
			return err
		}
		if p.Page == 1 {
			if err := s.writeThumbnail(projectID, p.Image); err != nil {
				return err
			}
		}
		b := p.Image.Bounds()
		meta = append(meta, PageMeta{
			Page:     p.Page,
			WidthPx:  b.Dx(),
			HeightPx: b.Dy(),
			WidthPt:  p.WidthPt,
			HeightPt: p.HeightPt,
			DPI:      s.cfg.DPI,
		})
		return nil
	})
	if err != nil {
		// Leave no half-converted cache behind.
		_ = s.cache.Remove(projectID)
		return nil, err
	}
	if len(meta) == 0 {
		_ = s.cache.Remove(projectID)
		return nil, fmt.Errorf("%w: no pages", ErrInvalidPDF)
	}
	if err := s.cache.WriteMeta(projectID, meta); err != nil {
		_ = s.cache.Remove(projectID)
		return nil, err
	}

	if s.pagesRendered != nil {
		s.pagesRendered.Add(ctx, int64(len(meta)))
	}
	s.logger.Info("converted pdf",
		zap.String("project_id", projectID),
		zap.Int("pages", len(meta)),
		zap.Duration("took", time.Since(start)))
	return meta, nil
}

func (s *service) writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("convert: create page file: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("convert: encode page: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("convert: close page file: %w", err)
	}
	return nil
}

// writeThumbnail scales the first page down to the configured width and
// stores it as JPEG.
func (s *service) writeThumbnail(projectID string, src image.Image) error {
	sb := src.Bounds()
	w := s.cfg.ThumbnailWidth
	if sb.Dx() < w {
		w = sb.Dx()
	}
	h := sb.Dy() * w / sb.Dx()
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, sb, draw.Src, nil)

	f, err := os.Create(s.cache.ThumbnailPath(projectID))
	if err != nil {
		return fmt.Errorf("convert: create thumbnail: %w", err)
	}
	if err := jpeg.Encode(f, dst, &jpeg.Options{Quality: 80}); err != nil {
		f.Close()
		return fmt.Errorf("convert: encode thumbnail: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("convert: close thumbnail: %w", err)
	}
	return nil
}

func (s *service) Pages(ctx context.Context, projectID string) ([]PageMeta, error) {
	_, span := s.tracer.Start(ctx, "convert.pages")
	defer span.End()

	meta, err := s.cache.Meta(projectID)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, ErrNotConverted
	}
	return meta, nil
}

func (s *service) PagePath(ctx context.Context, projectID string, page int) (string, error) {
	meta, err := s.Pages(ctx, projectID)
	if err != nil {
		return "", err
	}
	if page < 1 || page > len(meta) {
		return "", fmt.Errorf("convert: page %d out of range 1..%d", page, len(meta))
	}
	return s.cache.PagePath(projectID, page), nil
}

func (s *service) ThumbnailPath(ctx context.Context, projectID string) (string, error) {
	if _, err := s.Pages(ctx, projectID); err != nil {
		return "", err
	}
	return s.cache.ThumbnailPath(projectID), nil
}

func (s *service) Remove(projectID string) error {
	return s.cache.Remove(projectID)
}
