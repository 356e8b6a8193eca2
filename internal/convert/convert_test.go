package convert

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeRenderer emits solid-color pages without touching MuPDF.
type fakeRenderer struct {
	pages int
	calls atomic.Int64
	err   error
}

func (f *fakeRenderer) Render(path string, dpi float64, fn func(*PageImage) error) error {
	f.calls.Add(1)
	if f.err != nil {
		return f.err
	}
	for i := 1; i <= f.pages; i++ {
		img := image.NewRGBA(image.Rect(0, 0, 640, 480))
		for y := 0; y < 480; y++ {
			for x := 0; x < 640; x++ {
				img.Set(x, y, color.White)
			}
		}
		if err := fn(&PageImage{Page: i, Image: img, WidthPt: 612, HeightPt: 792}); err != nil {
			return err
		}
	}
	return nil
}

func newTestService(t *testing.T, r Renderer) Service {
	t.Helper()
	cfg := DefaultConfig()
	cfg.CacheDir = t.TempDir()
	svc, err := NewService(cfg, r, zap.NewNop())
	require.NoError(t, err)
	return svc
}

func TestConvert_RendersAllPages(t *testing.T) {
	r := &fakeRenderer{pages: 3}
	svc := newTestService(t, r)
	ctx := context.Background()

	meta, err := svc.Convert(ctx, "proj-1", "plan.pdf")
	require.NoError(t, err)
	require.Len(t, meta, 3)
	assert.Equal(t, 1, meta[0].Page)
	assert.Equal(t, 640, meta[0].WidthPx)
	assert.Equal(t, 480, meta[0].HeightPx)
	assert.Equal(t, float64(612), meta[0].WidthPt)
	assert.Equal(t, float64(150), meta[0].DPI)

	for p := 1; p <= 3; p++ {
		path, err := svc.PagePath(ctx, "proj-1", p)
		require.NoError(t, err)
		_, err = os.Stat(path)
		require.NoError(t, err)
	}
}

func TestConvert_WritesThumbnail(t *testing.T) {
	svc := newTestService(t, &fakeRenderer{pages: 1})
	ctx := context.Background()

	_, err := svc.Convert(ctx, "proj-1", "plan.pdf")
	require.NoError(t, err)

	path, err := svc.ThumbnailPath(ctx, "proj-1")
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestConvert_SecondCallUsesCache(t *testing.T) {
	r := &fakeRenderer{pages: 2}
	svc := newTestService(t, r)
	ctx := context.Background()

	_, err := svc.Convert(ctx, "proj-1", "plan.pdf")
	require.NoError(t, err)
	meta, err := svc.Convert(ctx, "proj-1", "plan.pdf")
	require.NoError(t, err)

	assert.Len(t, meta, 2)
	assert.Equal(t, int64(1), r.calls.Load())
}

func TestConvert_FailureLeavesNoCache(t *testing.T) {
	r := &fakeRenderer{err: errors.New("render boom")}
	svc := newTestService(t, r)
	ctx := context.Background()

	_, err := svc.Convert(ctx, "proj-1", "plan.pdf")
	require.Error(t, err)

	_, err = svc.Pages(ctx, "proj-1")
	assert.ErrorIs(t, err, ErrNotConverted)
}

func TestPages_NotConverted(t *testing.T) {
	svc := newTestService(t, &fakeRenderer{pages: 1})

	_, err := svc.Pages(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotConverted)
}

func TestPagePath_OutOfRange(t *testing.T) {
	svc := newTestService(t, &fakeRenderer{pages: 2})
	ctx := context.Background()

	_, err := svc.Convert(ctx, "proj-1", "plan.pdf")
	require.NoError(t, err)

	_, err = svc.PagePath(ctx, "proj-1", 0)
	assert.Error(t, err)
	_, err = svc.PagePath(ctx, "proj-1", 3)
	assert.Error(t, err)
}

func TestRemove(t *testing.T) {
	svc := newTestService(t, &fakeRenderer{pages: 1})
	ctx := context.Background()

	_, err := svc.Convert(ctx, "proj-1", "plan.pdf")
	require.NoError(t, err)

	require.NoError(t, svc.Remove("proj-1"))
	_, err = svc.Pages(ctx, "proj-1")
	assert.ErrorIs(t, err, ErrNotConverted)
}
