package editor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RahulSGosavi/KABS-Annotation-AI/internal/annotation"
	"github.com/RahulSGosavi/KABS-Annotation-AI/internal/geometry"
)

func newTestEditor(opts ...Option) *Editor {
	return New(annotation.NewPageAnnotations("proj-1", 1), opts...)
}

func pt(x, y float64) geometry.Point { return geometry.Point{X: x, Y: y} }

// drag simulates press, one move, release.
func drag(e *Editor, from, to geometry.Point) {
	e.PointerDown(from)
	e.PointerMove(to)
	e.PointerUp(to)
}

func TestDrawRect(t *testing.T) {
	e := newTestEditor()
	e.SetTool(ToolRect)
	drag(e, pt(10, 10), pt(50, 40))

	doc := e.Document()
	require.Equal(t, 1, doc.ShapeCount())

	layer := doc.Layer(annotation.LayerAnnotations)
	require.Len(t, layer.Shapes, 1)
	s := layer.Shapes[0]
	assert.Equal(t, annotation.KindRect, s.Kind)
	assert.Equal(t, pt(10, 10), s.Points[0])
	assert.Equal(t, pt(50, 40), s.Points[1])
	assert.Equal(t, s.ID, e.Selection())
	assert.True(t, e.Dirty())
}

func TestZeroSizeDraftDiscarded(t *testing.T) {
	e := newTestEditor()
	e.SetTool(ToolLine)
	e.PointerDown(pt(10, 10))
	e.PointerUp(pt(10, 10))

	assert.Equal(t, 0, e.Document().ShapeCount())
	assert.False(t, e.Dirty())
}

func TestMeasurementGoesToMeasurementLayer(t *testing.T) {
	e := newTestEditor()
	e.SetTool(ToolMeasure)
	drag(e, pt(0, 0), pt(100, 0))

	doc := e.Document()
	assert.Len(t, doc.Layer(annotation.LayerMeasurements).Shapes, 1)
	assert.Empty(t, doc.Layer(annotation.LayerAnnotations).Shapes)
}

func TestFreehandSampling(t *testing.T) {
	e := newTestEditor()
	e.SetTool(ToolFreehand)
	e.PointerDown(pt(0, 0))
	e.PointerMove(pt(0.5, 0)) // below the min sample distance, dropped
	e.PointerMove(pt(5, 0))
	e.PointerMove(pt(10, 0))
	e.PointerUp(pt(10, 0))

	doc := e.Document()
	layer := doc.Layer(annotation.LayerAnnotations)
	require.Len(t, layer.Shapes, 1)
	assert.Equal(t, annotation.KindFreehand, layer.Shapes[0].Kind)
	assert.Equal(t, []geometry.Point{pt(0, 0), pt(5, 0), pt(10, 0)}, layer.Shapes[0].Points)
}

func TestAngleThreeClicks(t *testing.T) {
	e := newTestEditor()
	e.SetTool(ToolAngle)
	// arm, vertex, arm
	for _, p := range []geometry.Point{pt(10, 0), pt(0, 0), pt(0, 10)} {
		e.PointerDown(p)
		e.PointerUp(p)
	}

	doc := e.Document()
	layer := doc.Layer(annotation.LayerMeasurements)
	require.Len(t, layer.Shapes, 1)
	assert.InDelta(t, 90, layer.Shapes[0].AngleDegrees(), 1e-9)
}

func TestSetToolCancelsConstruction(t *testing.T) {
	e := newTestEditor()
	e.SetTool(ToolAngle)
	e.PointerDown(pt(10, 0))
	e.PointerUp(pt(10, 0))
	e.SetTool(ToolRect) // drops the partial angle

	e.SetTool(ToolAngle)
	for _, p := range []geometry.Point{pt(1, 0), pt(0, 0), pt(0, 1)} {
		e.PointerDown(p)
		e.PointerUp(p)
	}
	assert.Equal(t, 1, e.Document().ShapeCount())
}

func TestTextCommit(t *testing.T) {
	e := newTestEditor()
	e.SetTool(ToolText)
	e.PointerDown(pt(30, 30))
	e.PointerUp(pt(30, 30))
	e.CommitText("Kitchen")

	doc := e.Document()
	layer := doc.Layer(annotation.LayerAnnotations)
	require.Len(t, layer.Shapes, 1)
	assert.Equal(t, "Kitchen", layer.Shapes[0].Text)
	assert.Equal(t, pt(30, 30), layer.Shapes[0].Points[0])
}

func TestTextEmptyCancels(t *testing.T) {
	e := newTestEditor()
	e.SetTool(ToolText)
	e.PointerDown(pt(30, 30))
	e.CommitText("")
	assert.Equal(t, 0, e.Document().ShapeCount())
}

func TestSelectAndMove(t *testing.T) {
	e := newTestEditor()
	e.SetTool(ToolRect)
	drag(e, pt(10, 10), pt(20, 20))

	e.SetTool(ToolSelect)
	drag(e, pt(15, 15), pt(35, 15)) // grab inside, move +20 on x

	doc := e.Document()
	s := doc.Layer(annotation.LayerAnnotations).Shapes[0]
	assert.Equal(t, pt(30, 10), s.Points[0])
	assert.Equal(t, pt(40, 20), s.Points[1])
}

func TestSelectEmptyClearsSelection(t *testing.T) {
	e := newTestEditor()
	e.SetTool(ToolRect)
	drag(e, pt(10, 10), pt(20, 20))
	require.NotEmpty(t, e.Selection())

	e.SetTool(ToolSelect)
	e.PointerDown(pt(500, 500))
	e.PointerUp(pt(500, 500))
	assert.Empty(t, e.Selection())
}

func TestDeleteSelection(t *testing.T) {
	e := newTestEditor()
	e.SetTool(ToolRect)
	drag(e, pt(10, 10), pt(20, 20))

	require.True(t, e.DeleteSelection())
	assert.Equal(t, 0, e.Document().ShapeCount())
	assert.False(t, e.DeleteSelection())
}

func TestUndoRedo(t *testing.T) {
	e := newTestEditor()
	e.SetTool(ToolRect)
	drag(e, pt(0, 0), pt(10, 10))
	drag(e, pt(20, 20), pt(30, 30))
	require.Equal(t, 2, e.Document().ShapeCount())

	require.True(t, e.Undo())
	assert.Equal(t, 1, e.Document().ShapeCount())

	require.True(t, e.Redo())
	assert.Equal(t, 2, e.Document().ShapeCount())

	e.Undo()
	e.Undo()
	assert.Equal(t, 0, e.Document().ShapeCount())
	assert.False(t, e.Undo())
}

func TestNewCommitClearsRedo(t *testing.T) {
	e := newTestEditor()
	e.SetTool(ToolRect)
	drag(e, pt(0, 0), pt(10, 10))
	require.True(t, e.Undo())
	require.True(t, e.CanRedo())

	drag(e, pt(50, 50), pt(60, 60))
	assert.False(t, e.CanRedo())
}

func TestHistoryDepthBounded(t *testing.T) {
	e := newTestEditor(WithHistoryDepth(3))
	e.SetTool(ToolRect)
	for i := 0; i < 5; i++ {
		off := float64(i * 20)
		drag(e, pt(off, 0), pt(off+10, 10))
	}

	undos := 0
	for e.Undo() {
		undos++
	}
	assert.Equal(t, 3, undos)
	// 5 commits with depth 3: the two oldest states are unreachable.
	assert.Equal(t, 2, e.Document().ShapeCount())
}

func TestMoveIsOneUndoStep(t *testing.T) {
	e := newTestEditor()
	e.SetTool(ToolRect)
	drag(e, pt(10, 10), pt(20, 20))

	e.SetTool(ToolSelect)
	e.PointerDown(pt(15, 15))
	e.PointerMove(pt(25, 15))
	e.PointerMove(pt(35, 15))
	e.PointerMove(pt(45, 15))
	e.PointerUp(pt(45, 15))

	require.True(t, e.Undo())
	s := e.Document().Layer(annotation.LayerAnnotations).Shapes[0]
	assert.Equal(t, pt(10, 10), s.Points[0])
}

func TestViewportTransform(t *testing.T) {
	v := Viewport{Zoom: 2, Offset: pt(100, 50)}
	doc := v.ToDocument(pt(120, 70))
	assert.Equal(t, pt(10, 10), doc)
	assert.Equal(t, pt(120, 70), v.ToScreen(doc))
}

func TestZoomAtKeepsAnchor(t *testing.T) {
	v := NewViewport()
	anchor := pt(200, 150)
	docBefore := v.ToDocument(anchor)

	z := v.ZoomAt(3, anchor)
	assert.Equal(t, 3.0, z.Zoom)
	docAfter := z.ToDocument(anchor)
	assert.InDelta(t, docBefore.X, docAfter.X, 1e-9)
	assert.InDelta(t, docBefore.Y, docAfter.Y, 1e-9)
}

func TestZoomClamped(t *testing.T) {
	v := NewViewport()
	assert.Equal(t, MaxZoom, v.ZoomAt(100, pt(0, 0)).Zoom)
	assert.Equal(t, MinZoom, v.ZoomAt(0.0001, pt(0, 0)).Zoom)
}

func TestDrawingUnderZoomStoresDocumentSpace(t *testing.T) {
	e := newTestEditor()
	e.ZoomAt(2, pt(0, 0))
	e.SetTool(ToolRect)
	drag(e, pt(20, 20), pt(60, 60)) // screen space

	s := e.Document().Layer(annotation.LayerAnnotations).Shapes[0]
	assert.Equal(t, pt(10, 10), s.Points[0])
	assert.Equal(t, pt(30, 30), s.Points[1])
}

func TestPanTool(t *testing.T) {
	e := newTestEditor()
	e.SetTool(ToolPan)
	e.PointerDown(pt(100, 100))
	e.PointerMove(pt(130, 120))
	e.PointerUp(pt(130, 120))

	v := e.Viewport()
	assert.Equal(t, pt(30, 20), v.Offset)
	assert.Equal(t, 0, e.Document().ShapeCount())
}

func TestCalibrate(t *testing.T) {
	e := newTestEditor()
	e.SetTool(ToolMeasure)
	drag(e, pt(0, 0), pt(100, 0))
	id := e.Selection()
	require.NotEmpty(t, id)

	// 100 points correspond to 5 meters.
	require.NoError(t, e.Calibrate(id, 5, "m"))

	doc := e.Document()
	assert.InDelta(t, 0.05, doc.Scale.UnitsPerPoint, 1e-9)
	assert.Equal(t, "m", doc.Scale.Unit)

	s := doc.Layer(annotation.LayerMeasurements).Shapes[0]
	assert.InDelta(t, 5, s.MeasuredLength(doc.Scale), 1e-9)
}

func TestCalibrateErrors(t *testing.T) {
	e := newTestEditor()
	assert.Error(t, e.Calibrate("missing", 5, "m"))

	e.SetTool(ToolRect)
	drag(e, pt(0, 0), pt(10, 10))
	assert.Error(t, e.Calibrate(e.Selection(), 5, "m"))
	assert.Error(t, e.Calibrate(e.Selection(), 0, "m"))
}

func TestSetStyleUpdatesSelection(t *testing.T) {
	e := newTestEditor()
	e.SetTool(ToolRect)
	drag(e, pt(0, 0), pt(10, 10))

	st := annotation.DefaultStyle()
	st.StrokeColor = "#00ff00"
	require.NoError(t, e.SetStyle(st))

	s := e.Document().Layer(annotation.LayerAnnotations).Shapes[0]
	assert.Equal(t, "#00ff00", s.Style.StrokeColor)

	// Style edit is undoable.
	require.True(t, e.Undo())
	s = e.Document().Layer(annotation.LayerAnnotations).Shapes[0]
	assert.NotEqual(t, "#00ff00", s.Style.StrokeColor)
}

func TestSetStyleRejectsInvalid(t *testing.T) {
	e := newTestEditor()
	bad := annotation.DefaultStyle()
	bad.Opacity = 2
	assert.Error(t, e.SetStyle(bad))
}

func TestClear(t *testing.T) {
	e := newTestEditor()
	e.SetTool(ToolRect)
	drag(e, pt(0, 0), pt(10, 10))
	e.SetTool(ToolMeasure)
	drag(e, pt(0, 0), pt(50, 0))

	e.Clear()
	assert.Equal(t, 0, e.Document().ShapeCount())

	require.True(t, e.Undo())
	assert.Equal(t, 2, e.Document().ShapeCount())
}

func TestAutosaveDebounce(t *testing.T) {
	var mu sync.Mutex
	var saves []*annotation.PageAnnotations

	e := newTestEditor(
		WithAutosaveDelay(30*time.Millisecond),
		WithSaveFunc(func(doc *annotation.PageAnnotations) error {
			mu.Lock()
			defer mu.Unlock()
			saves = append(saves, doc)
			return nil
		}),
	)
	e.SetTool(ToolRect)
	drag(e, pt(0, 0), pt(10, 10))
	drag(e, pt(20, 20), pt(30, 30))

	// Both edits land within one debounce window: expect a single save.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(saves) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, 2, saves[0].ShapeCount())
	mu.Unlock()
	assert.False(t, e.Dirty())
}

func TestFlushImmediate(t *testing.T) {
	saved := 0
	e := newTestEditor(
		WithAutosaveDelay(time.Hour),
		WithSaveFunc(func(*annotation.PageAnnotations) error {
			saved++
			return nil
		}),
	)
	e.SetTool(ToolRect)
	drag(e, pt(0, 0), pt(10, 10))

	require.NoError(t, e.Flush())
	assert.Equal(t, 1, saved)
	assert.False(t, e.Dirty())

	// Nothing dirty: flush is a no-op.
	require.NoError(t, e.Flush())
	assert.Equal(t, 1, saved)
}

func TestFlushErrorKeepsDirty(t *testing.T) {
	fail := true
	e := newTestEditor(
		WithAutosaveDelay(time.Hour),
		WithSaveFunc(func(*annotation.PageAnnotations) error {
			if fail {
				return assert.AnError
			}
			return nil
		}),
	)
	e.SetTool(ToolRect)
	drag(e, pt(0, 0), pt(10, 10))

	require.Error(t, e.Flush())
	assert.True(t, e.Dirty())

	fail = false
	require.NoError(t, e.Flush())
	assert.False(t, e.Dirty())
}

func TestCloseFlushesAndStops(t *testing.T) {
	saved := 0
	e := newTestEditor(
		WithAutosaveDelay(time.Hour),
		WithSaveFunc(func(*annotation.PageAnnotations) error {
			saved++
			return nil
		}),
	)
	e.SetTool(ToolRect)
	drag(e, pt(0, 0), pt(10, 10))

	require.NoError(t, e.Close())
	assert.Equal(t, 1, saved)
	assert.Equal(t, ErrClosed, e.Flush())
}

func TestEditsAfterCloseRejected(t *testing.T) {
	e := newTestEditor(WithSaveFunc(func(*annotation.PageAnnotations) error { return nil }))
	e.SetTool(ToolMeasure)
	drag(e, pt(0, 0), pt(100, 0))
	measureID := e.Selection()
	e.SetTool(ToolText)
	e.PointerDown(pt(5, 5))
	e.CommitText("note")
	textID := e.Selection()

	require.NoError(t, e.Close())
	require.False(t, e.Dirty())
	before := e.Document()

	assert.False(t, e.SetText(textID, "changed"))
	assert.Equal(t, ErrClosed, e.Calibrate(measureID, 2.5, "m"))
	assert.Equal(t, ErrClosed, e.SetStyle(annotation.DefaultStyle()))
	assert.False(t, e.Undo())
	assert.False(t, e.Redo())
	assert.False(t, e.DeleteSelection())
	e.Clear()

	// Nothing above may dirty the document again; there is no timer left
	// to ever flush it.
	assert.False(t, e.Dirty())
	assert.Equal(t, before, e.Document())
	assert.Equal(t, "note", textOf(t, e, textID))
}

func TestSetTextUndoable(t *testing.T) {
	e := newTestEditor()
	e.SetTool(ToolText)
	e.PointerDown(pt(5, 5))
	e.CommitText("v1")
	id := e.Selection()

	require.True(t, e.SetText(id, "v2"))
	assert.Equal(t, "v2", textOf(t, e, id))

	require.True(t, e.Undo())
	assert.Equal(t, "v1", textOf(t, e, id))
}

func textOf(t *testing.T, e *Editor, id string) string {
	t.Helper()
	_, s := e.Document().FindShape(id)
	require.NotNil(t, s)
	return s.Text
}

func TestLockedLayerNotSelectable(t *testing.T) {
	doc := annotation.NewPageAnnotations("proj-1", 1)
	s := annotation.NewShape(annotation.KindRect,
		[]geometry.Point{pt(0, 0), pt(10, 10)}, annotation.DefaultStyle())
	pdf := doc.Layer(annotation.LayerPDF)
	pdf.Shapes = append(pdf.Shapes, s)

	e := New(doc)
	e.SetTool(ToolSelect)
	e.PointerDown(pt(5, 5))
	e.PointerUp(pt(5, 5))
	assert.Empty(t, e.Selection())
}
