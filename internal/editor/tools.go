package editor

import (
	"time"

	"github.com/RahulSGosavi/KABS-Annotation-AI/internal/annotation"
	"github.com/RahulSGosavi/KABS-Annotation-AI/internal/geometry"
)

// Tool is the active editing mode.
type Tool string

const (
	ToolSelect   Tool = "select"
	ToolPan      Tool = "pan"
	ToolRect     Tool = "rect"
	ToolCircle   Tool = "circle"
	ToolLine     Tool = "line"
	ToolArrow    Tool = "arrow"
	ToolFreehand Tool = "freehand"
	ToolText     Tool = "text"
	ToolMeasure  Tool = "measurement"
	ToolAngle    Tool = "angle"
)

// Valid reports whether t is a known tool.
func (t Tool) Valid() bool {
	switch t {
	case ToolSelect, ToolPan, ToolRect, ToolCircle, ToolLine, ToolArrow,
		ToolFreehand, ToolText, ToolMeasure, ToolAngle:
		return true
	}
	return false
}

// shapeKind maps drawing tools to the shape kind they construct.
func (t Tool) shapeKind() (annotation.Kind, bool) {
	switch t {
	case ToolRect:
		return annotation.KindRect, true
	case ToolCircle:
		return annotation.KindCircle, true
	case ToolLine:
		return annotation.KindLine, true
	case ToolArrow:
		return annotation.KindArrow, true
	case ToolFreehand:
		return annotation.KindFreehand, true
	case ToolMeasure:
		return annotation.KindMeasurement, true
	}
	return "", false
}

// draft is an uncommitted shape under construction.
type draft struct {
	kind   annotation.Kind
	start  geometry.Point
	points []geometry.Point
}

// PointerDown handles a press at a screen-space position.
func (e *Editor) PointerDown(screen geometry.Point) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	doc := e.viewport.ToDocument(screen)
	e.lastPoint = doc
	e.moved = false

	switch e.tool {
	case ToolPan:
		e.panning = true

	case ToolSelect:
		id := e.hitTestLocked(doc)
		e.selection = id
		if id != "" {
			// Snapshot before the potential drag so the whole move is one
			// undo step.
			e.moveStart = e.doc.Clone()
		}

	case ToolText:
		anchor := doc
		e.textAnchor = &anchor

	case ToolAngle:
		e.anglePts = append(e.anglePts, doc)
		if len(e.anglePts) == 3 {
			pts := e.anglePts
			e.anglePts = nil
			e.commitShapeLocked(annotation.KindAngle, pts)
		}

	default:
		if kind, ok := e.tool.shapeKind(); ok {
			e.draft = &draft{kind: kind, start: doc, points: []geometry.Point{doc, doc}}
			if kind == annotation.KindFreehand {
				e.draft.points = []geometry.Point{doc}
			}
		}
	}
}

// PointerMove handles a drag to a screen-space position.
func (e *Editor) PointerMove(screen geometry.Point) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	doc := e.viewport.ToDocument(screen)

	switch {
	case e.panning:
		// Pan works on the screen-space delta so it tracks the cursor 1:1.
		delta := screen.Sub(e.viewport.ToScreen(e.lastPoint))
		e.viewport = e.viewport.Panned(delta)
		return // lastPoint stays anchored to the grab position

	case e.draft != nil:
		if e.draft.kind == annotation.KindFreehand {
			last := e.draft.points[len(e.draft.points)-1]
			if geometry.Distance(last, doc) >= freehandMinDistance {
				e.draft.points = append(e.draft.points, doc)
			}
		} else {
			e.draft.points[1] = doc
		}
		e.moved = true

	case e.tool == ToolSelect && e.selection != "" && e.moveStart != nil:
		if _, shape := e.doc.FindShape(e.selection); shape != nil {
			shape.Translate(doc.Sub(e.lastPoint))
			e.moved = true
		}
	}
	e.lastPoint = doc
}

// PointerUp handles a release at a screen-space position.
func (e *Editor) PointerUp(screen geometry.Point) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	doc := e.viewport.ToDocument(screen)

	switch {
	case e.panning:
		e.panning = false

	case e.draft != nil:
		d := e.draft
		e.draft = nil
		if d.kind != annotation.KindFreehand {
			d.points[1] = doc
		}
		if draftEmpty(d) {
			return // press==release produces nothing
		}
		e.commitShapeLocked(d.kind, d.points)

	case e.tool == ToolSelect && e.moveStart != nil:
		if e.moved {
			// Record the pre-move snapshot as one history entry.
			e.history.Push(e.moveStart)
			e.doc.UpdatedAt = time.Now().UTC()
			e.markDirtyLocked()
		}
		e.moveStart = nil
	}
	e.moved = false
}

// CommitText commits the pending text shape at the last text-tool press.
// Empty text cancels the pending shape.
func (e *Editor) CommitText(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.textAnchor == nil {
		return
	}
	anchor := *e.textAnchor
	e.textAnchor = nil
	if text == "" {
		return
	}
	e.commitLocked(func() {
		s := annotation.NewShape(annotation.KindText, []geometry.Point{anchor}, e.style)
		s.Text = text
		layer := e.doc.LayerFor(s.Kind)
		layer.Shapes = append(layer.Shapes, s)
		e.selection = s.ID
	})
}

// SetText replaces the text of an existing text shape as one undoable edit.
func (e *Editor) SetText(shapeID, text string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	_, shape := e.doc.FindShape(shapeID)
	if shape == nil || shape.Kind != annotation.KindText {
		return false
	}
	e.commitLocked(func() {
		shape.Text = text
		shape.UpdatedAt = time.Now().UTC()
	})
	return true
}

// commitShapeLocked adds a constructed shape to its layer and selects it.
func (e *Editor) commitShapeLocked(kind annotation.Kind, pts []geometry.Point) {
	e.commitLocked(func() {
		s := annotation.NewShape(kind, pts, e.style)
		layer := e.doc.LayerFor(kind)
		layer.Shapes = append(layer.Shapes, s)
		e.selection = s.ID
	})
}

// hitTestLocked finds the topmost shape under p across unlocked visible
// layers. Layers and shapes are scanned in reverse so later draws win.
func (e *Editor) hitTestLocked(p geometry.Point) string {
	tol := defaultHitTolerance / e.viewport.Zoom
	for i := len(e.doc.Layers) - 1; i >= 0; i-- {
		l := e.doc.Layers[i]
		if l.Locked || !l.Visible {
			continue
		}
		for j := len(l.Shapes) - 1; j >= 0; j-- {
			if l.Shapes[j].HitTest(p, tol) {
				return l.Shapes[j].ID
			}
		}
	}
	return ""
}

// draftEmpty reports whether a draft collapsed to a point.
func draftEmpty(d *draft) bool {
	if d.kind == annotation.KindFreehand {
		return len(d.points) < 2
	}
	return d.points[0] == d.points[1]
}
