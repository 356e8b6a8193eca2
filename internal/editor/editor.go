// Package editor implements the annotation editing surface: tool modes,
// shape construction from pointer events, selection, a bounded undo/redo
// history, the screen/document coordinate transform, and debounced
// autosave. The package is UI-toolkit agnostic; a frontend feeds it pointer
// events in screen space and renders the document it holds.
package editor

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/RahulSGosavi/KABS-Annotation-AI/internal/annotation"
	"github.com/RahulSGosavi/KABS-Annotation-AI/internal/geometry"
)

// DefaultAutosaveDelay is the debounce window after the last edit before
// the save callback fires.
const DefaultAutosaveDelay = 2 * time.Second

// defaultHitTolerance is the selection hit-test tolerance in screen pixels.
// It is divided by the zoom factor so picking feels the same at any zoom.
const defaultHitTolerance = 6.0

// freehandMinDistance filters freehand samples closer than this many
// document points to the previous sample.
const freehandMinDistance = 2.0

// ErrClosed is returned from operations on a closed editor.
var ErrClosed = errors.New("editor: closed")

// SaveFunc persists a document snapshot. It is called off the event path
// (autosave timer or Flush) and must not call back into the editor.
type SaveFunc func(doc *annotation.PageAnnotations) error

// Editor is the state machine behind one open page. It is safe for use from
// a single event goroutine plus the autosave timer.
type Editor struct {
	mu sync.Mutex

	doc      *annotation.PageAnnotations
	tool     Tool
	style    annotation.Style
	viewport Viewport
	history  *history

	selection string // selected shape ID, empty if none

	// In-progress gesture state.
	draft      *draft
	anglePts   []geometry.Point
	textAnchor *geometry.Point
	moveStart  *annotation.PageAnnotations // pre-move snapshot while dragging a selection
	lastPoint  geometry.Point              // last pointer position in document space
	panning    bool
	moved      bool

	// Autosave.
	save      SaveFunc
	delay     time.Duration
	saveTimer *time.Timer
	dirty     bool
	closed    bool

	logger *zap.Logger
}

// Option configures an Editor.
type Option func(*Editor)

// WithSaveFunc sets the autosave callback. Without one the editor only
// tracks the dirty flag.
func WithSaveFunc(fn SaveFunc) Option { return func(e *Editor) { e.save = fn } }

// WithAutosaveDelay overrides the debounce window.
func WithAutosaveDelay(d time.Duration) Option { return func(e *Editor) { e.delay = d } }

// WithHistoryDepth overrides the undo stack bound.
func WithHistoryDepth(n int) Option { return func(e *Editor) { e.history = newHistory(n) } }

// WithStyle sets the style applied to new shapes.
func WithStyle(s annotation.Style) Option { return func(e *Editor) { e.style = s } }

// WithLogger sets the logger. Defaults to a nop logger.
func WithLogger(l *zap.Logger) Option { return func(e *Editor) { e.logger = l } }

// New creates an editor over doc. The editor takes ownership of doc.
func New(doc *annotation.PageAnnotations, opts ...Option) *Editor {
	e := &Editor{
		doc:      doc,
		tool:     ToolSelect,
		style:    annotation.DefaultStyle(),
		viewport: NewViewport(),
		history:  newHistory(DefaultHistoryDepth),
		delay:    DefaultAutosaveDelay,
		logger:   zap.NewNop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Document returns a deep copy of the current document.
func (e *Editor) Document() *annotation.PageAnnotations {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc.Clone()
}

// Tool returns the active tool.
func (e *Editor) Tool() Tool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tool
}

// SetTool switches the active tool and cancels any in-progress gesture.
func (e *Editor) SetTool(t Tool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !t.Valid() {
		e.logger.Warn("ignoring unknown tool", zap.String("tool", string(t)))
		return
	}
	e.cancelGestureLocked()
	e.tool = t
}

// SetStyle changes the style for newly constructed shapes. When a shape is
// selected its style is updated too, as one undoable edit.
func (e *Editor) SetStyle(s annotation.Style) error {
	if err := s.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.style = s
	if e.selection != "" {
		if _, shape := e.doc.FindShape(e.selection); shape != nil {
			e.commitLocked(func() {
				shape.Style = s
				shape.UpdatedAt = time.Now().UTC()
			})
		}
	}
	return nil
}

// Selection returns the selected shape ID, or "".
func (e *Editor) Selection() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selection
}

// Viewport returns the current viewport.
func (e *Editor) Viewport() Viewport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewport
}

// ZoomAt zooms about a screen-space anchor point.
func (e *Editor) ZoomAt(zoom float64, anchor geometry.Point) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.viewport = e.viewport.ZoomAt(zoom, anchor)
}

// CanUndo reports whether an undo step exists.
func (e *Editor) CanUndo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.CanUndo()
}

// CanRedo reports whether a redo step exists.
func (e *Editor) CanRedo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.CanRedo()
}

// Undo restores the previous document snapshot.
func (e *Editor) Undo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	prev := e.history.Undo(e.doc)
	if prev == nil {
		return false
	}
	e.doc = prev
	e.selection = ""
	e.markDirtyLocked()
	return true
}

// Redo reapplies the most recently undone edit.
func (e *Editor) Redo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	next := e.history.Redo(e.doc)
	if next == nil {
		return false
	}
	e.doc = next
	e.selection = ""
	e.markDirtyLocked()
	return true
}

// DeleteSelection removes the selected shape.
func (e *Editor) DeleteSelection() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.selection == "" {
		return false
	}
	id := e.selection
	removed := false
	e.commitLocked(func() {
		removed = e.doc.RemoveShape(id)
	})
	e.selection = ""
	return removed
}

// Clear removes every shape from the unlocked layers as one undoable edit.
func (e *Editor) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.commitLocked(func() {
		for _, l := range e.doc.Layers {
			if !l.Locked {
				l.Shapes = nil
			}
		}
	})
	e.selection = ""
}

// Calibrate sets the page scale from a committed measurement shape and its
// known real-world length. Subsequent measurement labels use the scale.
func (e *Editor) Calibrate(shapeID string, realLength float64, unit string) error {
	if realLength <= 0 {
		return errors.New("editor: real length must be > 0")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	_, shape := e.doc.FindShape(shapeID)
	if shape == nil {
		return errors.New("editor: shape not found")
	}
	if shape.Kind != annotation.KindMeasurement || len(shape.Points) < 2 {
		return errors.New("editor: calibration needs a measurement shape")
	}
	span := geometry.Distance(shape.Points[0], shape.Points[1])
	if span == 0 {
		return errors.New("editor: calibration span is zero")
	}
	e.commitLocked(func() {
		e.doc.Scale = annotation.Scale{UnitsPerPoint: realLength / span, Unit: unit}
	})
	return nil
}

// Dirty reports whether unsaved edits exist.
func (e *Editor) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}

// Flush saves immediately if the document is dirty. On save error the
// document stays dirty and the error is returned.
func (e *Editor) Flush() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if !e.dirty || e.save == nil {
		e.mu.Unlock()
		return nil
	}
	if e.saveTimer != nil {
		e.saveTimer.Stop()
		e.saveTimer = nil
	}
	snapshot := e.doc.Clone()
	e.dirty = false
	save := e.save
	e.mu.Unlock()

	if err := save(snapshot); err != nil {
		e.mu.Lock()
		e.dirty = true
		e.scheduleSaveLocked()
		e.mu.Unlock()
		e.logger.Warn("autosave failed", zap.Error(err))
		return err
	}
	return nil
}

// Close flushes pending edits and stops the autosave timer.
func (e *Editor) Close() error {
	err := e.Flush()
	e.mu.Lock()
	e.closed = true
	if e.saveTimer != nil {
		e.saveTimer.Stop()
		e.saveTimer = nil
	}
	e.mu.Unlock()
	return err
}

// commitLocked snapshots the document, applies mutate, and marks the editor
// dirty. Callers hold e.mu.
func (e *Editor) commitLocked(mutate func()) {
	e.history.Push(e.doc.Clone())
	mutate()
	e.doc.UpdatedAt = time.Now().UTC()
	e.markDirtyLocked()
}

func (e *Editor) markDirtyLocked() {
	e.dirty = true
	e.scheduleSaveLocked()
}

// scheduleSaveLocked resets the debounce timer. Callers hold e.mu.
func (e *Editor) scheduleSaveLocked() {
	if e.save == nil || e.closed {
		return
	}
	if e.saveTimer != nil {
		e.saveTimer.Stop()
	}
	e.saveTimer = time.AfterFunc(e.delay, func() {
		_ = e.Flush() // error already logged; doc stays dirty for the next tick
	})
}

// cancelGestureLocked drops any in-progress construction or drag.
func (e *Editor) cancelGestureLocked() {
	e.draft = nil
	e.anglePts = nil
	e.textAnchor = nil
	e.moveStart = nil
	e.panning = false
	e.moved = false
}
