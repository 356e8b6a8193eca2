package editor

import (
	"github.com/RahulSGosavi/KABS-Annotation-AI/internal/annotation"
)

// DefaultHistoryDepth bounds the undo stack. The oldest snapshot is dropped
// once the limit is reached.
const DefaultHistoryDepth = 100

// history is a bounded undo/redo stack of whole-document snapshots. Every
// committed edit pushes the pre-edit state; a fresh commit invalidates the
// redo stack.
type history struct {
	undo  []*annotation.PageAnnotations
	redo  []*annotation.PageAnnotations
	depth int
}

func newHistory(depth int) *history {
	if depth <= 0 {
		depth = DefaultHistoryDepth
	}
	return &history{depth: depth}
}

// Push records the pre-edit snapshot and clears redo.
func (h *history) Push(snapshot *annotation.PageAnnotations) {
	h.undo = append(h.undo, snapshot)
	if len(h.undo) > h.depth {
		h.undo = h.undo[1:]
	}
	h.redo = h.redo[:0]
}

// Undo exchanges current for the most recent snapshot. Returns nil when the
// stack is empty.
func (h *history) Undo(current *annotation.PageAnnotations) *annotation.PageAnnotations {
	if len(h.undo) == 0 {
		return nil
	}
	last := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, current)
	return last
}

// Redo exchanges current for the most recently undone snapshot.
func (h *history) Redo(current *annotation.PageAnnotations) *annotation.PageAnnotations {
	if len(h.redo) == 0 {
		return nil
	}
	last := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, current)
	return last
}

func (h *history) CanUndo() bool { return len(h.undo) > 0 }
func (h *history) CanRedo() bool { return len(h.redo) > 0 }
