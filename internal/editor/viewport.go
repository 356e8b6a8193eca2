package editor

import (
	"github.com/RahulSGosavi/KABS-Annotation-AI/internal/geometry"
)

// Zoom clamp range. Matches the limits the frontend exposes.
const (
	MinZoom = 0.1
	MaxZoom = 16.0
)

// Viewport maps between screen space (canvas pixels) and document space
// (PDF points). Pointer events arrive in screen space; everything stored on
// shapes is document space.
//
//	document = (screen - Offset) / Zoom
//	screen   = document * Zoom + Offset
type Viewport struct {
	Zoom   float64
	Offset geometry.Point
}

// NewViewport returns a viewport at 1:1 with no pan.
func NewViewport() Viewport {
	return Viewport{Zoom: 1}
}

// ToDocument converts a screen point to document space.
func (v Viewport) ToDocument(screen geometry.Point) geometry.Point {
	return screen.Sub(v.Offset).Scale(1 / v.Zoom)
}

// ToScreen converts a document point to screen space.
func (v Viewport) ToScreen(doc geometry.Point) geometry.Point {
	return doc.Scale(v.Zoom).Add(v.Offset)
}

// clampZoom bounds z to [MinZoom, MaxZoom].
func clampZoom(z float64) float64 {
	if z < MinZoom {
		return MinZoom
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}

// ZoomAt returns v zoomed to z while keeping the screen point anchor over
// the same document point. This is the scroll-wheel zoom behavior.
func (v Viewport) ZoomAt(z float64, anchor geometry.Point) Viewport {
	z = clampZoom(z)
	doc := v.ToDocument(anchor)
	out := Viewport{Zoom: z}
	// Solve for the offset that maps doc back to anchor.
	out.Offset = anchor.Sub(doc.Scale(z))
	return out
}

// Panned returns v shifted by a screen-space delta.
func (v Viewport) Panned(delta geometry.Point) Viewport {
	v.Offset = v.Offset.Add(delta)
	return v
}
