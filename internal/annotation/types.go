// Package annotation defines the vector shape and layer model persisted per
// project page, together with validation and geometry helpers. Documents
// serialize to a single JSON blob; the schema version is bumped on any
// incompatible change.
package annotation

import (
	"time"

	"github.com/google/uuid"

	"github.com/RahulSGosavi/KABS-Annotation-AI/internal/geometry"
)

// SchemaVersion is the current serialization version of PageAnnotations.
const SchemaVersion = 1

// Kind identifies a shape primitive.
type Kind string

const (
	KindRect        Kind = "rect"
	KindCircle      Kind = "circle"
	KindLine        Kind = "line"
	KindArrow       Kind = "arrow"
	KindFreehand    Kind = "freehand"
	KindText        Kind = "text"
	KindMeasurement Kind = "measurement"
	KindAngle       Kind = "angle"
)

// Kinds lists all valid shape kinds.
func Kinds() []Kind {
	return []Kind{
		KindRect, KindCircle, KindLine, KindArrow,
		KindFreehand, KindText, KindMeasurement, KindAngle,
	}
}

// Style holds the visual attributes of a shape.
type Style struct {
	// StrokeColor is a #rgb or #rrggbb hex color.
	StrokeColor string `json:"stroke_color"`

	// StrokeWidth is the stroke width in document points.
	StrokeWidth float64 `json:"stroke_width"`

	// FillColor is an optional fill; empty means no fill.
	FillColor string `json:"fill_color,omitempty"`

	// Opacity is in [0, 1].
	Opacity float64 `json:"opacity"`

	// FontSize applies to text shapes and measurement labels.
	FontSize float64 `json:"font_size,omitempty"`

	// Dashed draws the stroke as a dashed line.
	Dashed bool `json:"dashed,omitempty"`
}

// DefaultStyle returns the style applied to newly constructed shapes.
func DefaultStyle() Style {
	return Style{
		StrokeColor: "#e53935",
		StrokeWidth: 2,
		Opacity:     1,
		FontSize:    14,
	}
}

// Shape is a single vector primitive. Geometry is stored in document (PDF
// point) space. The meaning of Points depends on Kind:
//
//	rect, circle:  two opposite corners of the bounding box
//	line, arrow:   start and end
//	measurement:   start and end of the measured span
//	freehand:      sampled path, at least two points
//	text:          single anchor point
//	angle:         arm endpoint, vertex, arm endpoint
type Shape struct {
	ID        string           `json:"id"`
	Kind      Kind             `json:"kind"`
	Points    []geometry.Point `json:"points"`
	Style     Style            `json:"style"`
	Text      string           `json:"text,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// NewShape creates a shape with a fresh ID and timestamps.
func NewShape(kind Kind, pts []geometry.Point, style Style) *Shape {
	now := time.Now().UTC()
	return &Shape{
		ID:        uuid.New().String(),
		Kind:      kind,
		Points:    pts,
		Style:     style,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Bounds returns the axis-aligned bounding box of the shape.
func (s *Shape) Bounds() geometry.Rect {
	return geometry.BoundsOf(s.Points)
}

// Translate shifts every point of the shape by d and bumps UpdatedAt.
func (s *Shape) Translate(d geometry.Point) {
	for i := range s.Points {
		s.Points[i] = s.Points[i].Add(d)
	}
	s.UpdatedAt = time.Now().UTC()
}

// HitTest reports whether p lies on the shape within tol. Stroked outlines
// (line, arrow, freehand, measurement, angle arms) test against segments;
// filled primitives test containment of the padded bounds.
func (s *Shape) HitTest(p geometry.Point, tol float64) bool {
	switch s.Kind {
	case KindLine, KindArrow, KindMeasurement:
		if len(s.Points) < 2 {
			return false
		}
		return geometry.DistanceToSegment(p, s.Points[0], s.Points[1]) <= tol
	case KindFreehand:
		for i := 1; i < len(s.Points); i++ {
			if geometry.DistanceToSegment(p, s.Points[i-1], s.Points[i]) <= tol {
				return true
			}
		}
		return false
	case KindAngle:
		if len(s.Points) != 3 {
			return false
		}
		return geometry.DistanceToSegment(p, s.Points[1], s.Points[0]) <= tol ||
			geometry.DistanceToSegment(p, s.Points[1], s.Points[2]) <= tol
	case KindCircle:
		if len(s.Points) != 2 {
			return false
		}
		r := geometry.RectFromCorners(s.Points[0], s.Points[1])
		c := geometry.Circle{Center: r.Center(), Radius: maxf(r.Width(), r.Height()) / 2}
		return geometry.Distance(c.Center, p) <= c.Radius+tol
	case KindText:
		if len(s.Points) != 1 {
			return false
		}
		return geometry.Distance(s.Points[0], p) <= tol+s.Style.FontSize
	default: // rect
		return s.Bounds().Inset(-tol).Contains(p)
	}
}

// AngleDegrees returns the interior angle of an angle shape, 0 for others.
func (s *Shape) AngleDegrees() float64 {
	if s.Kind != KindAngle || len(s.Points) != 3 {
		return 0
	}
	return geometry.Angle(s.Points[1], s.Points[0], s.Points[2])
}

// Scale converts document points to real-world units for measurements.
type Scale struct {
	// UnitsPerPoint converts a document-point distance to real units.
	UnitsPerPoint float64 `json:"units_per_point"`

	// Unit is the display unit name, e.g. "m" or "ft".
	Unit string `json:"unit"`
}

// Calibrated reports whether a usable scale is set.
func (s Scale) Calibrated() bool { return s.UnitsPerPoint > 0 }

// MeasuredLength returns the real-world length of a measurement or freehand
// shape under scale. Uncalibrated pages fall back to raw document points.
func (s *Shape) MeasuredLength(scale Scale) float64 {
	var pts float64
	switch s.Kind {
	case KindMeasurement, KindLine, KindArrow:
		if len(s.Points) >= 2 {
			pts = geometry.Distance(s.Points[0], s.Points[1])
		}
	case KindFreehand:
		pts = geometry.PathLength(s.Points)
	default:
		return 0
	}
	if scale.Calibrated() {
		return pts * scale.UnitsPerPoint
	}
	return pts
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
