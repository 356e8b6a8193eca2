package annotation

import (
	"fmt"
	"regexp"
)

var hexColorRe = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// pointCount returns the required point count per kind. A count of -1 means
// "at least two" (freehand).
func pointCount(k Kind) (int, bool) {
	switch k {
	case KindRect, KindCircle, KindLine, KindArrow, KindMeasurement:
		return 2, true
	case KindText:
		return 1, true
	case KindAngle:
		return 3, true
	case KindFreehand:
		return -1, true
	}
	return 0, false
}

// Validate checks a shape for structural errors.
func (s *Shape) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("shape missing id")
	}
	want, ok := pointCount(s.Kind)
	if !ok {
		return fmt.Errorf("shape %s: unknown kind %q", s.ID, s.Kind)
	}
	if want == -1 {
		if len(s.Points) < 2 {
			return fmt.Errorf("shape %s: freehand needs at least 2 points, got %d", s.ID, len(s.Points))
		}
	} else if len(s.Points) != want {
		return fmt.Errorf("shape %s: kind %s needs %d points, got %d", s.ID, s.Kind, want, len(s.Points))
	}
	if s.Kind == KindText && s.Text == "" {
		return fmt.Errorf("shape %s: text shape has empty text", s.ID)
	}
	return s.Style.Validate()
}

// Validate checks style attributes.
func (st Style) Validate() error {
	if !hexColorRe.MatchString(st.StrokeColor) {
		return fmt.Errorf("invalid stroke color %q", st.StrokeColor)
	}
	if st.FillColor != "" && !hexColorRe.MatchString(st.FillColor) {
		return fmt.Errorf("invalid fill color %q", st.FillColor)
	}
	if st.StrokeWidth <= 0 {
		return fmt.Errorf("stroke width must be > 0, got %v", st.StrokeWidth)
	}
	if st.Opacity < 0 || st.Opacity > 1 {
		return fmt.Errorf("opacity must be in [0,1], got %v", st.Opacity)
	}
	return nil
}

// Validate checks the whole document: schema, page number, layer names
// unique, every shape valid.
func (d *PageAnnotations) Validate() error {
	if d.Schema != SchemaVersion {
		return fmt.Errorf("unsupported schema version %d (want %d)", d.Schema, SchemaVersion)
	}
	if d.Page < 1 {
		return fmt.Errorf("page must be >= 1, got %d", d.Page)
	}
	if d.Scale.UnitsPerPoint < 0 {
		return fmt.Errorf("scale cannot be negative")
	}
	seen := make(map[string]bool, len(d.Layers))
	for _, l := range d.Layers {
		if l.Name == "" {
			return fmt.Errorf("layer with empty name")
		}
		if seen[l.Name] {
			return fmt.Errorf("duplicate layer %q", l.Name)
		}
		seen[l.Name] = true
		for _, s := range l.Shapes {
			if err := s.Validate(); err != nil {
				return fmt.Errorf("layer %s: %w", l.Name, err)
			}
		}
	}
	return nil
}
