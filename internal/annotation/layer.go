package annotation

import (
	"time"

	"github.com/RahulSGosavi/KABS-Annotation-AI/internal/geometry"
)

// Well-known layer names. Every page starts with these three.
const (
	LayerPDF          = "pdf"
	LayerAnnotations  = "annotations"
	LayerMeasurements = "measurements"
)

// Layer is a named group of shapes.
type Layer struct {
	Name    string   `json:"name"`
	Visible bool     `json:"visible"`
	Locked  bool     `json:"locked"`
	Shapes  []*Shape `json:"shapes"`
}

// PageAnnotations is the per-project, per-page document persisted as one
// JSON blob.
type PageAnnotations struct {
	Schema    int       `json:"schema"`
	ProjectID string    `json:"project_id"`
	Page      int       `json:"page"`
	Scale     Scale     `json:"scale"`
	Layers    []*Layer  `json:"layers"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewPageAnnotations builds an empty document with the default layer set.
// The pdf layer is the locked background; drawing happens on the other two.
func NewPageAnnotations(projectID string, page int) *PageAnnotations {
	return &PageAnnotations{
		Schema:    SchemaVersion,
		ProjectID: projectID,
		Page:      page,
		Layers: []*Layer{
			{Name: LayerPDF, Visible: true, Locked: true},
			{Name: LayerAnnotations, Visible: true},
			{Name: LayerMeasurements, Visible: true},
		},
		UpdatedAt: time.Now().UTC(),
	}
}

// Layer returns the named layer, or nil.
func (d *PageAnnotations) Layer(name string) *Layer {
	for _, l := range d.Layers {
		if l.Name == name {
			return l
		}
	}
	return nil
}

// LayerFor returns the layer a given shape kind draws on: measurements and
// angles live on the measurements layer, everything else on annotations.
func (d *PageAnnotations) LayerFor(kind Kind) *Layer {
	if kind == KindMeasurement || kind == KindAngle {
		return d.Layer(LayerMeasurements)
	}
	return d.Layer(LayerAnnotations)
}

// FindShape returns the shape with the given ID and its layer, or nils.
func (d *PageAnnotations) FindShape(id string) (*Layer, *Shape) {
	for _, l := range d.Layers {
		for _, s := range l.Shapes {
			if s.ID == id {
				return l, s
			}
		}
	}
	return nil, nil
}

// RemoveShape deletes the shape with the given ID. It reports whether a
// shape was removed.
func (d *PageAnnotations) RemoveShape(id string) bool {
	for _, l := range d.Layers {
		for i, s := range l.Shapes {
			if s.ID == id {
				l.Shapes = append(l.Shapes[:i], l.Shapes[i+1:]...)
				d.UpdatedAt = time.Now().UTC()
				return true
			}
		}
	}
	return false
}

// ShapeCount returns the total number of shapes across all layers.
func (d *PageAnnotations) ShapeCount() int {
	n := 0
	for _, l := range d.Layers {
		n += len(l.Shapes)
	}
	return n
}

// Clone returns a deep copy of the document. The editor history stack
// snapshots documents with this.
func (d *PageAnnotations) Clone() *PageAnnotations {
	out := &PageAnnotations{
		Schema:    d.Schema,
		ProjectID: d.ProjectID,
		Page:      d.Page,
		Scale:     d.Scale,
		UpdatedAt: d.UpdatedAt,
		Layers:    make([]*Layer, len(d.Layers)),
	}
	for i, l := range d.Layers {
		nl := &Layer{
			Name:    l.Name,
			Visible: l.Visible,
			Locked:  l.Locked,
			Shapes:  make([]*Shape, len(l.Shapes)),
		}
		for j, s := range l.Shapes {
			ns := *s
			ns.Points = append([]geometry.Point(nil), s.Points...)
			nl.Shapes[j] = &ns
		}
		out.Layers[i] = nl
	}
	return out
}
