package convert

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// PageImage is one rendered PDF page.
type PageImage struct {
	// Page is the 1-based page number.
	Page  int
	Image image.Image

	// WidthPt / HeightPt are the page dimensions in PDF points.
	WidthPt  float64
	HeightPt float64
}

// Renderer turns a PDF file into page images. The production renderer uses
// MuPDF; tests substitute a fake.
type Renderer interface {
	// Render opens the PDF at path and invokes fn once per page, in order,
	// rendered at dpi. Rendering stops on the first error from fn.
	Render(path string, dpi float64, fn func(*PageImage) error) error
}

type fitzRenderer struct{}

// NewFitzRenderer returns the MuPDF-backed renderer.
func NewFitzRenderer() Renderer {
	return fitzRenderer{}
}

func (fitzRenderer) Render(path string, dpi float64, fn func(*PageImage) error) error {
	doc, err := fitz.New(path)
	if err != nil {
		return fmt.Errorf("convert: open pdf: %w", err)
	}
	defer doc.Close()

	for i := 0; i < doc.NumPage(); i++ {
		img, err := doc.ImageDPI(i, dpi)
		if err != nil {
			return fmt.Errorf("convert: render page %d: %w", i+1, err)
		}

		// Bound reports the page box at 72 dpi, which is PDF points.
		bound, err := doc.Bound(i)
		if err != nil {
			return fmt.Errorf("convert: page %d bounds: %w", i+1, err)
		}

		if err := fn(&PageImage{
			Page:     i + 1,
			Image:    img,
			WidthPt:  float64(bound.Dx()),
			HeightPt: float64(bound.Dy()),
		}); err != nil {
			return err
		}
	}
	return nil
}
