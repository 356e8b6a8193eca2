package convert

import (
	"errors"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// ErrInvalidPDF is returned when an upload is not a readable PDF.
var ErrInvalidPDF = errors.New("convert: invalid pdf")

// ErrTooManyPages is returned when an upload exceeds the configured page
// limit.
var ErrTooManyPages = errors.New("convert: too many pages")

// Inspect validates the PDF at path and returns its page count. Encrypted
// or structurally broken files are rejected with ErrInvalidPDF.
func Inspect(path string, maxPages int) (int, error) {
	if err := api.ValidateFile(path, nil); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	if n < 1 {
		return 0, fmt.Errorf("%w: no pages", ErrInvalidPDF)
	}
	if maxPages > 0 && n > maxPages {
		return 0, fmt.Errorf("%w: %d pages, limit %d", ErrTooManyPages, n, maxPages)
	}
	return n, nil
}
