// Package scanimage models one scanned or imported page on its way to export.
//
// An Image is either decoded pixel data (a scanned page, already cropped,
// rotated and deskewed upstream) or a reference to a page of an existing PDF,
// identified by file path or in-memory buffer. The exporter never mutates an
// Image; transforms that the export itself requires (bilevel reduction) are
// applied to copies.
package scanimage

import (
	"image"
)

// BitDepth describes the pixel depth the page should be exported at.
type BitDepth int

const (
	// Color exports 24-bit RGB.
	Color BitDepth = iota
	// Grayscale exports 8-bit gray.
	Grayscale
	// BlackWhite exports 1-bit bilevel.
	BlackWhite
)

func (d BitDepth) String() string {
	switch d {
	case Grayscale:
		return "grayscale"
	case BlackWhite:
		return "blackwhite"
	default:
		return "color"
	}
}

// PageSize is a physical page size in inches.
type PageSize struct {
	WidthInches  float64
	HeightInches float64
}

// Image identifies one source page plus the metadata the exporter needs to
// embed it. Exactly one of Frame, PDFPath or PDFData is set.
type Image struct {
	// Frame holds decoded pixel data for scanned pages.
	Frame image.Image

	// JPEGData holds the original encoded bytes when the page came in as a
	// single-frame JPEG and no transform has touched it since. Such pages
	// can be copied into the PDF byte for byte.
	JPEGData []byte

	// PDFPath references a page of a PDF on disk.
	PDFPath string
	// PDFData references a page of an in-memory PDF.
	PDFData []byte
	// PDFPage is the 1-based page number within PDFPath or PDFData.
	PDFPage int
	// PDFPassword is the password for an encrypted source, if any.
	PDFPassword string

	// BitDepth is the target depth for export.
	BitDepth BitDepth
	// Lossless requests a lossless codec (PNG) over JPEG.
	Lossless bool
	// HorizontalDPI and VerticalDPI are the native resolution of the pixel
	// data. Zero or non-finite values fall back to screen resolution.
	HorizontalDPI float64
	VerticalDPI   float64
	// PageSize is the expected physical size, when the scan profile knows
	// it. Nil means derive the page box from pixels and DPI alone.
	PageSize *PageSize
	// TransformApplied is true when any pixel-level transform ran after
	// import. A transformed PDF reference is no longer passthrough
	// eligible, and a transformed JPEG can no longer be direct-copied.
	TransformApplied bool
}

// IsPDF reports whether the image is a reference to an existing PDF page.
func (i *Image) IsPDF() bool {
	return i.PDFPath != "" || len(i.PDFData) > 0
}

// Size returns the pixel dimensions of the decoded frame. Zero for PDF
// references that have not been rasterized.
func (i *Image) Size() (w, h int) {
	if i.Frame == nil {
		return 0, 0
	}
	b := i.Frame.Bounds()
	return b.Dx(), b.Dy()
}
