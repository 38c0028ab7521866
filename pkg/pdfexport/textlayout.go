package pdfexport

import (
	"math"
	"strings"

	"github.com/rivo/uniseg"

	"github.com/rohadistp/naps2/pkg/ocr"
)

// ascentRatio positions the baseline within the em box. Tried and tested
// for OCR layers over scanned text.
const ascentRatio = 0.718

// suppressSizeLimit guards against misrecognized long horizontal rules: a
// lone dash or underscore laid out above this size is not real text.
const suppressSizeLimit = 100

// textMeasurer measures rendered text width at a font size in points.
// Backed by the document's font metrics; faked in tests.
type textMeasurer interface {
	textWidth(text string, size float64) float64
}

// placedText is one laid-out text element in page coordinates, origin
// top-left.
type placedText struct {
	Text string
	// X is the left edge of the centered text run.
	X float64
	// Top is the top edge of the vertically centered em box. The baseline
	// sits at Top + Size*ascentRatio.
	Top  float64
	Size float64
	// Width is the measured width at Size.
	Width float64
}

// layoutTextElements rescales OCR elements from recognition-time pixel
// space into page points and sizes each one to fill its box. Elements with
// empty text are skipped; right-to-left elements are reversed by grapheme
// cluster so the PDF stores them in visual order.
func layoutTextElements(res *ocr.Result, pageW, pageH float64, m textMeasurer) []placedText {
	if res == nil || res.PageWidth <= 0 || res.PageHeight <= 0 {
		return nil
	}
	sx := pageW / res.PageWidth
	sy := pageH / res.PageHeight

	var placed []placedText
	for _, el := range res.Elements {
		text := strings.TrimSpace(el.Text)
		if text == "" {
			continue
		}

		x := el.Bounds.X * sx
		y := el.Bounds.Y * sy
		w := el.Bounds.Width * sx
		h := el.Bounds.Height * sy
		if w <= 0 || h <= 0 {
			continue
		}

		// Guess the size from the box height, then correct by how wide
		// the text actually renders at that guess.
		guess := h
		measured := m.textWidth(text, guess)
		if measured <= 0 {
			continue
		}
		size := math.Floor(guess * w / measured)
		if size < 1 {
			size = 1
		}
		if size > suppressSizeLimit && (text == "-" || text == "_") {
			continue
		}

		if el.RightToLeft {
			text = uniseg.ReverseString(text)
		}

		width := m.textWidth(text, size)
		placed = append(placed, placedText{
			Text:  text,
			X:     x + (w-width)/2,
			Top:   y + (h-size)/2,
			Size:  size,
			Width: width,
		})
	}
	return placed
}
