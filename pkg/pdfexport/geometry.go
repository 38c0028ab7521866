package pdfexport

import (
	"math"

	"github.com/rohadistp/naps2/pkg/scanimage"
)

// pageGeometry is the page box size in points. The same rounded values feed
// both the page format and the image placement; any mismatch produces seams
// at the page edges.
type pageGeometry struct {
	WidthPt  float64
	HeightPt float64
}

// fallbackAdjust is the points-per-pixel factor used when the image carries
// no usable DPI: 72/96, i.e. screen resolution.
const fallbackAdjust = 0.75

// dpiSnapTolerance is the maximum difference, per axis, between native DPI
// and the DPI implied by an expected page size for the page box to snap to
// that size. Scanners and encoders report integral DPI, so the implied
// value is usually off by a fraction.
const dpiSnapTolerance = 1.0

// computePageGeometry reconciles pixel dimensions, native DPI and an
// optional expected physical size into the page box in points.
func computePageGeometry(widthPx, heightPx int, hdpi, vdpi float64, size *scanimage.PageSize) pageGeometry {
	var w, h float64
	if !finite(hdpi) || !finite(vdpi) || hdpi <= 0 || vdpi <= 0 {
		w = float64(widthPx) * fallbackAdjust
		h = float64(heightPx) * fallbackAdjust
	} else {
		w = float64(widthPx) * 72 / hdpi
		h = float64(heightPx) * 72 / vdpi

		if size != nil && size.WidthInches > 0 && size.HeightInches > 0 {
			impliedH := float64(widthPx) / size.WidthInches
			impliedV := float64(heightPx) / size.HeightInches
			if math.Abs(impliedH-hdpi) <= dpiSnapTolerance &&
				math.Abs(impliedV-vdpi) <= dpiSnapTolerance {
				w = size.WidthInches * 72
				h = size.HeightInches * 72
			}
		}
	}
	return pageGeometry{WidthPt: round3(w), HeightPt: round3(h)}
}

// round3 rounds to 3 decimal places. This precision must match between page
// box and image matrix exactly.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
