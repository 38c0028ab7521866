package pdfexport

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rohadistp/naps2/pkg/scanimage"
)

func TestComputePageGeometryFromDPI(t *testing.T) {
	// 300 DPI US Letter scan.
	geom := computePageGeometry(2550, 3300, 300, 300, nil)
	assert.Equal(t, 612.0, geom.WidthPt)
	assert.Equal(t, 792.0, geom.HeightPt)
}

func TestComputePageGeometryAsymmetricDPI(t *testing.T) {
	geom := computePageGeometry(2550, 1650, 300, 150, nil)
	assert.Equal(t, 612.0, geom.WidthPt)
	assert.Equal(t, 792.0, geom.HeightPt)
}

func TestComputePageGeometrySnapsToExpectedSize(t *testing.T) {
	letter := &scanimage.PageSize{WidthInches: 8.5, HeightInches: 11}

	// 2546x3294 at a reported 300 DPI implies 299.5x299.5 DPI for a
	// letter page, inside the snap tolerance.
	geom := computePageGeometry(2546, 3294, 300, 300, letter)
	assert.Equal(t, 612.0, geom.WidthPt)
	assert.Equal(t, 792.0, geom.HeightPt)
}

func TestComputePageGeometryNoSnapOutsideTolerance(t *testing.T) {
	letter := &scanimage.PageSize{WidthInches: 8.5, HeightInches: 11}

	// 2500px at 300 DPI implies 294 DPI for a letter width, too far off
	// to snap. The page box follows the native DPI.
	geom := computePageGeometry(2500, 3300, 300, 300, letter)
	assert.Equal(t, 600.0, geom.WidthPt)
	assert.Equal(t, 792.0, geom.HeightPt)
}

func TestComputePageGeometryFallsBackWithoutDPI(t *testing.T) {
	tests := []struct {
		name       string
		hdpi, vdpi float64
	}{
		{"zero", 0, 0},
		{"negative", -300, -300},
		{"nan", math.NaN(), math.NaN()},
		{"inf", math.Inf(1), math.Inf(1)},
		{"one axis bad", 300, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			geom := computePageGeometry(800, 600, tt.hdpi, tt.vdpi, nil)
			assert.Equal(t, 600.0, geom.WidthPt)
			assert.Equal(t, 450.0, geom.HeightPt)
		})
	}
}

func TestComputePageGeometryFallbackIgnoresExpectedSize(t *testing.T) {
	letter := &scanimage.PageSize{WidthInches: 8.5, HeightInches: 11}
	geom := computePageGeometry(800, 600, 0, 0, letter)
	assert.Equal(t, 600.0, geom.WidthPt)
	assert.Equal(t, 450.0, geom.HeightPt)
}

func TestRound3(t *testing.T) {
	assert.Equal(t, 612.0, round3(612.0004))
	assert.Equal(t, 612.001, round3(612.0006))
	assert.Equal(t, 611.999, round3(611.9994))
}
