package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohadistp/naps2/pkg/hocr"
)

func TestResultFromHOCR(t *testing.T) {
	page := hocr.Page{
		BBox: hocr.NewBoundingBox(0, 0, 2550, 3300),
		Lines: []hocr.Line{
			{
				Words: []hocr.Word{
					{Text: "Hello", BBox: hocr.NewBoundingBox(100, 100, 400, 160)},
					{Text: "", BBox: hocr.NewBoundingBox(420, 100, 500, 160)},
					{Text: "world", BBox: hocr.NewBoundingBox(520, 100, 900, 160)},
				},
			},
			{
				Words: []hocr.Word{
					{Text: "next", BBox: hocr.NewBoundingBox(100, 200, 300, 260)},
				},
			},
		},
	}

	res := resultFromHOCR(page)
	assert.Equal(t, 2550.0, res.PageWidth)
	assert.Equal(t, 3300.0, res.PageHeight)

	// Empty words are dropped, lines are flattened in reading order.
	require.Len(t, res.Elements, 3)
	assert.Equal(t, "Hello", res.Elements[0].Text)
	assert.Equal(t, Bounds{X: 100, Y: 100, Width: 300, Height: 60}, res.Elements[0].Bounds)
	assert.Equal(t, "next", res.Elements[2].Text)
	assert.False(t, res.Elements[0].RightToLeft)
}

func TestResultFromHOCRDerivesDirection(t *testing.T) {
	page := hocr.Page{
		BBox: hocr.NewBoundingBox(0, 0, 1000, 1000),
		Lines: []hocr.Line{
			{
				Words: []hocr.Word{
					// Hebrew script is detected even without dir="rtl".
					{Text: "שלום", BBox: hocr.NewBoundingBox(0, 0, 100, 20)},
					// An explicit flag wins over script detection.
					{Text: "latin", BBox: hocr.NewBoundingBox(0, 30, 100, 50), RightToLeft: true},
				},
			},
		},
	}

	res := resultFromHOCR(page)
	require.Len(t, res.Elements, 2)
	assert.True(t, res.Elements[0].RightToLeft)
	assert.True(t, res.Elements[1].RightToLeft)
}

func TestIsRightToLeft(t *testing.T) {
	assert.False(t, IsRightToLeft("hello"))
	assert.False(t, IsRightToLeft("123"))
	assert.True(t, IsRightToLeft("שלום")) // Hebrew
	assert.True(t, IsRightToLeft("مرحب")) // Arabic
}
