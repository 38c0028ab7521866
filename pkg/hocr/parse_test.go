package hocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleHOCR = `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml" lang="en">
 <head>
  <title>scan</title>
  <meta http-equiv="Content-Type" content="text/html;charset=utf-8"/>
  <meta name="ocr-system" content="tesseract 5.3.0"/>
  <meta name="ocr-capabilities" content="ocr_page ocr_line ocrx_word"/>
 </head>
 <body>
  <div class="ocr_page" id="page_1" title="image &quot;scan.png&quot;; bbox 0 0 2550 3300; ppageno 0">
   <div class="ocr_carea" id="block_1_1" title="bbox 100 100 2400 400">
    <p class="ocr_par" id="par_1_1" title="bbox 100 100 2400 400">
     <span class="ocr_line" id="line_1_1" title="bbox 100 100 900 160; baseline 0 -12">
      <span class="ocrx_word" id="word_1_1" title="bbox 100 100 400 160; x_wconf 96">Hello</span>
      <span class="ocrx_word" id="word_1_2" title="bbox 420 100 900 160; x_wconf 91">world</span>
     </span>
     <span class="ocr_line" id="line_1_2" dir="rtl" title="bbox 100 200 900 260">
      <span class="ocrx_word" id="word_2_1" title="bbox 100 200 400 260; x_wconf 88">שלום</span>
      <span class="ocrx_word" id="word_2_2" dir="ltr" title="bbox 420 200 900 260; x_wconf 90">ABC</span>
     </span>
    </p>
   </div>
  </div>
 </body>
</html>`

func TestParseSampleDocument(t *testing.T) {
	doc, err := Parse([]byte(sampleHOCR))
	require.NoError(t, err)

	assert.Equal(t, "scan", doc.Title)
	assert.Equal(t, "en", doc.Language)
	assert.Equal(t, "tesseract 5.3.0", doc.System)
	assert.Equal(t, "ocr_page ocr_line ocrx_word", doc.Metadata["ocr-capabilities"])

	require.Len(t, doc.Pages, 1)
	page := doc.Pages[0]
	assert.Equal(t, "page_1", page.ID)
	assert.Equal(t, "scan.png", page.ImageName)
	assert.Equal(t, 0, page.PageNumber)
	assert.Equal(t, 2550.0, page.BBox.Width())
	assert.Equal(t, 3300.0, page.BBox.Height())

	// The carea/paragraph nesting is flattened away.
	require.Len(t, page.Lines, 2)

	first := page.Lines[0]
	assert.Equal(t, "0 -12", first.Baseline)
	require.Len(t, first.Words, 2)
	assert.Equal(t, "Hello", first.Words[0].Text)
	assert.Equal(t, BoundingBox{X1: 100, Y1: 100, X2: 400, Y2: 160}, first.Words[0].BBox)
	assert.Equal(t, 96.0, first.Words[0].Confidence)
	assert.False(t, first.Words[0].RightToLeft)
	assert.Equal(t, "world", first.Words[1].Text)

	// Line-level dir="rtl" is inherited by its words; an explicit
	// dir="ltr" on a word overrides it.
	second := page.Lines[1]
	require.Len(t, second.Words, 2)
	assert.True(t, second.Words[0].RightToLeft)
	assert.Equal(t, "ABC", second.Words[1].Text)
	assert.False(t, second.Words[1].RightToLeft)
}

func TestParseNoPages(t *testing.T) {
	_, err := Parse([]byte(`<html><body><p>plain html</p></body></html>`))
	assert.Error(t, err)
}

func TestParseLatin1Charset(t *testing.T) {
	// 0xE9 is é in ISO-8859-1 and invalid UTF-8 on its own. Appended as a
	// raw byte; a string conversion would re-encode it as UTF-8.
	data := []byte(`<html><head><meta http-equiv="Content-Type" content="text/html;charset=ISO-8859-1"/></head>` +
		`<body><div class="ocr_page" id="p1" title="bbox 0 0 100 100">` +
		`<span class="ocr_line" title="bbox 0 0 50 10">` +
		`<span class="ocrx_word" title="bbox 0 0 50 10">caf`)
	data = append(data, 0xE9)
	data = append(data, `</span></span></div></body></html>`...)

	doc, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, doc.Pages, 1)
	require.Len(t, doc.Pages[0].Lines, 1)
	require.Len(t, doc.Pages[0].Lines[0].Words, 1)
	assert.Equal(t, "café", doc.Pages[0].Lines[0].Words[0].Text)
}

func TestParseTitle(t *testing.T) {
	props := ParseTitle("bbox 100 200 300 400; x_wconf 95; baseline 0 -3")
	assert.Equal(t, []string{"100", "200", "300", "400"}, props["bbox"])
	assert.Equal(t, []string{"95"}, props["x_wconf"])
	assert.Equal(t, []string{"0", "-3"}, props["baseline"])
}

func TestParseBoundingBoxFromTitle(t *testing.T) {
	bbox := ParseBoundingBoxFromTitle("bbox 10 20 110 220; x_wconf 95")
	require.NotNil(t, bbox)
	assert.Equal(t, 100.0, bbox.Width())
	assert.Equal(t, 200.0, bbox.Height())

	assert.Nil(t, ParseBoundingBoxFromTitle("x_wconf 95"))
}
