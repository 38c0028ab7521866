package pdfexport

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/rohadistp/naps2/pkg/scanimage"
)

type fakeProber struct {
	text string
	err  error
}

func (f fakeProber) pageText(img *scanimage.Image) (string, error) {
	return f.text, f.err
}

func proberExporter(p textProber) *Exporter {
	return &Exporter{log: zerolog.Nop(), prober: p}
}

func TestNeedsOCR(t *testing.T) {
	plain := &exportPage{image: &scanimage.Image{PDFData: []byte("%PDF-1.7")}}
	ocrd := &exportPage{image: &scanimage.Image{
		PDFData: []byte("%PDF-1.7 <</Type /OCG /Name (OCR Text Layer)>>"),
	}}

	tests := []struct {
		name   string
		prober textProber
		page   *exportPage
		want   bool
	}{
		{"page with text", fakeProber{text: "Chapter 1"}, plain, false},
		{"whitespace only", fakeProber{text: " \n\t "}, plain, true},
		{"empty text", fakeProber{}, plain, true},
		{"probe failure", fakeProber{err: errors.New("parse error")}, plain, true},
		{"no text but prior ocr layer", fakeProber{}, ocrd, false},
		{"probe failure with prior ocr layer", fakeProber{err: errors.New("parse error")}, ocrd, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := proberExporter(tt.prober)
			assert.Equal(t, tt.want, ex.needsOCR(tt.page))
		})
	}
}

func TestHasOCRLayer(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"empty", nil, false},
		{"no layers", []byte("%PDF-1.7 plain content"), false},
		{"ocr layer", []byte("<</Type /OCG /Name (OCR Text Layer)>>"), true},
		{"compact ocr layer", []byte("<</Type/OCG/Name(OCR)>>"), true},
		{"case insensitive", []byte("<</Type /OCG /Name (Tesseract OCR output)>>"), true},
		{"unrelated layer", []byte("<</Type /OCG /Name (Watermark)>>"), false},
		{"escaped parens", []byte(`<</Type /OCG /Name (OCR \(page 1\))>>`), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hasOCRLayer(tt.data))
		})
	}
}

func TestDecodeUTF16BE(t *testing.T) {
	// "OCR" with a BOM prefix.
	decoded, err := decodeUTF16BE([]byte{0xfe, 0xff, 0x00, 'O', 0x00, 'C', 0x00, 'R'})
	assert.NoError(t, err)
	assert.Equal(t, "OCR", decoded)

	_, err = decodeUTF16BE([]byte("no bom"))
	assert.Error(t, err)
}
