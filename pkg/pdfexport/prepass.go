package pdfexport

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"regexp"
	"strings"

	"github.com/gen2brain/go-fitz"
	ledongthuc "github.com/ledongthuc/pdf"

	"github.com/rohadistp/naps2/pkg/scanimage"
)

// ocrDPI is the resolution passthrough pages are rasterized at for OCR.
const ocrDPI = 300.0

// textProber extracts the existing text of one page of a PDF source.
type textProber interface {
	pageText(img *scanimage.Image) (string, error)
}

// pageRasterizer renders one page of a PDF source to pixels for OCR.
type pageRasterizer interface {
	rasterize(img *scanimage.Image, dpi float64) (image.Image, error)
}

// needsOCR decides whether a passthrough page must be OCR'd: only when its
// source page carries no non-whitespace text and no prior OCR layer. A
// probe failure falls back to "needs OCR" so a page is never silently left
// unsearchable.
func (ex *Exporter) needsOCR(page *exportPage) bool {
	text, err := ex.prober.pageText(page.image)
	if err != nil {
		ex.log.Warn().Int("page", page.index).Err(err).Msg("text probe failed, falling back to OCR")
		return !hasOCRLayer(sourceBytes(page.image))
	}
	if strings.TrimSpace(text) != "" {
		return false
	}
	return !hasOCRLayer(sourceBytes(page.image))
}

func sourceBytes(img *scanimage.Image) []byte {
	if len(img.PDFData) > 0 {
		return img.PDFData
	}
	data, err := os.ReadFile(img.PDFPath)
	if err != nil {
		return nil
	}
	return data
}

// plainTextProber probes with a text extractor that needs no rendering.
type plainTextProber struct{}

func (plainTextProber) pageText(img *scanimage.Image) (string, error) {
	var reader *ledongthuc.Reader
	if len(img.PDFData) > 0 {
		r, err := ledongthuc.NewReader(bytes.NewReader(img.PDFData), int64(len(img.PDFData)))
		if err != nil {
			return "", fmt.Errorf("failed to open pdf buffer: %w", err)
		}
		reader = r
	} else {
		f, r, err := ledongthuc.Open(img.PDFPath)
		if err != nil {
			return "", fmt.Errorf("failed to open %s: %w", img.PDFPath, err)
		}
		defer f.Close()
		reader = r
	}

	pageNum := img.PDFPage
	if pageNum < 1 {
		pageNum = 1
	}
	if pageNum > reader.NumPage() {
		return "", fmt.Errorf("page %d out of range (%d pages)", pageNum, reader.NumPage())
	}
	page := reader.Page(pageNum)
	if page.V.IsNull() {
		return "", fmt.Errorf("page %d is missing", pageNum)
	}
	return page.GetPlainText(nil)
}

// fitzRasterizer renders source pages with MuPDF.
type fitzRasterizer struct{}

func (fitzRasterizer) rasterize(img *scanimage.Image, dpi float64) (image.Image, error) {
	var doc *fitz.Document
	var err error
	if len(img.PDFData) > 0 {
		doc, err = fitz.NewFromMemory(img.PDFData)
	} else {
		doc, err = fitz.New(img.PDFPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf for rendering: %w", err)
	}
	defer doc.Close()

	pageNum := img.PDFPage
	if pageNum < 1 {
		pageNum = 1
	}
	frame, err := doc.ImageDPI(pageNum-1, dpi)
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", pageNum, err)
	}
	return frame, nil
}

// ocgNamePatterns match optional content group names in raw PDF data.
var ocgNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`/Type\s*/OCG\s*/Name\s*\(([^)]+)\)`),
	regexp.MustCompile(`/OCG\s*<<[^>]*?/Name\s*\(([^)]+)\)`),
	regexp.MustCompile(`<</Type/OCG/Name\(([^)]+)\)`),
	regexp.MustCompile(`/Name\s*\(([^)]+)\)[\s\S]{1,50}/Type\s*/OCG`),
}

// hasOCRLayer scans raw PDF data for an optional content group that marks a
// previously applied OCR layer. It backs up the text probe: a file whose
// extraction fails but that was already OCR'd should not be OCR'd again.
func hasOCRLayer(pdfData []byte) bool {
	if len(pdfData) == 0 {
		return false
	}
	content := string(pdfData)
	for _, pattern := range ocgNamePatterns {
		for _, match := range pattern.FindAllStringSubmatch(content, -1) {
			if len(match) < 2 {
				continue
			}
			name := unescapePDFString(match[1])
			if decoded, err := decodeUTF16BE([]byte(name)); err == nil {
				name = decoded
			}
			if strings.Contains(strings.ToLower(name), "ocr") {
				return true
			}
		}
	}
	return false
}

func unescapePDFString(s string) string {
	s = strings.ReplaceAll(s, `\(`, "(")
	s = strings.ReplaceAll(s, `\)`, ")")
	s = strings.ReplaceAll(s, `\\`, `\`)
	return s
}

// decodeUTF16BE decodes a BOM-prefixed UTF-16BE string, the encoding PDF
// uses for non-latin layer names.
func decodeUTF16BE(b []byte) (string, error) {
	if len(b) < 2 || b[0] != 0xFE || b[1] != 0xFF {
		return "", fmt.Errorf("no UTF-16BE BOM")
	}
	b = b[2:]
	var runes []rune
	for i := 0; i+1 < len(b); i += 2 {
		runes = append(runes, rune(uint16(b[i])<<8|uint16(b[i+1])))
	}
	return string(runes), nil
}
