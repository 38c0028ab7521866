package ocr

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"golang.org/x/text/unicode/bidi"

	"github.com/rohadistp/naps2/pkg/hocr"
)

// TesseractEngine recognizes images with a locally installed Tesseract via
// gosseract, requesting hOCR output so every word keeps its bounding box.
type TesseractEngine struct{}

// NewTesseractEngine returns the local Tesseract engine.
func NewTesseractEngine() *TesseractEngine { return &TesseractEngine{} }

// Name implements Engine.
func (e *TesseractEngine) Name() string { return "tesseract" }

// Available reports whether the tesseract runtime is installed.
func (e *TesseractEngine) Available() bool {
	_, err := exec.LookPath("tesseract")
	return err == nil
}

// ProcessImage implements Engine.
func (e *TesseractEngine) ProcessImage(ctx context.Context, path string, params Params) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !e.Available() {
		return nil, ErrEngineUnavailable
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetImage(path); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	if params.LanguageCode != "" {
		if err := client.SetLanguage(strings.Split(params.LanguageCode, "+")...); err != nil {
			return nil, fmt.Errorf("failed to set language: %w", err)
		}
	}

	hocrText, err := client.HOCRText()
	if err != nil {
		return nil, fmt.Errorf("tesseract recognition failed: %w", err)
	}

	parsed, err := hocr.Parse([]byte(hocrText))
	if err != nil {
		return nil, fmt.Errorf("failed to parse hOCR output: %w", err)
	}
	return resultFromHOCR(parsed.Pages[0]), nil
}

// resultFromHOCR flattens one hOCR page into the exporter's element list.
func resultFromHOCR(page hocr.Page) *Result {
	result := &Result{
		PageWidth:  page.BBox.Width(),
		PageHeight: page.BBox.Height(),
	}
	for _, line := range page.Lines {
		for _, word := range line.Words {
			if word.Text == "" {
				continue
			}
			result.Elements = append(result.Elements, Element{
				Text: word.Text,
				Bounds: Bounds{
					X:      word.BBox.X1,
					Y:      word.BBox.Y1,
					Width:  word.BBox.Width(),
					Height: word.BBox.Height(),
				},
				RightToLeft: word.RightToLeft || IsRightToLeft(word.Text),
			})
		}
	}
	return result
}

// IsRightToLeft reports whether text starts with a right-to-left run.
// Engines that don't mark direction themselves (Tesseract's hOCR mostly
// doesn't) get it derived from the script.
func IsRightToLeft(text string) bool {
	var p bidi.Paragraph
	if _, err := p.SetString(text); err != nil {
		return false
	}
	return !p.IsLeftToRight()
}
