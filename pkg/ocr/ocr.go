// Package ocr defines the request/result contract between the PDF exporter
// and OCR engines, and a controller that queues work, caches results and
// owns the temp files handed to it.
//
// The exporter never talks to an engine directly: it persists the page image
// to a temp file, enqueues a request on the controller and later waits on
// the returned Operation. Results carry pixel-space bounding boxes plus the
// page dimensions at recognition time, so text can be rescaled to whatever
// size the page ends up at in the PDF.
package ocr

import (
	"context"
	"errors"
)

// ErrEngineUnavailable indicates the configured engine cannot run, e.g. the
// Tesseract runtime or trained data is not installed. The exporter treats
// this as "export without a text layer", not as a failure.
var ErrEngineUnavailable = errors.New("ocr: engine unavailable")

// Priority orders queued OCR requests. Foreground work (an export the user
// is waiting on) jumps ahead of background pre-OCR.
type Priority int

const (
	PriorityBackground Priority = iota
	PriorityForeground
)

// Params selects the OCR behavior for one export. The zero value is valid
// and means English at background priority.
type Params struct {
	// LanguageCode is the engine's language identifier (e.g. "eng", "heb").
	LanguageCode string
	// Priority orders this request relative to other queued work.
	Priority Priority
}

// Bounds is a rectangle in source-image pixel space, origin top-left.
type Bounds struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Element is one recognized text element.
type Element struct {
	Text        string
	Bounds      Bounds
	RightToLeft bool
}

// Result is the recognized content of one page image.
type Result struct {
	// PageWidth and PageHeight are the pixel dimensions of the image at
	// recognition time. Box coordinates are relative to these.
	PageWidth  float64
	PageHeight float64
	Elements   []Element
}

// Engine runs OCR on a single image file.
type Engine interface {
	// Name identifies the engine for cache keying and logs.
	Name() string
	// Available reports whether the engine can run in this process.
	Available() bool
	// ProcessImage recognizes the image at path. A nil result with nil
	// error means the engine produced nothing usable.
	ProcessImage(ctx context.Context, path string, params Params) (*Result, error)
}
