package pdfexport

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"codeberg.org/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"
)

// docWriter serializes all mutation of the generated document. The
// underlying fpdf document is not safe for concurrent mutation, and fpdf
// can only append pages, so commits are additionally ordered by page index:
// a worker arriving early blocks until every lower-indexed page has been
// committed. Passthrough slots get placeholder pages automatically so
// rendered pages always land at their original index.
type docWriter struct {
	mu   sync.Mutex
	cond *sync.Cond

	pdf      *fpdf.Fpdf
	font     string
	compat   Compat
	total    int
	next     int
	done     int
	progress func(done, total int)

	// passthrough marks indexes that receive placeholder pages.
	passthrough map[int]bool
}

func newDocWriter(pdf *fpdf.Fpdf, font string, compat Compat, total int, passthrough map[int]bool, progress func(done, total int)) *docWriter {
	w := &docWriter{
		pdf:         pdf,
		font:        font,
		compat:      compat,
		total:       total,
		passthrough: passthrough,
		progress:    progress,
	}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// textWidth implements textMeasurer against the document's font metrics.
// Callers must hold the writer lock.
func (w *docWriter) textWidth(text string, size float64) float64 {
	w.pdf.SetFont(w.font, "", size)
	return w.pdf.GetStringWidth(encodeLatin1(text))
}

// writePage commits one rendered page: page box from the reconciled
// geometry, the encoded image drawn over the full box, and the invisible
// text layer when an OCR result is present.
//
// Commits block until all lower-indexed pages are in. A cancelled context
// turns the commit into a no-op so waiters behind a failed page drain
// instead of deadlocking on the order condition.
func (w *docWriter) writePage(ctx context.Context, page *exportPage) error {
	data, err := page.emb.Bytes()
	if err != nil {
		return fmt.Errorf("page %d: %w", page.index, err)
	}

	geom := computePageGeometry(
		page.emb.Width(), page.emb.Height(),
		page.emb.HorizontalDPI(), page.emb.VerticalDPI(),
		page.image.PageSize,
	)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			w.cond.Broadcast()
			w.mu.Unlock()
		case <-stop:
		}
	}()

	w.mu.Lock()
	defer w.mu.Unlock()
	for w.next != page.index && ctx.Err() == nil {
		w.cond.Wait()
	}
	if ctx.Err() != nil {
		return nil
	}

	w.pdf.AddPageFormat("P", fpdf.SizeType{Wd: geom.WidthPt, Ht: geom.HeightPt})

	var placed []placedText
	if page.ocrResult != nil {
		placed = layoutTextElements(page.ocrResult, geom.WidthPt, geom.HeightPt, writerMeasurer{w})
	}

	// PDF/A-1 forbids transparency, so the alpha-hidden layer is not an
	// option there: draw the text first and let the opaque page image
	// cover it instead.
	if w.compat.DisallowsTransparency() {
		w.drawTextLayer(placed, page.index, false)
	}

	name := fmt.Sprintf("page%d", page.index)
	opts := fpdf.ImageOptions{ImageType: page.emb.Format(), ReadDpi: false}
	w.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	// Image matrix uses the identical rounded geometry as the page box.
	w.pdf.ImageOptions(name, 0, 0, geom.WidthPt, geom.HeightPt, false, opts, 0, "")

	if !w.compat.DisallowsTransparency() {
		w.drawTextLayer(placed, page.index, true)
	}

	w.advanceLocked()
	return w.pdf.Error()
}

// writerMeasurer adapts docWriter to textMeasurer for calls already under
// the writer lock.
type writerMeasurer struct{ w *docWriter }

func (m writerMeasurer) textWidth(text string, size float64) float64 {
	return m.w.textWidth(text, size)
}

// drawTextLayer draws the invisible OCR text for one page. The text exists
// only to make the page searchable and selectable; when useAlpha is set it
// is hidden with alpha 0, otherwise the caller covers it with the page
// image.
func (w *docWriter) drawTextLayer(placed []placedText, pageIndex int, useAlpha bool) {
	if len(placed) == 0 {
		return
	}
	layer := w.pdf.AddLayer(fmt.Sprintf("OCR Text (Page %d)", pageIndex+1), true)
	w.pdf.BeginLayer(layer)
	if useAlpha {
		w.pdf.SetAlpha(0.0, "Normal")
	}
	for _, p := range placed {
		w.pdf.SetFont(w.font, "", p.Size)
		w.pdf.Text(p.X, p.Top+p.Size*ascentRatio, encodeLatin1(p.Text))
	}
	if useAlpha {
		w.pdf.SetAlpha(1.0, "Normal")
	}
	w.pdf.EndLayer()
}

// advanceLocked moves the commit cursor forward, emitting placeholder
// pages for passthrough slots. Placeholder size is irrelevant: the merger
// replaces the slot with the imported page and its own box.
func (w *docWriter) advanceLocked() {
	w.next++
	w.done++
	if w.progress != nil {
		w.progress(w.done, w.total)
	}
	w.fillPlaceholdersLocked()
	w.cond.Broadcast()
}

func (w *docWriter) fillPlaceholdersLocked() {
	for w.next < w.total && w.passthrough[w.next] {
		w.pdf.AddPage()
		w.next++
	}
}

// flush emits any leading or trailing placeholder pages. Called once before
// the write stage (for documents starting with passthrough pages) and once
// after it drains.
func (w *docWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.fillPlaceholdersLocked()
	w.cond.Broadcast()
}

// encodeLatin1 converts text to ISO-8859-1 for the core fonts, falling back
// to the raw string when it cannot be represented.
func encodeLatin1(s string) string {
	latin1, err := charmap.ISO8859_1.NewEncoder().String(s)
	if err != nil {
		return s
	}
	return latin1
}
