package pdfexport

import (
	"bytes"
	"fmt"
	"time"

	"codeberg.org/go-pdf/fpdf"
)

// finalize stamps document metadata and timestamps, then serializes the
// generated document to an in-memory buffer. The buffer is the carrier for
// the final artifact even when passthrough pages still have to be swapped
// in, because rewriting page slots once at the object level is cheaper than
// regenerating the whole document.
func finalize(pdf *fpdf.Fpdf, p Params, now time.Time) ([]byte, error) {
	m := p.Metadata
	if m.Title != "" {
		pdf.SetTitle(m.Title, true)
	}
	if m.Author != "" {
		pdf.SetAuthor(m.Author, true)
	}
	if m.Subject != "" {
		pdf.SetSubject(m.Subject, true)
	}
	if m.Keywords != "" {
		pdf.SetKeywords(m.Keywords, true)
	}
	if m.Creator != "" {
		pdf.SetCreator(m.Creator, true)
	}
	pdf.SetCreationDate(now)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize document: %w", err)
	}
	return buf.Bytes(), nil
}
