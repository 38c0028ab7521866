package pdfexport

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"codeberg.org/go-pdf/fpdf"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rohadistp/naps2/pkg/ocr"
	"github.com/rohadistp/naps2/pkg/scanimage"
)

// Exporter turns an ordered sequence of scanned images into a single PDF,
// with an optional invisible OCR text layer. Safe for concurrent use; each
// Export call owns its own document state.
type Exporter struct {
	log        zerolog.Logger
	controller *ocr.Controller
	engine     ocr.Engine
	prober     textProber
	rasterizer pageRasterizer
	now        func() time.Time
}

// NewExporter creates an exporter. A nil engine disables OCR entirely;
// passing OCR params to Export is then ignored.
func NewExporter(engine ocr.Engine, log zerolog.Logger) *Exporter {
	return &Exporter{
		log:        log,
		controller: ocr.NewController(runtime.NumCPU(), log),
		engine:     engine,
		prober:     plainTextProber{},
		rasterizer: fitzRasterizer{},
		now:        time.Now,
	}
}

// Close stops the exporter's OCR workers. In-flight exports finish; calling
// Export afterwards fails every OCR request.
func (ex *Exporter) Close() {
	ex.controller.Close()
}

// Export writes the document for images to w. Pages appear in input order,
// one page per image. When ocrParams is non-nil and the engine is
// available, rendered pages get an invisible text layer and passthrough
// pages without existing text are rasterized and recognized.
//
// Returns (true, nil) on success. A cancelled context aborts cleanly with
// (false, nil) and writes nothing to w.
func (ex *Exporter) Export(ctx context.Context, w io.Writer, images []*scanimage.Image, p Params, ocrParams *ocr.Params) (bool, error) {
	if err := p.validate(); err != nil {
		return false, err
	}
	if len(images) == 0 {
		return false, errors.New("pdfexport: no pages to export")
	}

	doOCR := ocrParams != nil && ex.engine != nil
	if doOCR && !ex.engine.Available() {
		ex.log.Warn().Str("engine", ex.engine.Name()).Msg("ocr engine unavailable, exporting without text layer")
		doOCR = false
	}

	render, passthrough, all := classify(images)

	// Every embedder is released exactly once, whichever pipeline
	// created it and however far the export got.
	defer func() {
		for _, page := range all {
			if page.emb != nil {
				page.emb.Close()
				page.emb = nil
			}
		}
	}()

	workers := p.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	var committed atomic.Int64
	var notify func()
	var writerProgress func(done, total int)
	if p.Progress != nil {
		notify = func() {
			p.Progress(int(committed.Add(1)), len(images))
		}
		writerProgress = func(int, int) { notify() }
	}

	passthroughSet := make(map[int]bool, len(passthrough))
	for _, page := range passthrough {
		passthroughSet[page.index] = true
	}

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.SetFont(p.FontName, "", 10)
	writer := newDocWriter(pdf, p.FontName, p.Compat, len(images), passthroughSet, writerProgress)
	// Documents can open with passthrough pages; their placeholders go in
	// before any render worker commits.
	writer.flush()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return forEachPage(gctx, render, workers, func(ctx context.Context, page *exportPage) error {
			return ex.renderPage(ctx, writer, page, doOCR, ocrParams)
		})
	})
	if doOCR {
		g.Go(func() error {
			return forEachPage(gctx, passthrough, workers, func(ctx context.Context, page *exportPage) error {
				return ex.recognizePassthrough(ctx, page, ocrParams)
			})
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}
	if ctx.Err() != nil {
		return false, nil
	}
	writer.flush()
	if err := pdf.Error(); err != nil {
		return false, fmt.Errorf("document generation failed: %w", err)
	}

	out, err := finalize(pdf, p, ex.now())
	if err != nil {
		return false, err
	}

	if len(passthrough) > 0 {
		out, err = ex.mergePassthrough(out, all, p, notify)
		if err != nil {
			return false, err
		}
	}
	if p.Compat.Archival() {
		out, err = applyCompliance(out, p.Compat, p.Metadata, ex.now())
		if err != nil {
			return false, err
		}
	}
	if p.Encryption.Enabled() {
		out, err = encryptDocument(out, p.Encryption)
		if err != nil {
			return false, err
		}
	}

	if ctx.Err() != nil {
		return false, nil
	}
	if _, err := w.Write(out); err != nil {
		return false, fmt.Errorf("failed to write output: %w", err)
	}
	return true, nil
}

// ExportFile exports to path via a temp file in the same directory, so a
// failed or cancelled export never leaves a partial document behind.
func (ex *Exporter) ExportFile(ctx context.Context, path string, images []*scanimage.Image, p Params, ocrParams *ocr.Params) (bool, error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".export-*.pdf")
	if err != nil {
		return false, fmt.Errorf("failed to create temp output: %w", err)
	}
	tmpPath := tmp.Name()

	ok, err := ex.Export(ctx, tmp, images, p, ocrParams)
	closeErr := tmp.Close()
	if err == nil && !ok && closeErr == nil {
		os.Remove(tmpPath)
		return false, nil
	}
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		return false, err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return false, fmt.Errorf("failed to move output into place: %w", err)
	}
	return true, nil
}

// renderPage is the per-page stage of the render pipeline: encode the
// image, queue OCR on the encoded bytes, wait for the result, then commit
// the page at its slot.
func (ex *Exporter) renderPage(ctx context.Context, writer *docWriter, page *exportPage, doOCR bool, ocrParams *ocr.Params) error {
	emb, err := newEmbedder(page.image)
	if err != nil {
		return fmt.Errorf("page %d: %w", page.index, err)
	}
	page.emb = emb
	if err := emb.PrepareForExport(); err != nil {
		return fmt.Errorf("page %d: failed to encode: %w", page.index, err)
	}

	if doOCR {
		if err := ex.enqueueOCR(ctx, page, ocrParams); err != nil {
			// OCR is best effort: the page still exports, just without
			// a text layer.
			ex.log.Warn().Int("page", page.index).Err(err).Msg("failed to queue ocr")
		}
	}
	if page.op != nil {
		if res, ok := page.op.Wait(ctx); ok {
			page.ocrResult = res
		}
	}
	return writer.writePage(ctx, page)
}

// recognizePassthrough is the per-page stage of the passthrough prepass:
// probe for existing text, and when there is none, rasterize the source
// page and run it through OCR. The result is consumed later by the merger.
func (ex *Exporter) recognizePassthrough(ctx context.Context, page *exportPage, ocrParams *ocr.Params) error {
	if !ex.needsOCR(page) {
		return nil
	}
	page.needsOcr = true

	frame, err := ex.rasterizer.rasterize(page.image, ocrDPI)
	if err != nil {
		ex.log.Warn().Int("page", page.index).Err(err).Msg("failed to rasterize page for ocr")
		return nil
	}
	frame, dpi := capOCRFrame(frame)
	emb, err := newReencodeEmbedder(&scanimage.Image{
		Frame:         frame,
		HorizontalDPI: dpi,
		VerticalDPI:   dpi,
	})
	if err != nil {
		return fmt.Errorf("page %d: %w", page.index, err)
	}
	page.emb = emb
	if err := emb.PrepareForExport(); err != nil {
		return fmt.Errorf("page %d: failed to encode: %w", page.index, err)
	}

	if err := ex.enqueueOCR(ctx, page, ocrParams); err != nil {
		ex.log.Warn().Int("page", page.index).Err(err).Msg("failed to queue ocr")
		return nil
	}
	if res, ok := page.op.Wait(ctx); ok {
		page.ocrResult = res
	}
	return nil
}

// enqueueOCR hands the page's encoded bytes to the OCR controller. The
// image content digest keys the result cache, so identical pages are
// recognized once; a cache hit skips the temp file entirely.
func (ex *Exporter) enqueueOCR(ctx context.Context, page *exportPage, params *ocr.Params) error {
	data, err := page.emb.Bytes()
	if err != nil {
		return err
	}
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])

	path := ""
	if !ex.controller.HasCachedResult(ex.engine, digest, *params) {
		path = filepath.Join(os.TempDir(), uuid.NewString()+tempExt(page.emb.Format()))
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return fmt.Errorf("failed to stage ocr input: %w", err)
		}
	}
	page.op = ex.controller.Enqueue(ctx, ex.engine, digest, path, *params)
	return nil
}

// maxOCRDimension caps the pixel size of rasterized pages handed to the OCR
// engine. Oversized media boxes at the working resolution would otherwise
// produce recognition inputs hundreds of megapixels large.
const maxOCRDimension = 8000

// capOCRFrame scales frame down to fit maxOCRDimension on its long edge,
// returning the effective resolution. Recognition geometry stays correct
// because results are expressed relative to the frame's own dimensions.
func capOCRFrame(frame image.Image) (image.Image, float64) {
	b := frame.Bounds()
	long := b.Dx()
	if b.Dy() > long {
		long = b.Dy()
	}
	if long <= maxOCRDimension {
		return frame, ocrDPI
	}
	scale := float64(maxOCRDimension) / float64(long)
	w := int(float64(b.Dx())*scale + 0.5)
	h := int(float64(b.Dy())*scale + 0.5)
	return scanimage.Resample(frame, w, h), ocrDPI * scale
}

func tempExt(format string) string {
	if format == "PNG" {
		return ".png"
	}
	return ".jpg"
}
