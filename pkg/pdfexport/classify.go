package pdfexport

import (
	"github.com/rohadistp/naps2/pkg/ocr"
	"github.com/rohadistp/naps2/pkg/scanimage"
)

// exportPage is the mutable working record for one input page. It is owned
// exclusively by the pipeline processing that page and is destroyed (its
// embedder released) when the export call returns.
type exportPage struct {
	// index is the position in the input sequence and defines the final
	// page order. Pages are never reordered.
	index int
	image *scanimage.Image

	// passthrough marks pages whose source is an untransformed PDF page
	// object, imported as-is instead of re-rendered.
	passthrough bool

	// emb supplies the encoded image bytes for rendered pages, or the
	// rasterized OCR input for passthrough pages that need OCR.
	emb embedder

	// op is the pending OCR request, if one was enqueued.
	op *ocr.Operation
	// ocrResult is the resolved OCR result, nil when absent.
	ocrResult *ocr.Result
	// needsOcr is set during the passthrough prepass when no existing
	// text was found in the source page.
	needsOcr bool
}

// classify splits the input sequence into render-required and
// passthrough-eligible pages. A page is passthrough eligible iff its source
// is a PDF page reference and no pixel-level transform has been applied to
// it since import. Both sub-lists keep input order; indexes refer to the
// original sequence.
func classify(images []*scanimage.Image) (render, passthrough []*exportPage, all []*exportPage) {
	for i, img := range images {
		page := &exportPage{index: i, image: img}
		if img.IsPDF() && !img.TransformApplied {
			page.passthrough = true
			passthrough = append(passthrough, page)
		} else {
			render = append(render, page)
		}
		all = append(all, page)
	}
	return render, passthrough, all
}
