package pdfexport

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"

	"codeberg.org/go-pdf/fpdf"
	"codeberg.org/go-pdf/fpdf/contrib/gofpdi"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/rohadistp/naps2/pkg/scanimage"
)

// nativeMu guards the native page-import machinery. It is not reentrant
// across concurrent exports, so no two exports may merge passthrough pages
// at the same time.
var nativeMu sync.Mutex

// mergePassthrough rebuilds the serialized document, replacing every
// passthrough slot with the page object imported from its original source.
// Rendered slots are imported unchanged from the generated buffer, so page
// order always matches the input sequence. Pages that went through the
// passthrough OCR pipeline get their invisible text regenerated here, at
// the imported-object level, rather than through the render path.
func (ex *Exporter) mergePassthrough(generated []byte, all []*exportPage, p Params, progress func()) ([]byte, error) {
	nativeMu.Lock()
	defer nativeMu.Unlock()

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	imp := gofpdi.NewImporter()

	genRS := io.ReadSeeker(bytes.NewReader(generated))
	// Cache decrypted/loaded sources; repeated pages of one source PDF
	// reuse the same reader.
	sources := make(map[*scanimage.Image][]byte)

	for _, page := range all {
		var rs io.ReadSeeker
		var srcPage int
		if page.passthrough {
			data, ok := sources[page.image]
			if !ok {
				var err error
				data, err = ex.loadSource(page.image, p)
				if err != nil {
					return nil, fmt.Errorf("page %d: %w", page.index, err)
				}
				sources[page.image] = data
			}
			rs = bytes.NewReader(data)
			srcPage = page.image.PDFPage
			if srcPage < 1 {
				srcPage = 1
			}
		} else {
			// The generated buffer holds a placeholder page at every
			// passthrough slot, so a rendered page sits at its input
			// position, not at a compacted one.
			rs = genRS
			srcPage = page.index + 1
		}

		tpl := imp.ImportPageFromStream(pdf, &rs, srcPage, "/MediaBox")
		w, h := importedPageSize(imp, srcPage)
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: w, Ht: h})
		imp.UseImportedTemplate(pdf, tpl, 0, 0, w, h)

		if page.passthrough && page.ocrResult != nil {
			ex.drawMergedTextLayer(pdf, page, w, h, p)
		}
		if page.passthrough && progress != nil {
			progress()
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write merged document: %w", err)
	}
	return buf.Bytes(), nil
}

// drawMergedTextLayer overlays OCR text onto an imported page. Imported
// page objects keep their own bottom-origin coordinate space, so vertical
// positions are computed from the bottom of the page and mapped back into
// the drawing space, which keeps the center-of-box placement identical to
// the rendered path.
func (ex *Exporter) drawMergedTextLayer(pdf *fpdf.Fpdf, page *exportPage, w, h float64, p Params) {
	placed := layoutTextElements(page.ocrResult, w, h, fpdfMeasurer{pdf: pdf, font: p.FontName})
	if len(placed) == 0 {
		return
	}
	layer := pdf.AddLayer(fmt.Sprintf("OCR Text (Page %d)", page.index+1), true)
	pdf.BeginLayer(layer)
	pdf.SetAlpha(0.0, "Normal")
	for _, t := range placed {
		baselineFromBottom := h - (t.Top + t.Size*ascentRatio)
		pdf.SetFont(p.FontName, "", t.Size)
		pdf.Text(t.X, h-baselineFromBottom, encodeLatin1(t.Text))
	}
	pdf.SetAlpha(1.0, "Normal")
	pdf.EndLayer()
}

// fpdfMeasurer measures against a standalone fpdf document (the merger's
// output document, which is single-threaded).
type fpdfMeasurer struct {
	pdf  *fpdf.Fpdf
	font string
}

func (m fpdfMeasurer) textWidth(text string, size float64) float64 {
	m.pdf.SetFont(m.font, "", size)
	return m.pdf.GetStringWidth(encodeLatin1(text))
}

// loadSource reads a passthrough source, decrypting it first when it is
// password protected. The page importer cannot open encrypted structures,
// so credentials are applied here.
func (ex *Exporter) loadSource(img *scanimage.Image, p Params) ([]byte, error) {
	var data []byte
	if len(img.PDFData) > 0 {
		data = img.PDFData
	} else {
		var err error
		data, err = os.ReadFile(img.PDFPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read source pdf: %w", err)
		}
	}

	password := img.PDFPassword
	if password == "" {
		password = p.Encryption.OwnerPassword
	}
	if password == "" {
		return data, nil
	}

	conf := model.NewDefaultConfiguration()
	conf.OwnerPW = password
	conf.UserPW = password
	var out bytes.Buffer
	if err := api.Decrypt(bytes.NewReader(data), &out, conf); err != nil {
		// Not encrypted, or the password applies elsewhere; let the
		// importer try the raw bytes.
		return data, nil
	}
	return out.Bytes(), nil
}

// importedPageSize looks up the media box of the page just imported,
// falling back to A4 when the importer has no size for it.
func importedPageSize(imp *gofpdi.Importer, pageNum int) (w, h float64) {
	sizes := imp.GetPageSizes()
	if box, ok := sizes[pageNum]["/MediaBox"]; ok && box["w"] > 0 && box["h"] > 0 {
		return box["w"], box["h"]
	}
	return 595.28, 841.89
}
