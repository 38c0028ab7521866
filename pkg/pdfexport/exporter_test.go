package pdfexport

import (
	"bytes"
	"context"
	"image"
	"os"
	"path/filepath"
	"sync"
	"testing"

	ledongthuc "github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohadistp/naps2/pkg/ocr"
	"github.com/rohadistp/naps2/pkg/scanimage"
)

// fakeOCREngine resolves every image to a fixed result.
type fakeOCREngine struct {
	mu    sync.Mutex
	calls int
	res   *ocr.Result
}

func (f *fakeOCREngine) Name() string    { return "fake" }
func (f *fakeOCREngine) Available() bool { return true }

func (f *fakeOCREngine) ProcessImage(ctx context.Context, path string, params ocr.Params) (*ocr.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return f.res, nil
}

type unavailableEngine struct{}

func (unavailableEngine) Name() string    { return "missing" }
func (unavailableEngine) Available() bool { return false }
func (unavailableEngine) ProcessImage(ctx context.Context, path string, params ocr.Params) (*ocr.Result, error) {
	return nil, ocr.ErrEngineUnavailable
}

func frameImage(index int) *scanimage.Image {
	return &scanimage.Image{
		Frame:         colorFrame(60+index, 40),
		HorizontalDPI: 72,
		VerticalDPI:   72,
	}
}

func pageCount(t *testing.T, data []byte) int {
	t.Helper()
	reader, err := ledongthuc.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	return reader.NumPage()
}

func TestExportWithoutOCR(t *testing.T) {
	ex := NewExporter(nil, zerolog.Nop())

	var buf bytes.Buffer
	ok, err := ex.Export(context.Background(), &buf, []*scanimage.Image{
		frameImage(0), frameImage(1), frameImage(2),
	}, DefaultParams(), nil)
	require.NoError(t, err)
	require.True(t, ok)

	require.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
	assert.Equal(t, 3, pageCount(t, buf.Bytes()))
}

func TestExportRejectsEmptyInput(t *testing.T) {
	ex := NewExporter(nil, zerolog.Nop())
	ok, err := ex.Export(context.Background(), &bytes.Buffer{}, nil, DefaultParams(), nil)
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestExportRejectsUnknownFont(t *testing.T) {
	ex := NewExporter(nil, zerolog.Nop())
	params := DefaultParams()
	params.FontName = "Comic Sans"

	ok, err := ex.Export(context.Background(), &bytes.Buffer{}, []*scanimage.Image{frameImage(0)}, params, nil)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrNoLayoutFont)
}

func TestExportWithOCRTextLayer(t *testing.T) {
	engine := &fakeOCREngine{res: &ocr.Result{
		PageWidth:  60,
		PageHeight: 40,
		Elements: []ocr.Element{
			{Text: "scanned", Bounds: ocr.Bounds{X: 5, Y: 5, Width: 40, Height: 8}},
		},
	}}
	ex := NewExporter(engine, zerolog.Nop())

	var buf bytes.Buffer
	ok, err := ex.Export(context.Background(), &buf, []*scanimage.Image{frameImage(0)},
		DefaultParams(), &ocr.Params{LanguageCode: "eng"})
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, 1, engine.calls)
	assert.Contains(t, buf.String(), pdfTextString("OCR Text"))
}

func TestExportCachesIdenticalPages(t *testing.T) {
	engine := &fakeOCREngine{res: &ocr.Result{PageWidth: 60, PageHeight: 40}}
	ex := NewExporter(engine, zerolog.Nop())

	// The same image twice produces identical encoded bytes, so the
	// second page resolves from the recognition cache.
	shared := frameImage(0)
	duplicate := &scanimage.Image{
		Frame:         shared.Frame,
		HorizontalDPI: 72,
		VerticalDPI:   72,
	}

	params := DefaultParams()
	params.Workers = 1

	var buf bytes.Buffer
	ok, err := ex.Export(context.Background(), &buf, []*scanimage.Image{shared, duplicate},
		params, &ocr.Params{LanguageCode: "eng"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, engine.calls)
}

func TestExportUnavailableEngineStillExports(t *testing.T) {
	ex := NewExporter(unavailableEngine{}, zerolog.Nop())

	var buf bytes.Buffer
	ok, err := ex.Export(context.Background(), &buf, []*scanimage.Image{frameImage(0)},
		DefaultParams(), &ocr.Params{LanguageCode: "eng"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, pageCount(t, buf.Bytes()))
}

func TestExportCancelledContext(t *testing.T) {
	ex := NewExporter(nil, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	ok, err := ex.Export(ctx, &buf, []*scanimage.Image{frameImage(0)}, DefaultParams(), nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, buf.Len(), "a cancelled export writes nothing")
}

func TestExportProgressReachesTotal(t *testing.T) {
	ex := NewExporter(nil, zerolog.Nop())

	var mu sync.Mutex
	var last int
	params := DefaultParams()
	params.Progress = func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 3, total)
		last = done
	}

	var buf bytes.Buffer
	ok, err := ex.Export(context.Background(), &buf, []*scanimage.Image{
		frameImage(0), frameImage(1), frameImage(2),
	}, params, nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, last)
}

func TestExportEncrypted(t *testing.T) {
	ex := NewExporter(nil, zerolog.Nop())
	params := DefaultParams()
	params.Encryption = Encryption{
		OwnerPassword: "owner",
		UserPassword:  "user",
		AllowPrinting: true,
	}

	var buf bytes.Buffer
	ok, err := ex.Export(context.Background(), &buf, []*scanimage.Image{frameImage(0)}, params, nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, buf.String(), "/Encrypt")
}

func TestExportArchival(t *testing.T) {
	ex := NewExporter(nil, zerolog.Nop())
	params := DefaultParams()
	params.Compat = CompatPdfA2B
	params.Metadata.Title = "Archive"

	var buf bytes.Buffer
	ok, err := ex.Export(context.Background(), &buf, []*scanimage.Image{frameImage(0)}, params, nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
	assert.Equal(t, 1, pageCount(t, buf.Bytes()))
}

func TestExportFileAtomicOnCancel(t *testing.T) {
	ex := NewExporter(nil, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	path := filepath.Join(t.TempDir(), "out.pdf")
	ok, err := ex.ExportFile(ctx, path, []*scanimage.Image{frameImage(0)}, DefaultParams(), nil)
	require.NoError(t, err)
	assert.False(t, ok)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "no partial output on cancellation")
}

func TestExportFileWritesOutput(t *testing.T) {
	ex := NewExporter(nil, zerolog.Nop())

	path := filepath.Join(t.TempDir(), "out.pdf")
	ok, err := ex.ExportFile(context.Background(), path, []*scanimage.Image{frameImage(0)}, DefaultParams(), nil)
	require.NoError(t, err)
	require.True(t, ok)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestCapOCRFrame(t *testing.T) {
	small := image.NewRGBA(image.Rect(0, 0, 100, 80))
	got, dpi := capOCRFrame(small)
	assert.Same(t, small, got, "frames within the cap pass through")
	assert.Equal(t, 300.0, dpi)

	wide := image.NewRGBA(image.Rect(0, 0, 16000, 100))
	got, dpi = capOCRFrame(wide)
	assert.Equal(t, 8000, got.Bounds().Dx())
	assert.Equal(t, 50, got.Bounds().Dy())
	assert.Equal(t, 150.0, dpi)
}
