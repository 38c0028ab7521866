package pdfexport

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/rohadistp/naps2/pkg/scanimage"
)

// jpegQuality is the re-encode quality for lossy pages.
const jpegQuality = 90

// errNotEmbeddable marks a JPEG that cannot be copied into the PDF as-is.
var errNotEmbeddable = errors.New("jpeg not directly embeddable")

// embedder produces the encoded image bytes and intrinsic geometry for one
// page. Two variants exist: a direct byte-for-byte copy of an untouched
// JPEG, and a re-encode of everything else. An embedder owns the image it
// wraps and must be released exactly once via Close.
type embedder interface {
	// PrepareForExport picks the target encoding from the page metadata
	// and runs any depth reduction it implies.
	PrepareForExport() error
	// Bytes returns the encoded image stream.
	Bytes() ([]byte, error)
	Width() int
	Height() int
	HorizontalDPI() float64
	VerticalDPI() float64
	// Format is the fpdf image type name: "JPEG" or "PNG".
	Format() string
	Close() error
}

// newEmbedder selects the embedder variant for a page. Untransformed
// single-frame color JPEGs are copied directly; grayscale (single
// component) JPEGs are not embeddable as-is and fall back to re-encode,
// like everything else.
func newEmbedder(img *scanimage.Image) (embedder, error) {
	if len(img.JPEGData) > 0 && !img.TransformApplied {
		e, err := newDirectCopyEmbedder(img)
		if err == nil {
			return e, nil
		}
		if !errors.Is(err, errNotEmbeddable) {
			return nil, err
		}
	}
	return newReencodeEmbedder(img)
}

// directCopyEmbedder serializes the original JPEG bytes unchanged.
type directCopyEmbedder struct {
	data       []byte
	w, h       int
	hdpi, vdpi float64
	closed     bool
}

func newDirectCopyEmbedder(img *scanimage.Image) (*directCopyEmbedder, error) {
	components, frames, err := jpegFrameInfo(img.JPEGData)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect jpeg: %w", err)
	}
	// A single-component JPEG decodes to DeviceGray, which the viewer-side
	// color handling of the direct path cannot represent. Multi-frame data
	// would embed more than one image. Both re-encode instead.
	if components <= 1 || frames != 1 {
		return nil, errNotEmbeddable
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(img.JPEGData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode jpeg config: %w", err)
	}
	return &directCopyEmbedder{
		data: img.JPEGData,
		w:    cfg.Width,
		h:    cfg.Height,
		hdpi: img.HorizontalDPI,
		vdpi: img.VerticalDPI,
	}, nil
}

func (e *directCopyEmbedder) PrepareForExport() error { return nil }

func (e *directCopyEmbedder) Bytes() ([]byte, error) {
	if e.closed {
		return nil, errors.New("embedder already released")
	}
	return e.data, nil
}

func (e *directCopyEmbedder) Width() int             { return e.w }
func (e *directCopyEmbedder) Height() int            { return e.h }
func (e *directCopyEmbedder) HorizontalDPI() float64 { return e.hdpi }
func (e *directCopyEmbedder) VerticalDPI() float64   { return e.vdpi }
func (e *directCopyEmbedder) Format() string         { return "JPEG" }

func (e *directCopyEmbedder) Close() error {
	e.data = nil
	e.closed = true
	return nil
}

// reencodeEmbedder encodes the decoded frame fresh, applying the bit-depth
// preference of the page.
type reencodeEmbedder struct {
	frame      image.Image
	depth      scanimage.BitDepth
	lossless   bool
	hdpi, vdpi float64

	format  string
	encoded []byte
	closed  bool
}

func newReencodeEmbedder(img *scanimage.Image) (*reencodeEmbedder, error) {
	frame := img.Frame
	if frame == nil {
		if len(img.JPEGData) == 0 {
			return nil, errors.New("page has no pixel data to encode")
		}
		decoded, err := jpeg.Decode(bytes.NewReader(img.JPEGData))
		if err != nil {
			return nil, fmt.Errorf("failed to decode jpeg: %w", err)
		}
		frame = decoded
	}
	return &reencodeEmbedder{
		frame:    frame,
		depth:    img.BitDepth,
		lossless: img.Lossless,
		hdpi:     img.HorizontalDPI,
		vdpi:     img.VerticalDPI,
	}, nil
}

// PrepareForExport picks PNG for lossless and bilevel pages, JPEG
// otherwise, reducing depth first where the target format requires it.
func (e *reencodeEmbedder) PrepareForExport() error {
	if e.closed {
		return errors.New("embedder already released")
	}
	switch {
	case e.depth == scanimage.BlackWhite:
		if !scanimage.IsBlackWhite(e.frame) {
			e.frame = scanimage.ToBlackWhite(e.frame, scanimage.DefaultBlackWhiteThreshold)
		}
		e.format = "PNG"
	case e.depth == scanimage.Grayscale:
		e.frame = scanimage.ToGray(e.frame)
		if e.lossless {
			e.format = "PNG"
		} else {
			e.format = "JPEG"
		}
	case e.lossless:
		e.format = "PNG"
	default:
		e.format = "JPEG"
	}
	return nil
}

func (e *reencodeEmbedder) Bytes() ([]byte, error) {
	if e.closed {
		return nil, errors.New("embedder already released")
	}
	if e.encoded != nil {
		return e.encoded, nil
	}
	if e.format == "" {
		if err := e.PrepareForExport(); err != nil {
			return nil, err
		}
	}
	var buf bytes.Buffer
	var err error
	if e.format == "PNG" {
		err = png.Encode(&buf, e.frame)
	} else {
		err = jpeg.Encode(&buf, e.frame, &jpeg.Options{Quality: jpegQuality})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode page image: %w", err)
	}
	e.encoded = buf.Bytes()
	return e.encoded, nil
}

func (e *reencodeEmbedder) Width() int {
	return e.frame.Bounds().Dx()
}

func (e *reencodeEmbedder) Height() int {
	return e.frame.Bounds().Dy()
}

func (e *reencodeEmbedder) HorizontalDPI() float64 { return e.hdpi }
func (e *reencodeEmbedder) VerticalDPI() float64   { return e.vdpi }

func (e *reencodeEmbedder) Format() string {
	if e.format == "" {
		return "JPEG"
	}
	return e.format
}

func (e *reencodeEmbedder) Close() error {
	e.frame = nil
	e.encoded = nil
	e.closed = true
	return nil
}

// jpegFrameInfo walks the JPEG segment markers and returns the number of
// color components of the first frame and the number of frames seen before
// scan data. image/jpeg does not expose either.
func jpegFrameInfo(data []byte) (components, frames int, err error) {
	if len(data) < 4 || data[0] != 0xff || data[1] != 0xd8 {
		return 0, 0, errors.New("not a jpeg stream")
	}
	i := 2
	for i+4 <= len(data) {
		if data[i] != 0xff {
			i++
			continue
		}
		marker := data[i+1]
		if marker == 0xd8 || (marker >= 0xd0 && marker <= 0xd7) || marker == 0x01 {
			i += 2
			continue
		}
		if marker == 0xd9 { // EOI
			break
		}
		length := int(data[i+2])<<8 | int(data[i+3])
		if length < 2 || i+2+length > len(data) {
			return 0, 0, errors.New("truncated jpeg segment")
		}
		// SOF0-SOF15, excluding DHT (c4), JPG (c8) and DAC (cc).
		if marker >= 0xc0 && marker <= 0xcf && marker != 0xc4 && marker != 0xc8 && marker != 0xcc {
			frames++
			if components == 0 && length >= 8 {
				components = int(data[i+2+7])
			}
		}
		if marker == 0xda { // SOS, entropy data follows
			break
		}
		i += 2 + length
	}
	if frames == 0 {
		return 0, 0, errors.New("jpeg stream has no frame header")
	}
	return components, frames, nil
}
