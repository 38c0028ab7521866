package pdfexport

import (
	"errors"
)

// ErrNoLayoutFont indicates the requested text layer font is not one of the
// built-in core fonts, so no metrics are available for layout.
var ErrNoLayoutFont = errors.New("pdfexport: no metrics for text layer font")

// Compat selects the compatibility profile of the output document.
type Compat int

const (
	// CompatDefault produces a plain PDF with no archival constraints.
	CompatDefault Compat = iota
	// CompatPdfA1B targets PDF/A-1b.
	CompatPdfA1B
	// CompatPdfA2B targets PDF/A-2b.
	CompatPdfA2B
	// CompatPdfA3B targets PDF/A-3b.
	CompatPdfA3B
	// CompatPdfA3U targets PDF/A-3u.
	CompatPdfA3U
)

func (c Compat) String() string {
	switch c {
	case CompatPdfA1B:
		return "PDF/A-1b"
	case CompatPdfA2B:
		return "PDF/A-2b"
	case CompatPdfA3B:
		return "PDF/A-3b"
	case CompatPdfA3U:
		return "PDF/A-3u"
	default:
		return "default"
	}
}

// Archival reports whether the mode carries archival constraints.
func (c Compat) Archival() bool { return c != CompatDefault }

// DisallowsTransparency reports whether the mode forbids transparency
// groups. Only PDF/A-1 does; later parts permit them.
func (c Compat) DisallowsTransparency() bool { return c == CompatPdfA1B }

// part returns the pdfaid:part / pdfaid:conformance identifiers for XMP.
func (c Compat) part() (part int, conformance string) {
	switch c {
	case CompatPdfA1B:
		return 1, "B"
	case CompatPdfA2B:
		return 2, "B"
	case CompatPdfA3B:
		return 3, "B"
	case CompatPdfA3U:
		return 3, "U"
	default:
		return 0, ""
	}
}

// Encryption is the encryption policy for one export. Empty passwords
// disable encryption entirely.
type Encryption struct {
	OwnerPassword    string
	UserPassword     string
	AllowPrinting    bool
	AllowCopying     bool
	AllowEditing     bool
	AllowAnnotations bool
}

// Enabled reports whether any password is set.
func (e Encryption) Enabled() bool {
	return e.OwnerPassword != "" || e.UserPassword != ""
}

// Metadata is stamped onto the output document.
type Metadata struct {
	Title    string
	Author   string
	Subject  string
	Keywords string
	Creator  string
}

// Params holds the immutable settings for one export call.
type Params struct {
	Compat     Compat
	Encryption Encryption
	Metadata   Metadata

	// FontName is the core font used to lay out the invisible text layer.
	FontName string

	// Workers bounds the per-stage parallelism of the pipelines.
	Workers int

	// Progress, when set, is called after each page is committed with the
	// number of completed pages and the total. Calls are monotonic.
	Progress func(done, total int)
}

// DefaultParams returns params with sensible defaults: no encryption, no
// archival constraints, Helvetica text layer, one worker per CPU.
func DefaultParams() Params {
	return Params{
		Compat:   CompatDefault,
		FontName: "Helvetica",
		Workers:  0, // 0 = runtime.NumCPU()
	}
}

// coreFonts are the built-in fonts fpdf ships metrics for. The text layer
// must use one of these; anything else has no measurable width.
var coreFonts = map[string]bool{
	"Courier":   true,
	"Helvetica": true,
	"Times":     true,
}

func (p *Params) validate() error {
	if p.FontName == "" {
		p.FontName = "Helvetica"
	}
	if !coreFonts[p.FontName] {
		return ErrNoLayoutFont
	}
	return nil
}
