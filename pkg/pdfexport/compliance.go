package pdfexport

import (
	"bytes"
	"fmt"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// applyCompliance post-processes a serialized document for an archival
// compatibility mode: an XMP metadata block with the PDF/A identification,
// an sRGB output intent, and CID font completion (CIDSet stream and
// CIDToGIDMap) on any composite fonts. Default mode passes the buffer
// through untouched.
//
// This runs object-level on the final buffer rather than during generation,
// because a passthrough merge rebuilds the document and would discard
// catalog-level additions made earlier.
func applyCompliance(data []byte, compat Compat, meta Metadata, now time.Time) ([]byte, error) {
	if !compat.Archival() {
		return data, nil
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to reopen document for compliance: %w", err)
	}

	rootDict, err := ctx.Catalog()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve catalog: %w", err)
	}

	if err := injectXMPMetadata(ctx, rootDict, compat, meta, now); err != nil {
		return nil, err
	}
	if err := injectOutputIntent(ctx, rootDict); err != nil {
		return nil, err
	}
	if err := completeCIDFonts(ctx); err != nil {
		return nil, err
	}
	stripSoftMasks(ctx)

	var out bytes.Buffer
	if err := api.WriteContext(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to write compliant document: %w", err)
	}
	return out.Bytes(), nil
}

// injectXMPMetadata attaches the XMP packet to the catalog.
func injectXMPMetadata(ctx *model.Context, rootDict types.Dict, compat Compat, meta Metadata, now time.Time) error {
	sd, err := ctx.XRefTable.NewStreamDictForBuf(xmpPacket(compat, meta, now))
	if err != nil {
		return fmt.Errorf("failed to build metadata stream: %w", err)
	}
	sd.InsertName("Type", "Metadata")
	sd.InsertName("Subtype", "XML")
	if err := sd.Encode(); err != nil {
		return fmt.Errorf("failed to encode metadata stream: %w", err)
	}
	ref, err := ctx.IndRefForNewObject(*sd)
	if err != nil {
		return fmt.Errorf("failed to allocate metadata object: %w", err)
	}
	rootDict.Update("Metadata", *ref)
	return nil
}

// injectOutputIntent attaches a GTS_PDFA1 output intent carrying an sRGB
// destination profile.
func injectOutputIntent(ctx *model.Context, rootDict types.Dict) error {
	profile, err := ctx.XRefTable.NewStreamDictForBuf(srgbProfile())
	if err != nil {
		return fmt.Errorf("failed to build icc stream: %w", err)
	}
	profile.InsertInt("N", 3)
	if err := profile.Encode(); err != nil {
		return fmt.Errorf("failed to encode icc stream: %w", err)
	}
	profileRef, err := ctx.IndRefForNewObject(*profile)
	if err != nil {
		return fmt.Errorf("failed to allocate icc object: %w", err)
	}

	intent := types.Dict(map[string]types.Object{
		"Type":                      types.Name("OutputIntent"),
		"S":                         types.Name("GTS_PDFA1"),
		"OutputConditionIdentifier": types.StringLiteral("sRGB IEC61966-2.1"),
		"Info":                      types.StringLiteral("sRGB IEC61966-2.1"),
		"DestOutputProfile":         *profileRef,
	})
	intentRef, err := ctx.IndRefForNewObject(intent)
	if err != nil {
		return fmt.Errorf("failed to allocate output intent: %w", err)
	}
	rootDict.Update("OutputIntents", types.Array{*intentRef})
	return nil
}

// completeCIDFonts walks all font descriptors and composite fonts, adding
// the CIDSet stream and CIDToGIDMap entries archival validation expects.
func completeCIDFonts(ctx *model.Context) error {
	for objNr := range ctx.XRefTable.Table {
		entry, ok := ctx.XRefTable.Table[objNr]
		if !ok || entry == nil || entry.Free || entry.Object == nil {
			continue
		}
		dict, ok := entry.Object.(types.Dict)
		if !ok {
			continue
		}
		typ := dict.Type()
		if typ == nil {
			continue
		}
		switch *typ {
		case "FontDescriptor":
			if _, found := dict.Find("CIDSet"); !found {
				sd, err := ctx.XRefTable.NewStreamDictForBuf(fullCoverageCIDSet())
				if err != nil {
					return fmt.Errorf("failed to build CIDSet: %w", err)
				}
				if err := sd.Encode(); err != nil {
					return fmt.Errorf("failed to encode CIDSet: %w", err)
				}
				ref, err := ctx.IndRefForNewObject(*sd)
				if err != nil {
					return fmt.Errorf("failed to allocate CIDSet: %w", err)
				}
				dict.Update("CIDSet", *ref)
			}
		case "Font":
			if sub := dict.Subtype(); sub != nil && *sub == "CIDFontType2" {
				if _, found := dict.Find("CIDToGIDMap"); !found {
					dict.Update("CIDToGIDMap", types.Name("Identity"))
				}
			}
		}
	}
	return nil
}

// stripSoftMasks removes SMask entries from image XObjects. Archival
// validation rejects soft-mask transparency, and the page images never rely
// on it.
func stripSoftMasks(ctx *model.Context) {
	for objNr := range ctx.XRefTable.Table {
		entry, ok := ctx.XRefTable.Table[objNr]
		if !ok || entry == nil || entry.Free || entry.Object == nil {
			continue
		}
		sd, ok := entry.Object.(types.StreamDict)
		if !ok {
			continue
		}
		sub := sd.Dict.Subtype()
		if sub == nil || *sub != "Image" {
			continue
		}
		sd.Dict.Delete("SMask")
	}
}

// fullCoverageCIDSet is a CIDSet bitmap covering the first 256 CIDs, which
// is the range the core-font text layer can address.
func fullCoverageCIDSet() []byte {
	set := make([]byte, 32)
	for i := range set {
		set[i] = 0xff
	}
	return set
}

// xmpPacket renders the XMP metadata block with the PDF/A identification
// schema and the document information mirrored into Dublin Core.
func xmpPacket(compat Compat, meta Metadata, now time.Time) []byte {
	part, conformance := compat.part()
	stamp := now.UTC().Format(time.RFC3339)

	var b bytes.Buffer
	b.WriteString(`<?xpacket begin="` + "\uFEFF" + `" id="W5M0MpCehiHzreSzNTczkc9d"?>` + "\n")
	b.WriteString(`<x:xmpmeta xmlns:x="adobe:ns:meta/">` + "\n")
	b.WriteString(` <rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">` + "\n")
	fmt.Fprintf(&b, `  <rdf:Description rdf:about="" xmlns:pdfaid="http://www.aiim.org/pdfa/ns/id/" pdfaid:part="%d" pdfaid:conformance="%s"/>`+"\n", part, conformance)
	fmt.Fprintf(&b, `  <rdf:Description rdf:about="" xmlns:xmp="http://ns.adobe.com/xap/1.0/" xmp:CreateDate="%s" xmp:ModifyDate="%s"/>`+"\n", stamp, stamp)
	b.WriteString(`  <rdf:Description rdf:about="" xmlns:dc="http://purl.org/dc/elements/1.1/">` + "\n")
	if meta.Title != "" {
		fmt.Fprintf(&b, `   <dc:title><rdf:Alt><rdf:li xml:lang="x-default">%s</rdf:li></rdf:Alt></dc:title>`+"\n", xmlEscape(meta.Title))
	}
	if meta.Author != "" {
		fmt.Fprintf(&b, `   <dc:creator><rdf:Seq><rdf:li>%s</rdf:li></rdf:Seq></dc:creator>`+"\n", xmlEscape(meta.Author))
	}
	if meta.Subject != "" {
		fmt.Fprintf(&b, `   <dc:description><rdf:Alt><rdf:li xml:lang="x-default">%s</rdf:li></rdf:Alt></dc:description>`+"\n", xmlEscape(meta.Subject))
	}
	b.WriteString(`  </rdf:Description>` + "\n")
	b.WriteString(` </rdf:RDF>` + "\n")
	b.WriteString(`</x:xmpmeta>` + "\n")
	b.WriteString(`<?xpacket end="w"?>`)
	return b.Bytes()
}

func xmlEscape(s string) string {
	var b bytes.Buffer
	for _, r := range s {
		switch r {
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '&':
			b.WriteString("&amp;")
		case '"':
			b.WriteString("&quot;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
