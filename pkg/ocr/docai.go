package ocr

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/encoding/protojson"
)

// DocAIConfig identifies a Google Document AI OCR processor.
type DocAIConfig struct {
	ProjectID   string
	Location    string
	ProcessorID string
}

// DocAIEngine recognizes images with Google Document AI. Authentication uses
// the GOOGLE_APPLICATION_CREDENTIALS environment variable.
type DocAIEngine struct {
	cfg DocAIConfig
	// DumpResponses writes the raw proto response as JSON for debugging.
	DumpResponses bool
}

// NewDocAIEngine returns a Document AI backed engine.
func NewDocAIEngine(cfg DocAIConfig) *DocAIEngine { return &DocAIEngine{cfg: cfg} }

// Name implements Engine.
func (e *DocAIEngine) Name() string { return "gdocai" }

// Available reports whether the processor is configured and credentials are
// reachable.
func (e *DocAIEngine) Available() bool {
	return e.cfg.ProjectID != "" && e.cfg.ProcessorID != "" &&
		os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != ""
}

// ProcessImage implements Engine.
func (e *DocAIEngine) ProcessImage(ctx context.Context, path string, params Params) (*Result, error) {
	if !e.Available() {
		return nil, ErrEngineUnavailable
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "image/png"
	}

	doc, err := e.process(ctx, data, mimeType)
	if err != nil {
		return nil, err
	}
	if len(doc.GetPages()) == 0 {
		return nil, nil
	}
	return resultFromProto(doc), nil
}

// process sends the image bytes to Document AI and returns the raw Document
// proto response.
func (e *DocAIEngine) process(ctx context.Context, data []byte, mimeType string) (*documentaipb.Document, error) {
	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", e.cfg.Location)

	client, err := documentai.NewDocumentProcessorClient(
		ctx,
		option.WithEndpoint(endpoint),
		option.WithCredentialsFile(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Document AI client: %w", err)
	}
	defer client.Close()

	name := fmt.Sprintf(
		"projects/%s/locations/%s/processors/%s",
		e.cfg.ProjectID, e.cfg.Location, e.cfg.ProcessorID,
	)

	req := &documentaipb.ProcessRequest{
		Name: name,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  data,
				MimeType: mimeType,
			},
		},
		SkipHumanReview: true,
	}

	resp, err := client.ProcessDocument(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to process document: %w", err)
	}

	if e.DumpResponses {
		if raw, err := protojson.Marshal(resp.Document); err == nil {
			fmt.Fprintln(os.Stderr, string(raw))
		}
	}

	return resp.Document, nil
}

// resultFromProto converts the first page of a Document AI response into the
// exporter's element list. Boxes come from normalized vertices scaled by the
// page dimension, text from anchor segments into the full document text.
func resultFromProto(doc *documentaipb.Document) *Result {
	page := doc.GetPages()[0]
	dim := page.GetDimension()
	result := &Result{
		PageWidth:  float64(dim.GetWidth()),
		PageHeight: float64(dim.GetHeight()),
	}

	for _, token := range page.GetTokens() {
		layout := token.GetLayout()
		text := strings.TrimSpace(textFromLayout(layout, doc.GetText()))
		if text == "" {
			continue
		}
		bounds, ok := boundsFromLayout(layout, dim)
		if !ok {
			continue
		}
		result.Elements = append(result.Elements, Element{
			Text:        text,
			Bounds:      bounds,
			RightToLeft: IsRightToLeft(text),
		})
	}
	return result
}

// textFromLayout extracts text from a layout's text anchor segments.
func textFromLayout(layout *documentaipb.Document_Page_Layout, fullText string) string {
	if layout == nil || layout.GetTextAnchor() == nil {
		return ""
	}
	runes := []rune(fullText)
	var sb strings.Builder
	for _, seg := range layout.GetTextAnchor().GetTextSegments() {
		start := int(seg.GetStartIndex())
		end := int(seg.GetEndIndex())
		if start < 0 {
			start = 0
		}
		if end > len(runes) {
			end = len(runes)
		}
		if start > end {
			start = end
		}
		sb.WriteString(string(runes[start:end]))
	}
	return sb.String()
}

// boundsFromLayout converts a layout's normalized bounding polygon into an
// axis-aligned pixel box.
func boundsFromLayout(layout *documentaipb.Document_Page_Layout, dim *documentaipb.Document_Page_Dimension) (Bounds, bool) {
	if layout == nil || layout.GetBoundingPoly() == nil || dim == nil {
		return Bounds{}, false
	}
	vertices := layout.GetBoundingPoly().GetNormalizedVertices()
	if len(vertices) < 4 {
		return Bounds{}, false
	}
	minX, minY := float64(vertices[0].GetX()), float64(vertices[0].GetY())
	maxX, maxY := minX, minY
	for _, v := range vertices[1:] {
		x, y := float64(v.GetX()), float64(v.GetY())
		if x < minX {
			minX = x
		}
		if x > maxX {
			maxX = x
		}
		if y < minY {
			minY = y
		}
		if y > maxY {
			maxY = y
		}
	}
	w, h := float64(dim.GetWidth()), float64(dim.GetHeight())
	return Bounds{
		X:      minX * w,
		Y:      minY * h,
		Width:  (maxX - minX) * w,
		Height: (maxY - minY) * h,
	}, true
}
