// Package hocr parses hOCR documents into a structured form.
//
// hOCR is the de-facto interchange format for OCR engines: an HTML document
// whose elements carry recognition classes (ocr_page, ocr_line, ocrx_word)
// and bounding boxes in the title attribute. This package flattens the
// area/paragraph nesting found in engine output down to pages, lines and
// words, which is the granularity PDF text layers are built from.
package hocr

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/encoding/charmap"
)

// Parse converts raw hOCR data into a structured HOCR object.
func Parse(data []byte) (HOCR, error) {
	var result HOCR
	result.Metadata = make(map[string]string)

	decoded, err := decodeCharset(data)
	if err != nil {
		return result, err
	}

	doc, err := html.Parse(strings.NewReader(string(decoded)))
	if err != nil {
		return result, err
	}

	extractDocumentMeta(&result, doc)

	var findPages func(*html.Node)
	findPages = func(n *html.Node) {
		if n.Type == html.ElementNode && hasClass(n, "ocr_page") {
			result.Pages = append(result.Pages, processPage(n))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findPages(c)
		}
	}
	findPages(doc)

	if len(result.Pages) == 0 {
		return result, fmt.Errorf("no ocr_page elements found in hOCR data")
	}
	return result, nil
}

// decodeCharset converts the document to UTF-8 when the declared charset is
// a latin-1 variant. Engines that emit anything else already emit UTF-8.
func decodeCharset(data []byte) ([]byte, error) {
	content := string(data)
	idx := strings.Index(content, "charset=")
	if idx < 0 {
		return data, nil
	}
	enc := strings.ToLower(strings.FieldsFunc(content[idx+len("charset="):], func(r rune) bool {
		return r == '"' || r == ';' || r == '\'' || r == '>' || r == ' '
	})[0])
	if enc == "" || enc == "utf-8" {
		return data, nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", enc, err)
	}
	return decoded, nil
}

// ParseTitle breaks down an hOCR title attribute into its components.
// Example input: "bbox 100 200 300 400; x_wconf 95"
func ParseTitle(title string) map[string][]string {
	result := make(map[string][]string)
	for _, part := range strings.Split(title, ";") {
		items := strings.Fields(strings.TrimSpace(part))
		if len(items) > 0 {
			result[items[0]] = items[1:]
		}
	}
	return result
}

// ParseBoundingBoxFromTitle extracts a bounding box from a title string.
// Returns nil if the title carries no bbox property.
func ParseBoundingBoxFromTitle(title string) *BoundingBox {
	props := ParseTitle(title)
	if bbox, ok := props["bbox"]; ok && len(bbox) >= 4 {
		x1, _ := strconv.ParseFloat(bbox[0], 64)
		y1, _ := strconv.ParseFloat(bbox[1], 64)
		x2, _ := strconv.ParseFloat(bbox[2], 64)
		y2, _ := strconv.ParseFloat(bbox[3], 64)
		result := NewBoundingBox(x1, y1, x2, y2)
		return &result
	}
	return nil
}

// extractDocumentMeta extracts document-level metadata from the head section.
func extractDocumentMeta(result *HOCR, doc *html.Node) {
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "html":
				if lang := getAttrVal(n, "lang"); lang != "" {
					result.Language = lang
				}
			case "title":
				if n.FirstChild != nil {
					result.Title = n.FirstChild.Data
				}
			case "meta":
				name := getAttrVal(n, "name")
				content := getAttrVal(n, "content")
				switch name {
				case "":
				case "ocr-system":
					result.System = content
				case "dc.language":
					result.Language = content
				default:
					if content != "" {
						result.Metadata[name] = content
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
}

// processPage extracts page information and flattens all nested lines into
// the page, regardless of intermediate carea/paragraph grouping.
func processPage(n *html.Node) Page {
	page := Page{
		ID:   getAttrVal(n, "id"),
		Lang: getAttrVal(n, "lang"),
	}

	title := getAttrVal(n, "title")
	if bbox := ParseBoundingBoxFromTitle(title); bbox != nil {
		page.BBox = *bbox
	}
	props := ParseTitle(title)
	if image, ok := props["image"]; ok && len(image) > 0 {
		page.ImageName = strings.Trim(image[0], `"`)
	}
	if ppageno, ok := props["ppageno"]; ok && len(ppageno) > 0 {
		page.PageNumber, _ = strconv.Atoi(ppageno[0])
	}

	var collectLines func(*html.Node, bool)
	collectLines = func(node *html.Node, rtl bool) {
		if node.Type == html.ElementNode {
			if getAttrVal(node, "dir") == "rtl" {
				rtl = true
			}
			if hasClass(node, "ocr_line") || hasClass(node, "ocr_header") || hasClass(node, "ocr_caption") {
				page.Lines = append(page.Lines, processLine(node, rtl))
				return
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			collectLines(c, rtl)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectLines(c, false)
	}

	return page
}

// processLine extracts one text line and its words. The rtl flag is
// inherited from enclosing elements and can be overridden per word.
func processLine(n *html.Node, rtl bool) Line {
	line := Line{
		ID:   getAttrVal(n, "id"),
		Lang: getAttrVal(n, "lang"),
	}
	title := getAttrVal(n, "title")
	if bbox := ParseBoundingBoxFromTitle(title); bbox != nil {
		line.BBox = *bbox
	}
	if baseline, ok := ParseTitle(title)["baseline"]; ok {
		line.Baseline = strings.Join(baseline, " ")
	}

	var collectWords func(*html.Node, bool)
	collectWords = func(node *html.Node, rtl bool) {
		if node.Type == html.ElementNode {
			switch getAttrVal(node, "dir") {
			case "rtl":
				rtl = true
			case "ltr":
				rtl = false
			}
			if hasClass(node, "ocrx_word") {
				word := Word{
					ID:          getAttrVal(node, "id"),
					Lang:        getAttrVal(node, "lang"),
					Text:        textContent(node),
					RightToLeft: rtl,
				}
				wordTitle := getAttrVal(node, "title")
				if bbox := ParseBoundingBoxFromTitle(wordTitle); bbox != nil {
					word.BBox = *bbox
				}
				if conf, ok := ParseTitle(wordTitle)["x_wconf"]; ok && len(conf) > 0 {
					word.Confidence, _ = strconv.ParseFloat(conf[0], 64)
				}
				line.Words = append(line.Words, word)
				return
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			collectWords(c, rtl)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectWords(c, rtl)
	}

	return line
}

// textContent concatenates all text nodes beneath n.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

func getAttrVal(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(getAttrVal(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}
