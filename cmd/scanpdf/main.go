// scanpdf is a command-line tool for exporting scanned images and PDF pages
// to a single searchable PDF.
//
// Image inputs (PNG, JPEG) are embedded as full-bleed page images with an
// invisible OCR text layer. PDF inputs are passed through page by page
// without re-rendering; pages that carry no text are rasterized, OCR'd and
// given a text layer of their own.
//
// Usage:
//
//	scanpdf -output out.pdf [options] input1.jpg input2.png input3.pdf ...
//
// Required flags:
//
//	-output string  Output PDF path
//
// OCR options:
//
//	-lang string    OCR language code(s), e.g. "eng" or "eng+deu" (default "eng")
//	-no-ocr         Disable OCR entirely
//	-docai string   YAML config for Google Document AI (uses Tesseract when unset)
//
// Document options:
//
//	-compat string  Compatibility mode: default, pdfa1b, pdfa2b, pdfa3b, pdfa3u
//	-dpi float      Resolution assumed for image inputs (default 300)
//	-title, -author, -subject, -keywords string  Document metadata
//
// Security options:
//
//	-owner-password, -user-password string  Enable encryption
//	-allow-printing, -allow-copying, -allow-editing, -allow-annotations
//
// Other options:
//
//	-profile string          YAML export profile; explicit flags override it
//	-source-password string  Password for protected input PDFs
//	-workers int             Per-stage parallelism (default: CPU count)
//	-overwrite               Overwrite the output file if it exists
//	-validate                Validate the output with pdfcpu after export
//	-verbose                 Debug logging and per-page progress
//
// Authentication for Document AI uses the GOOGLE_APPLICATION_CREDENTIALS
// environment variable, and the YAML config carries:
//
//	project_id: "your-gcp-project-id"
//	location: "us"
//	processor_id: "your-processor-id"
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	ledongthuc "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/rohadistp/naps2/pkg/ocr"
	"github.com/rohadistp/naps2/pkg/pdfexport"
	"github.com/rohadistp/naps2/pkg/scanimage"
)

type docaiYAML struct {
	ProjectID   string `yaml:"project_id"`
	Location    string `yaml:"location"`
	ProcessorID string `yaml:"processor_id"`
}

// exportProfile is a reusable yaml export configuration. Flags given on the
// command line override profile values.
type exportProfile struct {
	Lang          string    `yaml:"lang"`
	Compat        string    `yaml:"compat"`
	DPI           float64   `yaml:"dpi"`
	Title         string    `yaml:"title"`
	Author        string    `yaml:"author"`
	Subject       string    `yaml:"subject"`
	Keywords      string    `yaml:"keywords"`
	OwnerPassword string    `yaml:"owner_password"`
	UserPassword  string    `yaml:"user_password"`
	Workers       int       `yaml:"workers"`
	DocAI         docaiYAML `yaml:"docai"`
}

func loadProfile(path string) (*exportProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p exportProfile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func loadDocAIConfig(path string) (ocr.DocAIConfig, error) {
	var yc docaiYAML
	data, err := os.ReadFile(path)
	if err != nil {
		return ocr.DocAIConfig{}, err
	}
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return ocr.DocAIConfig{}, err
	}
	return ocr.DocAIConfig{
		ProjectID:   yc.ProjectID,
		Location:    yc.Location,
		ProcessorID: yc.ProcessorID,
	}, nil
}

func parseCompat(s string) (pdfexport.Compat, error) {
	switch strings.ToLower(s) {
	case "", "default":
		return pdfexport.CompatDefault, nil
	case "pdfa1b":
		return pdfexport.CompatPdfA1B, nil
	case "pdfa2b":
		return pdfexport.CompatPdfA2B, nil
	case "pdfa3b":
		return pdfexport.CompatPdfA3B, nil
	case "pdfa3u":
		return pdfexport.CompatPdfA3U, nil
	}
	return pdfexport.CompatDefault, fmt.Errorf("unknown compatibility mode %q", s)
}

// loadInputs expands the argument list into export pages: one page per
// image file, one page per page of each PDF file.
func loadInputs(paths []string, dpi float64, sourcePassword string) ([]*scanimage.Image, error) {
	var images []*scanimage.Image
	for _, path := range paths {
		if strings.EqualFold(filepath.Ext(path), ".pdf") {
			pages, err := loadPDFInput(path, sourcePassword)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			images = append(images, pages...)
			continue
		}
		img, err := loadImageInput(path, dpi)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		images = append(images, img)
	}
	return images, nil
}

func loadPDFInput(path, password string) ([]*scanimage.Image, error) {
	f, reader, err := ledongthuc.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []*scanimage.Image
	for n := 1; n <= reader.NumPage(); n++ {
		pages = append(pages, &scanimage.Image{
			PDFPath:     path,
			PDFPage:     n,
			PDFPassword: password,
		})
	}
	return pages, nil
}

func loadImageInput(path string, dpi float64) (*scanimage.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	frame, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	img := &scanimage.Image{
		Frame:         frame,
		HorizontalDPI: dpi,
		VerticalDPI:   dpi,
	}
	if format == "jpeg" {
		img.JPEGData = data
	} else {
		img.Lossless = true
	}
	return img, nil
}

func main() {
	outputPath := flag.String("output", "", "Output PDF path")
	lang := flag.String("lang", "eng", "OCR language code(s), e.g. \"eng\" or \"eng+deu\"")
	noOCR := flag.Bool("no-ocr", false, "Disable OCR entirely")
	docaiPath := flag.String("docai", "", "YAML config for Google Document AI")
	compatName := flag.String("compat", "default", "Compatibility mode: default, pdfa1b, pdfa2b, pdfa3b, pdfa3u")
	dpi := flag.Float64("dpi", 300, "Resolution assumed for image inputs")
	title := flag.String("title", "", "Document title")
	author := flag.String("author", "", "Document author")
	subject := flag.String("subject", "", "Document subject")
	keywords := flag.String("keywords", "", "Document keywords")
	ownerPassword := flag.String("owner-password", "", "Owner password (enables encryption)")
	userPassword := flag.String("user-password", "", "User password (enables encryption)")
	allowPrinting := flag.Bool("allow-printing", true, "Permit printing of the encrypted document")
	allowCopying := flag.Bool("allow-copying", true, "Permit content copying from the encrypted document")
	allowEditing := flag.Bool("allow-editing", false, "Permit editing of the encrypted document")
	allowAnnotations := flag.Bool("allow-annotations", true, "Permit annotating the encrypted document")
	profilePath := flag.String("profile", "", "YAML export profile; explicit flags override it")
	sourcePassword := flag.String("source-password", "", "Password for protected input PDFs")
	workers := flag.Int("workers", 0, "Per-stage parallelism (0 = CPU count)")
	overwrite := flag.Bool("overwrite", false, "Overwrite the output file if it exists")
	validate := flag.Bool("validate", false, "Validate the output with pdfcpu after export")
	verbose := flag.Bool("verbose", false, "Debug logging and per-page progress")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if *verbose {
		log = log.Level(zerolog.DebugLevel)
	} else {
		log = log.Level(zerolog.InfoLevel)
	}

	if *outputPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -output flag is required")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: no input files given")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if _, err := os.Stat(*outputPath); err == nil && !*overwrite {
		fmt.Fprintf(os.Stderr, "Output file %s already exists. Use -overwrite to overwrite.\n", *outputPath)
		os.Exit(1)
	}

	var docaiCfg *ocr.DocAIConfig
	if *profilePath != "" {
		profile, err := loadProfile(*profilePath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load export profile")
		}
		provided := make(map[string]bool)
		flag.Visit(func(f *flag.Flag) { provided[f.Name] = true })
		if !provided["lang"] && profile.Lang != "" {
			*lang = profile.Lang
		}
		if !provided["compat"] && profile.Compat != "" {
			*compatName = profile.Compat
		}
		if !provided["dpi"] && profile.DPI > 0 {
			*dpi = profile.DPI
		}
		if !provided["title"] && profile.Title != "" {
			*title = profile.Title
		}
		if !provided["author"] && profile.Author != "" {
			*author = profile.Author
		}
		if !provided["subject"] && profile.Subject != "" {
			*subject = profile.Subject
		}
		if !provided["keywords"] && profile.Keywords != "" {
			*keywords = profile.Keywords
		}
		if !provided["owner-password"] && profile.OwnerPassword != "" {
			*ownerPassword = profile.OwnerPassword
		}
		if !provided["user-password"] && profile.UserPassword != "" {
			*userPassword = profile.UserPassword
		}
		if !provided["workers"] && profile.Workers > 0 {
			*workers = profile.Workers
		}
		if profile.DocAI.ProcessorID != "" {
			docaiCfg = &ocr.DocAIConfig{
				ProjectID:   profile.DocAI.ProjectID,
				Location:    profile.DocAI.Location,
				ProcessorID: profile.DocAI.ProcessorID,
			}
		}
	}

	compat, err := parseCompat(*compatName)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid -compat")
	}

	images, err := loadInputs(flag.Args(), *dpi, *sourcePassword)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load inputs")
	}
	log.Info().Int("pages", len(images)).Msg("loaded inputs")

	var engine ocr.Engine
	if !*noOCR {
		if *docaiPath != "" {
			cfg, err := loadDocAIConfig(*docaiPath)
			if err != nil {
				log.Fatal().Err(err).Msg("failed to load Document AI config")
			}
			docaiCfg = &cfg
		}
		if docaiCfg != nil {
			engine = ocr.NewDocAIEngine(*docaiCfg)
		} else {
			engine = ocr.NewTesseractEngine()
		}
	}

	params := pdfexport.DefaultParams()
	params.Compat = compat
	params.Workers = *workers
	params.Metadata = pdfexport.Metadata{
		Title:    *title,
		Author:   *author,
		Subject:  *subject,
		Keywords: *keywords,
		Creator:  "scanpdf",
	}
	params.Encryption = pdfexport.Encryption{
		OwnerPassword:    *ownerPassword,
		UserPassword:     *userPassword,
		AllowPrinting:    *allowPrinting,
		AllowCopying:     *allowCopying,
		AllowEditing:     *allowEditing,
		AllowAnnotations: *allowAnnotations,
	}
	if *verbose {
		params.Progress = func(done, total int) {
			log.Debug().Int("done", done).Int("total", total).Msg("page committed")
		}
	}

	var ocrParams *ocr.Params
	if !*noOCR {
		ocrParams = &ocr.Params{
			LanguageCode: *lang,
			Priority:     ocr.PriorityForeground,
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	exporter := pdfexport.NewExporter(engine, log)
	defer exporter.Close()
	ok, err := exporter.ExportFile(ctx, *outputPath, images, params, ocrParams)
	if err != nil {
		log.Fatal().Err(err).Msg("export failed")
	}
	if !ok {
		log.Warn().Msg("export cancelled")
		os.Exit(1)
	}

	if *validate {
		conf := model.NewDefaultConfiguration()
		conf.OwnerPW = *ownerPassword
		conf.UserPW = *userPassword
		if err := api.ValidateFile(*outputPath, conf); err != nil {
			log.Fatal().Err(err).Msg("output failed validation")
		}
		log.Info().Msg("output validated")
	}
	log.Info().Str("output", *outputPath).Msg("export complete")
}
