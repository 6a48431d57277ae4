package export

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/luneo/canvas-engine/internal/document"
	"github.com/luneo/canvas-engine/internal/geom"
)

const (
	// LabelHeight is the band reserved above a labelled page image, in mm.
	LabelHeight   = 10.0
	labelFontSize = 12.0
	markWidth     = 0.25 * mmPerPt
	mmPerPt       = 25.4 / 72
	printRatio    = 2.0
)

// fixed so identical inputs produce identical bytes
var pdfDate = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// Page is one scene placed on a document page.
type Page struct {
	Scene *document.Scene `json:"scene" validate:"required"`
	Label string          `json:"label,omitempty" validate:"max=200"`
}

// PageLayout is where a page image and its label land, in mm.
type PageLayout struct {
	Width  float64
	Height float64
	Image  Fit
	Label  geom.Rect
}

// LayoutPage computes the page size and image placement for a scene of
// sceneW×sceneH. A label takes a LabelHeight band directly above the image.
func LayoutPage(p PageOptions, sceneW, sceneH float64, label bool) (PageLayout, error) {
	pw, ph, err := PageSize(p, sceneW, sceneH)
	if err != nil {
		return PageLayout{}, err
	}
	band := 0.0
	if label {
		band = LabelHeight
	}
	fit, err := FitToPage(pw, ph-band, p.Margin, sceneW, sceneH)
	if err != nil {
		return PageLayout{}, err
	}
	fit.Y += band
	out := PageLayout{Width: pw, Height: ph, Image: fit}
	if label {
		out.Label = geom.Rect{X: fit.X, Y: fit.Y - band, Width: fit.Width, Height: band}
	}
	return out, nil
}

// ComposeDocument renders each page's scene and places it on its own PDF
// page, scaled to fit within the margins and centered.
func (x *Exporter) ComposeDocument(ctx context.Context, pages []Page, opts Options) ([]byte, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: no pages", ErrInvalidOptions)
	}
	format, err := opts.format()
	if err != nil {
		return nil, err
	}
	if format == FormatWebP {
		format = FormatPNG
	}
	if format == FormatJPEG && opts.Background == "" {
		opts.Background = "#ffffff"
	}

	layouts := make([]PageLayout, len(pages))
	for i, p := range pages {
		if p.Scene == nil {
			return nil, fmt.Errorf("page %d: %w", i+1, document.ErrEngineNotInitialized)
		}
		l, err := LayoutPage(opts.Page, p.Scene.Width, p.Scene.Height, p.Label != "")
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		layouts[i] = l
	}

	pdf := newPDF(layouts[0].Width, layouts[0].Height)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	imgType := pdfImageType(format)

	for i, p := range pages {
		pageOpts := opts
		pageOpts.Area = nil
		pageOpts.Format = format
		data, err := x.Rasterize(ctx, p.Scene, pageOpts)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}

		l := layouts[i]
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: l.Width, Ht: l.Height})
		name := "page" + strconv.Itoa(i+1)
		info := fpdf.ImageOptions{ImageType: imgType}
		pdf.RegisterImageOptionsReader(name, info, bytes.NewReader(data))
		pdf.ImageOptions(name, l.Image.X, l.Image.Y, l.Image.Width, l.Image.Height, false, info, 0, "")

		if p.Label != "" {
			pdf.SetFont("Helvetica", "", labelFontSize)
			pdf.SetTextColor(0, 0, 0)
			pdf.SetXY(l.Label.X, l.Label.Y)
			pdf.CellFormat(l.Label.Width, l.Label.Height, tr(p.Label), "", 0, "CM", false, 0, "")
		}
		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
	}
	return output(pdf)
}

// Mark is a crop mark line in mm.
type Mark struct {
	X1, Y1, X2, Y2 float64
}

// PrintSheet is the geometry of a print-ready page in mm. Trim is the
// finished product size, Bleed the trim grown by the bleed on each side.
type PrintSheet struct {
	Width  float64
	Height float64
	Trim   geom.Rect
	Bleed  geom.Rect
	Marks  []Mark
}

// LayoutPrint sizes the sheet to the scene at PxToMM plus bleed, and, with
// crop marks, a slug of one mark length around the bleed. Marks extend
// outward from the bleed edge in line with the trim edges.
func LayoutPrint(sceneW, sceneH float64, opts Options) (PrintSheet, error) {
	if sceneW <= 0 || sceneH <= 0 {
		return PrintSheet{}, fmt.Errorf("%w: canvas is %.0fx%.0f", document.ErrInvalidExportArea, sceneW, sceneH)
	}
	b := opts.bleed()
	if b < 0 {
		return PrintSheet{}, fmt.Errorf("%w: negative bleed", ErrInvalidOptions)
	}
	slug := 0.0
	if opts.cropMarks() {
		slug = DefaultMarkLength * mmPerPt
	}

	tw, th := sceneW*PxToMM, sceneH*PxToMM
	trim := geom.Rect{X: slug + b, Y: slug + b, Width: tw, Height: th}
	sheet := PrintSheet{
		Width:  tw + 2*(b+slug),
		Height: th + 2*(b+slug),
		Trim:   trim,
		Bleed:  trim.Inset(-b),
	}
	if slug == 0 {
		return sheet, nil
	}

	l, r := trim.X, trim.X+trim.Width
	t, btm := trim.Y, trim.Y+trim.Height
	sheet.Marks = []Mark{
		{l - b - slug, t, l - b, t},
		{l, t - b - slug, l, t - b},
		{r + b, t, r + b + slug, t},
		{r, t - b - slug, r, t - b},
		{l - b - slug, btm, l - b, btm},
		{l, btm + b, l, btm + b + slug},
		{r + b, btm, r + b + slug, btm},
		{r, btm + b, r, btm + b + slug},
	}
	return sheet, nil
}

// Print renders a single-page print PDF: the scene extended by the bleed,
// filled with the scene background, plus crop marks.
func (x *Exporter) Print(ctx context.Context, s *document.Scene, opts Options) ([]byte, error) {
	if s == nil {
		return nil, document.ErrEngineNotInitialized
	}
	sheet, err := LayoutPrint(s.Width, s.Height, opts)
	if err != nil {
		return nil, err
	}

	bpx := opts.bleed() / PxToMM
	rasterOpts := Options{
		Format:     FormatPNG,
		PixelRatio: opts.PixelRatio,
		DPI:        opts.DPI,
		Area:       &geom.Rect{X: -bpx, Y: -bpx, Width: s.Width + 2*bpx, Height: s.Height + 2*bpx},
		Background: opts.Background,
	}
	if rasterOpts.PixelRatio == 0 && rasterOpts.DPI == 0 {
		rasterOpts.PixelRatio = printRatio
	}
	if rasterOpts.Background == "" {
		rasterOpts.Background = s.Background.Color
	}
	if rasterOpts.Background == "" {
		rasterOpts.Background = "#ffffff"
	}
	data, err := x.Rasterize(ctx, s, rasterOpts)
	if err != nil {
		return nil, err
	}

	pdf := newPDF(sheet.Width, sheet.Height)
	pdf.AddPage()
	info := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("artwork", info, bytes.NewReader(data))
	pdf.ImageOptions("artwork", sheet.Bleed.X, sheet.Bleed.Y, sheet.Bleed.Width, sheet.Bleed.Height, false, info, 0, "")

	if len(sheet.Marks) > 0 {
		pdf.SetDrawColor(0, 0, 0)
		pdf.SetLineWidth(markWidth)
		for _, m := range sheet.Marks {
			pdf.Line(m.X1, m.Y1, m.X2, m.Y2)
		}
	}
	return output(pdf)
}

func newPDF(w, h float64) *fpdf.Fpdf {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: w, Ht: h},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreationDate(pdfDate)
	pdf.SetModificationDate(pdfDate)
	pdf.SetCatalogSort(true)
	return pdf
}

func output(pdf *fpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func pdfImageType(f Format) string {
	if f == FormatJPEG {
		return "JPG"
	}
	return "PNG"
}

