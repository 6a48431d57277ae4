// Package export renders scene snapshots to raster images, SVG and PDF
// documents, and runs cached export jobs that land in object storage.
package export

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/luneo/canvas-engine/internal/document"
	"github.com/luneo/canvas-engine/internal/geom"
)

// ErrInvalidOptions is returned for unusable export options.
var ErrInvalidOptions = errors.New("invalid export options")

type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatWebP Format = "webp"
)

const (
	DefaultBleed      = 3.0  // mm
	DefaultMarkLength = 20.0 // pt
	maxPixelRatio     = 8
	maxPixels         = 64 << 20
)

// Options drives every export kind. Fields a kind does not use are ignored.
type Options struct {
	Format     Format      `json:"format,omitempty" validate:"omitempty,oneof=png jpeg jpg webp"`
	Quality    float64     `json:"quality,omitempty" validate:"gte=0,lte=1"`
	PixelRatio float64     `json:"pixelRatio,omitempty" validate:"gte=0,lte=8"`
	DPI        float64     `json:"dpi,omitempty" validate:"gte=0,lte=576"`
	Area       *geom.Rect  `json:"area,omitempty"`
	Background string      `json:"background,omitempty"`
	Page       PageOptions `json:"page"`
	Label      string      `json:"label,omitempty" validate:"max=200"`
	Bleed      *float64    `json:"bleed,omitempty" validate:"omitempty,gte=0,lte=20"`
	CropMarks  *bool       `json:"cropMarks,omitempty"`
}

// format normalizes Format, defaulting to png.
func (o Options) format() (Format, error) {
	switch f := Format(strings.ToLower(string(o.Format))); f {
	case "", FormatPNG:
		return FormatPNG, nil
	case FormatJPEG, "jpg":
		return FormatJPEG, nil
	case FormatWebP:
		return FormatWebP, nil
	default:
		return "", fmt.Errorf("%w: format %q", ErrInvalidOptions, o.Format)
	}
}

// quality defaults to 1.
func (o Options) quality() float64 {
	if o.Quality <= 0 || o.Quality > 1 {
		return 1
	}
	return o.Quality
}

// pixelRatio prefers PixelRatio, then DPI/72, then 1.
func (o Options) pixelRatio() (float64, error) {
	r := o.PixelRatio
	if r == 0 && o.DPI > 0 {
		r = o.DPI / 72
	}
	if r == 0 {
		r = 1
	}
	if r < 0 || r > maxPixelRatio || math.IsNaN(r) {
		return 0, fmt.Errorf("%w: pixel ratio %.2f", ErrInvalidOptions, r)
	}
	return r, nil
}

func (o Options) bleed() float64 {
	if o.Bleed == nil {
		return DefaultBleed
	}
	return *o.Bleed
}

func (o Options) cropMarks() bool {
	return o.CropMarks == nil || *o.CropMarks
}

// exportArea resolves the area to render. An explicit area must have
// positive size and overlap the canvas.
func exportArea(s *document.Scene, area *geom.Rect) (geom.Rect, error) {
	if s == nil {
		return geom.Rect{}, document.ErrEngineNotInitialized
	}
	if area == nil {
		if s.Width <= 0 || s.Height <= 0 {
			return geom.Rect{}, fmt.Errorf("%w: canvas is %.0fx%.0f", document.ErrInvalidExportArea, s.Width, s.Height)
		}
		return s.Bounds(), nil
	}
	a := *area
	if a.Width <= 0 || a.Height <= 0 {
		return geom.Rect{}, fmt.Errorf("%w: %.1fx%.1f", document.ErrInvalidExportArea, a.Width, a.Height)
	}
	if !a.Intersects(s.Bounds()) {
		return geom.Rect{}, fmt.Errorf("%w: area outside canvas", document.ErrInvalidExportArea)
	}
	return a, nil
}

func extension(f Format) string {
	if f == FormatJPEG {
		return "jpg"
	}
	return string(f)
}

func contentType(f Format) string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatWebP:
		return "image/webp"
	default:
		return "image/png"
	}
}
