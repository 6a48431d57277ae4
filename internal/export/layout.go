package export

import (
	"fmt"
	"strings"
)

// PxToMM converts design pixels (96 dpi) to millimetres.
const PxToMM = 0.264583

type PageFormat string

const (
	PageA4     PageFormat = "a4"
	PageA3     PageFormat = "a3"
	PageLetter PageFormat = "letter"
	PageLegal  PageFormat = "legal"
	PageCustom PageFormat = "custom"
)

type Orientation string

const (
	OrientationAuto      Orientation = "auto"
	OrientationPortrait  Orientation = "portrait"
	OrientationLandscape Orientation = "landscape"
)

// portrait sizes in mm
var pageSizes = map[PageFormat][2]float64{
	PageA4:     {210, 297},
	PageA3:     {297, 420},
	PageLetter: {215.9, 279.4},
	PageLegal:  {215.9, 355.6},
}

// PageOptions describes a document page. Dimensions and margin are in mm.
type PageOptions struct {
	Format      PageFormat  `json:"format,omitempty" validate:"omitempty,oneof=a4 a3 letter legal custom"`
	Orientation Orientation `json:"orientation,omitempty" validate:"omitempty,oneof=auto portrait landscape"`
	Width       float64     `json:"width,omitempty" validate:"gte=0"`
	Height      float64     `json:"height,omitempty" validate:"gte=0"`
	Margin      float64     `json:"margin,omitempty" validate:"gte=0"`
}

// PageSize returns the page width and height in mm for content of the given
// aspect. Auto orientation picks landscape when the content is wider than tall.
func PageSize(p PageOptions, contentW, contentH float64) (float64, float64, error) {
	format := PageFormat(strings.ToLower(string(p.Format)))
	if format == "" {
		format = PageA4
	}

	var w, h float64
	if format == PageCustom {
		if p.Width <= 0 || p.Height <= 0 {
			return 0, 0, fmt.Errorf("%w: custom page needs width and height", ErrInvalidOptions)
		}
		w, h = p.Width, p.Height
	} else {
		size, ok := pageSizes[format]
		if !ok {
			return 0, 0, fmt.Errorf("%w: unknown page format %q", ErrInvalidOptions, p.Format)
		}
		w, h = size[0], size[1]
	}

	landscape := false
	switch p.Orientation {
	case OrientationLandscape:
		landscape = true
	case OrientationPortrait:
	case OrientationAuto, "":
		landscape = contentW > contentH
	default:
		return 0, 0, fmt.Errorf("%w: unknown orientation %q", ErrInvalidOptions, p.Orientation)
	}
	if format != PageCustom && landscape != (w > h) {
		w, h = h, w
	}
	return w, h, nil
}

// Fit is where scaled content sits on a page, in page units.
type Fit struct {
	Scale  float64
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// FitToPage scales content to fit within the page margins, preserving aspect
// ratio, and centers it on the page.
func FitToPage(pageW, pageH, margin, contentW, contentH float64) (Fit, error) {
	cw, ch := pageW-2*margin, pageH-2*margin
	if cw <= 0 || ch <= 0 {
		return Fit{}, fmt.Errorf("%w: margin %.1f leaves no room on %.1fx%.1f page", ErrInvalidOptions, margin, pageW, pageH)
	}
	if contentW <= 0 || contentH <= 0 {
		return Fit{}, fmt.Errorf("%w: empty content", ErrInvalidOptions)
	}
	scale := min(cw/contentW, ch/contentH)
	w, h := contentW*scale, contentH*scale
	return Fit{
		Scale:  scale,
		X:      (pageW - w) / 2,
		Y:      (pageH - h) / 2,
		Width:  w,
		Height: h,
	}, nil
}
