// Package qr renders QR codes for scene QR objects.
package qr

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	"github.com/skip2/go-qrcode"

	"github.com/luneo/canvas-engine/internal/colors"
	"github.com/luneo/canvas-engine/internal/document"
)

const (
	DefaultSize   = 200
	DefaultMargin = 1
)

// Request describes one QR code.
type Request struct {
	Data       string
	Size       int
	Margin     int
	Foreground string
	Background string
	Level      document.QRLevel
}

// Encoder is the QR generator backed by go-qrcode.
type Encoder struct{}

func NewEncoder() *Encoder { return &Encoder{} }

// Encode renders req as a Size×Size PNG. Margin is in modules. Failures wrap
// document.ErrQRGeneration.
func (e *Encoder) Encode(ctx context.Context, req Request) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := e.Image(req)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: png: %v", document.ErrQRGeneration, err)
	}
	return buf.Bytes(), nil
}

// Image renders req without encoding it.
func (e *Encoder) Image(req Request) (image.Image, error) {
	if req.Data == "" {
		return nil, fmt.Errorf("%w: empty data", document.ErrQRGeneration)
	}
	if req.Size <= 0 {
		req.Size = DefaultSize
	}
	if req.Margin < 0 {
		req.Margin = DefaultMargin
	}

	fg, err := colors.Parse(defaultString(req.Foreground, "#000000"))
	if err != nil {
		return nil, fmt.Errorf("%w: foreground: %v", document.ErrQRGeneration, err)
	}
	bg, err := colors.Parse(defaultString(req.Background, "#ffffff"))
	if err != nil {
		return nil, fmt.Errorf("%w: background: %v", document.ErrQRGeneration, err)
	}

	code, err := qrcode.New(req.Data, RecoveryLevel(req.Level))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", document.ErrQRGeneration, err)
	}
	code.DisableBorder = true
	code.ForegroundColor = fg
	code.BackgroundColor = bg

	modules := len(code.Bitmap())
	total := modules + 2*req.Margin
	cell := max(req.Size/total, 1)
	inner := code.Image(cell * modules)

	out := image.NewNRGBA(image.Rect(0, 0, req.Size, req.Size))
	draw.Draw(out, out.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)
	offset := (req.Size - inner.Bounds().Dx()) / 2
	draw.Draw(out, inner.Bounds().Add(image.Pt(offset, offset)), inner, inner.Bounds().Min, draw.Over)
	return out, nil
}

// DataURI encodes a PNG as a data URI.
func DataURI(pngBytes []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)
}

// RecoveryLevel maps L/M/Q/H to go-qrcode levels. Unknown levels use M.
func RecoveryLevel(l document.QRLevel) qrcode.RecoveryLevel {
	switch l {
	case document.QRLevelL:
		return qrcode.Low
	case document.QRLevelQ:
		return qrcode.High
	case document.QRLevelH:
		return qrcode.Highest
	default:
		return qrcode.Medium
	}
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
