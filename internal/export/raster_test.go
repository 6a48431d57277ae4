package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/webp"

	"github.com/luneo/canvas-engine/internal/document"
	"github.com/luneo/canvas-engine/internal/geom"
)

func newExporter(t *testing.T) *Exporter {
	t.Helper()
	x, err := New()
	require.NoError(t, err)
	return x
}

func rectObject(id string, x, y, w, h float64, fill string) document.Object {
	return document.Object{
		ID:        id,
		Type:      document.ObjectTypeShape,
		Transform: document.Transform{X: x, Y: y, Width: w, Height: h, ScaleX: 1, ScaleY: 1},
		Opacity:   1,
		Visible:   true,
		Shape:     &document.ShapeData{Kind: document.ShapeRect, Fill: fill},
	}
}

func solidPNG(t *testing.T, c color.NRGBA) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := range 2 {
		for x := range 2 {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func imageObject(id, src string, x, y, w, h, rotation float64) document.Object {
	return document.Object{
		ID:        id,
		Type:      document.ObjectTypeImage,
		Transform: document.Transform{X: x, Y: y, Width: w, Height: h, Rotation: rotation, ScaleX: 1, ScaleY: 1},
		Opacity:   1,
		Visible:   true,
		Image:     &document.ImageData{Src: src, NaturalWidth: 2, NaturalHeight: 2},
	}
}

func redSquareScene(t *testing.T) *document.Scene {
	t.Helper()
	s := document.NewScene("scene", 100, 100)
	require.NoError(t, s.Insert(rectObject("a", 10, 10, 50, 50, "#ff0000"), "", -1))
	return s
}

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func px(img image.Image, x, y int) color.NRGBA {
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
}

var (
	red   = color.NRGBA{R: 0xff, A: 0xff}
	white = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	blue  = color.NRGBA{B: 0xff, A: 0xff}
)

func TestRasterize_FullCanvas(t *testing.T) {
	x := newExporter(t)
	data, err := x.Rasterize(context.Background(), redSquareScene(t), Options{})
	require.NoError(t, err)

	img := decodePNG(t, data)
	assert.Equal(t, image.Rect(0, 0, 100, 100), img.Bounds())
	assert.Equal(t, red, px(img, 30, 30))
	assert.Equal(t, white, px(img, 80, 80))
}

func TestRasterize_PixelRatio(t *testing.T) {
	x := newExporter(t)
	s := redSquareScene(t)

	for name, opts := range map[string]Options{
		"ratio": {PixelRatio: 2},
		"dpi":   {DPI: 144},
	} {
		t.Run(name, func(t *testing.T) {
			data, err := x.Rasterize(context.Background(), s, opts)
			require.NoError(t, err)
			img := decodePNG(t, data)
			assert.Equal(t, 200, img.Bounds().Dx())
			assert.Equal(t, 200, img.Bounds().Dy())
			assert.Equal(t, red, px(img, 60, 60))
			assert.Equal(t, white, px(img, 130, 130))
		})
	}

	_, err := x.Rasterize(context.Background(), s, Options{PixelRatio: 50})
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestRasterize_Area(t *testing.T) {
	x := newExporter(t)
	s := redSquareScene(t)
	require.NoError(t, s.Insert(rectObject("b", 80, 80, 10, 10, "#0000ff"), "", -1))

	data, err := x.Rasterize(context.Background(), s, Options{Area: &geom.Rect{X: 10, Y: 10, Width: 50, Height: 50}})
	require.NoError(t, err)
	img := decodePNG(t, data)
	assert.Equal(t, image.Rect(0, 0, 50, 50), img.Bounds())
	assert.Equal(t, red, px(img, 25, 25))
	assert.Equal(t, red, px(img, 2, 2), "area origin maps to (0,0)")

	t.Run("errors", func(t *testing.T) {
		_, err := x.Rasterize(context.Background(), s, Options{Area: &geom.Rect{X: 10, Y: 10, Width: 0, Height: 50}})
		assert.ErrorIs(t, err, document.ErrInvalidExportArea)
		_, err = x.Rasterize(context.Background(), s, Options{Area: &geom.Rect{X: 500, Y: 500, Width: 10, Height: 10}})
		assert.ErrorIs(t, err, document.ErrInvalidExportArea)
		_, err = x.Rasterize(context.Background(), nil, Options{})
		assert.ErrorIs(t, err, document.ErrEngineNotInitialized)
		_, err = x.Rasterize(context.Background(), s, Options{Format: "gif"})
		assert.ErrorIs(t, err, ErrInvalidOptions)
	})
}

func TestRasterize_ZoneClip(t *testing.T) {
	s := document.NewScene("scene", 100, 100)
	s.Zones = []document.Zone{{
		ID: "z", Shape: document.ZoneRect, Width: 50, Height: 100, ClipContent: true, Visible: true,
	}}
	obj := rectObject("a", 0, 0, 100, 100, "#ff0000")
	obj.ZoneID = "z"
	require.NoError(t, s.Insert(obj, "", -1))

	data, err := newExporter(t).Rasterize(context.Background(), s, Options{})
	require.NoError(t, err)
	img := decodePNG(t, data)
	assert.Equal(t, red, px(img, 25, 50))
	assert.Equal(t, white, px(img, 75, 50), "pixels outside the zone are clipped")
}

func TestRasterize_Images(t *testing.T) {
	src := solidPNG(t, blue)

	t.Run("rotated", func(t *testing.T) {
		// 90 degrees about the top-left corner swings (50,0)-(100,50) onto (0,0)-(50,50).
		s := document.NewScene("scene", 100, 100)
		require.NoError(t, s.Insert(imageObject("img", src, 50, 0, 50, 50, 90), "", -1))

		data, err := newExporter(t).Rasterize(context.Background(), s, Options{})
		require.NoError(t, err)
		img := decodePNG(t, data)
		assert.Equal(t, blue, px(img, 25, 25))
		assert.Equal(t, white, px(img, 75, 25))
	})

	t.Run("faded", func(t *testing.T) {
		s := document.NewScene("scene", 100, 100)
		obj := imageObject("img", src, 0, 0, 100, 100, 0)
		obj.Opacity = 0.5
		require.NoError(t, s.Insert(obj, "", -1))

		data, err := newExporter(t).Rasterize(context.Background(), s, Options{})
		require.NoError(t, err)
		c := px(decodePNG(t, data), 50, 50)
		assert.InDelta(t, 0x80, int(c.R), 3)
		assert.Equal(t, uint8(0xff), c.B)
	})

	t.Run("unresolvable", func(t *testing.T) {
		s := document.NewScene("scene", 100, 100)
		require.NoError(t, s.Insert(imageObject("img", "data:image/png;base64,!!", 0, 0, 10, 10, 0), "", -1))

		_, err := newExporter(t).Rasterize(context.Background(), s, Options{})
		assert.ErrorIs(t, err, document.ErrImageLoad)
	})
}

func TestRasterize_Text(t *testing.T) {
	s := document.NewScene("scene", 200, 100)
	require.NoError(t, s.Insert(document.Object{
		ID:        "t",
		Type:      document.ObjectTypeText,
		Transform: document.Transform{X: 10, Y: 10, Width: 120, Height: 36, ScaleX: 1, ScaleY: 1},
		Opacity:   1,
		Visible:   true,
		Text: &document.TextData{
			Content: "HELLO", FontFamily: "Arial", FontSize: 30, Fill: "#000000", LineHeight: 1.2, Align: "left",
		},
	}, "", -1))

	data, err := newExporter(t).Rasterize(context.Background(), s, Options{})
	require.NoError(t, err)
	img := decodePNG(t, data)

	dark := func(x0, y0, x1, y1 int) int {
		n := 0
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				if px(img, x, y).R < 0x80 {
					n++
				}
			}
		}
		return n
	}
	assert.Positive(t, dark(10, 10, 130, 46), "glyphs inside the text box")
	assert.Zero(t, dark(150, 0, 200, 100), "nothing right of the text")
	assert.Zero(t, dark(0, 60, 200, 100), "nothing below the text")
}

func TestRasterize_Formats(t *testing.T) {
	x := newExporter(t)
	s := redSquareScene(t)
	s.Background.Color = ""

	t.Run("png keeps transparency", func(t *testing.T) {
		data, err := x.Rasterize(context.Background(), s, Options{Format: FormatPNG})
		require.NoError(t, err)
		assert.Equal(t, uint8(0), px(decodePNG(t, data), 90, 90).A)
	})

	t.Run("jpeg gets a white background", func(t *testing.T) {
		data, err := x.Rasterize(context.Background(), s, Options{Format: FormatJPEG, Quality: 0.9})
		require.NoError(t, err)
		img, err := jpeg.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		c := px(img, 90, 90)
		assert.Greater(t, c.R, uint8(0xf0))
		assert.Greater(t, c.G, uint8(0xf0))
	})

	t.Run("webp", func(t *testing.T) {
		data, err := x.Rasterize(context.Background(), s, Options{Format: FormatWebP})
		require.NoError(t, err)
		img, err := webp.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, 100, img.Bounds().Dx())
		assert.Equal(t, red, px(img, 30, 30))
	})
}

func TestRasterize_Reproducible(t *testing.T) {
	x := newExporter(t)
	s := document.NewSampleScene()

	a, err := x.Rasterize(context.Background(), s, Options{PixelRatio: 0.5})
	require.NoError(t, err)
	b, err := x.Rasterize(context.Background(), s, Options{PixelRatio: 0.5})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSVG(t *testing.T) {
	s := document.NewScene("scene", 100, 100)
	s.Zones = []document.Zone{{
		ID: "z", Shape: document.ZoneRect, Width: 50, Height: 100, ClipContent: true, Visible: true,
	}}
	obj := rectObject("a", 0, 0, 100, 100, "#ff0000")
	obj.ZoneID = "z"
	require.NoError(t, s.Insert(obj, "", -1))
	require.NoError(t, s.Insert(document.Object{
		ID:        "t",
		Type:      document.ObjectTypeText,
		Transform: document.Transform{X: 0, Y: 0, Width: 100, Height: 20, ScaleX: 1, ScaleY: 1},
		Opacity:   1,
		Visible:   true,
		Text:      &document.TextData{Content: "A & B", FontFamily: "Arial", FontSize: 16, Fill: "#000000", Align: "center"},
	}, "", -1))

	data, err := newExporter(t).SVG(context.Background(), s, Options{PixelRatio: 2})
	require.NoError(t, err)
	out := string(data)

	assert.True(t, strings.HasPrefix(out, "<?xml"))
	assert.Contains(t, out, `width="200" height="200"`)
	assert.Contains(t, out, `viewBox="0 0 100 100"`)
	assert.Contains(t, out, `<clipPath id="clip1"`)
	assert.Contains(t, out, `clip-path="url(#clip1)"`)
	assert.Contains(t, out, "fill:#ff0000")
	assert.Contains(t, out, "A &amp; B")
	assert.Contains(t, out, "text-anchor:middle")
	assert.Equal(t, strings.Count(out, "<g"), strings.Count(out, "</g>"))

	_, err = newExporter(t).SVG(context.Background(), s, Options{Area: &geom.Rect{Width: 10}})
	assert.ErrorIs(t, err, document.ErrInvalidExportArea)
}
