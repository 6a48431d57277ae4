package export

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/HugoSmits86/nativewebp"
	"github.com/fogleman/gg"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"

	"github.com/luneo/canvas-engine/internal/asset"
	"github.com/luneo/canvas-engine/internal/colors"
	"github.com/luneo/canvas-engine/internal/document"
	"github.com/luneo/canvas-engine/internal/fonts"
	"github.com/luneo/canvas-engine/internal/geom"
	"github.com/luneo/canvas-engine/internal/render"
)

// ImageSource resolves image and QR sources referenced by draw commands.
type ImageSource interface {
	Resolve(ctx context.Context, src string) (asset.Bitmap, error)
}

// FaceSource supplies font faces for text commands.
type FaceSource interface {
	Face(name string, st fonts.Style, size float64) (font.Face, error)
}

// Exporter renders scene snapshots. It holds no per-export state and is safe
// for concurrent use.
type Exporter struct {
	images ImageSource
	faces  FaceSource
	logger *zap.Logger
}

type Option func(*Exporter)

func WithImageSource(s ImageSource) Option {
	return func(x *Exporter) { x.images = s }
}

func WithFaceSource(s FaceSource) Option {
	return func(x *Exporter) { x.faces = s }
}

func WithLogger(l *zap.Logger) Option {
	return func(x *Exporter) { x.logger = l }
}

// New creates an exporter. Without a face source the bundled fonts are used.
func New(opts ...Option) (*Exporter, error) {
	x := &Exporter{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(x)
	}
	if x.images == nil {
		x.images = asset.NewResolver(asset.WithLogger(x.logger))
	}
	if x.faces == nil {
		p, err := fonts.NewProvider(fonts.WithLogger(x.logger))
		if err != nil {
			return nil, err
		}
		x.faces = p
	}
	return x, nil
}

// Rasterize renders the scene, or opts.Area of it, and encodes it in
// opts.Format.
func (x *Exporter) Rasterize(ctx context.Context, s *document.Scene, opts Options) ([]byte, error) {
	format, err := opts.format()
	if err != nil {
		return nil, err
	}
	if format == FormatJPEG && opts.Background == "" {
		opts.Background = "#ffffff"
	}
	img, err := x.Image(ctx, s, opts)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := encode(&buf, img, format, opts.quality()); err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

// Image renders the scene without encoding it. Only objects whose bounds
// touch the area are drawn, shifted so the area origin lands at (0,0).
func (x *Exporter) Image(ctx context.Context, s *document.Scene, opts Options) (*image.RGBA, error) {
	area, err := exportArea(s, opts.Area)
	if err != nil {
		return nil, err
	}
	ratio, err := opts.pixelRatio()
	if err != nil {
		return nil, err
	}
	w := max(int(math.Round(area.Width*ratio)), 1)
	h := max(int(math.Round(area.Height*ratio)), 1)
	if w*h > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d output exceeds pixel limit", ErrInvalidOptions, w, h)
	}

	sg := render.Build(s)
	var cmds []render.DrawCommand
	if opts.Area == nil {
		cmds = render.CompileDrawCommands(sg)
	} else {
		cmds = render.CompileArea(sg, area)
	}

	r := &rasterizer{
		dc:     gg.NewContext(w, h),
		base:   geom.Scale(ratio, ratio),
		images: x.images,
		faces:  x.faces,
		cache:  map[string]image.Image{},
		logger: x.logger,
	}
	if opts.Background != "" {
		bg, err := colors.Parse(opts.Background)
		if err != nil {
			return nil, fmt.Errorf("%w: background: %v", ErrInvalidOptions, err)
		}
		r.dc.SetColor(bg)
		r.dc.Clear()
	}
	for _, cmd := range cmds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.draw(ctx, cmd); err != nil {
			return nil, err
		}
	}
	return r.dc.Image().(*image.RGBA), nil
}

type rasterizer struct {
	dc     *gg.Context
	base   geom.Matrix2D
	images ImageSource
	faces  FaceSource
	cache  map[string]image.Image
	logger *zap.Logger
}

func (r *rasterizer) draw(ctx context.Context, cmd render.DrawCommand) error {
	switch cmd.Op {
	case "save":
		r.dc.Push()
	case "restore":
		r.dc.Pop()
	case "clip":
		r.path(cmd.Path, r.base.Multiply(cmd.Matrix()))
		r.dc.Clip()
	case "background", "path":
		r.shape(cmd)
	case "text":
		return r.text(cmd)
	case "image":
		return r.image(ctx, cmd)
	}
	return nil
}

// path traces p in device space. The context matrix stays identity.
func (r *rasterizer) path(p []render.PathCommand, m geom.Matrix2D) {
	for _, c := range render.Transformed(p, m) {
		a := c.Args
		switch c.Op {
		case "M":
			r.dc.MoveTo(a[0], a[1])
		case "L":
			r.dc.LineTo(a[0], a[1])
		case "C":
			r.dc.CubicTo(a[0], a[1], a[2], a[3], a[4], a[5])
		case "Q":
			r.dc.QuadraticTo(a[0], a[1], a[2], a[3])
		case "Z":
			r.dc.ClosePath()
		}
	}
}

func (r *rasterizer) shape(cmd render.DrawCommand) {
	m := r.base.Multiply(cmd.Matrix())
	fill := paint(cmd.Fill, cmd.Opacity)
	stroke := paint(cmd.Stroke, cmd.Opacity)
	if fill.A == 0 && (stroke.A == 0 || cmd.StrokeWidth <= 0) {
		return
	}

	r.path(cmd.Path, m)
	if fill.A > 0 {
		r.dc.SetColor(fill)
		r.dc.FillPreserve()
	}
	if stroke.A > 0 && cmd.StrokeWidth > 0 {
		r.dc.SetColor(stroke)
		r.dc.SetLineWidth(cmd.StrokeWidth * math.Sqrt(math.Abs(m.Determinant())))
		r.dc.SetLineCap(lineCap(cmd.LineCap))
		r.dc.SetLineJoin(lineJoin(cmd.LineJoin))
		r.dc.StrokePreserve()
	}
	r.dc.ClearPath()
}

// text lays out lines top to bottom, each vertically centered in its line
// box. Faces are built at device size so glyphs are not resampled.
func (r *rasterizer) text(cmd render.DrawCommand) error {
	t := cmd.Text
	fill := paint(cmd.Fill, cmd.Opacity)
	if t == nil || fill.A == 0 || t.FontSize <= 0 {
		return nil
	}
	m := r.base.Multiply(cmd.Matrix())
	k := math.Sqrt(math.Abs(m.Determinant()))
	if k == 0 {
		return nil
	}

	face, err := r.faces.Face(t.FontFamily, fonts.ParseStyle(t.FontStyle), t.FontSize*k)
	if err != nil {
		return err
	}
	defer face.Close()

	r.dc.Push()
	defer r.dc.Pop()
	if !applyMatrix(r.dc, m) {
		return nil
	}
	r.dc.Scale(1/k, 1/k)
	r.dc.SetFontFace(face)
	r.dc.SetColor(fill)

	metrics := face.Metrics()
	ascent := float64(metrics.Ascent) / 64
	descent := float64(metrics.Descent) / 64
	lineHeight := t.LineHeight
	if lineHeight <= 0 {
		lineHeight = 1
	}
	lh := t.FontSize * lineHeight * k
	spacing := t.LetterSpacing * k
	boxW := cmd.Width * k

	for i, line := range strings.Split(t.Content, "\n") {
		lw := measureLine(r.dc, line, spacing)
		var x float64
		switch t.Align {
		case "center":
			x = (boxW - lw) / 2
		case "right":
			x = boxW - lw
		}
		baseline := float64(i)*lh + lh/2 + (ascent-descent)/2
		drawLine(r.dc, line, x, baseline, spacing)

		thickness := max(t.FontSize*k/15, 1)
		switch t.TextDecoration {
		case "underline":
			r.dc.DrawRectangle(x, baseline+descent/2, lw, thickness)
			r.dc.Fill()
		case "line-through":
			r.dc.DrawRectangle(x, baseline-ascent/3, lw, thickness)
			r.dc.Fill()
		}
	}
	return nil
}

func measureLine(dc *gg.Context, line string, spacing float64) float64 {
	w, _ := dc.MeasureString(line)
	if n := utf8.RuneCountInString(line); n > 1 {
		w += spacing * float64(n-1)
	}
	return w
}

func drawLine(dc *gg.Context, line string, x, y, spacing float64) {
	if spacing == 0 {
		dc.DrawString(line, x, y)
		return
	}
	for _, ch := range line {
		s := string(ch)
		dc.DrawString(s, x, y)
		w, _ := dc.MeasureString(s)
		x += w + spacing
	}
}

func (r *rasterizer) image(ctx context.Context, cmd render.DrawCommand) error {
	if cmd.ImageSrc == "" || cmd.Width <= 0 || cmd.Height <= 0 || cmd.Opacity <= 0 {
		return nil
	}
	src, err := r.bitmap(ctx, cmd.ImageSrc)
	if err != nil {
		return err
	}
	img := prepare(src, cmd.Crop, cmd.Opacity)
	if img == nil {
		return nil
	}
	b := img.Bounds()
	m := r.base.Multiply(cmd.Matrix()).
		Multiply(geom.Scale(cmd.Width/float64(b.Dx()), cmd.Height/float64(b.Dy())))

	r.dc.Push()
	defer r.dc.Pop()
	if applyMatrix(r.dc, m) {
		r.dc.DrawImage(img, 0, 0)
	}
	return nil
}

func (r *rasterizer) bitmap(ctx context.Context, src string) (image.Image, error) {
	if img, ok := r.cache[src]; ok {
		return img, nil
	}
	bmp, err := r.images.Resolve(ctx, src)
	if err != nil {
		return nil, err
	}
	r.cache[src] = bmp.Image
	return bmp.Image, nil
}

// prepare crops src to crop (source pixels) and fades it by opacity. The
// result always starts at the origin. It returns nil for an empty crop.
func prepare(src image.Image, crop *geom.Rect, opacity float64) image.Image {
	sr := src.Bounds()
	if crop != nil && !crop.IsEmpty() {
		cr := image.Rect(
			sr.Min.X+int(math.Round(crop.X)),
			sr.Min.Y+int(math.Round(crop.Y)),
			sr.Min.X+int(math.Round(crop.X+crop.Width)),
			sr.Min.Y+int(math.Round(crop.Y+crop.Height)),
		)
		sr = sr.Intersect(cr)
	}
	if sr.Empty() {
		return nil
	}
	if sr.Min == (image.Point{}) && sr == src.Bounds() && opacity >= 1 {
		return src
	}

	dst := image.NewNRGBA(image.Rect(0, 0, sr.Dx(), sr.Dy()))
	if opacity >= 1 {
		draw.Draw(dst, dst.Bounds(), src, sr.Min, draw.Src)
	} else {
		mask := image.NewUniform(color.Alpha{A: uint8(math.Round(opacity * 0xff))})
		draw.DrawMask(dst, dst.Bounds(), src, sr.Min, mask, image.Point{}, draw.Over)
	}
	return dst
}

// applyMatrix loads m into the context as translate, rotate, shear and scale.
// It reports false when m is singular.
func applyMatrix(dc *gg.Context, m geom.Matrix2D) bool {
	a, b, c, d, e, f := m[0], m[1], m[2], m[3], m[4], m[5]
	sx := math.Hypot(a, b)
	det := a*d - b*c
	if sx == 0 || det == 0 {
		return false
	}
	sy := det / sx
	shear := (a*c + b*d) / sx
	dc.Translate(e, f)
	dc.Rotate(math.Atan2(b, a))
	dc.Shear(shear/sy, 0)
	dc.Scale(sx, sy)
	return true
}

// paint parses c and scales its alpha by opacity. Unparseable colors do not
// paint.
func paint(c string, opacity float64) color.NRGBA {
	if c == "" || opacity <= 0 {
		return color.NRGBA{}
	}
	col, err := colors.Parse(c)
	if err != nil {
		return color.NRGBA{}
	}
	col.A = uint8(math.Round(float64(col.A) * min(opacity, 1)))
	return col
}

func lineCap(s string) gg.LineCap {
	switch s {
	case "round":
		return gg.LineCapRound
	case "square":
		return gg.LineCapSquare
	default:
		return gg.LineCapButt
	}
}

func lineJoin(s string) gg.LineJoin {
	if s == "bevel" {
		return gg.LineJoinBevel
	}
	return gg.LineJoinRound
}

func encode(w io.Writer, img image.Image, f Format, quality float64) error {
	switch f {
	case FormatJPEG:
		q := min(max(int(math.Round(quality*100)), 1), 100)
		return jpeg.Encode(w, img, &jpeg.Options{Quality: q})
	case FormatWebP:
		return nativewebp.Encode(w, img, nil)
	default:
		return png.Encode(w, img)
	}
}
