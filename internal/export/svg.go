package export

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	svg "github.com/ajstarks/svgo"

	"github.com/luneo/canvas-engine/internal/document"
	"github.com/luneo/canvas-engine/internal/geom"
	"github.com/luneo/canvas-engine/internal/render"
)

// SVG writes the scene, or opts.Area of it, as an SVG document. Images are
// referenced by their source href; zone clips become clipPath elements.
// PixelRatio scales the intrinsic size, the viewBox stays in design units.
func (x *Exporter) SVG(ctx context.Context, s *document.Scene, opts Options) ([]byte, error) {
	area, err := exportArea(s, opts.Area)
	if err != nil {
		return nil, err
	}
	ratio, err := opts.pixelRatio()
	if err != nil {
		return nil, err
	}

	sg := render.Build(s)
	var cmds []render.DrawCommand
	if opts.Area == nil {
		cmds = render.CompileDrawCommands(sg)
	} else {
		cmds = render.CompileArea(sg, area)
	}

	var buf bytes.Buffer
	canvas := svg.New(&buf)
	canvas.Startraw(
		fmt.Sprintf(`width="%s" height="%s"`, num(area.Width*ratio), num(area.Height*ratio)),
		fmt.Sprintf(`viewBox="0 0 %s %s"`, num(area.Width), num(area.Height)),
	)
	if opts.Background != "" {
		canvas.Path(pathData(render.RectPath(area.Width, area.Height, 0)), "fill:"+opts.Background)
	}

	w := &svgWriter{canvas: canvas}
	for _, cmd := range cmds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		w.draw(cmd)
	}
	for len(w.saves) > 0 {
		w.draw(render.DrawCommand{Op: "restore"})
	}
	canvas.End()
	return buf.Bytes(), nil
}

type svgWriter struct {
	canvas *svg.SVG
	clips  int
	// saves holds, per open save, how many groups its clips opened.
	saves []int
}

func (w *svgWriter) draw(cmd render.DrawCommand) {
	switch cmd.Op {
	case "save":
		w.saves = append(w.saves, 0)
	case "restore":
		if n := len(w.saves); n > 0 {
			for range w.saves[n-1] {
				w.canvas.Gend()
			}
			w.saves = w.saves[:n-1]
		}
	case "clip":
		w.clips++
		id := "clip" + strconv.Itoa(w.clips)
		w.canvas.Def()
		w.canvas.ClipPath(`id="` + id + `"`)
		w.canvas.Path(pathData(render.Transformed(cmd.Path, cmd.Matrix())))
		w.canvas.ClipEnd()
		w.canvas.DefEnd()
		w.canvas.Group(`clip-path="url(#` + id + `)"`)
		if n := len(w.saves); n > 0 {
			w.saves[n-1]++
		} else {
			w.saves = append(w.saves, 1)
		}
	case "background", "path":
		w.shape(cmd)
	case "text":
		w.text(cmd)
	case "image":
		w.image(cmd)
	}
}

func (w *svgWriter) shape(cmd render.DrawCommand) {
	style := []string{"fill:" + svgPaint(cmd.Fill)}
	if cmd.Stroke != "" && cmd.StrokeWidth > 0 {
		style = append(style,
			"stroke:"+cmd.Stroke,
			"stroke-width:"+num(cmd.StrokeWidth),
		)
		if cmd.LineCap != "" {
			style = append(style, "stroke-linecap:"+cmd.LineCap)
		}
		if cmd.LineJoin != "" {
			style = append(style, "stroke-linejoin:"+cmd.LineJoin)
		}
	}
	if cmd.Opacity < 1 {
		style = append(style, "opacity:"+num(cmd.Opacity))
	}
	w.canvas.Path(pathData(cmd.Path), transformAttr(cmd.Matrix()), strings.Join(style, ";"))
}

func (w *svgWriter) text(cmd render.DrawCommand) {
	t := cmd.Text
	if t == nil {
		return
	}
	lineHeight := t.LineHeight
	if lineHeight <= 0 {
		lineHeight = 1
	}
	lh := t.FontSize * lineHeight

	var x float64
	anchor := "start"
	switch t.Align {
	case "center":
		x, anchor = cmd.Width/2, "middle"
	case "right":
		x, anchor = cmd.Width, "end"
	}

	style := []string{
		"font-family:" + t.FontFamily,
		"font-size:" + num(t.FontSize) + "px",
		"fill:" + svgPaint(cmd.Fill),
		"text-anchor:" + anchor,
		"dominant-baseline:middle",
	}
	st := strings.ToLower(t.FontStyle)
	if strings.Contains(st, "bold") {
		style = append(style, "font-weight:bold")
	}
	if strings.Contains(st, "italic") {
		style = append(style, "font-style:italic")
	}
	if t.TextDecoration != "" {
		style = append(style, "text-decoration:"+t.TextDecoration)
	}
	if t.LetterSpacing != 0 {
		style = append(style, "letter-spacing:"+num(t.LetterSpacing)+"px")
	}
	if cmd.Opacity < 1 {
		style = append(style, "opacity:"+num(cmd.Opacity))
	}

	w.canvas.Group(transformAttr(cmd.Matrix()), strings.Join(style, ";"))
	for i, line := range strings.Split(t.Content, "\n") {
		y := float64(i)*lh + lh/2
		w.canvas.Text(0, 0, line, fmt.Sprintf(`transform="translate(%s %s)"`, num(x), num(y)), `xml:space="preserve"`)
	}
	w.canvas.Gend()
}

// image maps the source (or its crop) onto the command box. Sources without
// a natural size are drawn as a unit square stretched to the box.
func (w *svgWriter) image(cmd render.DrawCommand) {
	if cmd.ImageSrc == "" || cmd.Width <= 0 || cmd.Height <= 0 {
		return
	}
	nw, nh := cmd.ImageWidth, cmd.ImageHeight
	var extra []string
	if cmd.Opacity < 1 {
		extra = append(extra, "opacity:"+num(cmd.Opacity))
	}

	if nw <= 0 || nh <= 0 {
		m := cmd.Matrix().Multiply(geom.Scale(cmd.Width, cmd.Height))
		w.canvas.Image(0, 0, 1, 1, cmd.ImageSrc, append([]string{transformAttr(m), `preserveAspectRatio="none"`}, extra...)...)
		return
	}

	crop := geom.Rect{Width: nw, Height: nh}
	if cmd.Crop != nil && !cmd.Crop.IsEmpty() {
		crop = *cmd.Crop
	}
	m := cmd.Matrix().
		Multiply(geom.Scale(cmd.Width/crop.Width, cmd.Height/crop.Height)).
		Multiply(geom.Translate(-crop.X, -crop.Y))

	attrs := []string{transformAttr(m), `preserveAspectRatio="none"`}
	if cmd.Crop != nil && !cmd.Crop.IsEmpty() {
		w.clips++
		id := "clip" + strconv.Itoa(w.clips)
		w.canvas.Def()
		w.canvas.ClipPath(`id="` + id + `"`)
		w.canvas.Path(pathData(render.Transformed(render.RectPath(crop.Width, crop.Height, 0), geom.Translate(crop.X, crop.Y))))
		w.canvas.ClipEnd()
		w.canvas.DefEnd()
		attrs = append(attrs, `clip-path="url(#`+id+`)"`)
	}
	w.canvas.Image(0, 0, int(math.Round(nw)), int(math.Round(nh)), cmd.ImageSrc, append(attrs, extra...)...)
}

func pathData(p []render.PathCommand) string {
	var sb strings.Builder
	for i, c := range p {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(c.Op)
		for _, a := range c.Args {
			sb.WriteByte(' ')
			sb.WriteString(num(a))
		}
	}
	return sb.String()
}

func transformAttr(m geom.Matrix2D) string {
	return `transform="` + m.SVG() + `"`
}

func svgPaint(c string) string {
	if c == "" || c == "transparent" {
		return "none"
	}
	return c
}

// num formats v with at most four decimals.
func num(v float64) string {
	return strconv.FormatFloat(math.Round(v*1e4)/1e4, 'f', -1, 64)
}
