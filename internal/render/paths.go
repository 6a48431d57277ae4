package render

import (
	"math"

	"github.com/luneo/canvas-engine/internal/document"
	"github.com/luneo/canvas-engine/internal/geom"
)

// kappa is the control-point factor for a bezier quarter circle,
// 4 * (sqrt(2) - 1) / 3.
const kappa = 0.5522847498

// RectPath outlines [0,0,w,h], rounding corners by r when r > 0.
func RectPath(w, h, r float64) []PathCommand {
	r = min(r, w/2, h/2)
	if r <= 0 {
		return []PathCommand{
			MoveTo(0, 0),
			LineTo(w, 0),
			LineTo(w, h),
			LineTo(0, h),
			ClosePath(),
		}
	}
	k := r * kappa
	return []PathCommand{
		MoveTo(r, 0),
		LineTo(w-r, 0),
		CubicTo(w-r+k, 0, w, r-k, w, r),
		LineTo(w, h-r),
		CubicTo(w, h-r+k, w-r+k, h, w-r, h),
		LineTo(r, h),
		CubicTo(r-k, h, 0, h-r+k, 0, h-r),
		LineTo(0, r),
		CubicTo(0, r-k, r-k, 0, r, 0),
		ClosePath(),
	}
}

// EllipsePath approximates an ellipse with four bezier curves.
func EllipsePath(cx, cy, rx, ry float64) []PathCommand {
	kx, ky := rx*kappa, ry*kappa
	return []PathCommand{
		MoveTo(cx+rx, cy),
		CubicTo(cx+rx, cy+ky, cx+kx, cy+ry, cx, cy+ry),
		CubicTo(cx-kx, cy+ry, cx-rx, cy+ky, cx-rx, cy),
		CubicTo(cx-rx, cy-ky, cx-kx, cy-ry, cx, cy-ry),
		CubicTo(cx+kx, cy-ry, cx+rx, cy-ky, cx+rx, cy),
		ClosePath(),
	}
}

// PolygonPath closes pts into a polygon.
func PolygonPath(pts []geom.Point) []PathCommand {
	if len(pts) == 0 {
		return nil
	}
	out := make([]PathCommand, 0, len(pts)+1)
	out = append(out, MoveTo(pts[0].X, pts[0].Y))
	for _, p := range pts[1:] {
		out = append(out, LineTo(p.X, p.Y))
	}
	return append(out, ClosePath())
}

// RegularPolygon returns the vertices of an n-gon inscribed in the ellipse
// (cx, cy, rx, ry), first vertex at the top.
func RegularPolygon(n int, cx, cy, rx, ry float64) []geom.Point {
	n = max(n, 3)
	pts := make([]geom.Point, n)
	for i := range n {
		a := -math.Pi/2 + float64(i)*2*math.Pi/float64(n)
		pts[i] = geom.Point{X: cx + rx*math.Cos(a), Y: cy + ry*math.Sin(a)}
	}
	return pts
}

// StarPoints returns the 2n alternating outer and inner vertices of a star.
// ratio is inner radius over outer radius.
func StarPoints(n int, cx, cy, rx, ry, ratio float64) []geom.Point {
	n = max(n, 2)
	pts := make([]geom.Point, 2*n)
	for i := range 2 * n {
		a := -math.Pi/2 + float64(i)*math.Pi/float64(n)
		f := 1.0
		if i%2 == 1 {
			f = ratio
		}
		pts[i] = geom.Point{X: cx + rx*f*math.Cos(a), Y: cy + ry*f*math.Sin(a)}
	}
	return pts
}

// ShapePath builds the outline of a shape filling its local box.
func ShapePath(s *document.ShapeData, w, h float64) []PathCommand {
	cx, cy := w/2, h/2
	switch s.Kind {
	case document.ShapeCircle, document.ShapeEllipse:
		return EllipsePath(cx, cy, w/2, h/2)
	case document.ShapeTriangle:
		return PolygonPath([]geom.Point{{X: cx, Y: 0}, {X: w, Y: h}, {X: 0, Y: h}})
	case document.ShapeStar:
		ratio := 0.5
		if s.InnerRadius > 0 && s.OuterRadius > 0 {
			ratio = s.InnerRadius / s.OuterRadius
		}
		n := s.NumPoints
		if n == 0 {
			n = 5
		}
		return PolygonPath(StarPoints(n, cx, cy, w/2, h/2, ratio))
	case document.ShapePolygon:
		n := s.Sides
		if n == 0 {
			n = 6
		}
		return PolygonPath(RegularPolygon(n, cx, cy, w/2, h/2))
	default:
		return RectPath(w, h, s.CornerRadius)
	}
}

// LinePath builds an open polyline through pts. A positive tension smooths it
// into a cardinal spline.
func LinePath(pts []geom.Point, tension float64) []PathCommand {
	switch len(pts) {
	case 0:
		return nil
	case 1:
		return []PathCommand{MoveTo(pts[0].X, pts[0].Y), LineTo(pts[0].X, pts[0].Y)}
	}
	out := []PathCommand{MoveTo(pts[0].X, pts[0].Y)}
	if tension <= 0 || len(pts) < 3 {
		for _, p := range pts[1:] {
			out = append(out, LineTo(p.X, p.Y))
		}
		return out
	}
	f := tension / 2
	for i := 0; i < len(pts)-1; i++ {
		p0 := pts[max(i-1, 0)]
		p1 := pts[i]
		p2 := pts[i+1]
		p3 := pts[min(i+2, len(pts)-1)]
		c1 := geom.Point{X: p1.X + (p2.X-p0.X)*f, Y: p1.Y + (p2.Y-p0.Y)*f}
		c2 := geom.Point{X: p2.X - (p3.X-p1.X)*f, Y: p2.Y - (p3.Y-p1.Y)*f}
		out = append(out, CubicTo(c1.X, c1.Y, c2.X, c2.Y, p2.X, p2.Y))
	}
	return out
}

// ZonePath outlines z in its unrotated frame; apply z.Matrix() to place it.
func ZonePath(z document.Zone) []PathCommand {
	switch z.Shape {
	case document.ZoneCircle:
		return EllipsePath(z.CenterX, z.CenterY, z.Radius, z.Radius)
	case document.ZoneEllipse:
		return EllipsePath(z.CenterX, z.CenterY, z.RadiusX, z.RadiusY)
	case document.ZonePolygon:
		return PolygonPath(z.Points)
	default:
		cmds := RectPath(z.Width, z.Height, 0)
		for i := range cmds {
			for j := 0; j+1 < len(cmds[i].Args); j += 2 {
				cmds[i].Args[j] += z.X
				cmds[i].Args[j+1] += z.Y
			}
		}
		return cmds
	}
}

// Transformed returns path with every coordinate mapped through m.
func Transformed(path []PathCommand, m geom.Matrix2D) []PathCommand {
	out := make([]PathCommand, len(path))
	for i, c := range path {
		args := make([]float64, len(c.Args))
		for j := 0; j+1 < len(c.Args); j += 2 {
			args[j], args[j+1] = m.TransformPoint(c.Args[j], c.Args[j+1])
		}
		out[i] = PathCommand{Op: c.Op, Args: args}
	}
	return out
}
