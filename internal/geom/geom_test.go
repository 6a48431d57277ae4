package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatrix_InvertRoundTrip(t *testing.T) {
	m := FromTransform(30, 40, 2, 3, 35, 0, 0)
	inv := m.Invert()

	x, y := m.TransformPoint(7, -4)
	bx, by := inv.TransformPoint(x, y)

	assert.InDelta(t, 7, bx, 1e-9)
	assert.InDelta(t, -4, by, 1e-9)
	assert.True(t, m.Multiply(inv).IsIdentity())
}

func TestMatrix_SingularInvertIsIdentity(t *testing.T) {
	assert.True(t, Scale(0, 1).Invert().IsIdentity())
}

func TestMatrix_TransformRectRotated(t *testing.T) {
	r := RotateDegrees(90).TransformRect(Rect{X: 0, Y: 0, Width: 10, Height: 20})

	assert.InDelta(t, -20, r.X, 1e-9)
	assert.InDelta(t, 0, r.Y, 1e-9)
	assert.InDelta(t, 20, r.Width, 1e-9)
	assert.InDelta(t, 10, r.Height, 1e-9)
}

func TestRotateAround_KeepsPivot(t *testing.T) {
	x, y := RotateAround(73, 5, 5).TransformPoint(5, 5)
	assert.InDelta(t, 5, x, 1e-9)
	assert.InDelta(t, 5, y, 1e-9)
}

func TestRect_UnionIntersect(t *testing.T) {
	a := Rect{X: 0, Y: 0, Width: 50, Height: 50}
	b := Rect{X: 100, Y: 100, Width: 50, Height: 50}

	assert.Equal(t, Rect{X: 0, Y: 0, Width: 150, Height: 150}, a.Union(b))
	assert.Equal(t, Rect{X: 0, Y: 0, Width: 150, Height: 150}, b.Union(a))
	assert.False(t, a.Intersects(b))
	assert.Equal(t, Rect{X: 25, Y: 25, Width: 25, Height: 25}, a.Intersect(Rect{X: 25, Y: 25, Width: 100, Height: 100}))
}

func TestRect_UnionDegenerate(t *testing.T) {
	hline := Rect{X: 100, Y: 100, Width: 100}
	vline := Rect{X: 150, Y: 80, Height: 60}

	assert.Equal(t, Rect{X: 100, Y: 80, Width: 100, Height: 60}, hline.Union(vline))
	assert.Equal(t, Rect{X: 100, Y: 100, Width: 250, Height: 250}, hline.Union(Rect{X: 300, Y: 300, Width: 50, Height: 50}))
}

func TestBounds(t *testing.T) {
	var b Bounds
	assert.False(t, b.Ok())
	assert.Equal(t, Rect{}, b.Rect())

	b.Add(Rect{X: 100, Y: 100, Width: 100})
	assert.True(t, b.Ok())
	assert.Equal(t, Rect{X: 100, Y: 100, Width: 100}, b.Rect(), "a lone line keeps its position")

	b.Add(Rect{X: 100, Y: 110, Width: 100})
	assert.Equal(t, Rect{X: 100, Y: 100, Width: 100, Height: 10}, b.Rect())
}

func TestRect_ContainsEdges(t *testing.T) {
	r := Rect{X: 0, Y: 0, Width: 100, Height: 100}

	assert.True(t, r.Contains(50, 50))
	assert.True(t, r.Contains(100, 50))
	assert.False(t, r.Contains(100.1, 50))
}

func TestPointInPolygon(t *testing.T) {
	tri := []Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 50, Y: 100}}

	tests := []struct {
		name string
		p    Point
		want bool
	}{
		{"inside", Point{X: 50, Y: 30}, true},
		{"outside", Point{X: 5, Y: 90}, false},
		{"vertex", Point{X: 0, Y: 0}, true},
		{"edge", Point{X: 50, Y: 0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PointInPolygon(tt.p, tri))
		})
	}

	assert.False(t, PointInPolygon(Point{}, tri[:2]))
}

func TestBoundsOf(t *testing.T) {
	assert.Equal(t, Rect{X: -1, Y: 2, Width: 4, Height: 6}, BoundsOf([]Point{{X: 3, Y: 2}, {X: -1, Y: 8}}))
	assert.True(t, BoundsOf(nil).IsEmpty())
}
