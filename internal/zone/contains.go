// Package zone implements print-zone containment and constraint checks.
package zone

import (
	"fmt"

	"github.com/luneo/canvas-engine/internal/document"
	"github.com/luneo/canvas-engine/internal/geom"
)

// Policy selects how an object's bounds are tested against a zone.
type Policy string

const (
	// PolicyCenter tests the center of the object's rendered bounds.
	PolicyCenter Policy = "center"
	// PolicyBounds requires all four corners of the rendered bounds inside.
	PolicyBounds Policy = "bounds"
)

// ParsePolicy maps a config string to a Policy. Empty means PolicyCenter.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyCenter:
		return PolicyCenter, nil
	case PolicyBounds:
		return PolicyBounds, nil
	default:
		return "", fmt.Errorf("unknown containment policy %q", s)
	}
}

// Contains reports whether p lies inside z. Boundaries count as inside.
// Rotated zones are tested by rotating p back into the zone's frame.
func Contains(z document.Zone, p geom.Point) bool {
	if z.Rotation != 0 {
		p = z.Matrix().Invert().Apply(p)
	}
	switch z.Shape {
	case document.ZoneCircle:
		return p.Dist(geom.Point{X: z.CenterX, Y: z.CenterY}) <= z.Radius
	case document.ZoneEllipse:
		if z.RadiusX <= 0 || z.RadiusY <= 0 {
			return false
		}
		dx := (p.X - z.CenterX) / z.RadiusX
		dy := (p.Y - z.CenterY) / z.RadiusY
		return dx*dx+dy*dy <= 1
	case document.ZonePolygon:
		return geom.PointInPolygon(p, z.Points)
	default:
		return geom.Rect{X: z.X, Y: z.Y, Width: z.Width, Height: z.Height}.Contains(p.X, p.Y)
	}
}

// ContainsRect applies policy to an object's rendered bounds.
func ContainsRect(z document.Zone, r geom.Rect, policy Policy) bool {
	if policy == PolicyBounds {
		for _, c := range r.Corners() {
			if !Contains(z, c) {
				return false
			}
		}
		return true
	}
	return Contains(z, r.CenterPoint())
}

// Locate returns the topmost zone (last in scene order) containing bounds.
func Locate(zones []document.Zone, bounds geom.Rect, policy Policy) (document.Zone, bool) {
	for i := len(zones) - 1; i >= 0; i-- {
		if ContainsRect(zones[i], bounds, policy) {
			return zones[i], true
		}
	}
	return document.Zone{}, false
}

// Overlaps reports whether the rotated bounds of a and b intersect.
func Overlaps(a, b document.Zone) bool {
	return a.RotatedBounds().Intersects(b.RotatedBounds())
}

// SafeArea returns the zone bounds shrunk by margin on every side.
func SafeArea(z document.Zone, margin float64) geom.Rect {
	return z.RotatedBounds().Inset(margin)
}

// BleedArea returns the zone bounds grown by bleed on every side.
func BleedArea(z document.Zone, bleed float64) geom.Rect {
	return z.RotatedBounds().Inset(-bleed)
}
