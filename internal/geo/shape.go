package geo

import "droneDispatch/models"

// CircleSegments is the number of vertices used to approximate a circle.
const CircleSegments = 32

// CirclePolygon approximates a circle as a closed polygon ring.
func CirclePolygon(c models.Circle) *models.Geometry {
	ring := make([]models.Point, 0, CircleSegments+1)
	for i := 0; i < CircleSegments; i++ {
		bearing := float64(i) * 360 / CircleSegments
		ring = append(ring, Destination(c.Center, bearing, c.Radius))
	}
	return models.NewPolygonGeometry(ring...)
}

// Intersects reports whether two geometries share at least one point. Polygon
// boundaries are inclusive; holes are excluded.
func Intersects(a, b *models.Geometry) bool {
	if a == nil || b == nil {
		return false
	}
	switch {
	case a.Type == models.GeometryPoint && b.Type == models.GeometryPoint:
		return a.Point == b.Point
	case a.Type == models.GeometryPoint:
		return ContainsPoint(b, a.Point)
	case b.Type == models.GeometryPoint:
		return ContainsPoint(a, b.Point)
	default:
		return polygonsIntersect(a, b)
	}
}

// ContainsPoint reports whether p lies inside or on the boundary of polygon g.
func ContainsPoint(g *models.Geometry, p models.Point) bool {
	if g.Type != models.GeometryPolygon || len(g.Rings) == 0 {
		return false
	}
	if !inRing(g.Rings[0], p) {
		return false
	}
	for _, hole := range g.Rings[1:] {
		if inRing(hole, p) && !onRing(hole, p) {
			return false
		}
	}
	return true
}

// inRing is a ray casting test with the boundary counted as inside.
func inRing(ring []models.Point, p models.Point) bool {
	if onRing(ring, p) {
		return true
	}
	inside := false
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		a, b := ring[i], ring[j]
		if (a.Lat > p.Lat) != (b.Lat > p.Lat) {
			x := (b.Lng-a.Lng)*(p.Lat-a.Lat)/(b.Lat-a.Lat) + a.Lng
			if p.Lng < x {
				inside = !inside
			}
		}
	}
	return inside
}

func onRing(ring []models.Point, p models.Point) bool {
	for i := 1; i < len(ring); i++ {
		if onSegment(ring[i-1], ring[i], p) {
			return true
		}
	}
	return false
}

const epsilon = 1e-12

func cross(o, a, b models.Point) float64 {
	return (a.Lng-o.Lng)*(b.Lat-o.Lat) - (a.Lat-o.Lat)*(b.Lng-o.Lng)
}

func onSegment(a, b, p models.Point) bool {
	if abs(cross(a, b, p)) > epsilon {
		return false
	}
	return p.Lng >= min(a.Lng, b.Lng)-epsilon && p.Lng <= max(a.Lng, b.Lng)+epsilon &&
		p.Lat >= min(a.Lat, b.Lat)-epsilon && p.Lat <= max(a.Lat, b.Lat)+epsilon
}

func segmentsIntersect(p1, p2, q1, q2 models.Point) bool {
	d1 := cross(q1, q2, p1)
	d2 := cross(q1, q2, p2)
	d3 := cross(p1, p2, q1)
	d4 := cross(p1, p2, q2)
	if ((d1 > epsilon && d2 < -epsilon) || (d1 < -epsilon && d2 > epsilon)) &&
		((d3 > epsilon && d4 < -epsilon) || (d3 < -epsilon && d4 > epsilon)) {
		return true
	}
	return onSegment(q1, q2, p1) || onSegment(q1, q2, p2) ||
		onSegment(p1, p2, q1) || onSegment(p1, p2, q2)
}

func polygonsIntersect(a, b *models.Geometry) bool {
	if len(a.Rings) == 0 || len(b.Rings) == 0 {
		return false
	}
	if !bboxOverlap(a.Bounds(), b.Bounds()) {
		return false
	}
	ra, rb := a.Rings[0], b.Rings[0]
	for i := 1; i < len(ra); i++ {
		for j := 1; j < len(rb); j++ {
			if segmentsIntersect(ra[i-1], ra[i], rb[j-1], rb[j]) {
				return true
			}
		}
	}
	// no edge crossings: one is inside the other, or they are disjoint
	return ContainsPoint(a, rb[0]) || ContainsPoint(b, ra[0])
}

func bboxOverlap(a, b models.BBox) bool {
	return a.MinLat <= b.MaxLat && b.MinLat <= a.MaxLat &&
		a.MinLng <= b.MaxLng && b.MinLng <= a.MaxLng
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
