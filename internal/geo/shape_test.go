package geo

import (
	"testing"

	"droneDispatch/models"
)

func square(minLat, minLng, maxLat, maxLng float64) *models.Geometry {
	return models.NewPolygonGeometry(
		models.Point{Lat: minLat, Lng: minLng},
		models.Point{Lat: minLat, Lng: maxLng},
		models.Point{Lat: maxLat, Lng: maxLng},
		models.Point{Lat: maxLat, Lng: minLng},
	)
}

func TestContainsPoint(t *testing.T) {
	sq := square(0, 0, 1, 1)
	cases := []struct {
		name string
		p    models.Point
		want bool
	}{
		{"inside", models.Point{Lat: 0.5, Lng: 0.5}, true},
		{"outside", models.Point{Lat: 1.5, Lng: 0.5}, false},
		{"on edge", models.Point{Lat: 0, Lng: 0.5}, true},
		{"on vertex", models.Point{Lat: 1, Lng: 1}, true},
	}
	for _, tc := range cases {
		if got := ContainsPoint(sq, tc.p); got != tc.want {
			t.Errorf("%s: ContainsPoint(%v) = %v, want %v", tc.name, tc.p, got, tc.want)
		}
	}
}

func TestContainsPoint_Hole(t *testing.T) {
	g := square(0, 0, 10, 10)
	hole := square(4, 4, 6, 6)
	g.Rings = append(g.Rings, hole.Rings[0])
	if ContainsPoint(g, models.Point{Lat: 5, Lng: 5}) {
		t.Fatalf("point in hole must not be contained")
	}
	if !ContainsPoint(g, models.Point{Lat: 1, Lng: 1}) {
		t.Fatalf("point outside hole must be contained")
	}
}

func TestIntersects(t *testing.T) {
	a := square(0, 0, 2, 2)
	cases := []struct {
		name string
		b    *models.Geometry
		want bool
	}{
		{"overlapping", square(1, 1, 3, 3), true},
		{"disjoint", square(5, 5, 6, 6), false},
		{"touching edge", square(2, 0, 3, 2), true},
		{"contained", square(0.5, 0.5, 1, 1), true},
		{"containing", square(-1, -1, 5, 5), true},
		{"point inside", models.NewPointGeometry(1, 1), true},
		{"point outside", models.NewPointGeometry(3, 3), false},
	}
	for _, tc := range cases {
		if got := Intersects(a, tc.b); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
		if got := Intersects(tc.b, a); got != tc.want {
			t.Errorf("%s (swapped): got %v, want %v", tc.name, got, tc.want)
		}
	}
	if !Intersects(models.NewPointGeometry(1, 2), models.NewPointGeometry(1, 2)) {
		t.Fatalf("equal points must intersect")
	}
}

func TestCirclePolygon(t *testing.T) {
	c := models.Circle{Center: models.Point{Lat: 10, Lng: 20}, Radius: 500}
	g := CirclePolygon(c)
	if err := g.Validate(); err != nil {
		t.Fatalf("circle polygon invalid: %v", err)
	}
	if n := len(g.Rings[0]); n != CircleSegments+1 {
		t.Fatalf("ring has %d points, want %d", n, CircleSegments+1)
	}
	if !ContainsPoint(g, c.Center) {
		t.Fatalf("circle polygon must contain its center")
	}
	if ContainsPoint(g, Destination(c.Center, 10, 600)) {
		t.Fatalf("point beyond radius must be outside")
	}
}
