package geo

import (
	"math"
	"testing"

	"droneDispatch/models"
)

func TestDistanceMeters_ZeroDistance(t *testing.T) {
	if d := DistanceMeters(10, 20, 10, 20); d != 0 {
		t.Fatalf("zero distance expected 0, got %v", d)
	}
}

func TestDistanceMeters_FlindersPeakToBuninyong(t *testing.T) {
	d := DistanceMeters(-37.95103341666667, 144.42486788888889, -37.65282113888889, 143.92649552777777)
	if math.Abs(d-54972.271) > 0.01 {
		t.Fatalf("got %.3f, want 54972.271", d)
	}
}

func TestDistanceMeters_OneDegreeAtEquator(t *testing.T) {
	d := DistanceMeters(0, 0, 0, 1)
	if math.Abs(d-111319.491) > 0.01 {
		t.Fatalf("got %.3f, want 111319.491", d)
	}
}

func TestDistanceMeters_NearAntipodal(t *testing.T) {
	d := DistanceMeters(0, 0, 0.5, 179.7)
	h := HaversineMeters(0, 0, 0.5, 179.7)
	if d <= 0 || math.Abs(d-h)/h > 0.01 {
		t.Fatalf("near antipodal: vincenty=%v haversine=%v", d, h)
	}
}

func TestHaversineMeters_CloseToVincenty(t *testing.T) {
	v := DistanceMeters(51.5074, -0.1278, 48.8566, 2.3522)
	h := HaversineMeters(51.5074, -0.1278, 48.8566, 2.3522)
	if math.Abs(v-h)/v > 0.005 {
		t.Fatalf("vincenty %v and haversine %v differ by more than 0.5%%", v, h)
	}
}

func TestIsWithinRadius_Boundary(t *testing.T) {
	a := models.Point{Lat: 0, Lng: 0}
	b := models.Point{Lat: 0, Lng: 0.000001}
	if !IsWithinRadius(a, b, 1) {
		t.Fatalf("expected points to be within 1m")
	}
	if IsWithinRadius(a, models.Point{Lat: 0, Lng: 0.01}, 1000) {
		t.Fatalf("0.01 degrees at the equator is more than 1km")
	}
}

func TestDegreeSpan_ContainsRadius(t *testing.T) {
	cases := []struct {
		lat, radius float64
	}{
		{0, 5000},
		{45, 5000},
		{60, 200000},
		{80, 500000},
		{-80, 500000},
		{85, 400000},
	}
	for _, tc := range cases {
		p := models.Point{Lat: tc.lat, Lng: 10}
		dLat, dLng := DegreeSpan(p, tc.radius)
		for bearing := 0.0; bearing < 360; bearing += 2 {
			q := Destination(p, bearing, tc.radius)
			if math.Abs(q.Lat-p.Lat) > dLat {
				t.Fatalf("lat %v r=%v bearing %v: lat offset %v outside span %v", tc.lat, tc.radius, bearing, q.Lat-p.Lat, dLat)
			}
			lngOff := math.Abs(math.Mod(q.Lng-p.Lng+540, 360) - 180)
			if lngOff > dLng {
				t.Fatalf("lat %v r=%v bearing %v: lng offset %v outside span %v", tc.lat, tc.radius, bearing, lngOff, dLng)
			}
		}
	}
}

func TestDegreeSpan_HighLatitudeGeodesic(t *testing.T) {
	p := models.Point{Lat: 80, Lng: 0}
	q := models.Point{Lat: 81.06, Lng: 26.67}
	if d := Distance(p, q); d > 500000 {
		t.Fatalf("fixture distance %v exceeds radius", d)
	}
	_, dLng := DegreeSpan(p, 500000)
	if dLng < q.Lng {
		t.Fatalf("lng span %v excludes a point %v m away", dLng, Distance(p, q))
	}
}

func TestDegreeSpan_PoleInsideCircle(t *testing.T) {
	_, dLng := DegreeSpan(models.Point{Lat: 89.8, Lng: 0}, 50000)
	if dLng != 180 {
		t.Fatalf("lng span = %v, want 180", dLng)
	}
}

func TestDestination_RoundTrip(t *testing.T) {
	p := models.Point{Lat: 40, Lng: -74}
	q := Destination(p, 45, 1000)
	if d := HaversineMeters(p.Lat, p.Lng, q.Lat, q.Lng); math.Abs(d-1000) > 0.01 {
		t.Fatalf("distance after Destination = %v, want 1000", d)
	}
}
