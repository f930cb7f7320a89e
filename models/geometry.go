package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinate is inside the WGS84 ranges.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// GeometryType follows the GeoJSON type names.
type GeometryType string

const (
	GeometryPoint   GeometryType = "Point"
	GeometryPolygon GeometryType = "Polygon"
)

// Geometry is a GeoJSON Point or Polygon. For polygons the first ring is the outer
// boundary and any further rings are holes. On the wire coordinates are [lng, lat].
type Geometry struct {
	Type  GeometryType
	Point Point
	Rings [][]Point
}

// NewPointGeometry returns a Point geometry.
func NewPointGeometry(lat, lng float64) *Geometry {
	return &Geometry{Type: GeometryPoint, Point: Point{Lat: lat, Lng: lng}}
}

// NewPolygonGeometry returns a single-ring Polygon geometry. The ring is closed if needed.
func NewPolygonGeometry(ring ...Point) *Geometry {
	return &Geometry{Type: GeometryPolygon, Rings: [][]Point{closeRing(ring)}}
}

func closeRing(ring []Point) []Point {
	if len(ring) == 0 || ring[0] == ring[len(ring)-1] {
		return ring
	}
	out := make([]Point, len(ring), len(ring)+1)
	copy(out, ring)
	return append(out, ring[0])
}

// Validate checks coordinate ranges and ring shape.
func (g *Geometry) Validate() error {
	if g == nil {
		return errors.New("geometry is required")
	}
	switch g.Type {
	case GeometryPoint:
		if !g.Point.Valid() {
			return fmt.Errorf("point %v out of range", g.Point)
		}
	case GeometryPolygon:
		if len(g.Rings) == 0 {
			return errors.New("polygon has no rings")
		}
		for i, ring := range g.Rings {
			if len(ring) < 4 {
				return fmt.Errorf("ring %d needs at least 4 positions", i)
			}
			if ring[0] != ring[len(ring)-1] {
				return fmt.Errorf("ring %d is not closed", i)
			}
			for _, p := range ring {
				if !p.Valid() {
					return fmt.Errorf("ring %d: point %v out of range", i, p)
				}
			}
		}
	default:
		return fmt.Errorf("unsupported geometry type %q", g.Type)
	}
	return nil
}

// Bounds returns the bounding box of the geometry.
func (g *Geometry) Bounds() BBox {
	if g.Type == GeometryPoint {
		return BBox{MinLat: g.Point.Lat, MaxLat: g.Point.Lat, MinLng: g.Point.Lng, MaxLng: g.Point.Lng}
	}
	b := BBox{MinLat: math.Inf(1), MaxLat: math.Inf(-1), MinLng: math.Inf(1), MaxLng: math.Inf(-1)}
	if len(g.Rings) == 0 {
		return BBox{}
	}
	for _, p := range g.Rings[0] {
		b.MinLat = math.Min(b.MinLat, p.Lat)
		b.MaxLat = math.Max(b.MaxLat, p.Lat)
		b.MinLng = math.Min(b.MinLng, p.Lng)
		b.MaxLng = math.Max(b.MaxLng, p.Lng)
	}
	return b
}

type geoJSON struct {
	Type        GeometryType    `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// MarshalJSON encodes the geometry as GeoJSON.
func (g Geometry) MarshalJSON() ([]byte, error) {
	var coords any
	switch g.Type {
	case GeometryPoint:
		coords = [2]float64{g.Point.Lng, g.Point.Lat}
	case GeometryPolygon:
		rings := make([][][2]float64, len(g.Rings))
		for i, ring := range g.Rings {
			rings[i] = make([][2]float64, len(ring))
			for j, p := range ring {
				rings[i][j] = [2]float64{p.Lng, p.Lat}
			}
		}
		coords = rings
	default:
		return nil, fmt.Errorf("unsupported geometry type %q", g.Type)
	}
	raw, err := json.Marshal(coords)
	if err != nil {
		return nil, err
	}
	return json.Marshal(geoJSON{Type: g.Type, Coordinates: raw})
}

// UnmarshalJSON decodes a GeoJSON Point or Polygon.
func (g *Geometry) UnmarshalJSON(data []byte) error {
	var in geoJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch in.Type {
	case GeometryPoint:
		var c []float64
		if err := json.Unmarshal(in.Coordinates, &c); err != nil {
			return fmt.Errorf("point coordinates: %w", err)
		}
		if len(c) < 2 {
			return errors.New("point needs [lng, lat]")
		}
		*g = Geometry{Type: GeometryPoint, Point: Point{Lat: c[1], Lng: c[0]}}
	case GeometryPolygon:
		var rings [][][]float64
		if err := json.Unmarshal(in.Coordinates, &rings); err != nil {
			return fmt.Errorf("polygon coordinates: %w", err)
		}
		out := Geometry{Type: GeometryPolygon, Rings: make([][]Point, len(rings))}
		for i, ring := range rings {
			out.Rings[i] = make([]Point, len(ring))
			for j, c := range ring {
				if len(c) < 2 {
					return fmt.Errorf("ring %d position %d needs [lng, lat]", i, j)
				}
				out.Rings[i][j] = Point{Lat: c[1], Lng: c[0]}
			}
		}
		*g = out
	default:
		return fmt.Errorf("unsupported geometry type %q", in.Type)
	}
	return nil
}

// Circle is the frontend description of a circular zone. Radius is in meters.
type Circle struct {
	Center Point   `json:"center"`
	Radius float64 `json:"radius"`
}

// BBox is an axis aligned bounding box in degrees.
type BBox struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}
