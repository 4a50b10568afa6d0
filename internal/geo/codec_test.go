package geo

import (
	"errors"
	"testing"
)

func TestDecodeESRI(t *testing.T) {
	g, err := DecodeESRI([]byte(`{"x":-118.24,"y":34.05,"spatialReference":{"wkid":4326}}`))
	if err != nil {
		t.Fatalf("decode point: %v", err)
	}
	if p, ok := g.(Point); !ok || p.Lon != -118.24 || p.Lat != 34.05 {
		t.Fatalf("unexpected point: %#v", g)
	}

	g, err = DecodeESRI([]byte(`{"paths":[[[-100,40],[-99,40]],[[-98,41],[-97,41]]]}`))
	if err != nil {
		t.Fatalf("decode polyline: %v", err)
	}
	if l, ok := g.(Polyline); !ok || len(l.Paths) != 2 || l.Paths[1][1] != (Point{Lon: -97, Lat: 41}) {
		t.Fatalf("unexpected polyline: %#v", g)
	}
	if GeometryType(g) != ESRIPolyline {
		t.Fatalf("unexpected geometry type %s", GeometryType(g))
	}

	if _, err := DecodeESRI([]byte(`null`)); !errors.Is(err, ErrEmptyGeometry) {
		t.Fatalf("expected ErrEmptyGeometry, got %v", err)
	}
}

func TestEncodeESRIPointAtOrigin(t *testing.T) {
	raw, err := EncodeESRI(Point{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	g, err := DecodeESRI(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if g != (Point{}) {
		t.Fatalf("expected origin point, got %#v (%s)", g, raw)
	}
}

func TestDecodeGeoJSONPolygonOrientation(t *testing.T) {
	// RFC 7946 外环逆时针
	raw := []byte(`{"type":"Polygon","coordinates":[[[-100,40],[-98,40],[-98,42],[-100,42],[-100,40]]]}`)
	g, err := DecodeGeoJSON(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	poly := g.(Polygon)
	if signedArea(poly.Rings[0]) >= 0 {
		t.Fatalf("outer ring should be clockwise after decode")
	}
	if !NewEngine().Intersects(Point{Lon: -99, Lat: 41}, poly) {
		t.Fatalf("interior point should intersect")
	}
}

func TestDecodeGeoJSONUnsupported(t *testing.T) {
	if _, err := DecodeGeoJSON([]byte(`{"type":"GeometryCollection","geometries":[]}`)); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}
