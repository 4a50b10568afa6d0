package geo

import (
	"encoding/json"
	"fmt"
)

// ESRI JSON 几何类型名（geometryType 参数取值）
const (
	ESRIPoint    = "esriGeometryPoint"
	ESRIPolyline = "esriGeometryPolyline"
	ESRIPolygon  = "esriGeometryPolygon"
)

// wire：ESRI JSON 几何的并集形式
type esriWire struct {
	X                *float64      `json:"x,omitempty"`
	Y                *float64      `json:"y,omitempty"`
	Paths            [][][]float64 `json:"paths,omitempty"`
	Rings            [][][]float64 `json:"rings,omitempty"`
	SpatialReference *struct {
		WKID int `json:"wkid"`
	} `json:"spatialReference,omitempty"`
}

// GeometryType：几何对应的 ESRI geometryType
func GeometryType(g Geometry) string {
	switch g.(type) {
	case Point:
		return ESRIPoint
	case Polyline:
		return ESRIPolyline
	case Polygon:
		return ESRIPolygon
	}
	return ""
}

// EncodeESRI：编码为 ESRI JSON（附 wkid 4326）
func EncodeESRI(g Geometry) (json.RawMessage, error) {
	if g == nil {
		return nil, ErrEmptyGeometry
	}
	w := esriWire{SpatialReference: &struct {
		WKID int `json:"wkid"`
	}{WKID: 4326}}
	switch v := g.(type) {
	case Point:
		x, y := v.Lon, v.Lat
		w.X, w.Y = &x, &y
	case Polyline:
		w.Paths = toCoords(v.Paths)
	case Polygon:
		w.Rings = toCoords(v.Rings)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupported, g)
	}
	return json.Marshal(w)
}

// DecodeESRI：按字段形态识别点 / 线 / 面
func DecodeESRI(raw []byte) (Geometry, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, ErrEmptyGeometry
	}
	var w esriWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("geo: decode esri json: %w", err)
	}
	switch {
	case w.X != nil && w.Y != nil:
		return Point{Lon: *w.X, Lat: *w.Y}, nil
	case w.Paths != nil:
		return Polyline{Paths: fromCoords(w.Paths)}, nil
	case w.Rings != nil:
		return Polygon{Rings: fromCoords(w.Rings)}, nil
	}
	return nil, ErrEmptyGeometry
}

func toCoords(parts [][]Point) [][][]float64 {
	out := make([][][]float64, 0, len(parts))
	for _, part := range parts {
		pp := make([][]float64, 0, len(part))
		for _, pt := range part {
			pp = append(pp, []float64{pt.Lon, pt.Lat})
		}
		out = append(out, pp)
	}
	return out
}

func fromCoords(parts [][][]float64) [][]Point {
	out := make([][]Point, 0, len(parts))
	for _, part := range parts {
		pp := make([]Point, 0, len(part))
		for _, c := range part {
			if len(c) >= 2 {
				pp = append(pp, Point{Lon: c[0], Lat: c[1]})
			}
		}
		out = append(out, pp)
	}
	return out
}
