package geo

import (
	"encoding/json"
	"fmt"
	"strings"
)

// 文档注释：GeoJSON 几何解码（快照数据源使用）
// 约束：Multi* 合并为单个多部件几何；面外环统一改为顺时针、洞改为逆时针，与 ESRI 约定一致
func DecodeGeoJSON(raw []byte) (Geometry, error) {
	var g struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("geo: decode geojson: %w", err)
	}
	switch strings.ToLower(g.Type) {
	case "point":
		var c []float64
		if err := json.Unmarshal(g.Coordinates, &c); err != nil || len(c) < 2 {
			return nil, fmt.Errorf("geo: bad point coordinates")
		}
		return Point{Lon: c[0], Lat: c[1]}, nil
	case "linestring":
		var c [][]float64
		if err := json.Unmarshal(g.Coordinates, &c); err != nil {
			return nil, fmt.Errorf("geo: bad linestring: %w", err)
		}
		return Polyline{Paths: fromCoords([][][]float64{c})}, nil
	case "multilinestring":
		var c [][][]float64
		if err := json.Unmarshal(g.Coordinates, &c); err != nil {
			return nil, fmt.Errorf("geo: bad multilinestring: %w", err)
		}
		return Polyline{Paths: fromCoords(c)}, nil
	case "polygon":
		var c [][][]float64
		if err := json.Unmarshal(g.Coordinates, &c); err != nil {
			return nil, fmt.Errorf("geo: bad polygon: %w", err)
		}
		return Polygon{Rings: orientRings(fromCoords(c))}, nil
	case "multipolygon":
		var c [][][][]float64
		if err := json.Unmarshal(g.Coordinates, &c); err != nil {
			return nil, fmt.Errorf("geo: bad multipolygon: %w", err)
		}
		var p Polygon
		for _, part := range c {
			p.Rings = append(p.Rings, orientRings(fromCoords(part))...)
		}
		return p, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupported, g.Type)
}

// 首环为外环，其余为洞
func orientRings(rings [][]Point) [][]Point {
	for i, r := range rings {
		a := signedArea(r)
		if (i == 0 && a > 0) || (i > 0 && a < 0) {
			rings[i] = reversed(r)
		}
	}
	return rings
}

func reversed(r []Point) []Point {
	out := make([]Point, len(r))
	for i := range r {
		out[len(r)-1-i] = r[i]
	}
	return out
}
