// 包 geo：要素几何与几何运算（缓冲区、距离、相交判定），坐标统一为 WGS84 经纬度
package geo

import "errors"

var (
	ErrEmptyGeometry = errors.New("geo: empty geometry")
	ErrUnsupported   = errors.New("geo: unsupported geometry")
	ErrBadRadius     = errors.New("geo: buffer radius must be positive")
)

// Kind：几何类型
type Kind string

const (
	KindPoint    Kind = "point"
	KindPolyline Kind = "polyline"
	KindPolygon  Kind = "polygon"
)

// Geometry：点、线、面的统一接口
type Geometry interface {
	Kind() Kind
	Envelope() Envelope
	IsEmpty() bool
}

// 点坐标（WGS84）
type Point struct {
	Lon float64
	Lat float64
}

// Polyline：一条或多条路径
type Polyline struct {
	Paths [][]Point
}

// Polygon：环集合；按 ESRI 约定外环顺时针、洞逆时针
type Polygon struct {
	Rings [][]Point
}

// Envelope：包围盒
type Envelope struct {
	MinLon, MinLat, MaxLon, MaxLat float64
}

func (p Point) Kind() Kind         { return KindPoint }
func (p Point) IsEmpty() bool      { return false }
func (p Point) Envelope() Envelope { return Envelope{p.Lon, p.Lat, p.Lon, p.Lat} }

func (l Polyline) Kind() Kind { return KindPolyline }

func (l Polyline) IsEmpty() bool {
	for _, p := range l.Paths {
		if len(p) > 0 {
			return false
		}
	}
	return true
}

func (l Polyline) Envelope() Envelope { return envelopeOf(l.Paths) }

func (g Polygon) Kind() Kind { return KindPolygon }

func (g Polygon) IsEmpty() bool {
	for _, r := range g.Rings {
		if len(r) >= 3 {
			return false
		}
	}
	return true
}

func (g Polygon) Envelope() Envelope { return envelopeOf(g.Rings) }

// Intersects：包围盒相交（含边界）
func (e Envelope) Intersects(o Envelope) bool {
	return e.MinLon <= o.MaxLon && o.MinLon <= e.MaxLon && e.MinLat <= o.MaxLat && o.MinLat <= e.MaxLat
}

func (e Envelope) Contains(p Point) bool {
	return p.Lon >= e.MinLon && p.Lon <= e.MaxLon && p.Lat >= e.MinLat && p.Lat <= e.MaxLat
}

func envelopeOf(parts [][]Point) Envelope {
	e := Envelope{180, 90, -180, -90}
	for _, part := range parts {
		for _, pt := range part {
			if pt.Lon < e.MinLon {
				e.MinLon = pt.Lon
			}
			if pt.Lat < e.MinLat {
				e.MinLat = pt.Lat
			}
			if pt.Lon > e.MaxLon {
				e.MaxLon = pt.Lon
			}
			if pt.Lat > e.MaxLat {
				e.MaxLat = pt.Lat
			}
		}
	}
	return e
}
