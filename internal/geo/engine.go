package geo

import (
	"fmt"
	"math"
)

// 文档注释：几何服务（缓冲区 / 距离 / 相交）
// 约束：缓冲半径单位千米、距离单位米；面要素缓冲时不保留原有的洞
type Engine struct {
	// Segments：半圆弧的分段数，<=0 时取 32
	Segments int
}

func NewEngine() *Engine { return &Engine{Segments: 32} }

func (e *Engine) segments() int {
	if e == nil || e.Segments <= 0 {
		return 32
	}
	return e.Segments
}

// Buffer：以 km 千米为半径构造缓冲面
// 点生成圆；线按每段生成胶囊环（多个外环，可重叠）；面保留外环并对每条边生成胶囊环
func (e *Engine) Buffer(g Geometry, km float64) (Polygon, error) {
	if km <= 0 || math.IsNaN(km) {
		return Polygon{}, ErrBadRadius
	}
	if g == nil || g.IsEmpty() {
		return Polygon{}, ErrEmptyGeometry
	}
	r := km * 1000
	var out Polygon
	switch v := g.(type) {
	case Point:
		out.Rings = append(out.Rings, e.circle(v, r))
	case Polyline:
		for _, path := range v.Paths {
			out.Rings = append(out.Rings, e.pathCapsules(path, r)...)
		}
	case Polygon:
		for _, ring := range v.Rings {
			if len(ring) < 3 {
				continue
			}
			if signedArea(ring) <= 0 {
				out.Rings = append(out.Rings, ring)
			}
			out.Rings = append(out.Rings, e.pathCapsules(closeRing(ring), r)...)
		}
	default:
		return Polygon{}, fmt.Errorf("%w: %T", ErrUnsupported, g)
	}
	if len(out.Rings) == 0 {
		return Polygon{}, ErrEmptyGeometry
	}
	return out, nil
}

func (e *Engine) pathCapsules(path []Point, r float64) [][]Point {
	switch len(path) {
	case 0:
		return nil
	case 1:
		return [][]Point{e.circle(path[0], r)}
	}
	rings := make([][]Point, 0, len(path)-1)
	for i := 0; i+1 < len(path); i++ {
		rings = append(rings, e.capsule(path[i], path[i+1], r))
	}
	return rings
}

// circle：按方位角递增（顺时针）采样的闭合环
func (e *Engine) circle(c Point, r float64) []Point {
	n := 2 * e.segments()
	ring := make([]Point, 0, n+1)
	for i := 0; i < n; i++ {
		ring = append(ring, Destination(c, float64(i)*360/float64(n), r))
	}
	return append(ring, ring[0])
}

// capsule：线段 a→b 的缓冲环；先绕 b 的前半圆，再绕 a 的后半圆，方位角递增即顺时针
func (e *Engine) capsule(a, b Point, r float64) []Point {
	if a == b {
		return e.circle(a, r)
	}
	n := e.segments()
	th := Bearing(a, b)
	thBack := math.Mod(Bearing(b, a)+180, 360)
	ring := make([]Point, 0, 2*n+3)
	for i := 0; i <= n; i++ {
		ring = append(ring, Destination(b, thBack-90+float64(i)*180/float64(n), r))
	}
	for i := 0; i <= n; i++ {
		ring = append(ring, Destination(a, th+90+float64(i)*180/float64(n), r))
	}
	return append(ring, ring[0])
}

// Distance：两个几何之间的最短距离（米），相交或包含时为 0
func (e *Engine) Distance(a, b Geometry) (float64, error) {
	if a == nil || b == nil || a.IsEmpty() || b.IsEmpty() {
		return 0, ErrEmptyGeometry
	}
	if p, ok := a.(Point); ok {
		if q, ok := b.(Point); ok {
			return Haversine(p, q), nil
		}
	}
	if e.Intersects(a, b) {
		return 0, nil
	}
	best := math.Inf(1)
	for _, v := range vertices(a) {
		best = math.Min(best, pointToGeometry(v, b))
	}
	for _, v := range vertices(b) {
		best = math.Min(best, pointToGeometry(v, a))
	}
	return best, nil
}

// Intersects：两个几何是否相交（含接触）
func (e *Engine) Intersects(a, b Geometry) bool {
	if a == nil || b == nil || a.IsEmpty() || b.IsEmpty() {
		return false
	}
	if !a.Envelope().Intersects(b.Envelope()) {
		return false
	}
	if g, ok := b.(Polygon); ok {
		for _, v := range vertices(a) {
			if polygonContains(g, v) {
				return true
			}
		}
	}
	if g, ok := a.(Polygon); ok {
		for _, v := range vertices(b) {
			if polygonContains(g, v) {
				return true
			}
		}
	}
	sa, sb := segments(a), segments(b)
	for _, s := range sa {
		for _, t := range sb {
			if segmentsCross(s[0], s[1], t[0], t[1]) {
				return true
			}
		}
	}
	if p, ok := a.(Point); ok {
		if q, ok := b.(Point); ok {
			return p == q
		}
	}
	return false
}

func pointToGeometry(p Point, g Geometry) float64 {
	switch v := g.(type) {
	case Point:
		return Haversine(p, v)
	case Polygon:
		if polygonContains(v, p) {
			return 0
		}
	}
	best := math.Inf(1)
	for _, s := range segments(g) {
		best = math.Min(best, pointSegmentDistance(p, s[0], s[1]))
	}
	return best
}

func vertices(g Geometry) []Point {
	switch v := g.(type) {
	case Point:
		return []Point{v}
	case Polyline:
		return flatten(v.Paths)
	case Polygon:
		return flatten(v.Rings)
	}
	return nil
}

func flatten(parts [][]Point) []Point {
	var out []Point
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// segments：几何的全部边；单点路径视为退化线段
func segments(g Geometry) [][2]Point {
	var parts [][]Point
	switch v := g.(type) {
	case Polyline:
		parts = v.Paths
	case Polygon:
		for _, r := range v.Rings {
			parts = append(parts, closeRing(r))
		}
	default:
		return nil
	}
	var out [][2]Point
	for _, p := range parts {
		if len(p) == 1 {
			out = append(out, [2]Point{p[0], p[0]})
			continue
		}
		for i := 0; i+1 < len(p); i++ {
			out = append(out, [2]Point{p[i], p[i+1]})
		}
	}
	return out
}

func closeRing(r []Point) []Point {
	if len(r) == 0 || r[0] == r[len(r)-1] {
		return r
	}
	out := make([]Point, len(r), len(r)+1)
	copy(out, r)
	return append(out, r[0])
}
