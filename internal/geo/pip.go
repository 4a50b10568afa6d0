package geo

// 文档注释：点入多边形判定（射线法）
// 约束：外环顺时针、洞逆时针（ESRI 约定）；点位于任一外环内且不在该外环所含的洞内即视为命中。
// 多个外环可以重叠（缓冲区由多段胶囊环组成）。
func polygonContains(g Polygon, pt Point) bool {
	var outers, holes [][]Point
	for _, r := range g.Rings {
		if len(r) < 3 {
			continue
		}
		if signedArea(r) > 0 {
			holes = append(holes, r)
		} else {
			outers = append(outers, r)
		}
	}
	if len(outers) == 0 {
		outers, holes = holes, nil
	}
	for _, o := range outers {
		if !pointInRing(pt, o) {
			continue
		}
		inHole := false
		for _, h := range holes {
			if pointInRing(pt, h) && pointInRing(h[0], o) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}

// 射线法判定点是否在环内
func pointInRing(pt Point, ring []Point) bool {
	n := len(ring)
	if n < 3 {
		return false
	}
	inside := false
	x, y := pt.Lon, pt.Lat
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i].Lon, ring[i].Lat
		xj, yj := ring[j].Lon, ring[j].Lat
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// signedArea：鞋带公式；经度为 x、纬度为 y 时顺时针为负
func signedArea(ring []Point) float64 {
	var s float64
	for i := range ring {
		j := (i + 1) % len(ring)
		s += ring[i].Lon*ring[j].Lat - ring[j].Lon*ring[i].Lat
	}
	return s / 2
}
