package api

import (
	"citymap/internal/geo"
	"citymap/internal/viewer"
)

// 文档注释：对外请求与返回结构
// 约束：坐标统一为 WGS84 经纬度，字段名保持稳定
type clickRequest struct {
	X          *float64 `json:"x"`
	Y          *float64 `json:"y"`
	ToleranceM float64  `json:"tolerance_m"`
}

type lonLat struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

type extent struct {
	XMin float64 `json:"xmin"`
	YMin float64 `json:"ymin"`
	XMax float64 `json:"xmax"`
	YMax float64 `json:"ymax"`
	WKID int     `json:"wkid"`
}

func toExtent(e geo.Envelope) extent {
	return extent{XMin: e.MinLon, YMin: e.MinLat, XMax: e.MaxLon, YMax: e.MaxLat, WKID: 4326}
}

type viewResponse struct {
	Basemap    string  `json:"basemap"`
	Extent     extent  `json:"extent"`
	Constraint extent  `json:"constraint"`
	Center     *lonLat `json:"center,omitempty"`
	RadiusKm   float64 `json:"radius_km"`
	Ready      bool    `json:"ready"`
}

type listResponse struct {
	ContainerID string       `json:"container_id"`
	Version     uint64       `json:"version"`
	Message     string       `json:"message,omitempty"`
	Rows        []viewer.Row `json:"rows"`
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
