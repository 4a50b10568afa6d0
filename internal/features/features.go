// 包 features：要素服务抽象（空间查询 + 图层元数据）
// 背景：默认对接 ArcGIS REST MapServer；离线或测试场景使用本地 GeoJSON 快照。
package features

import (
	"context"
	"encoding/json"
	"errors"

	"citymap/internal/geo"
	"citymap/internal/layers"
)

var (
	ErrLayerNotFound = errors.New("features: layer not found")
	ErrService       = errors.New("features: service error")
)

// SpatialRelIntersects：唯一支持的空间关系
const SpatialRelIntersects = "intersects"

// Feature：要素属性与几何
type Feature struct {
	Attributes map[string]any
	Geometry   geo.Geometry
}

// ObjectID：objectid 的字符串形式，缺失时为空
func (f Feature) ObjectID() string {
	return layers.FormatValue(f.Attributes[layers.IDField])
}

// MarshalJSON：几何按 ESRI JSON 输出
func (f Feature) MarshalJSON() ([]byte, error) {
	out := struct {
		Attributes map[string]any  `json:"attributes"`
		Geometry   json.RawMessage `json:"geometry,omitempty"`
	}{Attributes: f.Attributes}
	if f.Geometry != nil && !f.Geometry.IsEmpty() {
		raw, err := geo.EncodeESRI(f.Geometry)
		if err != nil {
			return nil, err
		}
		out.Geometry = raw
	}
	return json.Marshal(out)
}

// Query：空间查询参数
// 约束：Around 非空时 Geometry 为 Around 按 DistanceKm 缓冲后的面；远端服务改为发送 Around + distance，由服务端缓冲
type Query struct {
	Geometry       geo.Geometry
	Around         geo.Geometry
	DistanceKm     float64
	SpatialRel     string
	OutFields      []string
	ReturnGeometry bool
}

// Field：图层字段描述
type Field struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Alias string `json:"alias,omitempty"`
}

// LayerInfo：图层元数据
type LayerInfo struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	GeometryType string  `json:"geometryType"`
	Fields       []Field `json:"fields,omitempty"`
}

// Source：要素服务
type Source interface {
	Query(ctx context.Context, layer layers.Layer, q Query) ([]Feature, error)
	Describe(ctx context.Context, layer layers.Layer) (LayerInfo, error)
}

func outFields(fields []string) []string {
	if len(fields) == 0 {
		return []string{"*"}
	}
	return fields
}

// project：按 outFields 裁剪属性；"*" 时返回副本
func project(attrs map[string]any, fields []string) map[string]any {
	out := make(map[string]any, len(attrs))
	all := false
	for _, f := range fields {
		if f == "*" {
			all = true
			break
		}
	}
	if all {
		for k, v := range attrs {
			out[k] = v
		}
		return out
	}
	for _, f := range fields {
		if v, ok := attrs[f]; ok {
			out[f] = v
		}
	}
	return out
}
