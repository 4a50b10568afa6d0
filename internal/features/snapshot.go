package features

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"citymap/internal/geo"
	"citymap/internal/layers"
	"citymap/internal/logger"
	"citymap/internal/metrics"
)

// 文档注释：本地 GeoJSON 快照数据源
// 背景：离线运行或测试时替代远程服务；每个角色一个文件：<dir>/<role>.geojson（FeatureCollection）。
// 约束：启动时一次性加载，之后只读；缺少 objectid 的要素按文件内顺序从 1 编号；缺失的文件在 Describe 时报 ErrLayerNotFound。
type SnapshotSource struct {
	engine *geo.Engine
	data   map[layers.Role][]Feature
}

func NewSnapshotSource(dir string, engine *geo.Engine) (*SnapshotSource, error) {
	if engine == nil {
		engine = geo.NewEngine()
	}
	s := &SnapshotSource{engine: engine, data: make(map[layers.Role][]Feature)}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("features: read snapshot dir: %w", err)
	}
	for _, ent := range entries {
		name := ent.Name()
		if ent.IsDir() || !strings.HasSuffix(strings.ToLower(name), ".geojson") {
			continue
		}
		role := layers.Role(strings.TrimSuffix(name, filepath.Ext(name)))
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("features: read %s: %w", name, err)
		}
		feats, err := DecodeFeatureCollection(b)
		if err != nil {
			return nil, fmt.Errorf("features: %s: %w", name, err)
		}
		s.data[role] = feats
		logger.Component("features").Debug("snapshot_loaded", "layer", role, "features", len(feats))
	}
	return s, nil
}

// NewMemorySource：直接以要素列表构造，主要用于测试
func NewMemorySource(data map[layers.Role][]Feature) *SnapshotSource {
	return &SnapshotSource{engine: geo.NewEngine(), data: data}
}

// DecodeFeatureCollection：解析 GeoJSON FeatureCollection
func DecodeFeatureCollection(b []byte) ([]Feature, error) {
	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			ID         any             `json:"id"`
			Properties map[string]any  `json:"properties"`
			Geometry   json.RawMessage `json:"geometry"`
		} `json:"features"`
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return nil, err
	}
	if !strings.EqualFold(fc.Type, "FeatureCollection") {
		return nil, fmt.Errorf("expected FeatureCollection, got %q", fc.Type)
	}
	out := make([]Feature, 0, len(fc.Features))
	for i, f := range fc.Features {
		attrs := f.Properties
		if attrs == nil {
			attrs = map[string]any{}
		}
		if _, ok := attrs[layers.IDField]; !ok {
			if f.ID != nil {
				attrs[layers.IDField] = f.ID
			} else {
				attrs[layers.IDField] = float64(i + 1)
			}
		}
		feat := Feature{Attributes: attrs}
		if len(f.Geometry) > 0 && string(f.Geometry) != "null" {
			g, err := geo.DecodeGeoJSON(f.Geometry)
			if err != nil {
				return nil, fmt.Errorf("feature %d: %w", i, err)
			}
			feat.Geometry = g
		}
		out = append(out, feat)
	}
	return out, nil
}

func (s *SnapshotSource) Describe(_ context.Context, layer layers.Layer) (LayerInfo, error) {
	feats, ok := s.data[layer.Role]
	if !ok {
		return LayerInfo{}, fmt.Errorf("%w: %s", ErrLayerNotFound, layer.Role)
	}
	info := LayerInfo{Name: layer.Title}
	for _, f := range feats {
		if f.Geometry != nil {
			info.GeometryType = geo.GeometryType(f.Geometry)
			break
		}
	}
	return info, nil
}

// Query：按文件顺序返回与查询几何相交的要素
func (s *SnapshotSource) Query(ctx context.Context, layer layers.Layer, q Query) ([]Feature, error) {
	if q.SpatialRel != "" && q.SpatialRel != SpatialRelIntersects {
		return nil, fmt.Errorf("features: unsupported spatial relationship %q", q.SpatialRel)
	}
	feats, ok := s.data[layer.Role]
	if !ok {
		metrics.FeatureQueriesTotal.WithLabelValues(string(layer.Role), "error").Inc()
		return nil, fmt.Errorf("%w: %s", ErrLayerNotFound, layer.Role)
	}
	area := q.Geometry
	if area == nil && q.Around != nil && q.DistanceKm > 0 {
		buf, err := s.engine.Buffer(q.Around, q.DistanceKm)
		if err != nil {
			return nil, fmt.Errorf("features: buffer query geometry: %w", err)
		}
		area = buf
	}
	fields := outFields(q.OutFields)
	var out []Feature
	for _, f := range feats {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if area != nil && (f.Geometry == nil || !s.engine.Intersects(f.Geometry, area)) {
			continue
		}
		c := Feature{Attributes: project(f.Attributes, fields)}
		if q.ReturnGeometry {
			c.Geometry = f.Geometry
		}
		out = append(out, c)
	}
	metrics.FeatureQueriesTotal.WithLabelValues(string(layer.Role), "ok").Inc()
	return out, nil
}
