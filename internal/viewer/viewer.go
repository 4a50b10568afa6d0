// 包 viewer：地图视图后端
// 背景：持有图层组合、城市列表与附近城市查询流程；启动时校验图层并从缓存重放上一次结果，之后处理点击事件。
package viewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"

	"citymap/internal/citycache"
	"citymap/internal/config"
	"citymap/internal/features"
	"citymap/internal/geo"
	"citymap/internal/layers"
	"citymap/internal/logger"
	"citymap/internal/metrics"
	"citymap/internal/nearby"
)

var (
	// ErrServiceUnavailable：外部图层无法解析
	ErrServiceUnavailable = errors.New("viewer: feature service unavailable")
	ErrNotReady           = errors.New("viewer: view not ready")
)

// DefaultHitToleranceM：点击命中容差（米）
const DefaultHitToleranceM = 3000

// 初始范围与导航约束范围（WGS84）
var (
	InitialExtent    = geo.Envelope{MinLon: -173.24789851593732, MinLat: -69.43544422133593, MaxLon: -16.2692137558099, MaxLat: 109.10900234289849}
	ConstraintExtent = geo.Envelope{MinLon: -178.21759838199998, MinLat: 18.921786346000033, MaxLon: -66.96927110499996, MaxLat: 71.40623554800004}
)

// ClickEvent：地图点击（经纬度）
type ClickEvent struct {
	Point           geo.Point
	ToleranceMeters float64
}

// Hit：命中结果
type Hit struct {
	Role      layers.Role      `json:"role"`
	Feature   features.Feature `json:"feature"`
	DistanceM float64          `json:"distance_m"`
}

// ClickResult：点击处理结果；不产生弹窗
type ClickResult struct {
	Hit     bool           `json:"hit"`
	Highway *Hit           `json:"highway,omitempty"`
	Nearby  *nearby.Result `json:"nearby,omitempty"`
}

type Viewer struct {
	Map    *layers.Map
	List   *ListPanel
	Finder *nearby.Finder

	source   features.Source
	engine   *geo.Engine
	cache    *citycache.Cache
	tol      float64
	validate bool
	ready    atomic.Bool
	log      *slog.Logger
}

// New：按配置构造四个图层并组合地图
func New(cfg config.Config, src features.Source, cache *citycache.Cache) *Viewer {
	m := layers.Compose(
		layers.NewStatesLayer(cfg.States),
		layers.NewCountiesLayer(cfg.Counties),
		layers.NewCitiesLayer(cfg.Cities, cfg.CitySizeStops),
		layers.NewHighwaysLayer(cfg.Highways),
	)
	eng := geo.NewEngine()
	list := NewListPanel()
	v := &Viewer{
		Map:      m,
		List:     list,
		source:   src,
		engine:   eng,
		cache:    cache,
		tol:      cfg.HitToleranceM,
		validate: cfg.ValidateLayers,
		log:      logger.Component("viewer"),
	}
	if v.tol <= 0 {
		v.tol = DefaultHitToleranceM
	}
	v.Finder = nearby.New(src, eng, m, list, cache, nearby.Options{
		RadiusKm:  cfg.SearchRadiusKm,
		SizeStops: cfg.CitySizeStops,
	})
	return v
}

// Start：视图就绪流程；校验图层后从缓存重放，重放失败只记录日志
func (v *Viewer) Start(ctx context.Context) error {
	if v.validate {
		for _, l := range v.Map.Layers() {
			info, err := v.source.Describe(ctx, l)
			if err != nil {
				v.log.Error("layer_resolve_failed", "layer", l.Role, "url", l.URL, "err", err)
				return fmt.Errorf("%w: %s: %v", ErrServiceUnavailable, l.Role, err)
			}
			v.log.Debug("layer_resolved", "layer", l.Role, "name", info.Name, "geometry", info.GeometryType)
		}
	}
	records := v.cache.LoadAll(ctx)
	if len(records) == 0 {
		v.log.Info("replay_no_cached_cities")
	} else if res, err := v.Finder.Apply(ctx, records); err != nil {
		v.log.Warn("replay_failed", "run", res.RunID, "err", err)
	}
	v.ready.Store(true)
	v.log.Info("view_ready", "layers", len(v.Map.Layers()), "cached", len(records))
	return nil
}

func (v *Viewer) Ready() bool { return v.ready.Load() }

// HitTest：按容差缓冲点击点，依次查询 include 中的图层（上层优先），同层按距离升序
// 无几何或几何退化的要素不计为命中
func (v *Viewer) HitTest(ctx context.Context, pt geo.Point, tolM float64, include ...layers.Role) ([]Hit, error) {
	if tolM <= 0 {
		tolM = v.tol
	}
	area, err := v.engine.Buffer(pt, tolM/1000)
	if err != nil {
		return nil, err
	}
	want := make(map[layers.Role]bool, len(include))
	for _, r := range include {
		want[r] = true
	}
	ls := v.Map.Layers()
	var hits []Hit
	for i := len(ls) - 1; i >= 0; i-- {
		l := ls[i]
		if !want[l.Role] || !l.Visible {
			continue
		}
		feats, err := v.source.Query(ctx, l, features.Query{
			Geometry:       area,
			SpatialRel:     features.SpatialRelIntersects,
			OutFields:      []string{"*"},
			ReturnGeometry: true,
		})
		if err != nil {
			return nil, fmt.Errorf("hit test %s: %w", l.Role, err)
		}
		layerHits := make([]Hit, 0, len(feats))
		for _, f := range feats {
			d, err := v.engine.Distance(pt, f.Geometry)
			if err != nil {
				v.log.Warn("hit_skipped", "layer", l.Role, "objectid", f.ObjectID(), "err", err)
				continue
			}
			layerHits = append(layerHits, Hit{Role: l.Role, Feature: f, DistanceM: d})
		}
		sort.SliceStable(layerHits, func(a, b int) bool { return layerHits[a].DistanceM < layerHits[b].DistanceM })
		hits = append(hits, layerHits...)
	}
	return hits, nil
}

// HandleClick：只对高速图层做命中测试；命中第一条高速时执行附近城市查询，否则记录后返回
func (v *Viewer) HandleClick(ctx context.Context, ev ClickEvent) (ClickResult, error) {
	if !v.Ready() {
		return ClickResult{}, ErrNotReady
	}
	hits, err := v.HitTest(ctx, ev.Point, ev.ToleranceMeters, layers.RoleHighways)
	if err != nil {
		metrics.ClicksTotal.WithLabelValues("error").Inc()
		v.log.Error("click_hit_test_failed", "lon", ev.Point.Lon, "lat", ev.Point.Lat, "err", err)
		return ClickResult{}, &nearby.StageError{Stage: nearby.StageQuery, Err: err}
	}
	if len(hits) == 0 {
		metrics.ClicksTotal.WithLabelValues("miss").Inc()
		v.log.Info("click_no_highway", "lon", ev.Point.Lon, "lat", ev.Point.Lat)
		return ClickResult{}, nil
	}
	metrics.ClicksTotal.WithLabelValues("hit").Inc()
	first := hits[0]
	v.log.Info("click_highway", "objectid", first.Feature.ObjectID(), "distance_m", first.DistanceM)
	res, err := v.Finder.Find(ctx, first.Feature)
	out := ClickResult{Hit: true, Highway: &first, Nearby: &res}
	return out, err
}
