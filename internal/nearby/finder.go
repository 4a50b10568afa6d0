// 包 nearby：点击高速后的附近城市查询与渲染同步
// 背景：缓冲区查询城市、计算距离并排序，随后依次更新城市图层渲染器、城市列表与持久化缓存；启动重放复用同一套渲染与列表更新。
// 约束：每次调用领取一个代号，只有最新代号可以应用副作用；单次调用的副作用在同一把锁内顺序完成，不与其他调用交错。
// 任一阶段失败即停止，已完成的副作用保留，不做重试。
package nearby

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"citymap/internal/citycache"
	"citymap/internal/config"
	"citymap/internal/features"
	"citymap/internal/geo"
	"citymap/internal/layers"
	"citymap/internal/logger"
	"citymap/internal/metrics"
)

// DefaultRadiusKm：默认搜索半径
const DefaultRadiusKm = 50

// GeometryService：缓冲区（千米）与距离（米）
type GeometryService interface {
	Buffer(g geo.Geometry, km float64) (geo.Polygon, error)
	Distance(a, b geo.Geometry) (float64, error)
}

// Styler：读取城市图层描述并整体替换其渲染器（*layers.Map）
type Styler interface {
	ByRole(role layers.Role) (layers.Layer, bool)
	SetRenderer(role layers.Role, r *layers.Renderer) error
}

// List：城市列表容器；传入空集合时显示无结果提示
type List interface {
	Update(records []citycache.CityRecord)
}

// Persister：结果持久化（*citycache.Cache）
type Persister interface {
	SaveAll(ctx context.Context, records []citycache.CityRecord, opts ...citycache.SaveOption) error
}

// Options：可选参数
type Options struct {
	RadiusKm  float64
	SizeStops []config.SizeStop
	Now       func() time.Time
}

// Result：一次查询或重放的结果
type Result struct {
	RunID       string                 `json:"run_id"`
	Records     []citycache.CityRecord `json:"records"`
	Highlighted []string               `json:"highlighted"`
	Empty       bool                   `json:"empty"`
}

type Finder struct {
	source   features.Source
	geometry GeometryService
	styler   Styler
	list     List
	cache    Persister

	radiusKm float64
	stops    []config.SizeStop
	now      func() time.Time

	gen atomic.Uint64
	mu  sync.Mutex
	log *slog.Logger
}

func New(src features.Source, gs GeometryService, styler Styler, list List, cache Persister, opts Options) *Finder {
	f := &Finder{
		source:   src,
		geometry: gs,
		styler:   styler,
		list:     list,
		cache:    cache,
		radiusKm: opts.RadiusKm,
		stops:    opts.SizeStops,
		now:      opts.Now,
		log:      logger.Component("nearby"),
	}
	if f.radiusKm <= 0 {
		f.radiusKm = DefaultRadiusKm
	}
	if f.now == nil {
		f.now = time.Now
	}
	return f
}

// RadiusKm：当前搜索半径
func (f *Finder) RadiusKm() float64 { return f.radiusKm }

// Find：查询高速要素附近的城市并应用副作用
func (f *Finder) Find(ctx context.Context, highway features.Feature) (Result, error) {
	gen := f.gen.Add(1)
	run := uuid.NewString()
	start := time.Now()
	metrics.NearbyLookupsTotal.Inc()
	defer func() {
		metrics.NearbyDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	}()
	log := f.log.With("run", run, "highway", highway.ObjectID())
	log.Info("nearby_start", "radius_km", f.radiusKm)

	records, err := f.lookup(ctx, highway)
	if err != nil {
		return Result{RunID: run}, f.fail(log, StageQuery, err)
	}
	metrics.NearbyResultCount.Observe(float64(len(records)))
	res, err := f.apply(ctx, log, gen, run, records, true)
	if err == nil {
		log.Info("nearby_done", "cities", len(records), "elapsed_ms", time.Since(start).Milliseconds())
	}
	return res, err
}

// Apply：启动重放；不发起查询、不写缓存；空集合时不做任何更新
func (f *Finder) Apply(ctx context.Context, records []citycache.CityRecord) (Result, error) {
	gen := f.gen.Add(1)
	run := uuid.NewString()
	log := f.log.With("run", run)
	if len(records) == 0 {
		log.Info("replay_skip_empty")
		return Result{RunID: run, Empty: true}, nil
	}
	res, err := f.apply(ctx, log, gen, run, records, false)
	if err == nil {
		log.Info("replay_done", "cities", len(records))
	}
	return res, err
}

func (f *Finder) lookup(ctx context.Context, highway features.Feature) ([]citycache.CityRecord, error) {
	if highway.Geometry == nil || highway.Geometry.IsEmpty() {
		return nil, fmt.Errorf("highway %s has no geometry", highway.ObjectID())
	}
	cities, ok := f.styler.ByRole(layers.RoleCities)
	if !ok {
		return nil, fmt.Errorf("%w %s", layers.ErrUnknownRole, layers.RoleCities)
	}
	buf, err := f.geometry.Buffer(highway.Geometry, f.radiusKm)
	if err != nil {
		return nil, fmt.Errorf("buffer: %w", err)
	}
	feats, err := f.source.Query(ctx, cities, features.Query{
		Geometry:       buf,
		Around:         highway.Geometry,
		DistanceKm:     f.radiusKm,
		SpatialRel:     features.SpatialRelIntersects,
		OutFields:      []string{"*"},
		ReturnGeometry: true,
	})
	if err != nil {
		return nil, err
	}
	found := make([]features.Feature, 0, len(feats))
	for _, c := range feats {
		if c.Geometry == nil {
			return nil, fmt.Errorf("city %s returned without geometry", c.ObjectID())
		}
		d, err := f.geometry.Distance(c.Geometry, highway.Geometry)
		if err != nil {
			return nil, fmt.Errorf("distance city %s: %w", c.ObjectID(), err)
		}
		attrs := make(map[string]any, len(c.Attributes)+1)
		for k, v := range c.Attributes {
			attrs[k] = v
		}
		attrs[citycache.DistanceField] = d
		found = append(found, features.Feature{Attributes: attrs, Geometry: c.Geometry})
	}
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Attributes[citycache.DistanceField].(float64) < found[j].Attributes[citycache.DistanceField].(float64)
	})
	now := f.now()
	out := make([]citycache.CityRecord, 0, len(found))
	for _, c := range found {
		r, err := citycache.FromFeature(c, now)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// apply：在锁内依次执行 渲染器替换、列表重建、持久化
func (f *Finder) apply(ctx context.Context, log *slog.Logger, gen uint64, run string, records []citycache.CityRecord, persist bool) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := Result{RunID: run, Records: records, Highlighted: []string{}}
	if f.gen.Load() != gen {
		metrics.NearbySupersededTotal.Inc()
		log.Info("nearby_superseded", "gen", gen)
		return res, ErrSuperseded
	}

	if len(records) == 0 {
		res.Empty = true
		f.list.Update(nil)
		log.Info("nearby_no_results")
		return res, nil
	}

	ids := make([]string, 0, len(records))
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		if k := r.Key(); !seen[k] {
			seen[k] = true
			ids = append(ids, k)
		}
	}
	rend, skipped := layers.HighlightRenderer(ids, f.stops)
	for _, e := range skipped {
		log.Warn("renderer_value_skipped", "err", e)
	}
	if err := f.styler.SetRenderer(layers.RoleCities, rend); err != nil {
		return res, f.fail(log, StageRender, err)
	}
	metrics.RendererUpdatesTotal.Inc()
	res.Highlighted = rend.UniqueValues()

	f.list.Update(records)

	if persist {
		if err := f.cache.SaveAll(ctx, records, citycache.WithClearExisting(true)); err != nil {
			return res, f.fail(log, StagePersist, err)
		}
	}
	return res, nil
}

func (f *Finder) fail(log *slog.Logger, stage Stage, err error) error {
	metrics.NearbyFailuresTotal.WithLabelValues(string(stage)).Inc()
	log.Error("nearby_failed", "stage", stage, "err", err)
	return &StageError{Stage: stage, Err: err}
}
