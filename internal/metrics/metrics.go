package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	NearbyLookupsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "citymap_nearby_lookups_total",
		Help: "Total nearby-city lookups started",
	})
	NearbyFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "citymap_nearby_failures_total",
		Help: "Nearby-city lookups that stopped on an error, by stage",
	}, []string{"stage"})
	NearbySupersededTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "citymap_nearby_superseded_total",
		Help: "Lookups or reloads whose effects were skipped because a newer one started",
	})
	NearbyDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "citymap_nearby_duration_ms",
		Help:    "Nearby-city lookup duration in milliseconds",
		Buckets: []float64{5, 10, 20, 50, 100, 200, 500, 1000, 2000, 5000},
	})
	NearbyResultCount = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "citymap_nearby_result_count",
		Help:    "Number of cities found per lookup",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100, 500},
	})
	FeatureQueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "citymap_feature_queries_total",
		Help: "Feature service queries by layer role and status",
	}, []string{"layer", "status"})
	FeatureQueryDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "citymap_feature_query_duration_ms",
		Help:    "Feature service query duration in milliseconds",
		Buckets: []float64{5, 10, 20, 50, 100, 200, 500, 1000, 2000, 5000},
	}, []string{"layer"})
	LayerInfoCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "citymap_layer_info_cache_hits_total",
		Help: "Layer metadata cache hits",
	})
	CacheLoadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "citymap_cache_loads_total",
		Help: "City cache loads by status (ok, empty, error)",
	}, []string{"status"})
	CacheSavesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "citymap_cache_saves_total",
		Help: "City cache saves by status (ok, error)",
	}, []string{"status"})
	CachedCities = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "citymap_cached_cities",
		Help: "Number of city records in the last saved or loaded set",
	})
	ClicksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "citymap_clicks_total",
		Help: "Click events by outcome (hit, miss, error)",
	}, []string{"outcome"})
	RendererUpdatesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "citymap_renderer_updates_total",
		Help: "City layer renderer replacements",
	})
)

func init() {
	prometheus.MustRegister(NearbyLookupsTotal)
	prometheus.MustRegister(NearbyFailuresTotal)
	prometheus.MustRegister(NearbySupersededTotal)
	prometheus.MustRegister(NearbyDurationMs)
	prometheus.MustRegister(NearbyResultCount)
	prometheus.MustRegister(FeatureQueriesTotal)
	prometheus.MustRegister(FeatureQueryDurationMs)
	prometheus.MustRegister(LayerInfoCacheHitsTotal)
	prometheus.MustRegister(CacheLoadsTotal)
	prometheus.MustRegister(CacheSavesTotal)
	prometheus.MustRegister(CachedCities)
	prometheus.MustRegister(ClicksTotal)
	prometheus.MustRegister(RendererUpdatesTotal)
}

// 文档注释：返回 Prometheus 指标处理器，由主入口挂载到 API 前缀下的 /metrics
func Handler() http.Handler { return promhttp.Handler() }
