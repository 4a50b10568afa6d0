// 包 api：集中注册 HTTP API 路由，主入口挂载到 API_BASE 前缀
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"citymap/internal/citycache"
	"citymap/internal/features"
	"citymap/internal/geo"
	"citymap/internal/geolocate"
	"citymap/internal/legend"
	"citymap/internal/logger"
	"citymap/internal/metrics"
	"citymap/internal/nearby"
	"citymap/internal/viewer"
)

// Deps：路由依赖
type Deps struct {
	Viewer  *viewer.Viewer
	Cache   *citycache.Cache
	Locator *geolocate.Locator

	// ClickTimeout：单次点击处理（命中测试 + 查询 + 持久化）的上限，<=0 时取 30s
	ClickTimeout time.Duration
}

// BuildRoutes：返回独立 ServeMux，便于在主入口挂载到前缀下
func BuildRoutes(d Deps) *http.ServeMux {
	mux := http.NewServeMux()
	v := d.Viewer

	mux.HandleFunc("GET /layers", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"basemap": v.Map.Basemap, "layers": v.Map.Layers()})
	})

	mux.HandleFunc("GET /legend", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, legend.Build(v.Map))
	})

	mux.HandleFunc("GET /view", func(w http.ResponseWriter, r *http.Request) {
		resp := viewResponse{
			Basemap:    v.Map.Basemap,
			Extent:     toExtent(viewer.InitialExtent),
			Constraint: toExtent(viewer.ConstraintExtent),
			RadiusKm:   v.Finder.RadiusKm(),
			Ready:      v.Ready(),
		}
		if pt, ok := d.Locator.Locate(geolocate.ClientIP(r)); ok && viewer.ConstraintExtent.Contains(pt) {
			resp.Center = &lonLat{Lon: pt.Lon, Lat: pt.Lat}
		}
		writeJSON(w, http.StatusOK, resp)
	})

	mux.HandleFunc("POST /click", func(w http.ResponseWriter, r *http.Request) {
		var req clickRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid click body: "+err.Error())
			return
		}
		if req.X == nil || req.Y == nil || *req.X < -180 || *req.X > 180 || *req.Y < -90 || *req.Y > 90 {
			writeError(w, http.StatusBadRequest, "x and y must be WGS84 longitude and latitude")
			return
		}
		timeout := d.ClickTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		// 与请求生命周期解耦：客户端断开不应打断已开始的渲染与持久化
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), timeout)
		defer cancel()
		res, err := v.HandleClick(ctx, viewer.ClickEvent{
			Point:           geo.Point{Lon: *req.X, Lat: *req.Y},
			ToleranceMeters: req.ToleranceM,
		})
		if err != nil {
			status, msg := classify(err)
			logger.L().Warn("click_failed", "status", status, "err", err)
			writeError(w, status, msg)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	mux.HandleFunc("GET /cities/cached", func(w http.ResponseWriter, r *http.Request) {
		recs := d.Cache.LoadAll(r.Context())
		writeJSON(w, http.StatusOK, map[string]any{"count": len(recs), "cities": recs})
	})

	mux.HandleFunc("GET /city-list", func(w http.ResponseWriter, r *http.Request) {
		html, err := v.List.HTML()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "render list failed")
			return
		}
		w.Header().Set("content-type", "text/html; charset=utf-8")
		w.Header().Set("cache-control", "no-store")
		_, _ = w.Write([]byte(html))
	})

	mux.HandleFunc("GET /city-list.json", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, listResponse{
			ContainerID: viewer.ListContainerID,
			Version:     v.List.Version(),
			Message:     v.List.Message(),
			Rows:        v.List.Rows(),
		})
	})

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if !v.Ready() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "starting"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})

	mux.Handle("GET /metrics", metrics.Handler())
	return mux
}

// classify：流程错误映射为 HTTP 状态
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, viewer.ErrNotReady):
		return http.StatusServiceUnavailable, "view not ready"
	case errors.Is(err, nearby.ErrSuperseded):
		return http.StatusConflict, "superseded by a newer click"
	case errors.Is(err, features.ErrLayerNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, nearby.ErrQuery), errors.Is(err, viewer.ErrServiceUnavailable):
		return http.StatusBadGateway, "feature query failed"
	case errors.Is(err, nearby.ErrRender):
		return http.StatusInternalServerError, "restyle failed"
	case errors.Is(err, nearby.ErrPersistence):
		return http.StatusInternalServerError, "saving nearby cities failed"
	}
	return http.StatusInternalServerError, "internal error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Status: "error", Message: msg})
}
