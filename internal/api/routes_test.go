package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"citymap/internal/citycache"
	"citymap/internal/config"
	"citymap/internal/features"
	"citymap/internal/geo"
	"citymap/internal/layers"
	"citymap/internal/nearby"
	"citymap/internal/viewer"
)

func newTestServer(t *testing.T, start bool) (*httptest.Server, *citycache.Cache) {
	t.Helper()
	cfg := config.Config{
		States:         config.Layer{URL: "mem://states", Title: "美国州", Visible: true},
		Counties:       config.Layer{URL: "mem://counties", Title: "美国县", Visible: true},
		Cities:         config.Layer{URL: "mem://cities", Title: "美国城市", Visible: true},
		Highways:       config.Layer{URL: "mem://highways", Title: "美国高速公路", Visible: true},
		SearchRadiusKm: 50,
		CitySizeStops:  config.DefaultSizeStops(),
		HitToleranceM:  3000,
	}
	src := features.NewMemorySource(map[layers.Role][]features.Feature{
		layers.RoleHighways: {{
			Attributes: map[string]any{"objectid": float64(70), "route": "I-70"},
			Geometry:   geo.Polyline{Paths: [][]geo.Point{{{Lon: -100, Lat: 39}, {Lon: -96, Lat: 39}}}},
		}},
		layers.RoleCities: {
			{Attributes: map[string]any{"objectid": float64(1), "name": "Salina", "pop2000": float64(45000)}, Geometry: geo.Point{Lon: -99, Lat: 39.1}},
			{Attributes: map[string]any{"objectid": float64(2), "name": "Abilene", "pop2000": float64(6500)}, Geometry: geo.Point{Lon: -98, Lat: 39.01}},
		},
		layers.RoleStates:   {},
		layers.RoleCounties: {},
	})
	cache := citycache.New(citycache.NewMemoryStore())
	if err := cache.Initialize(context.Background()); err != nil {
		t.Fatalf("init cache: %v", err)
	}
	v := viewer.New(cfg, src, cache)
	if start {
		if err := v.Start(context.Background()); err != nil {
			t.Fatalf("start: %v", err)
		}
	}
	srv := httptest.NewServer(BuildRoutes(Deps{Viewer: v, Cache: cache}))
	t.Cleanup(srv.Close)
	return srv, cache
}

func decode(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func postClick(t *testing.T, srv *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/click", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	return resp
}

func TestClickFlowOverHTTP(t *testing.T) {
	srv, cache := newTestServer(t, true)

	resp := postClick(t, srv, `{"x":-98.5,"y":39.001}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var res viewer.ClickResult
	decode(t, resp, &res)
	if !res.Hit || res.Nearby == nil || len(res.Nearby.Records) != 2 {
		t.Fatalf("unexpected click result: %+v", res)
	}
	if res.Nearby.Records[0].ObjectID != 2 {
		t.Fatalf("nearest city should be Abilene, got %d", res.Nearby.Records[0].ObjectID)
	}

	resp, err := http.Get(srv.URL + "/city-list.json")
	if err != nil {
		t.Fatalf("get list: %v", err)
	}
	var list listResponse
	decode(t, resp, &list)
	if list.ContainerID != viewer.ListContainerID || list.Version != 1 || len(list.Rows) != 2 || list.Rows[0].Name != "Abilene" {
		t.Fatalf("unexpected list: %+v", list)
	}

	if got := cache.LoadAll(context.Background()); len(got) != 2 {
		t.Fatalf("cache holds %d records", len(got))
	}

	resp, err = http.Get(srv.URL + "/cities/cached")
	if err != nil {
		t.Fatalf("get cached: %v", err)
	}
	var cached struct {
		Count int `json:"count"`
	}
	decode(t, resp, &cached)
	if cached.Count != 2 {
		t.Fatalf("cached count = %d", cached.Count)
	}
}

func TestClickMissReturnsNoHit(t *testing.T) {
	srv, _ := newTestServer(t, true)
	resp := postClick(t, srv, `{"x":-98,"y":45}`)
	var res viewer.ClickResult
	decode(t, resp, &res)
	if resp.StatusCode != http.StatusOK || res.Hit {
		t.Fatalf("status=%d hit=%v", resp.StatusCode, res.Hit)
	}
}

func TestClickRejectsBadBody(t *testing.T) {
	srv, _ := newTestServer(t, true)
	for _, body := range []string{`not json`, `{"x":-98}`, `{"x":500,"y":39}`} {
		resp := postClick(t, srv, body)
		var e errorResponse
		decode(t, resp, &e)
		if resp.StatusCode != http.StatusBadRequest || e.Status != "error" {
			t.Fatalf("%s: status=%d body=%+v", body, resp.StatusCode, e)
		}
	}
}

func TestClickBeforeStartIsUnavailable(t *testing.T) {
	srv, _ := newTestServer(t, false)
	resp := postClick(t, srv, `{"x":-98.5,"y":39}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
}

func TestLegendExcludesCities(t *testing.T) {
	srv, _ := newTestServer(t, true)
	resp, err := http.Get(srv.URL + "/legend")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var lg struct {
		Entries []struct {
			LayerID string `json:"layerId"`
			Title   string `json:"title"`
		} `json:"entries"`
	}
	decode(t, resp, &lg)
	if len(lg.Entries) != 3 {
		t.Fatalf("entries = %+v", lg.Entries)
	}
	for _, e := range lg.Entries {
		if e.Title == "美国城市" {
			t.Fatalf("cities layer must not appear in legend")
		}
	}
}

func TestViewWithoutLocatorHasNoCenter(t *testing.T) {
	srv, _ := newTestServer(t, true)
	resp, err := http.Get(srv.URL + "/view")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var view viewResponse
	decode(t, resp, &view)
	if view.Center != nil || view.Basemap != "gray-vector" || view.Constraint.WKID != 4326 || view.RadiusKm != 50 {
		t.Fatalf("unexpected view: %+v", view)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{viewer.ErrNotReady, http.StatusServiceUnavailable},
		{nearby.ErrSuperseded, http.StatusConflict},
		{&nearby.StageError{Stage: nearby.StageQuery, Err: errors.New("boom")}, http.StatusBadGateway},
		{&nearby.StageError{Stage: nearby.StagePersist, Err: errors.New("boom")}, http.StatusInternalServerError},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got, _ := classify(c.err); got != c.want {
			t.Fatalf("classify(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}
