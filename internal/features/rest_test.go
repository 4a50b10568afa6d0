package features

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"citymap/internal/config"
	"citymap/internal/geo"
	"citymap/internal/layers"
)

func newTestSource(t *testing.T, srv *httptest.Server) *RESTSource {
	t.Helper()
	s, err := NewRESTSource(config.Config{RESTMaxAttempts: 3})
	if err != nil {
		t.Fatalf("new source: %v", err)
	}
	t.Cleanup(s.Close)
	s.HTTPClient = srv.Client()
	s.BackoffBase = time.Millisecond
	return s
}

func TestRESTQuerySendsIntersectsAndParses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/0/query") {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.PostForm.Get("spatialRel"); got != "esriSpatialRelIntersects" {
			t.Errorf("unexpected spatialRel %q", got)
		}
		if got := r.PostForm.Get("geometryType"); got != geo.ESRIPolygon {
			t.Errorf("unexpected geometryType %q", got)
		}
		if r.PostForm.Get("outFields") != "*" || r.PostForm.Get("returnGeometry") != "true" {
			t.Errorf("unexpected fields %v", r.PostForm)
		}
		_, _ = w.Write([]byte(`{"features":[
			{"attributes":{"objectid":11,"name":"Salina","pop2000":45679},"geometry":{"x":-97.61,"y":38.84}},
			{"attributes":{"objectid":12,"name":"Abilene","pop2000":6543},"geometry":{"x":-97.21,"y":38.91}}
		]}`))
	}))
	defer srv.Close()

	s := newTestSource(t, srv)
	buf, _ := geo.NewEngine().Buffer(geo.Point{Lon: -97.4, Lat: 38.9}, 50)
	feats, err := s.Query(context.Background(), layers.Layer{Role: layers.RoleCities, URL: srv.URL + "/USA/MapServer/0"}, Query{
		Geometry: buf, SpatialRel: SpatialRelIntersects, OutFields: []string{"*"}, ReturnGeometry: true,
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(feats) != 2 || feats[0].ObjectID() != "11" || feats[1].Attributes["name"] != "Abilene" {
		t.Fatalf("unexpected features %+v", feats)
	}
	if p, ok := feats[0].Geometry.(geo.Point); !ok || p.Lon != -97.61 {
		t.Fatalf("unexpected geometry %#v", feats[0].Geometry)
	}
}

func TestRESTQuerySendsHighwayWithServerSideDistance(t *testing.T) {
	highway := geo.Polyline{Paths: [][]geo.Point{{
		{Lon: -100, Lat: 39}, {Lon: -99, Lat: 39.4}, {Lon: -98, Lat: 39}, {Lon: -97, Lat: 39.4},
	}}}
	var form atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		form.Store(r.PostForm)
		_, _ = w.Write([]byte(`{"features":[]}`))
	}))
	defer srv.Close()

	s := newTestSource(t, srv)
	buf, err := geo.NewEngine().Buffer(highway, 50)
	if err != nil {
		t.Fatalf("buffer: %v", err)
	}
	_, err = s.Query(context.Background(), layers.Layer{Role: layers.RoleCities, URL: srv.URL + "/0"}, Query{
		Geometry: buf, Around: highway, DistanceKm: 50, SpatialRel: SpatialRelIntersects, ReturnGeometry: true,
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	got, _ := form.Load().(url.Values)
	if got.Get("geometryType") != geo.ESRIPolyline || got.Get("distance") != "50" || got.Get("units") != "esriSRUnit_Kilometer" {
		t.Fatalf("unexpected params %v", got)
	}
	sent, err := geo.DecodeESRI([]byte(got.Get("geometry")))
	if err != nil {
		t.Fatalf("decode sent geometry: %v", err)
	}
	line, ok := sent.(geo.Polyline)
	if !ok || len(line.Paths) != 1 || len(line.Paths[0]) != 4 {
		t.Fatalf("expected the highway itself, got %#v", sent)
	}
}

func TestRESTQueryWithoutDistanceSendsPolygon(t *testing.T) {
	var form atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		form.Store(r.PostForm)
		_, _ = w.Write([]byte(`{"features":[]}`))
	}))
	defer srv.Close()

	s := newTestSource(t, srv)
	buf, _ := geo.NewEngine().Buffer(geo.Point{Lon: -98, Lat: 39}, 3)
	if _, err := s.Query(context.Background(), layers.Layer{Role: layers.RoleHighways, URL: srv.URL + "/1"}, Query{Geometry: buf}); err != nil {
		t.Fatalf("query: %v", err)
	}
	got, _ := form.Load().(url.Values)
	if got.Get("geometryType") != geo.ESRIPolygon || got.Has("distance") || got.Has("units") {
		t.Fatalf("unexpected params %v", got)
	}
}

func TestRESTQueryRetriesUnavailable(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"features":[]}`))
	}))
	defer srv.Close()

	s := newTestSource(t, srv)
	feats, err := s.Query(context.Background(), layers.Layer{Role: layers.RoleCities, URL: srv.URL + "/0"}, Query{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(feats) != 0 || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 calls and no features, got %d calls", calls)
	}
}

func TestRESTQueryServiceErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"Unable to complete operation.","details":["Invalid geometry"]}}`))
	}))
	defer srv.Close()

	s := newTestSource(t, srv)
	_, err := s.Query(context.Background(), layers.Layer{Role: layers.RoleCities, URL: srv.URL + "/0"}, Query{})
	if !errors.Is(err, ErrService) {
		t.Fatalf("expected ErrService, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestRESTDescribeCached(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Query().Get("f") != "json" {
			t.Errorf("expected f=json")
		}
		_, _ = w.Write([]byte(`{"id":1,"name":"Highways","geometryType":"esriGeometryPolyline"}`))
	}))
	defer srv.Close()

	s := newTestSource(t, srv)
	l := layers.Layer{Role: layers.RoleHighways, URL: srv.URL + "/USA/MapServer/1"}
	for i := 0; i < 2; i++ {
		info, err := s.Describe(context.Background(), l)
		if err != nil {
			t.Fatalf("describe: %v", err)
		}
		if info.Name != "Highways" || info.GeometryType != geo.ESRIPolyline {
			t.Fatalf("unexpected info %+v", info)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected metadata to be cached, got %d calls", got)
	}
}

func TestMirrorURLs(t *testing.T) {
	got := mirrorURLs("https://a.example.com/arcgis/rest/services/USA/MapServer/0", []string{"http://b.example.net", "::bad"})
	if len(got) != 2 || got[1] != "http://b.example.net/arcgis/rest/services/USA/MapServer/0" {
		t.Fatalf("unexpected mirrors %v", got)
	}
}
