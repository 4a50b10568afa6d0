package layers

import (
	"errors"
	"testing"

	"citymap/internal/config"
)

func testMap() *Map {
	return Compose(
		NewStatesLayer(config.Layer{URL: "http://x/2", Title: "美国州", Visible: true}),
		NewCountiesLayer(config.Layer{URL: "http://x/3", Title: "美国县", Visible: true}),
		NewCitiesLayer(config.Layer{URL: "http://x/0", Title: "美国城市", Visible: true}, nil),
		NewHighwaysLayer(config.Layer{URL: "http://x/1", Title: "美国高速公路", Visible: true}),
	)
}

func TestComposeOrderAndRoles(t *testing.T) {
	m := testMap()
	got := m.Layers()
	want := []Role{RoleStates, RoleCounties, RoleCities, RoleHighways}
	if len(got) != len(want) {
		t.Fatalf("expected %d layers, got %d", len(want), len(got))
	}
	for i, r := range want {
		if got[i].Role != r {
			t.Fatalf("layer %d: expected %s, got %s", i, r, got[i].Role)
		}
		if len(got[i].OutFields) != 1 || got[i].OutFields[0] != "*" {
			t.Fatalf("layer %d: expected all fields", i)
		}
	}
	if got[2].Renderer == nil || got[2].Renderer.Type != RendererSimple {
		t.Fatalf("city layer should carry a simple renderer")
	}
	if got[0].Renderer != nil {
		t.Fatalf("states layer should use the service renderer")
	}
}

func TestSizeForStepStops(t *testing.T) {
	vv := PopulationSize(nil)
	cases := []struct {
		pop  float64
		size float64
	}{
		{0, 4}, {9999, 4}, {10000, 4}, {99999, 4}, {100000, 8}, {999999, 8}, {1000000, 16}, {8000000, 16},
	}
	for _, c := range cases {
		if got := vv.SizeFor(c.pop); got != c.size {
			t.Fatalf("pop %v: expected size %v, got %v", c.pop, c.size, got)
		}
	}
}

func TestAddUniqueValueInfoRejects(t *testing.T) {
	r := NewUniqueValueRenderer(IDField, DefaultCitySymbol())
	if err := r.AddUniqueValueInfo("", HighlightSymbol()); !errors.Is(err, ErrEmptyValue) {
		t.Fatalf("expected ErrEmptyValue, got %v", err)
	}
	if err := r.AddUniqueValueInfo("7", HighlightSymbol()); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := r.AddUniqueValueInfo("7", HighlightSymbol()); !errors.Is(err, ErrDuplicateValue) {
		t.Fatalf("expected ErrDuplicateValue, got %v", err)
	}
}

func TestHighlightRendererSymbols(t *testing.T) {
	r, skipped := HighlightRenderer([]string{"1", "2", "2", ""}, nil)
	if len(skipped) != 2 {
		t.Fatalf("expected 2 skipped values, got %d", len(skipped))
	}
	if got := r.UniqueValues(); len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Fatalf("unexpected unique values %v", got)
	}
	hit := r.SymbolFor(map[string]any{"objectid": float64(2), "pop2000": float64(150000)})
	if hit.Color[1] != 255 || hit.Color[0] != 0 || hit.Size != 8 {
		t.Fatalf("expected green size-8 symbol, got %+v", hit)
	}
	miss := r.SymbolFor(map[string]any{"objectid": float64(3), "pop2000": float64(5)})
	if miss.Color[0] != 255 || miss.Size != 4 {
		t.Fatalf("expected default size-4 symbol, got %+v", miss)
	}
}

func TestSetRendererReplacesWholesale(t *testing.T) {
	m := testMap()
	r, _ := HighlightRenderer([]string{"10"}, nil)
	if err := m.SetRenderer(RoleCities, r); err != nil {
		t.Fatalf("set renderer: %v", err)
	}
	// 调用方后续修改不影响已设置的渲染器
	_ = r.AddUniqueValueInfo("11", HighlightSymbol())
	cur := m.Renderer(RoleCities)
	if cur.Type != RendererUniqueValue || len(cur.UniqueValueInfos) != 1 {
		t.Fatalf("unexpected renderer %+v", cur)
	}
	if err := m.SetRenderer(Role("rivers"), r); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}

func TestCloneDoesNotShareSymbols(t *testing.T) {
	r, _ := HighlightRenderer([]string{"1"}, nil)
	c := r.Clone()
	c.DefaultSymbol.Color[0] = 1
	c.DefaultSymbol.Outline.Width = 9
	c.UniqueValueInfos[0].Symbol.Outline.Color[1] = 1
	if r.DefaultSymbol.Color[0] != 255 || r.DefaultSymbol.Outline.Width != 1 {
		t.Fatalf("default symbol shared with clone: %+v", r.DefaultSymbol)
	}
	if r.UniqueValueInfos[0].Symbol.Outline.Color[1] != 100 {
		t.Fatalf("unique value symbol shared with clone: %+v", r.UniqueValueInfos[0].Symbol.Outline)
	}
}
