// 包 legend：由地图图层生成图例条目
package legend

import (
	"citymap/internal/layers"
)

// Item：图例中的单个符号行
type Item struct {
	Label  string         `json:"label"`
	Symbol *layers.Symbol `json:"symbol,omitempty"`
}

// Entry：单个图层的图例
type Entry struct {
	LayerID string `json:"layerId"`
	Title   string `json:"title"`
	Items   []Item `json:"items,omitempty"`
}

type Legend struct {
	Entries []Entry `json:"entries"`
}

// Build：按绘制顺序为每个图层生成图例，排除指定角色；未指定时排除城市图层
// 没有本地渲染器的图层（使用服务端样式）只有标题，没有符号行
func Build(m *layers.Map, exclude ...layers.Role) Legend {
	if len(exclude) == 0 {
		exclude = []layers.Role{layers.RoleCities}
	}
	skip := make(map[layers.Role]bool, len(exclude))
	for _, r := range exclude {
		skip[r] = true
	}
	lg := Legend{Entries: []Entry{}}
	for _, l := range m.Layers() {
		if skip[l.Role] {
			continue
		}
		lg.Entries = append(lg.Entries, Entry{LayerID: l.ID, Title: l.Title, Items: items(l.Renderer)})
	}
	return lg
}

func items(r *layers.Renderer) []Item {
	if r == nil {
		return nil
	}
	var out []Item
	base := r.Symbol
	if r.Type == layers.RendererUniqueValue {
		base = r.DefaultSymbol
		for _, u := range r.UniqueValueInfos {
			sym := u.Symbol.Clone()
			label := u.Label
			if label == "" {
				label = u.Value
			}
			out = append(out, Item{Label: label, Symbol: &sym})
		}
	}
	for _, v := range r.VisualVariables {
		if v.Type != "size" || base == nil {
			continue
		}
		for _, s := range v.Stops {
			sym := r.SymbolFor(map[string]any{v.Field: s.Value})
			out = append(out, Item{Label: s.Label, Symbol: &sym})
		}
		return out
	}
	if base != nil {
		sym := base.Clone()
		out = append(out, Item{Symbol: &sym})
	}
	return out
}
