// 包 layers：专题图层描述与地图组合
// 背景：州、县、城市、高速四个图层在启动时按配置构造，交由 Map 统一持有；构造后只有渲染器可以整体替换。
package layers

import (
	"citymap/internal/config"
)

// Role：图层角色标签，图例与点击命中按角色而非标题识别图层
type Role string

const (
	RoleStates   Role = "states"
	RoleCounties Role = "counties"
	RoleCities   Role = "cities"
	RoleHighways Role = "highways"
)

// PopulationField：城市人口字段
const PopulationField = "pop2000"

// IDField：要素唯一标识字段
const IDField = "objectid"

// Layer：单个专题图层描述
type Layer struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Visible   bool      `json:"visible"`
	OutFields []string  `json:"outFields"`
	Renderer  *Renderer `json:"renderer,omitempty"`
}

func newLayer(role Role, c config.Layer) *Layer {
	return &Layer{
		ID:        string(role),
		Role:      role,
		URL:       c.URL,
		Title:     c.Title,
		Visible:   c.Visible,
		OutFields: []string{"*"},
	}
}

func NewStatesLayer(c config.Layer) *Layer   { return newLayer(RoleStates, c) }
func NewCountiesLayer(c config.Layer) *Layer { return newLayer(RoleCounties, c) }
func NewHighwaysLayer(c config.Layer) *Layer { return newLayer(RoleHighways, c) }

// NewCitiesLayer：城市图层带默认符号与人口尺寸视觉变量；stops 为空时取默认断点
func NewCitiesLayer(c config.Layer, stops []config.SizeStop) *Layer {
	l := newLayer(RoleCities, c)
	l.Renderer = DefaultCityRenderer(stops)
	return l
}

// PopulationSize：人口尺寸视觉变量
func PopulationSize(stops []config.SizeStop) VisualVariable {
	if len(stops) == 0 {
		stops = config.DefaultSizeStops()
	}
	vv := VisualVariable{Type: "size", Field: PopulationField}
	for _, s := range stops {
		vv.Stops = append(vv.Stops, Stop{Value: s.Value, Size: s.Size, Label: s.Label})
	}
	return vv
}

func DefaultCityRenderer(stops []config.SizeStop) *Renderer {
	return NewSimpleRenderer(DefaultCitySymbol(), PopulationSize(stops))
}

// HighlightRenderer：按 objectid 高亮的 unique-value 渲染器，其余城市保持默认符号
// 约束：单个取值登记失败只记入 skipped，不影响其余取值
func HighlightRenderer(ids []string, stops []config.SizeStop) (r *Renderer, skipped []error) {
	r = NewUniqueValueRenderer(IDField, DefaultCitySymbol(), PopulationSize(stops))
	for _, id := range ids {
		if err := r.AddUniqueValueInfo(id, HighlightSymbol()); err != nil {
			skipped = append(skipped, err)
		}
	}
	return r, skipped
}
