package layers

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
)

var (
	ErrEmptyValue     = errors.New("layers: unique value must not be empty")
	ErrDuplicateValue = errors.New("layers: duplicate unique value")
)

const (
	RendererSimple      = "simple"
	RendererUniqueValue = "unique-value"
)

// Outline：符号描边
type Outline struct {
	Color []float64 `json:"color"`
	Width float64   `json:"width"`
}

// Symbol：简单点符号（style 固定 circle）
type Symbol struct {
	Type    string    `json:"type"`
	Style   string    `json:"style"`
	Color   []float64 `json:"color"`
	Size    float64   `json:"size,omitempty"`
	Outline *Outline  `json:"outline,omitempty"`
}

// DefaultCitySymbol：城市默认符号（黄色填充、黑色描边）
func DefaultCitySymbol() Symbol {
	return Symbol{
		Type:    "simple-marker",
		Style:   "circle",
		Color:   []float64{255, 255, 115, 255},
		Outline: &Outline{Color: []float64{0, 0, 0, 255}, Width: 1},
	}
}

// Clone：符号副本，颜色与描边不与原符号共享
func (s Symbol) Clone() Symbol {
	s.Color = append([]float64(nil), s.Color...)
	if s.Outline != nil {
		o := *s.Outline
		o.Color = append([]float64(nil), o.Color...)
		s.Outline = &o
	}
	return s
}

// HighlightSymbol：命中城市符号（绿色）
func HighlightSymbol() Symbol {
	return Symbol{
		Type:    "simple-marker",
		Style:   "circle",
		Color:   []float64{0, 255, 0, 0.9},
		Outline: &Outline{Color: []float64{0, 100, 0, 1}, Width: 1},
	}
}

// Stop：尺寸断点
type Stop struct {
	Value float64 `json:"value"`
	Size  float64 `json:"size"`
	Label string  `json:"label,omitempty"`
}

// VisualVariable：按字段取值缩放符号尺寸
type VisualVariable struct {
	Type  string `json:"type"`
	Field string `json:"field"`
	Stops []Stop `json:"stops"`
}

// SizeFor：阶梯取值；低于首个断点取首个尺寸，高于末个断点取末个尺寸
func (v VisualVariable) SizeFor(value float64) float64 {
	if len(v.Stops) == 0 {
		return 0
	}
	size := v.Stops[0].Size
	for _, s := range v.Stops {
		if value >= s.Value {
			size = s.Size
		}
	}
	return size
}

// UniqueValueInfo：单个取值对应的符号
type UniqueValueInfo struct {
	Value  string `json:"value"`
	Label  string `json:"label,omitempty"`
	Symbol Symbol `json:"symbol"`
}

// Renderer：simple 或 unique-value 渲染器；替换时整体替换，不做局部修改
type Renderer struct {
	Type             string            `json:"type"`
	Symbol           *Symbol           `json:"symbol,omitempty"`
	Field            string            `json:"field,omitempty"`
	DefaultSymbol    *Symbol           `json:"defaultSymbol,omitempty"`
	UniqueValueInfos []UniqueValueInfo `json:"uniqueValueInfos,omitempty"`
	VisualVariables  []VisualVariable  `json:"visualVariables,omitempty"`
}

func NewSimpleRenderer(sym Symbol, vv ...VisualVariable) *Renderer {
	return &Renderer{Type: RendererSimple, Symbol: &sym, VisualVariables: vv}
}

func NewUniqueValueRenderer(field string, def Symbol, vv ...VisualVariable) *Renderer {
	return &Renderer{Type: RendererUniqueValue, Field: field, DefaultSymbol: &def, VisualVariables: vv}
}

// AddUniqueValueInfo：追加取值符号；空值或重复值返回错误
func (r *Renderer) AddUniqueValueInfo(value string, sym Symbol) error {
	if value == "" {
		return ErrEmptyValue
	}
	for _, u := range r.UniqueValueInfos {
		if u.Value == value {
			return fmt.Errorf("%w: %s", ErrDuplicateValue, value)
		}
	}
	r.UniqueValueInfos = append(r.UniqueValueInfos, UniqueValueInfo{Value: value, Symbol: sym})
	return nil
}

// UniqueValues：已登记的取值（升序）
func (r *Renderer) UniqueValues() []string {
	out := make([]string, 0, len(r.UniqueValueInfos))
	for _, u := range r.UniqueValueInfos {
		out = append(out, u.Value)
	}
	sort.Strings(out)
	return out
}

// SymbolFor：按要素属性解析最终符号（含尺寸视觉变量）
func (r *Renderer) SymbolFor(attrs map[string]any) Symbol {
	var sym Symbol
	switch r.Type {
	case RendererUniqueValue:
		if r.DefaultSymbol != nil {
			sym = r.DefaultSymbol.Clone()
		}
		key := FormatValue(attrs[r.Field])
		for _, u := range r.UniqueValueInfos {
			if u.Value == key {
				sym = u.Symbol.Clone()
				break
			}
		}
	default:
		if r.Symbol != nil {
			sym = r.Symbol.Clone()
		}
	}
	for _, v := range r.VisualVariables {
		if v.Type != "size" {
			continue
		}
		if f, ok := toFloat(attrs[v.Field]); ok {
			sym.Size = v.SizeFor(f)
		}
	}
	return sym
}

// Clone：深拷贝，供对外输出
func (r *Renderer) Clone() *Renderer {
	if r == nil {
		return nil
	}
	c := *r
	if r.Symbol != nil {
		s := r.Symbol.Clone()
		c.Symbol = &s
	}
	if r.DefaultSymbol != nil {
		s := r.DefaultSymbol.Clone()
		c.DefaultSymbol = &s
	}
	c.UniqueValueInfos = make([]UniqueValueInfo, len(r.UniqueValueInfos))
	for i, u := range r.UniqueValueInfos {
		u.Symbol = u.Symbol.Clone()
		c.UniqueValueInfos[i] = u
	}
	c.VisualVariables = make([]VisualVariable, len(r.VisualVariables))
	for i, v := range r.VisualVariables {
		v.Stops = append([]Stop(nil), v.Stops...)
		c.VisualVariables[i] = v
	}
	return &c
}

// FormatValue：属性值转为 unique-value 比较用的字符串（整数不带小数点）
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	return 0, false
}
