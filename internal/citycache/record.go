// 包 citycache：附近城市结果的持久化缓存
// 背景：每次查询后整体替换上一次结果；启动时整体读回，用于离线重放高亮与列表。
// 约束：单一集合、以 objectid 为键；同一 objectid 后写覆盖先写；不做淘汰与历史版本。
package citycache

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"citymap/internal/features"
	"citymap/internal/geo"
	"citymap/internal/layers"
)

// DistanceField：查询流程写入要素属性的距离字段（米）
const DistanceField = "distance"

// CityRecord：城市要素的可序列化快照
type CityRecord struct {
	ObjectID   int64           `json:"objectid"`
	Name       string          `json:"name,omitempty"`
	Population float64         `json:"population"`
	Distance   float64         `json:"distance"`
	Geometry   json.RawMessage `json:"geometry,omitempty"`
	Attributes map[string]any  `json:"attributes"`
	Timestamp  int64           `json:"timestamp"`
}

// Key：objectid 的字符串形式，与渲染器 unique-value 取值一致
func (r CityRecord) Key() string { return strconv.FormatInt(r.ObjectID, 10) }

// FromFeature：把带 distance 属性的城市要素转为记录，时间戳取 now（毫秒）
// 约束：objectid 缺失或非整数时返回错误；人口缺失记 0；名称缺失时回退 areaname
func FromFeature(f features.Feature, now time.Time) (CityRecord, error) {
	id, err := parseID(f.Attributes[layers.IDField])
	if err != nil {
		return CityRecord{}, err
	}
	rec := CityRecord{
		ObjectID:   id,
		Attributes: make(map[string]any, len(f.Attributes)),
		Timestamp:  now.UnixMilli(),
	}
	for k, v := range f.Attributes {
		rec.Attributes[k] = v
	}
	if s, ok := f.Attributes["name"].(string); ok {
		rec.Name = s
	} else if s, ok := f.Attributes["areaname"].(string); ok {
		rec.Name = s
	}
	rec.Population = number(f.Attributes[layers.PopulationField])
	rec.Distance = number(f.Attributes[DistanceField])
	if f.Geometry != nil {
		raw, err := geo.EncodeESRI(f.Geometry)
		if err != nil {
			return CityRecord{}, fmt.Errorf("citycache: record %d geometry: %w", id, err)
		}
		rec.Geometry = raw
	}
	return rec, nil
}

func parseID(v any) (int64, error) {
	switch x := v.(type) {
	case float64:
		if x == float64(int64(x)) {
			return int64(x), nil
		}
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case json.Number:
		return x.Int64()
	case string:
		return strconv.ParseInt(x, 10, 64)
	}
	return 0, fmt.Errorf("citycache: bad objectid %v", v)
}

func number(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case json.Number:
		f, _ := x.Float64()
		return f
	}
	return 0
}

// dedupe：同一 objectid 保留最后一次出现的记录，位置取首次出现处
func dedupe(records []CityRecord) []CityRecord {
	idx := make(map[int64]int, len(records))
	out := make([]CityRecord, 0, len(records))
	for _, r := range records {
		if i, ok := idx[r.ObjectID]; ok {
			out[i] = r
			continue
		}
		idx[r.ObjectID] = len(out)
		out = append(out, r)
	}
	return out
}
