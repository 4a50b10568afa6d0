package viewer

import (
	"bytes"
	"html/template"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"citymap/internal/citycache"
)

const (
	// ListContainerID：城市列表容器的固定 id
	ListContainerID = "city-list"
	NoResultsText   = "没有找到附近的城市"
	UnknownCityName = "未知城市"
)

// Row：列表中的一行
type Row struct {
	ObjectID   int64   `json:"objectid"`
	Name       string  `json:"name"`
	DistanceM  float64 `json:"distance_m"`
	DistanceKm string  `json:"distance_km"`
	Text       string  `json:"text"`
}

// ListPanel：城市列表容器；每次更新整体重建
type ListPanel struct {
	mu      sync.RWMutex
	rows    []Row
	message string
	version uint64
}

func NewListPanel() *ListPanel { return &ListPanel{} }

// FormatKm：米转千米，保留两位小数，0.5 进位远离零
func FormatKm(meters float64) string {
	return decimal.NewFromFloat(meters).Shift(-3).StringFixed(2)
}

// Update：按距离升序（稳定）重建列表；空集合显示无结果提示
func (p *ListPanel) Update(records []citycache.CityRecord) {
	sorted := append([]citycache.CityRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Distance < sorted[j].Distance })
	rows := make([]Row, 0, len(sorted))
	for _, r := range sorted {
		name := r.Name
		if name == "" {
			name = UnknownCityName
		}
		km := FormatKm(r.Distance)
		rows = append(rows, Row{
			ObjectID:   r.ObjectID,
			Name:       name,
			DistanceM:  r.Distance,
			DistanceKm: km,
			Text:       name + " (距离: " + km + " 公里)",
		})
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.version++
	p.rows = rows
	p.message = ""
	if len(rows) == 0 {
		p.message = NoResultsText
	}
}

// Rows：当前行副本
func (p *ListPanel) Rows() []Row {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]Row(nil), p.rows...)
}

// Message：无结果提示；有结果或尚未更新时为空
func (p *ListPanel) Message() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.message
}

// Version：更新次数，供调用方判断列表是否被改写
func (p *ListPanel) Version() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.version
}

var listTmpl = template.Must(template.New("city-list").Parse(
	`<div id="{{.ID}}">` +
		`{{if .Message}}{{.Message}}` +
		`{{else if .Rows}}<ul style="list-style-type: none; padding: 0; margin: 0">` +
		`{{range .Rows}}<li data-objectid="{{.ObjectID}}" style="padding: 8px; border-bottom: 1px solid #eee; cursor: pointer">{{.Text}}</li>{{end}}` +
		`</ul>{{end}}</div>`))

// HTML：渲染列表容器片段
func (p *ListPanel) HTML() (string, error) {
	p.mu.RLock()
	data := struct {
		ID      string
		Message string
		Rows    []Row
	}{ID: ListContainerID, Message: p.message, Rows: p.rows}
	var buf bytes.Buffer
	err := listTmpl.Execute(&buf, data)
	p.mu.RUnlock()
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
