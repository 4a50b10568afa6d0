package layers

import (
	"errors"
	"fmt"
	"sync"
)

var ErrUnknownRole = errors.New("layers: no layer with role")

// Map：按绘制顺序持有全部图层；渲染器替换受互斥锁保护
type Map struct {
	mu      sync.RWMutex
	layers  []*Layer
	Basemap string
}

// Compose：按 州、县、城市、高速 的顺序组合地图
func Compose(states, counties, cities, highways *Layer) *Map {
	m := &Map{Basemap: "gray-vector"}
	for _, l := range []*Layer{states, counties, cities, highways} {
		if l != nil {
			m.layers = append(m.layers, l)
		}
	}
	return m
}

// Layers：图层快照（渲染器为深拷贝），顺序即绘制顺序
func (m *Map) Layers() []Layer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Layer, 0, len(m.layers))
	for _, l := range m.layers {
		c := *l
		c.OutFields = append([]string(nil), l.OutFields...)
		c.Renderer = l.Renderer.Clone()
		out = append(out, c)
	}
	return out
}

// ByRole：按角色查找图层快照
func (m *Map) ByRole(role Role) (Layer, bool) {
	for _, l := range m.Layers() {
		if l.Role == role {
			return l, true
		}
	}
	return Layer{}, false
}

// Renderer：当前渲染器副本
func (m *Map) Renderer(role Role) *Renderer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, l := range m.layers {
		if l.Role == role {
			return l.Renderer.Clone()
		}
	}
	return nil
}

// SetRenderer：整体替换某角色图层的渲染器
func (m *Map) SetRenderer(role Role, r *Renderer) error {
	if r == nil {
		return fmt.Errorf("layers: nil renderer for %s", role)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.layers {
		if l.Role == role {
			l.Renderer = r.Clone()
			return nil
		}
	}
	return fmt.Errorf("%w %s", ErrUnknownRole, role)
}
