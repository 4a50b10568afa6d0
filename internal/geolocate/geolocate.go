// 包 geolocate：按访问者 IP 估算初始视图中心（GeoLite2/GeoIP2 City 库）
package geolocate

import (
	"net"
	"net/http"
	"strings"

	"github.com/oschwald/geoip2-golang"

	"citymap/internal/geo"
	"citymap/internal/logger"
)

// Locator：只读 mmdb 查询器；nil 时所有查询返回未命中
type Locator struct {
	reader *geoip2.Reader
}

// Open：path 为空时返回 nil（不启用）
func Open(path string) (*Locator, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	r, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	logger.L().Info("geoip_ready", "path", path)
	return &Locator{reader: r}, nil
}

// Locate：返回 IP 对应的经纬度；库中无坐标时 ok 为 false
func (l *Locator) Locate(ip net.IP) (geo.Point, bool) {
	if l == nil || l.reader == nil || ip == nil {
		return geo.Point{}, false
	}
	rec, err := l.reader.City(ip)
	if err != nil {
		logger.L().Debug("geoip_lookup_failed", "ip", ip.String(), "err", err)
		return geo.Point{}, false
	}
	lat, lon := rec.Location.Latitude, rec.Location.Longitude
	if lat == 0 && lon == 0 {
		return geo.Point{}, false
	}
	return geo.Point{Lon: lon, Lat: lat}, true
}

func (l *Locator) Close() error {
	if l == nil || l.reader == nil {
		return nil
	}
	return l.reader.Close()
}

// ClientIP：访问者 IP；依次取 X-Forwarded-For 首项、CF-Connecting-IP、X-Real-IP、Forwarded for=、RemoteAddr
func ClientIP(r *http.Request) net.IP {
	h := r.Header
	if x := h.Get("X-Forwarded-For"); x != "" {
		if ip := net.ParseIP(strings.TrimSpace(strings.Split(x, ",")[0])); ip != nil {
			return ip
		}
	}
	for _, k := range []string{"CF-Connecting-IP", "X-Real-IP"} {
		if ip := net.ParseIP(strings.TrimSpace(h.Get(k))); ip != nil {
			return ip
		}
	}
	if x := h.Get("Forwarded"); x != "" {
		if i := strings.Index(strings.ToLower(x), "for="); i >= 0 {
			y := strings.Trim(x[i+4:], "\" ")
			if p := strings.IndexAny(y, ";,"); p >= 0 {
				y = y[:p]
			}
			y = strings.Trim(y, "\"[]")
			if ip := net.ParseIP(y); ip != nil {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return net.ParseIP(host)
}
