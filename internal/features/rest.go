package features

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"

	"citymap/internal/config"
	"citymap/internal/geo"
	"citymap/internal/layers"
	"citymap/internal/logger"
	"citymap/internal/metrics"
)

const layerInfoTTL = 60 * time.Minute

// RESTSource：ArcGIS REST MapServer/FeatureServer 客户端
// 约束：429/502/503/504 与超时按指数退避重试，重试时轮换镜像主机；图层元数据缓存 60 分钟
type RESTSource struct {
	HTTPClient  *http.Client
	Timeout     time.Duration
	MaxAttempts int
	BackoffBase time.Duration
	// Mirrors：备用主机（scheme://host），替换图层 URL 的主机部分后依次尝试
	Mirrors []string

	info *ristretto.Cache
	log  *slog.Logger
}

func NewRESTSource(cfg config.Config) (*RESTSource, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("features: layer info cache: %w", err)
	}
	return &RESTSource{
		Timeout:     cfg.RESTTimeout,
		MaxAttempts: cfg.RESTMaxAttempts,
		Mirrors:     cfg.RESTMirrors,
		info:        c,
		log:         logger.Component("features"),
	}, nil
}

// Close：释放元数据缓存
func (s *RESTSource) Close() {
	if s.info != nil {
		s.info.Close()
	}
}

type restError struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details"`
}

type restQueryResponse struct {
	Features []struct {
		Attributes map[string]any  `json:"attributes"`
		Geometry   json.RawMessage `json:"geometry"`
	} `json:"features"`
	ExceededTransferLimit bool       `json:"exceededTransferLimit"`
	Error                 *restError `json:"error"`
}

// Describe：读取图层元数据（{url}?f=json），结果按 URL 缓存
func (s *RESTSource) Describe(ctx context.Context, layer layers.Layer) (LayerInfo, error) {
	key := strings.TrimRight(layer.URL, "/")
	if s.info != nil {
		if v, ok := s.info.Get(key); ok {
			if info, ok := v.(LayerInfo); ok {
				metrics.LayerInfoCacheHitsTotal.Inc()
				return info, nil
			}
		}
	}
	params := url.Values{}
	params.Set("f", "json")
	var resp struct {
		LayerInfo
		Error *restError `json:"error"`
	}
	if err := s.doWithRetry(ctx, http.MethodGet, key, params, &resp); err != nil {
		return LayerInfo{}, fmt.Errorf("describe %s: %w", layer.Role, err)
	}
	if resp.Error != nil {
		return LayerInfo{}, fmt.Errorf("describe %s: %w", layer.Role, resp.Error.asErr())
	}
	if s.info != nil {
		s.info.SetWithTTL(key, resp.LayerInfo, 1, layerInfoTTL)
		s.info.Wait()
	}
	return resp.LayerInfo, nil
}

// Query：POST {url}/query，几何以 ESRI JSON 传递，输入输出坐标系均为 4326
func (s *RESTSource) Query(ctx context.Context, layer layers.Layer, q Query) ([]Feature, error) {
	start := time.Now()
	role := string(layer.Role)
	out, err := s.query(ctx, layer, q)
	metrics.FeatureQueryDurationMs.WithLabelValues(role).Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.FeatureQueriesTotal.WithLabelValues(role, "error").Inc()
		return nil, err
	}
	metrics.FeatureQueriesTotal.WithLabelValues(role, "ok").Inc()
	return out, nil
}

func (s *RESTSource) query(ctx context.Context, layer layers.Layer, q Query) ([]Feature, error) {
	if q.SpatialRel != "" && q.SpatialRel != SpatialRelIntersects {
		return nil, fmt.Errorf("features: unsupported spatial relationship %q", q.SpatialRel)
	}
	params := url.Values{}
	params.Set("f", "json")
	params.Set("where", "1=1")
	params.Set("outFields", strings.Join(outFields(q.OutFields), ","))
	params.Set("returnGeometry", strconv.FormatBool(q.ReturnGeometry))
	params.Set("outSR", "4326")
	g := q.Geometry
	if q.Around != nil && !q.Around.IsEmpty() && q.DistanceKm > 0 {
		// 本地缓冲面为逐段胶囊的重叠集合，不是简单多边形；交由服务端缓冲
		g = q.Around
		params.Set("distance", strconv.FormatFloat(q.DistanceKm, 'f', -1, 64))
		params.Set("units", "esriSRUnit_Kilometer")
	}
	if g != nil {
		raw, err := geo.EncodeESRI(g)
		if err != nil {
			return nil, fmt.Errorf("features: encode query geometry: %w", err)
		}
		params.Set("geometry", string(raw))
		params.Set("geometryType", geo.GeometryType(g))
		params.Set("spatialRel", "esriSpatialRelIntersects")
		params.Set("inSR", "4326")
	}
	var resp restQueryResponse
	endpoint := strings.TrimRight(layer.URL, "/") + "/query"
	if err := s.doWithRetry(ctx, http.MethodPost, endpoint, params, &resp); err != nil {
		return nil, fmt.Errorf("query %s: %w", layer.Role, err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("query %s: %w", layer.Role, resp.Error.asErr())
	}
	if resp.ExceededTransferLimit {
		s.logger().Warn("query_transfer_limit", "layer", layer.Role, "returned", len(resp.Features))
	}
	out := make([]Feature, 0, len(resp.Features))
	for _, f := range resp.Features {
		feat := Feature{Attributes: f.Attributes}
		if feat.Attributes == nil {
			feat.Attributes = map[string]any{}
		}
		if q.ReturnGeometry && len(f.Geometry) > 0 {
			g, err := geo.DecodeESRI(f.Geometry)
			if err != nil {
				return nil, fmt.Errorf("query %s: feature %s: %w", layer.Role, feat.ObjectID(), err)
			}
			feat.Geometry = g
		}
		out = append(out, feat)
	}
	return out, nil
}

func (e *restError) asErr() error {
	msg := e.Message
	if len(e.Details) > 0 {
		msg += ": " + strings.Join(e.Details, "; ")
	}
	return fmt.Errorf("%w %d: %s", ErrService, e.Code, msg)
}

func (s *RESTSource) doWithRetry(ctx context.Context, method, rawURL string, params url.Values, into any) error {
	maxAttempts := s.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	baseSleep := s.BackoffBase
	if baseSleep <= 0 {
		baseSleep = 500 * time.Millisecond
	}
	endpoints := mirrorURLs(rawURL, s.Mirrors)
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		endpoint := endpoints[attempt%len(endpoints)]
		status, err := s.doOnce(ctx, method, endpoint, params, into)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !isRetryable(status, err) || attempt == maxAttempts-1 {
			break
		}
		sleep := baseSleep << attempt
		s.logger().Debug("feature_service_retry", "url", endpoint, "status", status, "attempt", attempt+1, "sleep", sleep, "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
	return lastErr
}

func (s *RESTSource) doOnce(ctx context.Context, method, endpoint string, params url.Values, into any) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.effectiveTimeout())
	defer cancel()

	var req *http.Request
	var err error
	if method == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(params.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		u, perr := url.Parse(endpoint)
		if perr != nil {
			return 0, fmt.Errorf("parse layer url: %w", perr)
		}
		u.RawQuery = params.Encode()
		req, err = http.NewRequestWithContext(ctx, method, u.String(), nil)
	}
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient().Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, fmt.Errorf("%w: status %d: %s", ErrService, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func (s *RESTSource) httpClient() *http.Client {
	if s.HTTPClient != nil {
		return s.HTTPClient
	}
	return &http.Client{Timeout: s.effectiveTimeout()}
}

func (s *RESTSource) effectiveTimeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return 15 * time.Second
}

func (s *RESTSource) logger() *slog.Logger {
	if s.log != nil {
		return s.log
	}
	return logger.L()
}

// mirrorURLs：原始 URL 在前，其后为替换主机后的镜像 URL
func mirrorURLs(raw string, mirrors []string) []string {
	out := []string{raw}
	u, err := url.Parse(raw)
	if err != nil {
		return out
	}
	for _, m := range mirrors {
		mu, err := url.Parse(strings.TrimSpace(m))
		if err != nil || mu.Host == "" {
			continue
		}
		c := *u
		c.Scheme = mu.Scheme
		c.Host = mu.Host
		out = append(out, c.String())
	}
	return out
}

func isRetryable(status int, err error) bool {
	if status == http.StatusTooManyRequests || status == http.StatusBadGateway || status == http.StatusServiceUnavailable || status == http.StatusGatewayTimeout {
		return true
	}
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
