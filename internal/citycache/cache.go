package citycache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"citymap/internal/config"
	"citymap/internal/logger"
	"citymap/internal/metrics"
	"citymap/internal/utils"
)

var (
	ErrStorageUnavailable = errors.New("citycache: storage unavailable")
	ErrPersistence        = errors.New("citycache: persistence failure")
)

// Cache：城市缓存入口，屏蔽后端差异并统一错误语义
type Cache struct {
	store Store
	log   *slog.Logger
}

func New(store Store) *Cache {
	return &Cache{store: store, log: logger.Component("citycache")}
}

// Open：按 CACHE_DRIVER 选择后端并初始化
func Open(ctx context.Context, cfg config.Config) (*Cache, error) {
	var store Store
	switch cfg.CacheDriver {
	case "memory":
		store = NewMemoryStore()
	case "redis":
		store = NewRedisStore(utils.OpenRedis(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB), cfg.RedisPrefix)
	case "postgres":
		db, err := utils.OpenPostgres(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		store = NewSQLStore(db, DialectPostgres)
	default:
		db, err := utils.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		store = NewSQLStore(db, DialectSQLite)
	}
	c := New(store)
	if err := c.Initialize(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	c.log.Info("citycache_ready", "driver", cfg.CacheDriver)
	return c, nil
}

// Initialize：打开或创建集合，可重复调用
func (c *Cache) Initialize(ctx context.Context) error {
	if err := c.store.Init(ctx); err != nil {
		c.log.Error("citycache_init_failed", "err", err)
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// LoadAll：读取全部记录；空库或读取失败都返回空切片，失败只记日志与指标
func (c *Cache) LoadAll(ctx context.Context) []CityRecord {
	rs, err := c.store.All(ctx)
	if err != nil {
		c.log.Error("citycache_load_failed", "err", err)
		metrics.CacheLoadsTotal.WithLabelValues("error").Inc()
		return []CityRecord{}
	}
	rs = dedupe(rs)
	if len(rs) == 0 {
		metrics.CacheLoadsTotal.WithLabelValues("empty").Inc()
		return []CityRecord{}
	}
	metrics.CacheLoadsTotal.WithLabelValues("ok").Inc()
	metrics.CachedCities.Set(float64(len(rs)))
	c.log.Debug("citycache_loaded", "count", len(rs))
	return rs
}

type saveOptions struct {
	clearExisting bool
}

// SaveOption：SaveAll 选项
type SaveOption func(*saveOptions)

// WithClearExisting：是否先清空已有记录，默认 true；false 时按 objectid 合并
func WithClearExisting(v bool) SaveOption {
	return func(o *saveOptions) { o.clearExisting = v }
}

// SaveAll：整体写入，输入中重复的 objectid 以最后一条为准；失败时不留下部分写入
func (c *Cache) SaveAll(ctx context.Context, records []CityRecord, opts ...SaveOption) error {
	o := saveOptions{clearExisting: true}
	for _, fn := range opts {
		fn(&o)
	}
	rs := dedupe(records)
	if err := c.store.Replace(ctx, rs, o.clearExisting); err != nil {
		c.log.Error("citycache_save_failed", "count", len(rs), "err", err)
		metrics.CacheSavesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	metrics.CacheSavesTotal.WithLabelValues("ok").Inc()
	if o.clearExisting {
		metrics.CachedCities.Set(float64(len(rs)))
	}
	c.log.Debug("citycache_saved", "count", len(rs), "clear", o.clearExisting)
	return nil
}

// Clear：清空集合
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	metrics.CachedCities.Set(0)
	return nil
}

func (c *Cache) Close() error { return c.store.Close() }
