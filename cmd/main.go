// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"citymap/internal/api"
	"citymap/internal/citycache"
	"citymap/internal/config"
	"citymap/internal/features"
	"citymap/internal/geo"
	"citymap/internal/geolocate"
	"citymap/internal/logger"
	"citymap/internal/middleware"
	"citymap/internal/utils"
	"citymap/internal/viewer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.SetupFromEnv().Error("config_error", "err", err)
		os.Exit(1)
	}
	l := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	l.Debug("config_api_base", "base", cfg.APIBase, "source", cfg.FeatureSource, "cache", cfg.CacheDriver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, closeSrc, err := openSource(cfg)
	if err != nil {
		l.Error("feature_source_error", "source", cfg.FeatureSource, "err", err)
		os.Exit(1)
	}
	defer closeSrc()

	cache, err := citycache.Open(ctx, cfg)
	if err != nil {
		l.Error("cache_open_error", "driver", cfg.CacheDriver, "err", err)
		os.Exit(1)
	}
	defer cache.Close()

	// 背景：GeoIP 库缺失时视图以默认范围居中，不影响其他功能
	loc, err := geolocate.Open(cfg.GeoIPPath)
	if err != nil {
		l.Error("geoip_open_error", "path", cfg.GeoIPPath, "err", err)
	} else if loc != nil {
		defer loc.Close()
	}

	v := viewer.New(cfg, src, cache)
	startCtx, cancel := context.WithTimeout(ctx, 2*cfg.RESTTimeout+10*time.Second)
	err = v.Start(startCtx)
	cancel()
	if err != nil {
		l.Error("view_start_error", "err", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	apiMux := api.BuildRoutes(api.Deps{Viewer: v, Cache: cache, Locator: loc})
	mux.Handle(cfg.APIBase+"/", http.StripPrefix(cfg.APIBase, apiMux))

	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.RateLimit(cfg.RateLimitEnabled, cfg.RateLimitQPS)(handler)
	s := &http.Server{Addr: cfg.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	}()

	if cfg.TLSEnable {
		if err := utils.EnsureSelfSignedCert(cfg.TLSCertPath, cfg.TLSKeyPath, "citymap.local"); err != nil {
			l.Error("tls_cert_error", "err", err)
			os.Exit(1)
		}
		l.Info("listening_tls", "addr", cfg.Addr, "cert", cfg.TLSCertPath)
		err = s.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
	} else {
		l.Info("listening", "addr", cfg.Addr)
		err = s.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("server_error", "err", err)
		os.Exit(1)
	}
	l.Info("server_stopped")
}

// openSource：按 FEATURE_SOURCE 选择要素服务
func openSource(cfg config.Config) (features.Source, func(), error) {
	if cfg.FeatureSource == "snapshot" {
		s, err := features.NewSnapshotSource(cfg.SnapshotDir, geo.NewEngine())
		return s, func() {}, err
	}
	s, err := features.NewRESTSource(cfg)
	if err != nil {
		return nil, func() {}, err
	}
	return s, s.Close, nil
}
