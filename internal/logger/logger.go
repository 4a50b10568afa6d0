// 包 logger：统一初始化与获取日志器；级别与输出格式来自配置（LOG_LEVEL / LOG_FORMAT）
package logger

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu            sync.RWMutex
	defaultLogger *slog.Logger
)

// Setup：按级别与格式初始化默认日志器并返回
// 约束：输出固定为标准错误；level 取 debug/info/warn/error，非法值回退 info；format 为 json 时输出 JSON，否则文本
func Setup(level, format string) *slog.Logger {
	var h slog.Handler
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	l := slog.New(h)
	mu.Lock()
	defaultLogger = l
	mu.Unlock()
	return l
}

// SetupFromEnv：直接读取环境变量初始化，供 CLI 与未加载配置的场景使用
func SetupFromEnv() *slog.Logger {
	return Setup(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
}

// L：获取默认日志器；未初始化时按环境变量初始化
func L() *slog.Logger {
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()
	if l == nil {
		return SetupFromEnv()
	}
	return l
}

// Component：带组件名的子日志器
func Component(name string) *slog.Logger {
	return L().With("component", name)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
