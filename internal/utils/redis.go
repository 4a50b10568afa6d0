package utils

import (
	"github.com/redis/go-redis/v9"

	"citymap/internal/logger"
)

// OpenRedis：按地址、密码与库号打开 Redis 客户端；不做连通性检查，由调用方 Ping
func OpenRedis(addr, pass string, db int) *redis.Client {
	if db < 0 {
		db = 0
	}
	logger.L().Debug("redis_open", "addr", addr, "db", db)
	return redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})
}
