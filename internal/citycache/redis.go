package citycache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"citymap/internal/logger"
)

// RedisStore：Redis 后端，整个集合保存在一个 hash（field 为 objectid，value 为 JSON）
type RedisStore struct {
	rc  *redis.Client
	key string
}

func NewRedisStore(rc *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "citymap"
	}
	return &RedisStore{rc: rc, key: prefix + ":cities"}
}

func (s *RedisStore) Init(ctx context.Context) error {
	if s.rc == nil {
		return fmt.Errorf("redis client not configured")
	}
	return s.rc.Ping(ctx).Err()
}

func (s *RedisStore) All(ctx context.Context) ([]CityRecord, error) {
	m, err := s.rc.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, err
	}
	out := make([]CityRecord, 0, len(m))
	for field, v := range m {
		var r CityRecord
		if err := json.Unmarshal([]byte(v), &r); err != nil {
			logger.L().Warn("citycache_bad_field", "field", field, "err", err)
			continue
		}
		out = append(out, r)
	}
	sortByID(out)
	return out, nil
}

// Replace：MULTI/EXEC 中执行 DEL 与 HSET
func (s *RedisStore) Replace(ctx context.Context, records []CityRecord, clear bool) error {
	values := make(map[string]any, len(records))
	for _, r := range records {
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode record %d: %w", r.ObjectID, err)
		}
		values[strconv.FormatInt(r.ObjectID, 10)] = string(b)
	}
	if !clear && len(values) == 0 {
		return nil
	}
	_, err := s.rc.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if clear {
			pipe.Del(ctx, s.key)
		}
		if len(values) > 0 {
			pipe.HSet(ctx, s.key, values)
		}
		return nil
	})
	return err
}

func (s *RedisStore) Clear(ctx context.Context) error {
	return s.rc.Del(ctx, s.key).Err()
}

func (s *RedisStore) Close() error { return s.rc.Close() }
