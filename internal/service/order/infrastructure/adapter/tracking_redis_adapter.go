// internal/service/order/infrastructure/adapter/tracking_redis_adapter.go
package adapter

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"orderflow/internal/pkg/redis"
)

const trackingMarkScriptName = "tracking_mark"

// trackingTTL 限定跟踪键的生存期，订单送达后键自然过期。
const trackingTTL = 14 * 24 * time.Hour

// TrackingRedisAdapter 是 port.TrackingStore 的 Redis 实现。
type TrackingRedisAdapter struct {
	redisClient *redis.Client
}

// NewTrackingRedisAdapter 创建适配器并加载标记脚本。
func NewTrackingRedisAdapter(redisClient *redis.Client) (*TrackingRedisAdapter, error) {
	if err := redisClient.LoadScriptFromContent(trackingMarkScriptName, trackingMarkScript); err != nil {
		return nil, fmt.Errorf("failed to load tracking mark script: %w", err)
	}
	return &TrackingRedisAdapter{redisClient: redisClient}, nil
}

// MarkTrackingStarted 原子地打跟踪启动标记，返回之前是否已标记过。
func (a *TrackingRedisAdapter) MarkTrackingStarted(ctx context.Context, orderNo string) (bool, error) {
	key := fmt.Sprintf("tracking:started:{%s}", orderNo)

	result, err := a.redisClient.RunScript(ctx, trackingMarkScriptName,
		[]string{key}, int64(trackingTTL.Seconds()))
	if err != nil {
		return false, fmt.Errorf("tracking adapter failed to run script: %w", err)
	}

	code, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected result type from Lua script: %T", result)
	}
	return code == 1, nil
}

// SaveTrackingStatus 缓存最近一次跟踪状态。
func (a *TrackingRedisAdapter) SaveTrackingStatus(ctx context.Context, orderNo, trackingStatus string) error {
	key := fmt.Sprintf("tracking:status:{%s}", orderNo)
	return a.redisClient.GetClient().Set(ctx, key, trackingStatus, trackingTTL).Err()
}

// LastTrackingStatus 返回缓存的最近跟踪状态，无缓存时返回空串。
func (a *TrackingRedisAdapter) LastTrackingStatus(ctx context.Context, orderNo string) (string, error) {
	key := fmt.Sprintf("tracking:status:{%s}", orderNo)
	status, err := a.redisClient.GetClient().Get(ctx, key).Result()
	if err != nil {
		if err == goredis.Nil {
			return "", nil
		}
		return "", err
	}
	return status, nil
}

var trackingMarkScript = `
-- KEYS[1]: 跟踪启动标记的 Key, 例如: tracking:started:{ORD-123}
-- ARGV[1]: 标记的 TTL（秒）

-- 已存在说明之前启动过跟踪
if redis.call('exists', KEYS[1]) == 1 then
    return 1
end

redis.call('set', KEYS[1], 1, 'EX', ARGV[1])
return 0
`
