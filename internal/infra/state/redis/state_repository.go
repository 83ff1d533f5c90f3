package redisstate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"pixeldraw/internal/domain"
	"pixeldraw/internal/repository"
)

// setBoardScript 原子地比较 revision 并整体替换可见状态 hash。
// KEYS[1] = state hash, KEYS[2] = revision key
// ARGV[1] = revision, ARGV[2..] = field, value, field, value ...
var setBoardScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[2]) or '0')
local revision = tonumber(ARGV[1])
if revision <= current then
	return 0
end
redis.call('DEL', KEYS[1])
for i = 2, #ARGV, 2 do
	redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
end
redis.call('SET', KEYS[2], ARGV[1])
return 1
`)

// RedisStateRepository 是 StateRepository 接口的 Redis 实现
type RedisStateRepository struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisStateRepository 创建 RedisStateRepository 实例。
// ttl 为 0 表示缓存不过期。
func NewRedisStateRepository(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisStateRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisStateRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "pd:" // 默认前缀 "pd:" (pixel draw)
	}
	return &RedisStateRepository{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

// --- Key Generation Helpers ---
func (r *RedisStateRepository) canvasStateKey(canvasID string) string {
	return fmt.Sprintf("%scanvas:%s:state", r.keyPrefix, canvasID)
}

func (r *RedisStateRepository) canvasRevisionKey(canvasID string) string {
	return fmt.Sprintf("%scanvas:%s:revision", r.keyPrefix, canvasID)
}

// GetBoardState 获取缓存的可见状态 (Redis Hash) 及 revision
func (r *RedisStateRepository) GetBoardState(ctx context.Context, canvasID string) (domain.BoardState, uint, error) {
	stateKey := r.canvasStateKey(canvasID)
	revisionKey := r.canvasRevisionKey(canvasID)

	pipe := r.client.Pipeline()
	stateCmd := pipe.HGetAll(ctx, stateKey)
	revisionCmd := pipe.Get(ctx, revisionKey)
	_, err := pipe.Exec(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, fmt.Errorf("redis: failed to get board state for canvas %s: %w", canvasID, err)
	}

	revisionStr, err := revisionCmd.Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// 没有 revision 说明从未缓存过
			return nil, 0, repository.ErrNotFound
		}
		return nil, 0, fmt.Errorf("redis: failed to get board revision for canvas %s from %s: %w", canvasID, revisionKey, err)
	}
	revision, parseErr := strconv.ParseUint(revisionStr, 10, 64)
	if parseErr != nil {
		return nil, 0, fmt.Errorf("redis: failed to parse revision '%s' for canvas %s: %w", revisionStr, canvasID, parseErr)
	}

	stateMap, err := stateCmd.Result()
	if err != nil {
		return nil, 0, fmt.Errorf("redis: failed to read board state for canvas %s from %s: %w", canvasID, stateKey, err)
	}
	return domain.BoardState(stateMap), uint(revision), nil
}

// SetBoardState 通过 Lua 脚本比较 revision 后替换缓存
func (r *RedisStateRepository) SetBoardState(ctx context.Context, canvasID string, state domain.BoardState, revision uint) (bool, error) {
	stateKey := r.canvasStateKey(canvasID)
	revisionKey := r.canvasRevisionKey(canvasID)

	args := make([]interface{}, 0, 1+2*len(state))
	args = append(args, revision)
	for field, color := range state {
		args = append(args, field, color)
	}
	written, err := setBoardScript.Run(ctx, r.client, []string{stateKey, revisionKey}, args...).Int()
	if err != nil {
		return false, fmt.Errorf("redis: failed to set board state for canvas %s (revision %d): %w", canvasID, revision, err)
	}
	if written == 1 && r.ttl > 0 {
		pipe := r.client.Pipeline()
		pipe.Expire(ctx, stateKey, r.ttl)
		pipe.Expire(ctx, revisionKey, r.ttl)
		if _, err := pipe.Exec(ctx); err != nil {
			return true, fmt.Errorf("redis: failed to set ttl for canvas %s: %w", canvasID, err)
		}
	}
	return written == 1, nil
}

// CleanupCanvasState 删除画布相关的 key
func (r *RedisStateRepository) CleanupCanvasState(ctx context.Context, canvasID string) error {
	err := r.client.Del(ctx, r.canvasStateKey(canvasID), r.canvasRevisionKey(canvasID)).Err()
	if err != nil {
		return fmt.Errorf("redis: failed to cleanup state for canvas %s: %w", canvasID, err)
	}
	return nil
}

// CheckRateLimit 检查给定 key 的请求频率是否超限，并递增计数。
func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	fullKey := r.keyPrefix + "ratelimit:" + key
	pipe := r.client.Pipeline()
	incrCmd := pipe.Incr(ctx, fullKey)
	pipe.Expire(ctx, fullKey, window)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("redis: pipeline failed for rate limit check on key %s: %w", fullKey, err)
	}
	count, err := incrCmd.Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to get incr result for rate limit on key %s: %w", fullKey, err)
	}
	return count > int64(limit), nil
}

var _ repository.StateRepository = (*RedisStateRepository)(nil)
