package repository

import (
	"context"
	"time"

	"pixeldraw/internal/domain"
)

// StateRepository 定义了画布可见状态缓存相关的操作，通常由 Redis 实现。
type StateRepository interface {
	// GetBoardState 获取缓存的可见状态及其 revision。
	// 缓存未命中时返回 ErrNotFound。
	GetBoardState(ctx context.Context, canvasID string) (domain.BoardState, uint, error)

	// SetBoardState 整体替换缓存的可见状态。
	// revision 不大于已缓存的 revision 时不写入，返回 false。
	SetBoardState(ctx context.Context, canvasID string, state domain.BoardState, revision uint) (bool, error)

	// CleanupCanvasState 清理画布相关的 key。
	CleanupCanvasState(ctx context.Context, canvasID string) error

	// CheckRateLimit 检查给定 key 的请求频率是否超限，并递增计数。
	// 返回 true 表示超限。
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
