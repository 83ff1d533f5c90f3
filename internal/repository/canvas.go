package repository

import (
	"context"

	"pixeldraw/internal/domain"
)

// CanvasRepository 定义了画布列表及其编辑模型的持久化操作。
type CanvasRepository interface {
	// Create 保存一个新画布。
	Create(ctx context.Context, canvas *domain.Canvas) error

	// FindByID 根据 ID 查找画布，不存在时返回 ErrCanvasNotFound。
	FindByID(ctx context.Context, id string) (*domain.Canvas, error)

	// ListByOwner 返回某个所有者的全部画布，按创建时间升序。
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Canvas, error)

	// Delete 删除画布，不存在时返回 ErrCanvasNotFound。
	Delete(ctx context.Context, id string) error

	// UpdateModel 仅在已存储的 revision 小于给定 revision 时写入模型。
	// 返回是否实际写入。
	UpdateModel(ctx context.Context, id string, revision uint, model string) (bool, error)
}
