package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"pixeldraw/internal/domain"
	"pixeldraw/internal/repository"
)

// GormCanvasRepository 是 CanvasRepository 接口的 GORM 实现
type GormCanvasRepository struct {
	db *gorm.DB
}

// NewGormCanvasRepository 创建 GormCanvasRepository 实例
func NewGormCanvasRepository(db *gorm.DB) *GormCanvasRepository {
	if db == nil {
		panic("database connection cannot be nil for GormCanvasRepository")
	}
	return &GormCanvasRepository{db: db}
}

// Create 插入新画布
func (r *GormCanvasRepository) Create(ctx context.Context, canvas *domain.Canvas) error {
	err := r.db.WithContext(ctx).Create(canvas).Error
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create canvas %s: %w", canvas.ID, err)
	}
	return nil
}

// FindByID 根据 ID 查找画布
func (r *GormCanvasRepository) FindByID(ctx context.Context, id string) (*domain.Canvas, error) {
	var canvas domain.Canvas
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&canvas).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrCanvasNotFound
		}
		return nil, fmt.Errorf("gorm: find canvas by id %s: %w", id, err)
	}
	return &canvas, nil
}

// ListByOwner 返回所有者的画布列表。
// 列表不需要模型数据，Model 列不查询以减少传输量。
func (r *GormCanvasRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Canvas, error) {
	var canvases []domain.Canvas
	err := r.db.WithContext(ctx).
		Omit("model").
		Where("owner_id = ?", ownerID).
		Order("created_at ASC").
		Find(&canvases).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list canvases for owner %s: %w", ownerID, err)
	}
	return canvases, nil
}

// Delete 删除画布
func (r *GormCanvasRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Canvas{})
	if result.Error != nil {
		return fmt.Errorf("gorm: delete canvas %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrCanvasNotFound
	}
	return nil
}

// UpdateModel 以 revision 作为乐观条件写入模型，旧 revision 的写入被忽略
func (r *GormCanvasRepository) UpdateModel(ctx context.Context, id string, revision uint, model string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.Canvas{}).
		Where("id = ? AND revision < ?", id, revision).
		Updates(map[string]interface{}{
			"model":    model,
			"revision": revision,
		})
	if result.Error != nil {
		return false, fmt.Errorf("gorm: update model for canvas %s (revision %d): %w", id, revision, result.Error)
	}
	return result.RowsAffected > 0, nil
}
