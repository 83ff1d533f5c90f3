package gormpersistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"pixeldraw/internal/domain"
	"pixeldraw/internal/repository"
)

// GormPaletteRepository 是 PaletteRepository 接口的 GORM 实现
type GormPaletteRepository struct {
	db *gorm.DB
}

// NewGormPaletteRepository 创建 GormPaletteRepository 实例
func NewGormPaletteRepository(db *gorm.DB) *GormPaletteRepository {
	if db == nil {
		panic("database connection cannot be nil for GormPaletteRepository")
	}
	return &GormPaletteRepository{db: db}
}

// Load 按 position 顺序读取颜色
func (r *GormPaletteRepository) Load(ctx context.Context, ownerID string) ([]string, error) {
	var entries []domain.PaletteEntry
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("position ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: load palette for owner %s: %w", ownerID, err)
	}
	if len(entries) == 0 {
		return nil, repository.ErrPaletteNotFound
	}
	colors := make([]string, len(entries))
	for i, e := range entries {
		colors[i] = e.Color
	}
	return colors, nil
}

// Replace 在一个事务中删除旧条目并写入新列表
func (r *GormPaletteRepository) Replace(ctx context.Context, ownerID string, colors []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner_id = ?", ownerID).Delete(&domain.PaletteEntry{}).Error; err != nil {
			return fmt.Errorf("gorm: clear palette for owner %s: %w", ownerID, err)
		}
		if len(colors) == 0 {
			return nil
		}
		entries := make([]domain.PaletteEntry, len(colors))
		for i, c := range colors {
			entries[i] = domain.PaletteEntry{OwnerID: ownerID, Position: i, Color: c}
		}
		if err := tx.Create(&entries).Error; err != nil {
			return fmt.Errorf("gorm: save palette for owner %s (size %d): %w", ownerID, len(colors), err)
		}
		return nil
	})
}
