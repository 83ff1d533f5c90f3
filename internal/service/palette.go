package service

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"pixeldraw/internal/domain"
	"pixeldraw/internal/repository"
)

// PaletteService 管理每个所有者的调色板。每次修改后保存整个列表并通知订阅者。
type PaletteService struct {
	repo repository.PaletteRepository
	mu   sync.Mutex // 串行化 读取-修改-保存

	subs subscribers[[]domain.Color]
}

// NewPaletteService 创建 PaletteService 实例。
func NewPaletteService(repo repository.PaletteRepository) *PaletteService {
	if repo == nil {
		panic("PaletteRepository cannot be nil for PaletteService")
	}
	return &PaletteService{repo: repo}
}

// Subscribe 注册调色板变更回调，返回取消订阅函数。
func (s *PaletteService) Subscribe(fn func(ownerID string, colors []domain.Color)) func() {
	return s.subs.add(fn)
}

// Colors 返回调色板。没有保存过或读取失败时返回默认调色板。
func (s *PaletteService) Colors(ctx context.Context, ownerID string) []domain.Color {
	hexes, err := s.repo.Load(ctx, ownerID)
	if err != nil {
		if !errors.Is(err, repository.ErrPaletteNotFound) {
			logrus.WithField("owner_id", ownerID).WithError(err).Warn("Failed to load palette, using defaults")
		}
		return domain.DefaultPalette()
	}
	colors := make([]domain.Color, len(hexes))
	for i, h := range hexes {
		colors[i] = domain.ColorOrDefault(h)
	}
	return colors
}

// Append 在调色板末尾追加一个颜色。
func (s *PaletteService) Append(ctx context.Context, ownerID string, color domain.Color) ([]domain.Color, error) {
	return s.mutate(ctx, ownerID, func(colors []domain.Color) []domain.Color {
		return append(colors, color)
	})
}

// Replace 把所有等于 from 的颜色替换为 to。
func (s *PaletteService) Replace(ctx context.Context, ownerID string, from, to domain.Color) ([]domain.Color, error) {
	return s.mutate(ctx, ownerID, func(colors []domain.Color) []domain.Color {
		for i, c := range colors {
			if c == from {
				colors[i] = to
			}
		}
		return colors
	})
}

// Update 整体替换调色板。
func (s *PaletteService) Update(ctx context.Context, ownerID string, colors []domain.Color) ([]domain.Color, error) {
	return s.mutate(ctx, ownerID, func([]domain.Color) []domain.Color {
		out := make([]domain.Color, len(colors))
		copy(out, colors)
		return out
	})
}

func (s *PaletteService) mutate(ctx context.Context, ownerID string, fn func([]domain.Color) []domain.Color) ([]domain.Color, error) {
	s.mu.Lock()
	colors := fn(s.Colors(ctx, ownerID))
	hexes := make([]string, len(colors))
	for i, c := range colors {
		hexes[i] = c.Hex()
	}
	err := s.repo.Replace(ctx, ownerID, hexes)
	s.mu.Unlock()

	if err != nil {
		logrus.WithFields(logrus.Fields{"owner_id": ownerID, "size": len(colors)}).WithError(err).Error("Failed to save palette")
		return nil, ErrInternalServer
	}
	s.subs.notify(ownerID, colors)
	return colors, nil
}
