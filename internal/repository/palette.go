package repository

import "context"

// PaletteRepository 定义了调色板的持久化操作。颜色以十六进制字符串保存。
type PaletteRepository interface {
	// Load 按顺序返回所有者保存的颜色，没有保存过时返回 ErrPaletteNotFound。
	Load(ctx context.Context, ownerID string) ([]string, error)

	// Replace 用给定列表整体替换所有者的调色板。
	Replace(ctx context.Context, ownerID string, colors []string) error
}
