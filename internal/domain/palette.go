package domain

import "time"

// PaletteEntry 是调色板中的一个颜色，按 Position 排序。
type PaletteEntry struct {
	ID        uint      `gorm:"primaryKey"`
	OwnerID   string    `gorm:"index:idx_palette_owner_pos,priority:1;size:191;not null"`
	Position  int       `gorm:"index:idx_palette_owner_pos,priority:2;not null"`
	Color     string    `gorm:"size:9;not null"` // "#RRGGBB" 或 "#RRGGBBAA"
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// DefaultPalette 返回没有保存任何颜色时使用的调色板。
func DefaultPalette() []Color {
	return []Color{
		RGB(255, 255, 255),
		RGB(0, 0, 0),
		RGB(255, 0, 0),
		RGB(0, 255, 0),
		RGB(0, 0, 255),
		RGB(0, 255, 255),
		RGB(255, 255, 0),
		RGB(255, 0, 255),
		RGB(255, 127, 0),
		RGB(127, 0, 127),
		RGB(153, 102, 51),
	}
}
