package engine

import (
	"pixeldraw/internal/domain"
)

// Grid 是一个内存中的像素网格，作为引擎的观察者使用。
// 它对应渲染层：接收通知并回答当前有哪些非背景像素。
type Grid struct {
	width  int
	height int
	cells  []domain.Color
}

// NewGrid 创建 width x height 的透明网格。
func NewGrid(width, height int) *Grid {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Grid{
		width:  width,
		height: height,
		cells:  make([]domain.Color, width*height),
	}
}

// Width 返回网格的列数。
func (g *Grid) Width() int { return g.width }

// Height 返回网格的行数。
func (g *Grid) Height() int { return g.height }

// PixelChanged 写入一个格子，超出网格的坐标被忽略。
func (g *Grid) PixelChanged(p domain.PixelState) {
	if p.X < 0 || p.Y < 0 || p.X >= g.width || p.Y >= g.height {
		return
	}
	g.cells[p.Y*g.width+p.X] = p.Color
}

// Cleared 把所有格子恢复为背景色。
func (g *Grid) Cleared() {
	for i := range g.cells {
		g.cells[i] = domain.Transparent
	}
}

// At 返回格子的颜色，越界返回背景色。
func (g *Grid) At(x, y int) domain.Color {
	if x < 0 || y < 0 || x >= g.width || y >= g.height {
		return domain.Transparent
	}
	return g.cells[y*g.width+x]
}

// NonBackgroundPixels 按行、列顺序返回所有非背景格子。
func (g *Grid) NonBackgroundPixels() []domain.PixelState {
	out := make([]domain.PixelState, 0)
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			c := g.cells[y*g.width+x]
			if c == domain.Transparent {
				continue
			}
			out = append(out, domain.PixelState{X: x, Y: y, Color: c})
		}
	}
	return out
}

// BoardState 返回非背景格子的序列化形式。
func (g *Grid) BoardState() domain.BoardState {
	return domain.NewBoardState(g.NonBackgroundPixels())
}

var (
	_ Observer    = (*Grid)(nil)
	_ PixelSource = (*Grid)(nil)
)
