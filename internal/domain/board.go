package domain

import (
	"fmt"
	"sort"
)

// BoardState 定义了画板可见状态的序列化形式。
// 使用 map 将坐标（格式化为 "x:y" 字符串）映射到颜色字符串。
type BoardState map[string]string // 例如: {"10:20": "#FF0000", "11:21": "#0000FF"}

// BoardKey 返回坐标对应的 BoardState key。
func BoardKey(x, y int) string {
	return fmt.Sprintf("%d:%d", x, y)
}

// NewBoardState 由像素集合构造 BoardState。
func NewBoardState(pixels []PixelState) BoardState {
	state := make(BoardState, len(pixels))
	for _, p := range pixels {
		state[BoardKey(p.X, p.Y)] = p.Color.Hex()
	}
	return state
}

// Pixels 将 BoardState 还原为像素集合。无法解析的 key 被跳过，颜色失败回退到 DefaultColor。
func (b BoardState) Pixels() []PixelState {
	out := make([]PixelState, 0, len(b))
	for key, hex := range b {
		var x, y int
		if _, err := fmt.Sscanf(key, "%d:%d", &x, &y); err != nil {
			continue
		}
		out = append(out, PixelState{X: x, Y: y, Color: ColorOrDefault(hex)})
	}
	SortPixels(out)
	return out
}

// SortPixels 按行、列排序。
func SortPixels(pixels []PixelState) {
	sort.Slice(pixels, func(i, j int) bool {
		if pixels[i].Y != pixels[j].Y {
			return pixels[i].Y < pixels[j].Y
		}
		return pixels[i].X < pixels[j].X
	})
}
