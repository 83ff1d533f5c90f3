package domain

// PixelState 表示画布上一个格子的颜色写入。
// 三个字段都参与相等比较：同一坐标不同颜色是不同的值。
type PixelState struct {
	X     int   `json:"x"`
	Y     int   `json:"y"`
	Color Color `json:"color"`
}

// Point 是不带颜色的格子坐标。
type Point struct {
	X int
	Y int
}

// Point 返回像素的坐标。
func (p PixelState) Point() Point { return Point{X: p.X, Y: p.Y} }

// Stroke 是一次完整手势写入的像素集合，提交后不可变。
// 内部按写入顺序保存，且每个坐标只保留最后一次写入的颜色。
type Stroke struct {
	pixels []PixelState
}

// NewStroke 由一组像素写入构造笔画，同一坐标后写入的颜色覆盖先写入的。
func NewStroke(writes []PixelState) Stroke {
	if len(writes) == 0 {
		return Stroke{}
	}
	last := make(map[Point]int, len(writes))
	for i, p := range writes {
		last[p.Point()] = i
	}
	pixels := make([]PixelState, 0, len(last))
	for i, p := range writes {
		if last[p.Point()] == i {
			pixels = append(pixels, p)
		}
	}
	return Stroke{pixels: pixels}
}

// Pixels 返回笔画内像素的副本。
func (s Stroke) Pixels() []PixelState {
	out := make([]PixelState, len(s.pixels))
	copy(out, s.pixels)
	return out
}

// Len 返回笔画内的像素数量。
func (s Stroke) Len() int { return len(s.pixels) }

// Each 按写入顺序遍历像素。
func (s Stroke) Each(fn func(PixelState)) {
	for _, p := range s.pixels {
		fn(p)
	}
}

// Contains 判断笔画是否包含某个像素值 (坐标与颜色都相同)。
func (s Stroke) Contains(p PixelState) bool {
	for _, q := range s.pixels {
		if q == p {
			return true
		}
	}
	return false
}
