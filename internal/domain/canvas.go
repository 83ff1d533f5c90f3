package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	DefaultCanvasWidth  = 30
	DefaultCanvasHeight = 30
	DefaultPixelSize    = 15.0
)

// CanvasModel 是编辑引擎的完整状态。
//   - History: 已提交的笔画，最旧的在前
//   - InProgress: 当前手势中写入、尚未提交的像素 (按写入顺序，三元组互不相同)
//   - RedoStack: 被撤销、可重做的笔画，最近撤销的在最后
type CanvasModel struct {
	History    []Stroke     `json:"history"`
	InProgress []PixelState `json:"inProgress"`
	RedoStack  []Stroke     `json:"redoStack"`
}

// Clone 返回模型的深拷贝，供后台持久化读取。
func (m CanvasModel) Clone() CanvasModel {
	out := CanvasModel{
		History:    make([]Stroke, len(m.History)),
		InProgress: make([]PixelState, len(m.InProgress)),
		RedoStack:  make([]Stroke, len(m.RedoStack)),
	}
	for i, s := range m.History {
		out.History[i] = Stroke{pixels: s.Pixels()}
	}
	copy(out.InProgress, m.InProgress)
	for i, s := range m.RedoStack {
		out.RedoStack[i] = Stroke{pixels: s.Pixels()}
	}
	return out
}

// IsEmpty 判断三个容器是否都为空。
func (m CanvasModel) IsEmpty() bool {
	return len(m.History) == 0 && len(m.InProgress) == 0 && len(m.RedoStack) == 0
}

// Visible 按 "最后写入者胜出" 计算可见像素集合：
// 按从旧到新重放 History，InProgress 在最后。结果按行、列排序。
func (m CanvasModel) Visible() []PixelState {
	colors := make(map[Point]Color)
	order := make([]Point, 0)
	put := func(p PixelState) {
		pt := p.Point()
		if _, seen := colors[pt]; !seen {
			order = append(order, pt)
		}
		colors[pt] = p.Color
	}
	for _, s := range m.History {
		s.Each(put)
	}
	for _, p := range m.InProgress {
		put(p)
	}
	out := make([]PixelState, 0, len(order))
	for _, pt := range order {
		out = append(out, PixelState{X: pt.X, Y: pt.Y, Color: colors[pt]})
	}
	SortPixels(out)
	return out
}

// MarshalJSON 将笔画编码为像素数组。
func (s Stroke) MarshalJSON() ([]byte, error) {
	if s.pixels == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.pixels)
}

// UnmarshalJSON 解码像素数组，同一坐标保留最后一项。
func (s *Stroke) UnmarshalJSON(data []byte) error {
	var pixels []PixelState
	if err := json.Unmarshal(data, &pixels); err != nil {
		return err
	}
	*s = NewStroke(pixels)
	return nil
}

// DecodeCanvasModel 解析持久化的模型 JSON。空字符串视为空模型。
// 颜色字符串损坏只会让对应像素回退到 DefaultColor，见 Color.UnmarshalJSON。
func DecodeCanvasModel(data string) (CanvasModel, error) {
	var model CanvasModel
	if data == "" || data == "null" {
		return model, nil
	}
	if err := json.Unmarshal([]byte(data), &model); err != nil {
		return CanvasModel{}, fmt.Errorf("failed to unmarshal canvas model: %w", err)
	}
	model.InProgress = dedupPixels(model.InProgress)
	return model, nil
}

// EncodeCanvasModel 将模型编码为 JSON 字符串。
func EncodeCanvasModel(model CanvasModel) (string, error) {
	if model.History == nil {
		model.History = []Stroke{}
	}
	if model.InProgress == nil {
		model.InProgress = []PixelState{}
	}
	if model.RedoStack == nil {
		model.RedoStack = []Stroke{}
	}
	bytes, err := json.Marshal(model)
	if err != nil {
		return "", fmt.Errorf("failed to marshal canvas model: %w", err)
	}
	return string(bytes), nil
}

func dedupPixels(pixels []PixelState) []PixelState {
	if len(pixels) == 0 {
		return pixels
	}
	seen := make(map[PixelState]struct{}, len(pixels))
	out := pixels[:0]
	for _, p := range pixels {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Canvas 是画布列表中的一项。
type Canvas struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	OwnerID      string    `gorm:"index;size:191;not null" json:"ownerId"`
	WidthPixels  int       `gorm:"not null" json:"widthPixels"`
	HeightPixels int       `gorm:"not null" json:"heightPixels"`
	PixelSize    float64   `gorm:"not null" json:"pixelSize"`
	Model        string    `gorm:"type:longtext" json:"-"`
	Revision     uint      `gorm:"not null;default:0" json:"revision"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// ParseModel 将 Model 字段解析为 CanvasModel。
func (c *Canvas) ParseModel() (CanvasModel, error) {
	return DecodeCanvasModel(c.Model)
}

// SetModel 序列化 CanvasModel 并写入 Model 字段。
func (c *Canvas) SetModel(model CanvasModel) error {
	data, err := EncodeCanvasModel(model)
	if err != nil {
		return err
	}
	c.Model = data
	return nil
}

// Contains 判断坐标是否落在画布内。
func (c *Canvas) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < c.WidthPixels && y < c.HeightPixels
}

// CanvasSnapshot 是某个 revision 时画布状态的只读拷贝，交给后台持久化。
type CanvasSnapshot struct {
	CanvasID string      `json:"canvasId"`
	Revision uint        `json:"revision"`
	Model    CanvasModel `json:"model"`
	Board    BoardState  `json:"board"`
}
