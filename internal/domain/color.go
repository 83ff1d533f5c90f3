package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Color 是一个 8 位 RGBA 颜色值，可直接比较，可作为 map key。
type Color struct {
	R uint8
	G uint8
	B uint8
	A uint8
}

// DefaultColor 是解析失败时的回退颜色 (不透明黑色)。
var DefaultColor = Color{A: 0xFF}

// Transparent 是画布的背景色。
var Transparent = Color{}

// RGB 构造一个不透明颜色。
func RGB(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b, A: 0xFF}
}

// Hex 返回 "#RRGGBB"（不透明时）或 "#RRGGBBAA"。
func (c Color) Hex() string {
	if c.A == 0xFF {
		return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02X%02X%02X%02X", c.R, c.G, c.B, c.A)
}

func (c Color) String() string { return c.Hex() }

// ParseColor 解析 "#RRGGBB" / "#RRGGBBAA"，'#' 可省略，不区分大小写。
func ParseColor(s string) (Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 && len(hex) != 8 {
		return DefaultColor, fmt.Errorf("invalid color %q: expected 6 or 8 hex digits", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return DefaultColor, fmt.Errorf("invalid color %q: %w", s, err)
	}
	if len(hex) == 6 {
		return RGB(uint8(v>>16), uint8(v>>8), uint8(v)), nil
	}
	return Color{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// ColorOrDefault 解析颜色，失败时返回 DefaultColor。
func ColorOrDefault(s string) Color {
	c, err := ParseColor(s)
	if err != nil {
		return DefaultColor
	}
	return c
}

// MarshalJSON 将颜色编码为十六进制字符串，保证往返精确。
func (c Color) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Hex())
}

// UnmarshalJSON 解码十六进制字符串。
// 格式错误的字符串回退到 DefaultColor 而不是报错，单个损坏的像素不应让整张画布恢复失败。
func (c *Color) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*c = DefaultColor
		return nil
	}
	*c = ColorOrDefault(s)
	return nil
}
