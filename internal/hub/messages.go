package hub

import (
	"encoding/json"

	"pixeldraw/internal/domain"
)

// 客户端 -> 服务端消息类型
const (
	MsgPaint  = "paint"
	MsgCommit = "commit"
	MsgUndo   = "undo"
	MsgRedo   = "redo"
	MsgClear  = "clear"
)

// 服务端 -> 客户端消息类型
const (
	MsgSnapshot = "snapshot"
	MsgPixel    = "pixel"
	MsgError    = "error"
	MsgPalette  = "palette"
	MsgCanvases = "canvases"
)

// ClientMessage 是客户端发送的绘制命令
type ClientMessage struct {
	Type  string `json:"type"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Color string `json:"color,omitempty"`
}

type snapshotMessage struct {
	Type     string            `json:"type"`
	CanvasID string            `json:"canvasId"`
	State    domain.BoardState `json:"state"`
}

type pixelMessage struct {
	Type  string `json:"type"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Color string `json:"color"`
}

type typeOnlyMessage struct {
	Type string `json:"type"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type paletteMessage struct {
	Type   string         `json:"type"`
	Colors []domain.Color `json:"colors"`
}

type canvasListMessage struct {
	Type     string          `json:"type"`
	Canvases []domain.Canvas `json:"canvases"`
}

func encodeSnapshot(canvasID string, state domain.BoardState) []byte {
	if state == nil {
		state = domain.BoardState{}
	}
	return mustMarshal(snapshotMessage{Type: MsgSnapshot, CanvasID: canvasID, State: state})
}

func encodePixel(p domain.PixelState) []byte {
	return mustMarshal(pixelMessage{Type: MsgPixel, X: p.X, Y: p.Y, Color: p.Color.Hex()})
}

func encodeClear() []byte {
	return mustMarshal(typeOnlyMessage{Type: MsgClear})
}

func encodeError(message string) []byte {
	return mustMarshal(errorMessage{Type: MsgError, Message: message})
}

func encodePalette(colors []domain.Color) []byte {
	if colors == nil {
		colors = []domain.Color{}
	}
	return mustMarshal(paletteMessage{Type: MsgPalette, Colors: colors})
}

func encodeCanvasList(canvases []domain.Canvas) []byte {
	if canvases == nil {
		canvases = []domain.Canvas{}
	}
	return mustMarshal(canvasListMessage{Type: MsgCanvases, Canvases: canvases})
}

// 以上消息的字段都是可编码的基本类型，编码不会失败
func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
