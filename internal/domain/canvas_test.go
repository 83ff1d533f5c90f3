package domain_test

import (
	"testing"

	"pixeldraw/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStroke_LastColorPerCoordinate(t *testing.T) {
	s := domain.NewStroke([]domain.PixelState{
		{X: 0, Y: 0, Color: domain.RGB(255, 0, 0)},
		{X: 1, Y: 0, Color: domain.RGB(255, 0, 0)},
		{X: 0, Y: 0, Color: domain.RGB(0, 0, 255)},
	})

	assert.Equal(t, []domain.PixelState{
		{X: 1, Y: 0, Color: domain.RGB(255, 0, 0)},
		{X: 0, Y: 0, Color: domain.RGB(0, 0, 255)},
	}, s.Pixels())
	assert.True(t, s.Contains(domain.PixelState{X: 0, Y: 0, Color: domain.RGB(0, 0, 255)}))
	assert.False(t, s.Contains(domain.PixelState{X: 0, Y: 0, Color: domain.RGB(255, 0, 0)}))
}

func TestCanvasModel_EncodeShape(t *testing.T) {
	model := domain.CanvasModel{
		History: []domain.Stroke{domain.NewStroke([]domain.PixelState{{X: 1, Y: 2, Color: domain.RGB(255, 0, 0)}})},
	}

	data, err := domain.EncodeCanvasModel(model)
	require.NoError(t, err)
	assert.JSONEq(t, `{"history":[[{"x":1,"y":2,"color":"#FF0000"}]],"inProgress":[],"redoStack":[]}`, data)

	decoded, err := domain.DecodeCanvasModel(data)
	require.NoError(t, err)
	require.Len(t, decoded.History, 1)
	assert.Equal(t, model.History[0].Pixels(), decoded.History[0].Pixels())
	assert.Equal(t, model.Visible(), decoded.Visible())
}

func TestDecodeCanvasModel_EmptyAndInvalid(t *testing.T) {
	m, err := domain.DecodeCanvasModel("")
	require.NoError(t, err)
	assert.True(t, m.IsEmpty())

	_, err = domain.DecodeCanvasModel("{not json")
	assert.Error(t, err)
}

func TestCanvasModel_VisibleLastWriterWins(t *testing.T) {
	red, blue := domain.RGB(255, 0, 0), domain.RGB(0, 0, 255)
	model := domain.CanvasModel{
		History: []domain.Stroke{
			domain.NewStroke([]domain.PixelState{{X: 3, Y: 0, Color: red}, {X: 0, Y: 1, Color: red}}),
			domain.NewStroke([]domain.PixelState{{X: 3, Y: 0, Color: blue}}),
		},
		InProgress: []domain.PixelState{{X: 0, Y: 1, Color: blue}},
	}

	assert.Equal(t, []domain.PixelState{
		{X: 3, Y: 0, Color: blue},
		{X: 0, Y: 1, Color: blue},
	}, model.Visible())
}

func TestBoardState_RoundTrip(t *testing.T) {
	pixels := []domain.PixelState{
		{X: 2, Y: 0, Color: domain.RGB(1, 2, 3)},
		{X: 0, Y: 5, Color: domain.Color{R: 9, A: 0x10}},
	}
	board := domain.NewBoardState(pixels)
	board["bogus"] = "#FFFFFF"

	assert.Equal(t, pixels, board.Pixels())
}

func TestCanvas_Contains(t *testing.T) {
	c := &domain.Canvas{WidthPixels: 3, HeightPixels: 2}
	assert.True(t, c.Contains(0, 0))
	assert.True(t, c.Contains(2, 1))
	assert.False(t, c.Contains(3, 0))
	assert.False(t, c.Contains(0, 2))
	assert.False(t, c.Contains(-1, 0))
}
