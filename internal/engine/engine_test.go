package engine_test

import (
	"testing"

	"pixeldraw/internal/domain"
	"pixeldraw/internal/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	red   = domain.RGB(255, 0, 0)
	blue  = domain.RGB(0, 0, 255)
	green = domain.RGB(0, 255, 0)
)

// recorder 记录收到的通知，同时把它们应用到一个网格上
type recorder struct {
	grid   *engine.Grid
	pixels []domain.PixelState
	clears int
}

func newRecorder() *recorder {
	return &recorder{grid: engine.NewGrid(16, 16)}
}

func (r *recorder) PixelChanged(p domain.PixelState) {
	r.pixels = append(r.pixels, p)
	r.grid.PixelChanged(p)
}

func (r *recorder) Cleared() {
	r.clears++
	r.grid.Cleared()
}

func (r *recorder) reset() {
	r.pixels = nil
	r.clears = 0
}

func (r *recorder) visible() []domain.PixelState {
	return r.grid.NonBackgroundPixels()
}

func px(x, y int, c domain.Color) domain.PixelState {
	return domain.PixelState{X: x, Y: y, Color: c}
}

func TestEngine_Scenario_UndoUndoRedo(t *testing.T) {
	rec := newRecorder()
	e := engine.New(rec)

	e.Paint(0, 0, red)
	e.Paint(1, 0, red)
	e.CommitStroke()
	e.Paint(0, 0, blue)
	e.CommitStroke()
	assert.Equal(t, []domain.PixelState{px(0, 0, blue), px(1, 0, red)}, rec.visible())

	e.Undo()
	assert.Equal(t, []domain.PixelState{px(0, 0, red), px(1, 0, red)}, rec.visible())
	assert.Equal(t, rec.visible(), e.Visible(), "engine and observer should agree")

	e.Undo()
	assert.Empty(t, rec.visible())
	assert.Empty(t, e.Visible())

	e.Redo()
	assert.Equal(t, []domain.PixelState{px(0, 0, red), px(1, 0, red)}, rec.visible())
}

func TestEngine_UndoRestoresPreviousVisibleSet(t *testing.T) {
	rec := newRecorder()
	e := engine.New(rec)

	e.Paint(2, 2, green)
	e.Paint(3, 2, green)
	e.CommitStroke()
	before := rec.visible()

	e.Paint(2, 2, red)
	e.Paint(5, 5, blue)
	e.Paint(6, 5, blue)
	e.CommitStroke()
	require.NotEqual(t, before, rec.visible())

	e.Undo()
	assert.Equal(t, before, rec.visible())
}

func TestEngine_UndoRedoRoundTrip(t *testing.T) {
	rec := newRecorder()
	e := engine.New(rec)
	for i := 0; i < 5; i++ {
		e.Paint(i, i, red)
		e.Paint(0, i, blue)
		e.CommitStroke()
	}

	for depth := 1; depth <= 5; depth++ {
		before := rec.visible()
		for i := 0; i < depth; i++ {
			e.Undo()
		}
		for i := 0; i < depth; i++ {
			e.Redo()
		}
		assert.Equal(t, before, rec.visible(), "depth %d", depth)
	}
}

func TestEngine_UndoClearsThenReplaysRemainingHistory(t *testing.T) {
	rec := newRecorder()
	e := engine.New(rec)
	e.Paint(0, 0, red)
	e.CommitStroke()
	e.Paint(1, 1, blue)
	e.CommitStroke()
	rec.reset()

	e.Undo()

	assert.Equal(t, 1, rec.clears)
	assert.Equal(t, []domain.PixelState{px(0, 0, red)}, rec.pixels)
	assert.True(t, e.CanRedo())
}

func TestEngine_RedoIsIncremental(t *testing.T) {
	rec := newRecorder()
	e := engine.New(rec)
	e.Paint(0, 0, red)
	e.CommitStroke()
	e.Paint(1, 1, blue)
	e.Paint(2, 1, blue)
	e.CommitStroke()
	e.Undo()
	rec.reset()

	e.Redo()

	assert.Zero(t, rec.clears, "redo should not clear the canvas")
	assert.ElementsMatch(t, []domain.PixelState{px(1, 1, blue), px(2, 1, blue)}, rec.pixels)
	assert.False(t, e.CanRedo())
}

func TestEngine_PaintSameTripleTwiceNotifiesOnce(t *testing.T) {
	rec := newRecorder()
	e := engine.New(rec)

	e.Paint(4, 4, red)
	e.Paint(4, 4, red)

	assert.Len(t, rec.pixels, 1)
}

func TestEngine_PaintSameCoordinateDifferentColors(t *testing.T) {
	rec := newRecorder()
	e := engine.New(rec)

	e.Paint(4, 4, red)
	e.Paint(4, 4, blue)
	assert.Len(t, rec.pixels, 2, "a different color is a new write")

	e.CommitStroke()
	assert.Equal(t, []domain.PixelState{px(4, 4, blue)}, rec.visible())

	model := e.Model()
	require.Len(t, model.History, 1)
	assert.Equal(t, []domain.PixelState{px(4, 4, blue)}, model.History[0].Pixels(),
		"only the final color per coordinate survives commit")
}

func TestEngine_RepaintEarlierColorInSameGestureIsNoop(t *testing.T) {
	rec := newRecorder()
	e := engine.New(rec)

	e.Paint(1, 1, red)
	e.Paint(1, 1, blue)
	e.Paint(1, 1, red)
	e.CommitStroke()

	assert.Len(t, rec.pixels, 2)
	assert.Equal(t, []domain.PixelState{px(1, 1, blue)}, rec.visible())
	assert.Equal(t, rec.visible(), e.Visible())
}

func TestEngine_ClearEmptiesEverything(t *testing.T) {
	rec := newRecorder()
	e := engine.New(rec)
	e.Paint(0, 0, red)
	e.CommitStroke()
	e.Paint(1, 0, red)
	e.CommitStroke()
	e.Undo()
	e.Paint(2, 0, red)

	e.Clear()

	assert.True(t, e.Model().IsEmpty())
	assert.Empty(t, rec.visible())
	rec.reset()

	e.Undo()
	e.Redo()
	assert.Zero(t, rec.clears, "undo after clear must be a no-op")
	assert.Empty(t, rec.pixels)
}

func TestEngine_PaintClearsRedoStack(t *testing.T) {
	e := engine.New(nil)
	e.Paint(0, 0, red)
	e.CommitStroke()
	e.Undo()
	require.True(t, e.CanRedo())

	e.Paint(3, 3, green)

	assert.False(t, e.CanRedo())
	assert.Empty(t, e.Model().RedoStack)
}

func TestEngine_DuplicatePaintDoesNotClearRedo(t *testing.T) {
	e := engine.New(nil)
	e.Restore(domain.CanvasModel{
		InProgress: []domain.PixelState{px(7, 7, red)},
		RedoStack:  []domain.Stroke{domain.NewStroke([]domain.PixelState{px(5, 5, blue)})},
	})
	require.True(t, e.CanRedo())

	// 同一手势中再次写入相同三元组是无操作
	e.Paint(7, 7, red)
	assert.True(t, e.CanRedo())

	e.Paint(7, 7, blue)
	assert.False(t, e.CanRedo())
}

func TestEngine_EmptyCommitIsSkipped(t *testing.T) {
	e := engine.New(nil)
	e.CommitStroke()
	e.CommitStroke()

	assert.Empty(t, e.Model().History)
	assert.False(t, e.CanUndo())
}

func TestEngine_UndoDuringGestureCommitsFirst(t *testing.T) {
	rec := newRecorder()
	e := engine.New(rec)
	e.Paint(0, 0, red)
	e.CommitStroke()
	e.Paint(1, 0, blue)
	require.True(t, e.Drawing())

	e.Undo()

	assert.False(t, e.Drawing())
	assert.Equal(t, []domain.PixelState{px(0, 0, red)}, rec.visible())
	e.Redo()
	assert.Equal(t, []domain.PixelState{px(0, 0, red), px(1, 0, blue)}, rec.visible())
}

func TestEngine_UndoOnEmptyHistoryIsNoop(t *testing.T) {
	rec := newRecorder()
	e := engine.New(rec)

	e.Undo()
	e.Redo()

	assert.Zero(t, rec.clears)
	assert.Empty(t, rec.pixels)
}

func TestEngine_RestoreShowsLastWriter(t *testing.T) {
	model := domain.CanvasModel{
		History: []domain.Stroke{
			domain.NewStroke([]domain.PixelState{px(3, 3, red), px(4, 3, red)}),
			domain.NewStroke([]domain.PixelState{px(3, 3, blue)}),
		},
	}
	rec := newRecorder()
	e := engine.New(rec)

	e.Restore(model)

	assert.Equal(t, []domain.PixelState{px(3, 3, blue), px(4, 3, red)}, rec.visible())
	assert.Len(t, rec.pixels, 2, "one notification per visible pixel")

	e.Undo()
	assert.Equal(t, []domain.PixelState{px(3, 3, red), px(4, 3, red)}, rec.visible())
}

func TestEngine_RestoreFromDecodedBlob(t *testing.T) {
	blob := `{"history":[[{"x":0,"y":0,"color":"#FF0000"}],[{"x":0,"y":0,"color":"#0000FF"},{"x":1,"y":0,"color":"not-a-color"}]],"inProgress":[],"redoStack":[[{"x":9,"y":9,"color":"#00FF00"}]]}`
	model, err := domain.DecodeCanvasModel(blob)
	require.NoError(t, err)

	rec := newRecorder()
	e := engine.New(rec)
	e.Restore(model)

	assert.Equal(t, []domain.PixelState{px(0, 0, blue), px(1, 0, domain.DefaultColor)}, rec.visible())
	assert.True(t, e.CanRedo())
	e.Redo()
	assert.Contains(t, rec.visible(), px(9, 9, green))
}

func TestEngine_RestoreKeepsInProgressAfterHistory(t *testing.T) {
	model := domain.CanvasModel{
		History:    []domain.Stroke{domain.NewStroke([]domain.PixelState{px(0, 0, red)})},
		InProgress: []domain.PixelState{px(0, 0, green)},
	}
	rec := newRecorder()
	e := engine.New(rec)

	e.Restore(model)

	assert.Equal(t, []domain.PixelState{px(0, 0, green)}, rec.visible())
	assert.True(t, e.Drawing())
}

func TestEngine_ModelIsACopy(t *testing.T) {
	e := engine.New(nil)
	e.Paint(0, 0, red)
	e.CommitStroke()

	m := e.Model()
	m.History = append(m.History, domain.NewStroke([]domain.PixelState{px(1, 1, blue)}))

	assert.Len(t, e.Model().History, 1)
}

func TestEngine_SetObserverNilDetaches(t *testing.T) {
	rec := newRecorder()
	e := engine.New(rec)
	e.SetObserver(nil)

	e.Paint(0, 0, red)
	e.Clear()

	assert.Empty(t, rec.pixels)
	assert.Zero(t, rec.clears)
}
