package service

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"pixeldraw/internal/domain"
	"pixeldraw/internal/engine"
)

// Persister 在后台保存会话快照，生产环境由 asynq 任务实现。
type Persister interface {
	SchedulePersist(ctx context.Context, snapshot domain.CanvasSnapshot) error
}

// Session 是一张打开的画布。
// 引擎本身不加锁，Session 用一把互斥锁把所有调用串行化，相当于单一交互线程。
// 它同时作为引擎唯一的观察者：先把通知应用到网格，再转发给 sink。
type Session struct {
	mu        sync.Mutex
	canvas    domain.Canvas
	engine    *engine.Engine
	grid      *engine.Grid
	sink      engine.Observer
	persister Persister
	revision  uint
	log       *logrus.Entry
}

// NewSession 用已保存的模型打开画布。persister 可以为 nil。
func NewSession(canvas domain.Canvas, model domain.CanvasModel, persister Persister) *Session {
	canvas.Model = "" // 模型由引擎持有
	s := &Session{
		canvas:    canvas,
		grid:      engine.NewGrid(canvas.WidthPixels, canvas.HeightPixels),
		persister: persister,
		revision:  canvas.Revision,
		log:       logrus.WithField("canvas_id", canvas.ID),
	}
	s.engine = engine.New(s)
	s.engine.Restore(model)
	return s
}

func (s *Session) CanvasID() string { return s.canvas.ID }

// Canvas 返回画布元数据。
func (s *Session) Canvas() domain.Canvas { return s.canvas }

// SetSink 设置通知的转发目标，传 nil 取消转发。
func (s *Session) SetSink(sink engine.Observer) {
	s.mu.Lock()
	s.sink = sink
	s.mu.Unlock()
}

// PixelChanged 实现 engine.Observer。调用时已持有 s.mu。
func (s *Session) PixelChanged(p domain.PixelState) {
	s.grid.PixelChanged(p)
	if s.sink != nil {
		s.sink.PixelChanged(p)
	}
}

// Cleared 实现 engine.Observer。调用时已持有 s.mu。
func (s *Session) Cleared() {
	s.grid.Cleared()
	if s.sink != nil {
		s.sink.Cleared()
	}
}

// Paint 在当前手势中写入一个像素，越界坐标返回 ErrOutOfBounds。
func (s *Session) Paint(x, y int, color domain.Color) error {
	if !s.canvas.Contains(x, y) {
		return ErrOutOfBounds
	}
	s.mu.Lock()
	s.engine.Paint(x, y, color)
	s.mu.Unlock()
	return nil
}

// Commit 结束当前手势。
func (s *Session) Commit(ctx context.Context) error {
	return s.change(ctx, "commit", func(e *engine.Engine) bool {
		if !e.Drawing() {
			return false
		}
		e.CommitStroke()
		return true
	})
}

// Undo 撤销最近的笔画。
func (s *Session) Undo(ctx context.Context) error {
	return s.change(ctx, "undo", func(e *engine.Engine) bool {
		if !e.CanUndo() {
			return false
		}
		e.Undo()
		return true
	})
}

// Redo 重做最近撤销的笔画。
func (s *Session) Redo(ctx context.Context) error {
	return s.change(ctx, "redo", func(e *engine.Engine) bool {
		if !e.CanRedo() && !e.Drawing() {
			return false
		}
		e.Redo()
		return true
	})
}

// Clear 清空画布，不可撤销。
func (s *Session) Clear(ctx context.Context) error {
	return s.change(ctx, "clear", func(e *engine.Engine) bool {
		e.Clear()
		return true
	})
}

// Snapshot 返回当前可见状态。
func (s *Session) Snapshot() domain.BoardState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grid.BoardState()
}

// ViewBoard 在会话锁内以当前可见状态调用 fn，fn 执行期间不会有新的通知。
// fn 不能再调用 Session 的方法。
func (s *Session) ViewBoard(fn func(board domain.BoardState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.grid.BoardState())
}

// Pixels 返回当前可见的非背景像素。
func (s *Session) Pixels() []domain.PixelState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grid.NonBackgroundPixels()
}

// Model 返回引擎模型的拷贝。
func (s *Session) Model() domain.CanvasModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Model()
}

// Revision 返回最近一次修改的 revision。
func (s *Session) Revision() uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// CurrentSnapshot 返回当前 revision 的快照拷贝，供周期性补写使用。
func (s *Session) CurrentSnapshot() domain.CanvasSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() domain.CanvasSnapshot {
	return domain.CanvasSnapshot{
		CanvasID: s.canvas.ID,
		Revision: s.revision,
		Model:    s.engine.Model(),
		Board:    s.grid.BoardState(),
	}
}

// change 在锁内执行修改；有实际变化时递增 revision 并拷贝快照，
// 在锁外交给 persister，后台任务只读取拷贝，从不触碰引擎。
func (s *Session) change(ctx context.Context, op string, fn func(*engine.Engine) bool) error {
	s.mu.Lock()
	if !fn(s.engine) {
		s.mu.Unlock()
		s.log.WithField("operation", op).Debug("Nothing to change")
		return nil
	}
	s.revision++
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	logCtx := s.log.WithFields(logrus.Fields{"operation": op, "revision": snapshot.Revision})
	if s.persister == nil {
		logCtx.Debug("No persister configured, snapshot not saved")
		return nil
	}
	if err := s.persister.SchedulePersist(ctx, snapshot); err != nil {
		logCtx.WithError(err).Error("Failed to schedule canvas persistence")
		return ErrInternalServer
	}
	logCtx.Debug("Canvas persistence scheduled")
	return nil
}
