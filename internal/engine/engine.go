// Package engine 实现画布的编辑/撤销/重做引擎。
//
// 引擎只在单个调用方线程上同步使用，内部不加锁。
// 它不检查坐标范围：调用 Paint 之前由调用方对照画布尺寸做越界检查。
package engine

import (
	"pixeldraw/internal/domain"
)

// Observer 接收引擎的像素变更通知，通常是渲染层。
type Observer interface {
	// PixelChanged 表示一个格子的颜色变为给定值，同一坐标以最后一次调用为准。
	PixelChanged(p domain.PixelState)
	// Cleared 表示所有格子需要恢复为背景色。
	Cleared()
}

// PixelSource 由观察者实现，供持久化层读取当前可见的非背景像素。
type PixelSource interface {
	NonBackgroundPixels() []domain.PixelState
}

// Engine 维护一张画布的 CanvasModel。
type Engine struct {
	history    []domain.Stroke
	inProgress []domain.PixelState
	// inProgressSet 用于判断三元组是否已在当前手势中出现过
	inProgressSet map[domain.PixelState]struct{}
	redoStack     []domain.Stroke

	observer Observer
}

// New 创建一个空引擎。observer 可以为 nil。
func New(observer Observer) *Engine {
	return &Engine{
		inProgressSet: make(map[domain.PixelState]struct{}),
		observer:      observer,
	}
}

// SetObserver 替换观察者，传 nil 解除注册。
func (e *Engine) SetObserver(o Observer) {
	e.observer = o
}

// Paint 在当前手势中写入一个像素。
// 完全相同的 (x, y, color) 已在当前手势中时不做任何事；否则写入、清空重做栈并通知观察者。
func (e *Engine) Paint(x, y int, color domain.Color) {
	p := domain.PixelState{X: x, Y: y, Color: color}
	if _, ok := e.inProgressSet[p]; ok {
		return
	}
	e.inProgressSet[p] = struct{}{}
	e.inProgress = append(e.inProgress, p)
	e.redoStack = nil
	e.notifyPixel(p)
}

// CommitStroke 结束当前手势，把写入的像素作为一个笔画追加到历史。
// 没有写入任何像素时不追加空笔画。
func (e *Engine) CommitStroke() {
	if len(e.inProgress) == 0 {
		return
	}
	e.history = append(e.history, domain.NewStroke(e.inProgress))
	e.resetInProgress()
}

// Undo 撤销最近一个笔画：清空画布后按顺序重放剩余历史，并把该笔画压入重做栈。
// 手势进行中调用时先提交当前手势。
func (e *Engine) Undo() {
	e.CommitStroke()
	if len(e.history) == 0 {
		return
	}
	last := e.history[len(e.history)-1]
	e.history = e.history[:len(e.history)-1]

	e.notifyClear()
	for _, s := range e.history {
		e.apply(s)
	}
	e.redoStack = append(e.redoStack, last)
}

// Redo 重做最近撤销的笔画。重做是增量的：只通知该笔画的像素。
func (e *Engine) Redo() {
	e.CommitStroke()
	if len(e.redoStack) == 0 {
		return
	}
	last := e.redoStack[len(e.redoStack)-1]
	e.redoStack = e.redoStack[:len(e.redoStack)-1]

	e.apply(last)
	e.history = append(e.history, last)
}

// Clear 清空画布并丢弃全部状态。Clear 不可撤销。
func (e *Engine) Clear() {
	e.notifyClear()
	e.history = nil
	e.redoStack = nil
	e.resetInProgress()
}

// Restore 用给定模型替换当前状态，并为可见状态中的每个像素通知一次观察者。
func (e *Engine) Restore(model domain.CanvasModel) {
	model = model.Clone()
	e.history = model.History
	e.redoStack = model.RedoStack
	e.resetInProgress()
	for _, p := range model.InProgress {
		if _, ok := e.inProgressSet[p]; ok {
			continue
		}
		e.inProgressSet[p] = struct{}{}
		e.inProgress = append(e.inProgress, p)
	}
	for _, p := range e.Visible() {
		e.notifyPixel(p)
	}
}

// Model 返回当前状态的深拷贝。
func (e *Engine) Model() domain.CanvasModel {
	return domain.CanvasModel{
		History:    e.history,
		InProgress: e.inProgress,
		RedoStack:  e.redoStack,
	}.Clone()
}

// Visible 返回按 "最后写入者胜出" 计算出的可见像素集合。
func (e *Engine) Visible() []domain.PixelState {
	return domain.CanvasModel{
		History:    e.history,
		InProgress: e.inProgress,
	}.Visible()
}

// CanUndo 表示是否有可撤销的内容，未提交的手势也算在内。
func (e *Engine) CanUndo() bool { return len(e.history) > 0 || len(e.inProgress) > 0 }

// CanRedo 表示重做栈是否非空。
func (e *Engine) CanRedo() bool { return len(e.redoStack) > 0 }

// Drawing 表示是否有手势正在进行。
func (e *Engine) Drawing() bool { return len(e.inProgress) > 0 }

func (e *Engine) apply(s domain.Stroke) {
	s.Each(e.notifyPixel)
}

func (e *Engine) resetInProgress() {
	e.inProgress = nil
	e.inProgressSet = make(map[domain.PixelState]struct{})
}

func (e *Engine) notifyPixel(p domain.PixelState) {
	if e.observer != nil {
		e.observer.PixelChanged(p)
	}
}

func (e *Engine) notifyClear() {
	if e.observer != nil {
		e.observer.Cleared()
	}
}
