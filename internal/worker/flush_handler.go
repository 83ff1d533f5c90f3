package worker

import (
	"context"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"pixeldraw/internal/service"
)

const flushTimeout = 30 * time.Second

// SessionSource 提供当前打开的会话，由 hub.Hub 实现
type SessionSource interface {
	ActiveSessions() []*service.Session
	// Evict 在会话空闲且 revision 未变时关闭它
	Evict(canvasID string, revision uint, idleFor time.Duration) bool
}

// SessionFlushHandler 周期性地把活跃会话的最新快照直接写入存储，
// 兜底入队失败或任务丢失的情况；已写入且空闲超过 idleFor 的会话随后被关闭。
type SessionFlushHandler struct {
	sessions SessionSource
	canvases SnapshotPersister
	idleFor  time.Duration

	mu          sync.Mutex
	lastFlushed map[string]uint // canvasID -> 已补写的 revision
}

// NewSessionFlushHandler 创建 Handler 实例
func NewSessionFlushHandler(sessions SessionSource, canvases SnapshotPersister, idleFor time.Duration) *SessionFlushHandler {
	if sessions == nil {
		panic("SessionSource cannot be nil for SessionFlushHandler")
	}
	if canvases == nil {
		panic("SnapshotPersister cannot be nil for SessionFlushHandler")
	}
	return &SessionFlushHandler{
		sessions:    sessions,
		canvases:    canvases,
		idleFor:     idleFor,
		lastFlushed: make(map[string]uint),
	}
}

// ProcessTask 实现 asynq.Handler 接口。单个画布失败不会让整个周期任务失败。
func (h *SessionFlushHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := taskLogger(ctx, t)

	active := h.sessions.ActiveSessions()
	h.forgetClosed(active)
	if len(active) == 0 {
		logCtx.Debug("No active canvas sessions, skipping flush")
		return nil
	}

	flushed, failed, evicted := 0, 0, 0
	for _, session := range active {
		snapshot := session.CurrentSnapshot()

		h.mu.Lock()
		last, ok := h.lastFlushed[snapshot.CanvasID]
		h.mu.Unlock()
		if !ok {
			last = session.Canvas().Revision // 打开时从数据库读到的 revision
		}

		if snapshot.Revision > last {
			flushCtx, cancel := context.WithTimeout(ctx, flushTimeout)
			err := h.canvases.PersistSnapshot(flushCtx, snapshot)
			cancel()
			if err != nil {
				failed++
				logCtx.WithFields(logrus.Fields{"canvas_id": snapshot.CanvasID, "revision": snapshot.Revision}).
					WithError(err).Error("Failed to flush canvas session")
				continue
			}
			flushed++
			h.mu.Lock()
			h.lastFlushed[snapshot.CanvasID] = snapshot.Revision
			h.mu.Unlock()
		}

		// 此时 snapshot.Revision 已经写入存储
		if h.sessions.Evict(snapshot.CanvasID, snapshot.Revision, h.idleFor) {
			evicted++
			h.mu.Lock()
			delete(h.lastFlushed, snapshot.CanvasID)
			h.mu.Unlock()
		}
	}

	logCtx.WithFields(logrus.Fields{"active": len(active), "flushed": flushed, "failed": failed, "evicted": evicted}).
		Info("Canvas session flush completed")
	return nil
}

func (h *SessionFlushHandler) forgetClosed(active []*service.Session) {
	open := make(map[string]struct{}, len(active))
	for _, s := range active {
		open[s.CanvasID()] = struct{}{}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for id := range h.lastFlushed {
		if _, ok := open[id]; !ok {
			delete(h.lastFlushed, id)
		}
	}
}
