package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"pixeldraw/internal/domain"
	"pixeldraw/internal/tasks"
)

// SnapshotPersister 由 service.CanvasService 实现
type SnapshotPersister interface {
	PersistSnapshot(ctx context.Context, snapshot domain.CanvasSnapshot) error
}

// CanvasPersistenceHandler 处理画布持久化任务
type CanvasPersistenceHandler struct {
	canvases SnapshotPersister
}

// NewCanvasPersistenceHandler 创建 Handler 实例
func NewCanvasPersistenceHandler(canvases SnapshotPersister) *CanvasPersistenceHandler {
	if canvases == nil {
		panic("SnapshotPersister cannot be nil for CanvasPersistenceHandler")
	}
	return &CanvasPersistenceHandler{canvases: canvases}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *CanvasPersistenceHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := taskLogger(ctx, t)

	payload, err := tasks.ParseCanvasPersistPayload(t.Payload())
	if err != nil {
		logCtx.WithError(err).Error("Failed to parse task payload")
		// payload 损坏，重试没有意义
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	snapshot := payload.Snapshot
	logCtx = logCtx.WithFields(logrus.Fields{"canvas_id": snapshot.CanvasID, "revision": snapshot.Revision})

	if err := h.canvases.PersistSnapshot(ctx, snapshot); err != nil {
		logCtx.WithError(err).Error("Failed to persist canvas snapshot")
		return fmt.Errorf("failed to persist canvas %s revision %d: %w", snapshot.CanvasID, snapshot.Revision, err)
	}

	logCtx.Debug("Canvas persistence task processed successfully")
	return nil
}

// taskLogger 返回带任务信息的日志上下文。
// 直接用 asynq.NewTask 构造的任务没有 ResultWriter。
func taskLogger(ctx context.Context, t *asynq.Task) *logrus.Entry {
	taskID := ""
	if rw := t.ResultWriter(); rw != nil {
		taskID = rw.TaskID()
	}
	currentRetry, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	return logrus.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
		"retry":     currentRetry,
		"max_retry": maxRetry,
	})
}
