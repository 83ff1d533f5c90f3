package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"pixeldraw/internal/domain"
)

// 定义任务类型常量
const (
	TypeCanvasPersist = "canvas:persist" // 画布快照持久化任务
	TypeSessionFlush  = "canvas:flush"   // 周期性补写活跃会话
)

const (
	persistMaxRetry = 5
	persistTimeout  = 30 * time.Second
)

// CanvasPersistPayload 定义了画布持久化任务的数据结构
type CanvasPersistPayload struct {
	Snapshot domain.CanvasSnapshot `json:"snapshot"`
}

// NewCanvasPersistTask 创建画布持久化任务
func NewCanvasPersistTask(snapshot domain.CanvasSnapshot) (*asynq.Task, error) {
	payload, err := json.Marshal(CanvasPersistPayload{Snapshot: snapshot})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal canvas persist payload: %w", err)
	}
	return asynq.NewTask(TypeCanvasPersist, payload), nil
}

// ParseCanvasPersistPayload 解析任务 payload
func ParseCanvasPersistPayload(data []byte) (CanvasPersistPayload, error) {
	var payload CanvasPersistPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal canvas persist payload: %w", err)
	}
	if payload.Snapshot.CanvasID == "" {
		return payload, fmt.Errorf("canvas persist payload has no canvas id")
	}
	return payload, nil
}

// NewSessionFlushTask 创建周期性补写任务，payload 为空
func NewSessionFlushTask() *asynq.Task {
	return asynq.NewTask(TypeSessionFlush, nil)
}

// TaskEnqueuer 是 *asynq.Client 中入队所需的部分
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer 把会话快照投递到 asynq，实现 service.Persister
type Enqueuer struct {
	client TaskEnqueuer
	queue  string
}

// NewEnqueuer 创建 Enqueuer，queue 为空时使用 "default"
func NewEnqueuer(client TaskEnqueuer, queue string) *Enqueuer {
	if client == nil {
		panic("asynq client cannot be nil for Enqueuer")
	}
	if queue == "" {
		queue = "default"
	}
	return &Enqueuer{client: client, queue: queue}
}

// SchedulePersist 入队一个持久化任务
func (e *Enqueuer) SchedulePersist(ctx context.Context, snapshot domain.CanvasSnapshot) error {
	task, err := NewCanvasPersistTask(snapshot)
	if err != nil {
		return err
	}
	info, err := e.client.EnqueueContext(ctx, task,
		asynq.Queue(e.queue),
		asynq.MaxRetry(persistMaxRetry),
		asynq.Timeout(persistTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue canvas persist task: %w", err)
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"canvas_id": snapshot.CanvasID,
		"revision":  snapshot.Revision,
		"queue":     e.queue,
	})
	if info != nil {
		logCtx = logCtx.WithField("task_id", info.ID)
	}
	logCtx.Debug("Canvas persist task enqueued")
	return nil
}
