package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"pixeldraw/internal/domain"
	"pixeldraw/internal/repository"
)

const (
	MaxCanvasSide = 256
	MaxPixelSize  = 100.0
)

// CanvasService 管理画布列表和画布模型的持久化。
type CanvasService struct {
	canvasRepo repository.CanvasRepository
	stateRepo  repository.StateRepository

	subs    subscribers[[]domain.Canvas]
	deleted subscribers[string]
}

// NewCanvasService 创建 CanvasService 实例。
func NewCanvasService(canvasRepo repository.CanvasRepository, stateRepo repository.StateRepository) *CanvasService {
	if canvasRepo == nil || stateRepo == nil {
		panic("All repositories must be non-nil for CanvasService")
	}
	return &CanvasService{
		canvasRepo: canvasRepo,
		stateRepo:  stateRepo,
	}
}

// Subscribe 注册画布列表变更回调 (创建、删除后触发)，返回取消订阅函数。
func (s *CanvasService) Subscribe(fn func(ownerID string, canvases []domain.Canvas)) func() {
	return s.subs.add(fn)
}

// SubscribeDeleted 注册画布删除回调，回调参数为所有者和画布 ID，返回取消订阅函数。
func (s *CanvasService) SubscribeDeleted(fn func(ownerID, canvasID string)) func() {
	return s.deleted.add(fn)
}

// Create 创建新画布。宽高为 0 时使用默认的 30x30，像素尺寸为 0 时使用 15。
func (s *CanvasService) Create(ctx context.Context, ownerID string, width, height int, pixelSize float64) (*domain.Canvas, error) {
	if width == 0 {
		width = domain.DefaultCanvasWidth
	}
	if height == 0 {
		height = domain.DefaultCanvasHeight
	}
	if pixelSize == 0 {
		pixelSize = domain.DefaultPixelSize
	}
	if width < 1 || height < 1 || width > MaxCanvasSide || height > MaxCanvasSide || pixelSize < 0 || pixelSize > MaxPixelSize {
		return nil, ErrInvalidCanvas
	}

	canvas := &domain.Canvas{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		WidthPixels:  width,
		HeightPixels: height,
		PixelSize:    pixelSize,
	}
	logCtx := logrus.WithFields(logrus.Fields{"owner_id": ownerID, "canvas_id": canvas.ID})
	if err := canvas.SetModel(domain.CanvasModel{}); err != nil {
		logCtx.WithError(err).Error("Failed to encode empty canvas model")
		return nil, ErrInternalServer
	}
	if err := s.canvasRepo.Create(ctx, canvas); err != nil {
		logCtx.WithError(err).Error("Failed to save new canvas")
		return nil, ErrInternalServer
	}
	logCtx.WithFields(logrus.Fields{"width": width, "height": height}).Info("Canvas created")

	s.notifyList(ctx, ownerID)
	return canvas, nil
}

// List 返回所有者的全部画布。
func (s *CanvasService) List(ctx context.Context, ownerID string) ([]domain.Canvas, error) {
	canvases, err := s.canvasRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		logrus.WithField("owner_id", ownerID).WithError(err).Error("Failed to list canvases")
		return nil, ErrInternalServer
	}
	if canvases == nil {
		canvases = []domain.Canvas{}
	}
	return canvases, nil
}

// Get 返回画布元数据。不属于该所有者的画布视为不存在。
func (s *CanvasService) Get(ctx context.Context, ownerID, canvasID string) (*domain.Canvas, error) {
	logCtx := logrus.WithFields(logrus.Fields{"owner_id": ownerID, "canvas_id": canvasID})
	canvas, err := s.canvasRepo.FindByID(ctx, canvasID)
	if err != nil {
		if errors.Is(err, repository.ErrCanvasNotFound) {
			return nil, ErrCanvasNotFound
		}
		logCtx.WithError(err).Error("Failed to find canvas")
		return nil, ErrInternalServer
	}
	if canvas == nil || canvas.OwnerID != ownerID {
		logCtx.Warn("Canvas requested by a different owner")
		return nil, ErrCanvasNotFound
	}
	return canvas, nil
}

// Delete 删除画布及其缓存状态。
func (s *CanvasService) Delete(ctx context.Context, ownerID, canvasID string) error {
	if _, err := s.Get(ctx, ownerID, canvasID); err != nil {
		return err
	}
	logCtx := logrus.WithFields(logrus.Fields{"owner_id": ownerID, "canvas_id": canvasID})
	if err := s.canvasRepo.Delete(ctx, canvasID); err != nil {
		if errors.Is(err, repository.ErrCanvasNotFound) {
			return ErrCanvasNotFound
		}
		logCtx.WithError(err).Error("Failed to delete canvas")
		return ErrInternalServer
	}
	if err := s.stateRepo.CleanupCanvasState(ctx, canvasID); err != nil {
		logCtx.WithError(err).Warn("Failed to cleanup cached canvas state")
	}
	logCtx.Info("Canvas deleted")

	s.deleted.notify(ownerID, canvasID)
	s.notifyList(ctx, ownerID)
	return nil
}

// LoadModel 返回画布及其已保存的编辑模型，用于打开会话。
// 颜色损坏的像素回退到默认色；模型 JSON 整体损坏时返回错误，避免之后的保存覆盖原数据。
func (s *CanvasService) LoadModel(ctx context.Context, ownerID, canvasID string) (*domain.Canvas, domain.CanvasModel, error) {
	canvas, err := s.Get(ctx, ownerID, canvasID)
	if err != nil {
		return nil, domain.CanvasModel{}, err
	}
	model, err := canvas.ParseModel()
	if err != nil {
		logrus.WithFields(logrus.Fields{"owner_id": ownerID, "canvas_id": canvasID}).
			WithError(err).Error("Stored canvas model is corrupted")
		return nil, domain.CanvasModel{}, ErrInternalServer
	}
	return canvas, model, nil
}

// VisibleState 返回画布最近保存的可见像素。
// 正在编辑的画布可能有更新的状态，需要实时状态的调用方应优先读取会话。
func (s *CanvasService) VisibleState(ctx context.Context, ownerID, canvasID string) (*domain.Canvas, domain.BoardState, error) {
	canvas, err := s.Get(ctx, ownerID, canvasID)
	if err != nil {
		return nil, nil, err
	}
	board, err := s.StoredBoard(ctx, canvas)
	if err != nil {
		return nil, nil, err
	}
	return canvas, board, nil
}

// StoredBoard 返回已读取画布的保存状态。
// 实现 "缓存优先，数据库备用，回填缓存" 策略。
func (s *CanvasService) StoredBoard(ctx context.Context, canvas *domain.Canvas) (domain.BoardState, error) {
	logCtx := logrus.WithFields(logrus.Fields{"canvas_id": canvas.ID, "operation": "StoredBoard"})

	cached, revision, err := s.stateRepo.GetBoardState(ctx, canvas.ID)
	switch {
	case err == nil && revision >= canvas.Revision:
		logCtx.Debug("Board cache hit")
		return cached, nil
	case err == nil:
		logCtx.WithFields(logrus.Fields{"cached": revision, "stored": canvas.Revision}).Debug("Board cache is stale")
	case errors.Is(err, repository.ErrNotFound):
		logCtx.Debug("Board cache miss")
	default:
		logCtx.WithError(err).Warn("Failed to get board state from cache")
	}

	model, err := canvas.ParseModel()
	if err != nil {
		logCtx.WithError(err).Error("Failed to parse stored canvas model")
		return nil, ErrInternalServer
	}
	board := domain.NewBoardState(model.Visible())

	// 异步回填缓存
	go func(id string, state domain.BoardState, rev uint) {
		if _, err := s.stateRepo.SetBoardState(context.Background(), id, state, rev); err != nil {
			logrus.WithFields(logrus.Fields{"canvas_id": id, "revision": rev}).WithError(err).Warn("Failed to warm board cache")
		}
	}(canvas.ID, board, canvas.Revision)

	return board, nil
}

// PersistSnapshot 保存会话快照：模型写入数据库，可见状态写入缓存。
// 两处写入都以 revision 为条件，乱序到达的旧快照不会覆盖新数据。
func (s *CanvasService) PersistSnapshot(ctx context.Context, snapshot domain.CanvasSnapshot) error {
	logCtx := logrus.WithFields(logrus.Fields{"canvas_id": snapshot.CanvasID, "revision": snapshot.Revision})

	data, err := domain.EncodeCanvasModel(snapshot.Model)
	if err != nil {
		logCtx.WithError(err).Error("Failed to encode canvas model")
		return fmt.Errorf("encode canvas model: %w", err)
	}
	written, err := s.canvasRepo.UpdateModel(ctx, snapshot.CanvasID, snapshot.Revision, data)
	if err != nil {
		logCtx.WithError(err).Error("Failed to save canvas model")
		return err
	}
	if !written {
		// 存储中已有更新的 revision，或画布已被删除；缓存由更新的写入负责
		logCtx.Debug("Skipped stale canvas snapshot")
		return nil
	}

	board := snapshot.Board
	if board == nil {
		board = domain.NewBoardState(snapshot.Model.Visible())
	}
	if _, err := s.stateRepo.SetBoardState(ctx, snapshot.CanvasID, board, snapshot.Revision); err != nil {
		// 缓存失败不影响持久化结果
		logCtx.WithError(err).Warn("Failed to update board cache")
	}
	logCtx.Debug("Canvas snapshot persisted")
	return nil
}

func (s *CanvasService) notifyList(ctx context.Context, ownerID string) {
	canvases, err := s.canvasRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		logrus.WithField("owner_id", ownerID).WithError(err).Warn("Failed to reload canvas list for subscribers")
		return
	}
	s.subs.notify(ownerID, canvases)
}
