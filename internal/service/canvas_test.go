package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pixeldraw/internal/domain"
	"pixeldraw/internal/repository"
	"pixeldraw/internal/repository/mocks"
	"pixeldraw/internal/service"
)

func newCanvasService() (*service.CanvasService, *mocks.CanvasRepository, *mocks.StateRepository) {
	canvasRepo := new(mocks.CanvasRepository)
	stateRepo := new(mocks.StateRepository)
	return service.NewCanvasService(canvasRepo, stateRepo), canvasRepo, stateRepo
}

func storedCanvas(t *testing.T, model domain.CanvasModel, revision uint) *domain.Canvas {
	t.Helper()
	c := &domain.Canvas{ID: "c1", OwnerID: "alice", WidthPixels: 30, HeightPixels: 30, PixelSize: 15, Revision: revision}
	require.NoError(t, c.SetModel(model))
	return c
}

func TestNewCanvasService_PanicsOnNil(t *testing.T) {
	assert.Panics(t, func() { service.NewCanvasService(nil, new(mocks.StateRepository)) })
	assert.Panics(t, func() { service.NewCanvasService(new(mocks.CanvasRepository), nil) })
}

func TestCanvasService_Create_Defaults(t *testing.T) {
	// Arrange
	svc, canvasRepo, _ := newCanvasService()
	ctx := context.Background()

	canvasRepo.On("Create", ctx, mock.MatchedBy(func(c *domain.Canvas) bool {
		return c.OwnerID == "alice" && c.WidthPixels == 30 && c.HeightPixels == 30 && c.PixelSize == 15
	})).Return(nil).Once()
	canvasRepo.On("ListByOwner", ctx, "alice").Return([]domain.Canvas{{ID: "x"}}, nil).Once()

	var notified []domain.Canvas
	unsubscribe := svc.Subscribe(func(ownerID string, canvases []domain.Canvas) {
		assert.Equal(t, "alice", ownerID)
		notified = canvases
	})
	defer unsubscribe()

	// Act
	canvas, err := svc.Create(ctx, "alice", 0, 0, 0)

	// Assert
	require.NoError(t, err)
	assert.NotEmpty(t, canvas.ID, "应生成 uuid")
	model, err := canvas.ParseModel()
	require.NoError(t, err)
	assert.True(t, model.IsEmpty())
	assert.Len(t, notified, 1, "创建后应通知列表订阅者")
	canvasRepo.AssertExpectations(t)
}

func TestCanvasService_Create_Invalid(t *testing.T) {
	svc, canvasRepo, _ := newCanvasService()
	ctx := context.Background()

	cases := []struct {
		name          string
		width, height int
		pixelSize     float64
	}{
		{"negative width", -1, 10, 15},
		{"too tall", 10, service.MaxCanvasSide + 1, 15},
		{"negative pixel size", 10, 10, -3},
		{"huge pixel size", 10, 10, service.MaxPixelSize + 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, "alice", tc.width, tc.height, tc.pixelSize)
			assert.ErrorIs(t, err, service.ErrInvalidCanvas)
		})
	}
	canvasRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCanvasService_Create_SaveFails(t *testing.T) {
	svc, canvasRepo, _ := newCanvasService()
	ctx := context.Background()
	canvasRepo.On("Create", ctx, mock.AnythingOfType("*domain.Canvas")).Return(repository.ErrDuplicateEntry).Once()

	_, err := svc.Create(ctx, "alice", 8, 8, 10)

	assert.ErrorIs(t, err, service.ErrInternalServer)
	canvasRepo.AssertNotCalled(t, "ListByOwner", mock.Anything, mock.Anything)
}

func TestCanvasService_List_NilBecomesEmpty(t *testing.T) {
	svc, canvasRepo, _ := newCanvasService()
	ctx := context.Background()
	canvasRepo.On("ListByOwner", ctx, "bob").Return(nil, nil).Once()

	canvases, err := svc.List(ctx, "bob")

	require.NoError(t, err)
	assert.NotNil(t, canvases)
	assert.Empty(t, canvases)
}

func TestCanvasService_Get_OtherOwner(t *testing.T) {
	svc, canvasRepo, _ := newCanvasService()
	ctx := context.Background()
	canvasRepo.On("FindByID", ctx, "c1").Return(storedCanvas(t, domain.CanvasModel{}, 0), nil).Once()

	_, err := svc.Get(ctx, "mallory", "c1")

	assert.ErrorIs(t, err, service.ErrCanvasNotFound)
}

func TestCanvasService_Get_RepositoryErrors(t *testing.T) {
	svc, canvasRepo, _ := newCanvasService()
	ctx := context.Background()
	canvasRepo.On("FindByID", ctx, "missing").Return(nil, repository.ErrCanvasNotFound).Once()
	canvasRepo.On("FindByID", ctx, "broken").Return(nil, errors.New("connection reset")).Once()

	_, err := svc.Get(ctx, "alice", "missing")
	assert.ErrorIs(t, err, service.ErrCanvasNotFound)

	_, err = svc.Get(ctx, "alice", "broken")
	assert.ErrorIs(t, err, service.ErrInternalServer)
}

func TestCanvasService_Delete_CleansCacheAndNotifies(t *testing.T) {
	svc, canvasRepo, stateRepo := newCanvasService()
	ctx := context.Background()

	canvasRepo.On("FindByID", ctx, "c1").Return(storedCanvas(t, domain.CanvasModel{}, 0), nil).Once()
	canvasRepo.On("Delete", ctx, "c1").Return(nil).Once()
	canvasRepo.On("ListByOwner", ctx, "alice").Return([]domain.Canvas{}, nil).Once()
	// 缓存清理失败只记录日志
	stateRepo.On("CleanupCanvasState", ctx, "c1").Return(errors.New("redis down")).Once()

	calls := 0
	svc.Subscribe(func(string, []domain.Canvas) { calls++ })
	var deleted []string
	svc.SubscribeDeleted(func(ownerID, canvasID string) { deleted = append(deleted, ownerID+"/"+canvasID) })

	err := svc.Delete(ctx, "alice", "c1")

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"alice/c1"}, deleted)
	canvasRepo.AssertExpectations(t)
	stateRepo.AssertExpectations(t)
}

func TestCanvasService_Delete_OtherOwner(t *testing.T) {
	svc, canvasRepo, stateRepo := newCanvasService()
	ctx := context.Background()
	canvasRepo.On("FindByID", ctx, "c1").Return(storedCanvas(t, domain.CanvasModel{}, 0), nil).Once()

	deleted := 0
	svc.SubscribeDeleted(func(string, string) { deleted++ })

	err := svc.Delete(ctx, "mallory", "c1")

	assert.ErrorIs(t, err, service.ErrCanvasNotFound)
	assert.Zero(t, deleted)
	canvasRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	stateRepo.AssertNotCalled(t, "CleanupCanvasState", mock.Anything, mock.Anything)
}

func TestCanvasService_LoadModel(t *testing.T) {
	svc, canvasRepo, _ := newCanvasService()
	ctx := context.Background()

	red := domain.Color{R: 255, A: 255}
	model := domain.CanvasModel{
		History: []domain.Stroke{domain.NewStroke([]domain.PixelState{{X: 1, Y: 2, Color: red}})},
	}
	canvasRepo.On("FindByID", ctx, "c1").Return(storedCanvas(t, model, 3), nil).Once()

	canvas, loaded, err := svc.LoadModel(ctx, "alice", "c1")

	require.NoError(t, err)
	assert.Equal(t, uint(3), canvas.Revision)
	require.Len(t, loaded.History, 1)
	assert.Equal(t, []domain.PixelState{{X: 1, Y: 2, Color: red}}, loaded.History[0].Pixels())
}

func TestCanvasService_LoadModel_Corrupted(t *testing.T) {
	svc, canvasRepo, _ := newCanvasService()
	ctx := context.Background()
	corrupted := &domain.Canvas{ID: "c1", OwnerID: "alice", WidthPixels: 4, HeightPixels: 4, Model: "{not json"}
	canvasRepo.On("FindByID", ctx, "c1").Return(corrupted, nil).Once()

	_, _, err := svc.LoadModel(ctx, "alice", "c1")

	assert.ErrorIs(t, err, service.ErrInternalServer)
}

func TestCanvasService_VisibleState_CacheHit(t *testing.T) {
	svc, canvasRepo, stateRepo := newCanvasService()
	ctx := context.Background()
	canvasRepo.On("FindByID", ctx, "c1").Return(storedCanvas(t, domain.CanvasModel{}, 4), nil).Once()
	cached := domain.BoardState{"1:1": "#FF0000"}
	stateRepo.On("GetBoardState", ctx, "c1").Return(cached, uint(4), nil).Once()

	_, board, err := svc.VisibleState(ctx, "alice", "c1")

	require.NoError(t, err)
	assert.Equal(t, cached, board)
	stateRepo.AssertNotCalled(t, "SetBoardState", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCanvasService_VisibleState_StaleCacheFallsBackToModel(t *testing.T) {
	svc, canvasRepo, stateRepo := newCanvasService()
	ctx := context.Background()

	blue := domain.Color{B: 255, A: 255}
	model := domain.CanvasModel{
		History: []domain.Stroke{domain.NewStroke([]domain.PixelState{{X: 0, Y: 0, Color: blue}})},
	}
	canvasRepo.On("FindByID", ctx, "c1").Return(storedCanvas(t, model, 5), nil).Once()
	stateRepo.On("GetBoardState", ctx, "c1").Return(domain.BoardState{"9:9": "#000000"}, uint(2), nil).Once()

	warmed := make(chan uint, 1)
	stateRepo.On("SetBoardState", mock.Anything, "c1", domain.BoardState{"0:0": "#0000FF"}, uint(5)).
		Run(func(args mock.Arguments) { warmed <- args.Get(3).(uint) }).
		Return(true, nil).Once()

	_, board, err := svc.VisibleState(ctx, "alice", "c1")

	require.NoError(t, err)
	assert.Equal(t, domain.BoardState{"0:0": "#0000FF"}, board)
	assert.Equal(t, uint(5), <-warmed, "应以数据库 revision 异步回填缓存")
}

func TestCanvasService_VisibleState_CacheMiss(t *testing.T) {
	svc, canvasRepo, stateRepo := newCanvasService()
	ctx := context.Background()
	canvasRepo.On("FindByID", ctx, "c1").Return(storedCanvas(t, domain.CanvasModel{}, 0), nil).Once()
	stateRepo.On("GetBoardState", ctx, "c1").Return(nil, uint(0), repository.ErrNotFound).Once()
	warmed := make(chan struct{})
	stateRepo.On("SetBoardState", mock.Anything, "c1", domain.BoardState{}, uint(0)).
		Run(func(mock.Arguments) { close(warmed) }).
		Return(true, nil).Once()

	_, board, err := svc.VisibleState(ctx, "alice", "c1")

	require.NoError(t, err)
	assert.Empty(t, board)
	<-warmed
}

func TestCanvasService_PersistSnapshot(t *testing.T) {
	svc, canvasRepo, stateRepo := newCanvasService()
	ctx := context.Background()

	green := domain.Color{G: 255, A: 255}
	snapshot := domain.CanvasSnapshot{
		CanvasID: "c1",
		Revision: 7,
		Model: domain.CanvasModel{
			InProgress: []domain.PixelState{{X: 3, Y: 4, Color: green}},
		},
	}
	canvasRepo.On("UpdateModel", ctx, "c1", uint(7), mock.MatchedBy(func(data string) bool {
		model, err := domain.DecodeCanvasModel(data)
		return err == nil && len(model.InProgress) == 1 && model.InProgress[0].Color == green
	})).Return(true, nil).Once()
	// Board 为空时由模型计算
	stateRepo.On("SetBoardState", ctx, "c1", domain.BoardState{"3:4": "#00FF00"}, uint(7)).Return(true, nil).Once()

	err := svc.PersistSnapshot(ctx, snapshot)

	require.NoError(t, err)
	canvasRepo.AssertExpectations(t)
	stateRepo.AssertExpectations(t)
}

func TestCanvasService_PersistSnapshot_StaleIsNotAnError(t *testing.T) {
	svc, canvasRepo, stateRepo := newCanvasService()
	ctx := context.Background()
	canvasRepo.On("UpdateModel", ctx, "c1", uint(2), mock.AnythingOfType("string")).Return(false, nil).Once()

	err := svc.PersistSnapshot(ctx, domain.CanvasSnapshot{CanvasID: "c1", Revision: 2, Board: domain.BoardState{}})

	assert.NoError(t, err)
	stateRepo.AssertNotCalled(t, "SetBoardState", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCanvasService_PersistSnapshot_DeletedCanvasLeavesNoCache(t *testing.T) {
	svc, canvasRepo, stateRepo := newCanvasService()
	ctx := context.Background()
	// 行已被删除，条件更新匹配不到任何记录
	canvasRepo.On("UpdateModel", ctx, "deleted", uint(3), mock.AnythingOfType("string")).Return(false, nil).Once()

	err := svc.PersistSnapshot(ctx, domain.CanvasSnapshot{
		CanvasID: "deleted",
		Revision: 3,
		Board:    domain.BoardState{"0:0": "#FF0000"},
	})

	require.NoError(t, err)
	canvasRepo.AssertExpectations(t)
	stateRepo.AssertNotCalled(t, "SetBoardState", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCanvasService_PersistSnapshot_DatabaseError(t *testing.T) {
	svc, canvasRepo, stateRepo := newCanvasService()
	ctx := context.Background()
	dbErr := errors.New("deadlock")
	canvasRepo.On("UpdateModel", ctx, "c1", uint(2), mock.AnythingOfType("string")).Return(false, dbErr).Once()

	err := svc.PersistSnapshot(ctx, domain.CanvasSnapshot{CanvasID: "c1", Revision: 2})

	assert.ErrorIs(t, err, dbErr, "数据库错误需返回，以便任务重试")
	stateRepo.AssertNotCalled(t, "SetBoardState", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
