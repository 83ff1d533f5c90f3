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

func TestPaletteService_Colors_DefaultsWhenMissing(t *testing.T) {
	repo := new(mocks.PaletteRepository)
	svc := service.NewPaletteService(repo)
	ctx := context.Background()
	repo.On("Load", ctx, "alice").Return(nil, repository.ErrPaletteNotFound).Once()
	repo.On("Load", ctx, "bob").Return(nil, errors.New("timeout")).Once()

	assert.Equal(t, domain.DefaultPalette(), svc.Colors(ctx, "alice"))
	assert.Equal(t, domain.DefaultPalette(), svc.Colors(ctx, "bob"), "读取失败也返回默认调色板")
	assert.Len(t, domain.DefaultPalette(), 11)
}

func TestPaletteService_Colors_BadEntryFallsBack(t *testing.T) {
	repo := new(mocks.PaletteRepository)
	svc := service.NewPaletteService(repo)
	ctx := context.Background()
	repo.On("Load", ctx, "alice").Return([]string{"#FF0000", "zzz"}, nil).Once()

	colors := svc.Colors(ctx, "alice")

	assert.Equal(t, []domain.Color{domain.RGB(255, 0, 0), domain.DefaultColor}, colors)
}

func TestPaletteService_Append(t *testing.T) {
	repo := new(mocks.PaletteRepository)
	svc := service.NewPaletteService(repo)
	ctx := context.Background()
	repo.On("Load", ctx, "alice").Return([]string{"#FFFFFF"}, nil).Once()
	repo.On("Replace", ctx, "alice", []string{"#FFFFFF", "#11223380"}).Return(nil).Once()

	var notified []domain.Color
	svc.Subscribe(func(_ string, colors []domain.Color) { notified = colors })

	colors, err := svc.Append(ctx, "alice", domain.Color{R: 0x11, G: 0x22, B: 0x33, A: 0x80})

	require.NoError(t, err)
	assert.Len(t, colors, 2)
	assert.Equal(t, colors, notified)
	repo.AssertExpectations(t)
}

func TestPaletteService_Replace_AllMatches(t *testing.T) {
	repo := new(mocks.PaletteRepository)
	svc := service.NewPaletteService(repo)
	ctx := context.Background()
	repo.On("Load", ctx, "alice").Return([]string{"#FF0000", "#00FF00", "#FF0000"}, nil).Once()
	repo.On("Replace", ctx, "alice", []string{"#0000FF", "#00FF00", "#0000FF"}).Return(nil).Once()

	colors, err := svc.Replace(ctx, "alice", domain.RGB(255, 0, 0), domain.RGB(0, 0, 255))

	require.NoError(t, err)
	assert.Equal(t, domain.RGB(0, 0, 255), colors[2])
	repo.AssertExpectations(t)
}

func TestPaletteService_Update_StartsFromDefaults(t *testing.T) {
	repo := new(mocks.PaletteRepository)
	svc := service.NewPaletteService(repo)
	ctx := context.Background()
	repo.On("Load", ctx, "alice").Return(nil, repository.ErrPaletteNotFound).Once()
	repo.On("Replace", ctx, "alice", []string{"#123456"}).Return(nil).Once()

	colors, err := svc.Update(ctx, "alice", []domain.Color{domain.RGB(0x12, 0x34, 0x56)})

	require.NoError(t, err)
	assert.Len(t, colors, 1)
}

func TestPaletteService_SaveFails(t *testing.T) {
	repo := new(mocks.PaletteRepository)
	svc := service.NewPaletteService(repo)
	ctx := context.Background()
	repo.On("Load", ctx, "alice").Return([]string{"#FFFFFF"}, nil).Once()
	repo.On("Replace", ctx, "alice", mock.Anything).Return(errors.New("disk full")).Once()

	called := false
	svc.Subscribe(func(string, []domain.Color) { called = true })

	_, err := svc.Append(ctx, "alice", domain.RGB(1, 2, 3))

	assert.ErrorIs(t, err, service.ErrInternalServer)
	assert.False(t, called, "保存失败时不应通知订阅者")
}

func TestPaletteService_Unsubscribe(t *testing.T) {
	repo := new(mocks.PaletteRepository)
	svc := service.NewPaletteService(repo)
	ctx := context.Background()
	repo.On("Load", ctx, "alice").Return([]string{}, nil)
	repo.On("Replace", ctx, "alice", mock.Anything).Return(nil)

	calls := 0
	unsubscribe := svc.Subscribe(func(string, []domain.Color) { calls++ })

	_, err := svc.Append(ctx, "alice", domain.RGB(1, 1, 1))
	require.NoError(t, err)
	unsubscribe()
	unsubscribe() // 重复调用无副作用
	_, err = svc.Append(ctx, "alice", domain.RGB(2, 2, 2))
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
}
