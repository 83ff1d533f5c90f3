package mocks

import (
	context "context"
	time "time"

	domain "pixeldraw/internal/domain"

	mock "github.com/stretchr/testify/mock"
)

// StateRepository is a mock type for the StateRepository type
type StateRepository struct {
	mock.Mock
}

// GetBoardState provides a mock function with given fields: ctx, canvasID
func (_m *StateRepository) GetBoardState(ctx context.Context, canvasID string) (domain.BoardState, uint, error) {
	ret := _m.Called(ctx, canvasID)

	var r0 domain.BoardState
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(domain.BoardState)
	}
	return r0, ret.Get(1).(uint), ret.Error(2)
}

// SetBoardState provides a mock function with given fields: ctx, canvasID, state, revision
func (_m *StateRepository) SetBoardState(ctx context.Context, canvasID string, state domain.BoardState, revision uint) (bool, error) {
	ret := _m.Called(ctx, canvasID, state, revision)
	return ret.Bool(0), ret.Error(1)
}

// CleanupCanvasState provides a mock function with given fields: ctx, canvasID
func (_m *StateRepository) CleanupCanvasState(ctx context.Context, canvasID string) error {
	ret := _m.Called(ctx, canvasID)
	return ret.Error(0)
}

// CheckRateLimit provides a mock function with given fields: ctx, key, limit, window
func (_m *StateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	ret := _m.Called(ctx, key, limit, window)
	return ret.Bool(0), ret.Error(1)
}
