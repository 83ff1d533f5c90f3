// Package mocks 提供 repository 接口的 testify mock，供 service 和 handler 测试使用。
package mocks

import (
	context "context"

	domain "pixeldraw/internal/domain"

	mock "github.com/stretchr/testify/mock"
)

// CanvasRepository is a mock type for the CanvasRepository type
type CanvasRepository struct {
	mock.Mock
}

// Create provides a mock function with given fields: ctx, canvas
func (_m *CanvasRepository) Create(ctx context.Context, canvas *domain.Canvas) error {
	ret := _m.Called(ctx, canvas)
	return ret.Error(0)
}

// FindByID provides a mock function with given fields: ctx, id
func (_m *CanvasRepository) FindByID(ctx context.Context, id string) (*domain.Canvas, error) {
	ret := _m.Called(ctx, id)

	var r0 *domain.Canvas
	if rf, ok := ret.Get(0).(func(context.Context, string) *domain.Canvas); ok {
		r0 = rf(ctx, id)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*domain.Canvas)
	}
	return r0, ret.Error(1)
}

// ListByOwner provides a mock function with given fields: ctx, ownerID
func (_m *CanvasRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Canvas, error) {
	ret := _m.Called(ctx, ownerID)

	var r0 []domain.Canvas
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]domain.Canvas)
	}
	return r0, ret.Error(1)
}

// Delete provides a mock function with given fields: ctx, id
func (_m *CanvasRepository) Delete(ctx context.Context, id string) error {
	ret := _m.Called(ctx, id)
	return ret.Error(0)
}

// UpdateModel provides a mock function with given fields: ctx, id, revision, model
func (_m *CanvasRepository) UpdateModel(ctx context.Context, id string, revision uint, model string) (bool, error) {
	ret := _m.Called(ctx, id, revision, model)
	return ret.Bool(0), ret.Error(1)
}
