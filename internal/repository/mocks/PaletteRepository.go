package mocks

import (
	context "context"

	mock "github.com/stretchr/testify/mock"
)

// PaletteRepository is a mock type for the PaletteRepository type
type PaletteRepository struct {
	mock.Mock
}

// Load provides a mock function with given fields: ctx, ownerID
func (_m *PaletteRepository) Load(ctx context.Context, ownerID string) ([]string, error) {
	ret := _m.Called(ctx, ownerID)

	var r0 []string
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]string)
	}
	return r0, ret.Error(1)
}

// Replace provides a mock function with given fields: ctx, ownerID, colors
func (_m *PaletteRepository) Replace(ctx context.Context, ownerID string, colors []string) error {
	ret := _m.Called(ctx, ownerID, colors)
	return ret.Error(0)
}
