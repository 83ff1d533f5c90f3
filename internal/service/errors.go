package service

import "errors"

var (
	ErrCanvasNotFound = errors.New("canvas not found")
	ErrInvalidCanvas  = errors.New("invalid canvas dimensions")
	ErrOutOfBounds    = errors.New("pixel out of canvas bounds")
	ErrInvalidColor   = errors.New("invalid color")
	ErrInvalidAction  = errors.New("invalid action data")
	ErrInternalServer = errors.New("internal server error")
)
