package run

import "errors"

var (
	// ErrRunNotFound indicates the run doesn't exist.
	ErrRunNotFound = errors.New("run not found")
	// ErrInvalidInput indicates invalid run input.
	ErrInvalidInput = errors.New("invalid run input")
)
