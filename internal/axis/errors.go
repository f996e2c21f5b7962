package axis

import "errors"

var (
	// ErrInvalidAxis indicates bounds, bin count or edges that cannot form an axis.
	ErrInvalidAxis = errors.New("invalid phase axis")
	// ErrOverlap indicates an interval starting before the previous one ends.
	ErrOverlap = errors.New("phase intervals must not overlap")
	// ErrNotContiguous indicates a unified edge sequence was requested for a gapped axis.
	ErrNotContiguous = errors.New("phase axis is not contiguous")
)
