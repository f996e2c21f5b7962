package events

import "errors"

var (
	// ErrColumnNotFound indicates a column absent from a table.
	ErrColumnNotFound = errors.New("column not found")
	// ErrColumnLength indicates a column whose length differs from the table's row count.
	ErrColumnLength = errors.New("column length does not match table rows")
	// ErrKeyNotFound indicates a header keyword absent from a table.
	ErrKeyNotFound = errors.New("header key not found")
	// ErrFileExists indicates a write target exists and overwrite is disabled.
	ErrFileExists = errors.New("file already exists")
	// ErrInvalidObservation indicates an observation missing its events or spacecraft data.
	ErrInvalidObservation = errors.New("invalid observation")
	// ErrExtensionNotFound indicates a named extension absent from a container.
	ErrExtensionNotFound = errors.New("extension not found")
	// ErrInvalidGTI indicates good time intervals with mismatched or reversed bounds.
	ErrInvalidGTI = errors.New("invalid good time intervals")
	// ErrUnsupportedRegion indicates a data-subspace keyword that cannot be interpreted.
	ErrUnsupportedRegion = errors.New("unsupported data subspace")
)
