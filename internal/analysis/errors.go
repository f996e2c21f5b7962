package analysis

import "errors"

var (
	// ErrInvalidDocument indicates YAML that is not a single top-level mapping.
	ErrInvalidDocument = errors.New("invalid analysis config")
	// ErrNotMapping indicates an entry added under a section that is not a mapping.
	ErrNotMapping = errors.New("section is not a mapping")
	// ErrInvalidPlan indicates an analysis plan missing a required setting.
	ErrInvalidPlan = errors.New("invalid analysis plan")
)
