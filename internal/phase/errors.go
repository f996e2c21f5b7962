package phase

import (
	"errors"

	"github.com/rpggio/phasefold/internal/events"
)

var (
	// ErrInvalidObservation indicates a computation requested for an incomplete observation.
	ErrInvalidObservation = events.ErrInvalidObservation
	// ErrEphemerisNotFound indicates an ephemeris path that is not a regular file.
	ErrEphemerisNotFound = errors.New("ephemeris file not found")
	// ErrColumnExists indicates the target column is present and the request keeps existing data.
	ErrColumnExists = errors.New("column already exists")
	// ErrLengthMismatch indicates a phase count that differs from the event count.
	ErrLengthMismatch = errors.New("phase count does not match events")
	// ErrNonFinitePhase indicates the timing model produced NaN or infinite phases.
	ErrNonFinitePhase = errors.New("timing model produced a non-finite phase")
)
