package timing

import "errors"

var (
	// ErrObservatoryNotRegistered indicates a TOA build for an unknown observatory.
	ErrObservatoryNotRegistered = errors.New("observatory not registered")
	// ErrObservatoryExists indicates a registration refused because overwrite is off.
	ErrObservatoryExists = errors.New("observatory already registered")
	// ErrParamNotFound indicates a timing-model parameter absent from the ephemeris.
	ErrParamNotFound = errors.New("timing parameter not found")
	// ErrInvalidParFile indicates an ephemeris file that cannot be parsed.
	ErrInvalidParFile = errors.New("invalid par file")
	// ErrNotBarycentered indicates event times that still need barycentric correction.
	ErrNotBarycentered = errors.New("event times are not barycentred")
)
