package batch

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNoBins indicates a discovery root without any matching bin directory.
	ErrNoBins = errors.New("no bin directories found")
	// ErrConfigNotFound indicates a bin directory without a configuration file.
	ErrConfigNotFound = errors.New("no configuration file in bin directory")
	// ErrAmbiguousConfig indicates a bin directory with several matching configuration files.
	ErrAmbiguousConfig = errors.New("several configuration files in bin directory")
	// ErrWorkspace indicates the bin directory could not be entered or left.
	ErrWorkspace = errors.New("bin workspace unavailable")
)

// Stages of the per-bin procedure, reported in BinError.Stage.
const (
	StageDiscover  = "discover"
	StageWorkspace = "workspace"
	StageOpen      = "open"
	StageSetup     = "setup"
	StagePrefit    = "prefit"
	StageSpectral  = "spectral"
	StageFree      = "free"
	StageFit       = "fit"
	StagePostfit   = "postfit"
	StageWriteROI  = "write_roi"
	StageSED       = "sed"
)

// BinError reports the failure of one bin.
type BinError struct {
	Index int
	Dir   string
	Stage string
	Err   error
}

func (e *BinError) Error() string {
	return fmt.Sprintf("bin %d (%s) %s: %v", e.Index, e.Dir, e.Stage, e.Err)
}

func (e *BinError) Unwrap() error { return e.Err }

// Timeout reports whether the bin ran out of time.
func (e *BinError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}
