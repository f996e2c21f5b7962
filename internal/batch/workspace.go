package batch

import (
	"fmt"
	"os"
	"sync"
)

// Workspace roots one bin's work in its directory.
type Workspace interface {
	// Enter prepares dir and returns a function that undoes it.
	Enter(dir string) (leave func() error, err error)
}

// RootedWorkspace checks the directory and leaves the process working
// directory alone; the engine is given the directory explicitly.
type RootedWorkspace struct{}

func (RootedWorkspace) Enter(dir string) (func() error, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWorkspace, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrWorkspace, dir)
	}
	return func() error { return nil }, nil
}

// chdirMu guards the process working directory.
var chdirMu sync.Mutex

// ProcessWorkspace changes the process working directory to the bin for
// engines that resolve paths against it. The previous directory is restored
// on leave; the change is held under a process-wide lock until then.
type ProcessWorkspace struct{}

func (ProcessWorkspace) Enter(dir string) (func() error, error) {
	chdirMu.Lock()
	prev, err := os.Getwd()
	if err != nil {
		chdirMu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrWorkspace, err)
	}
	if err := os.Chdir(dir); err != nil {
		chdirMu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrWorkspace, err)
	}
	return func() error {
		defer chdirMu.Unlock()
		if err := os.Chdir(prev); err != nil {
			return fmt.Errorf("%w: restore %s: %v", ErrWorkspace, prev, err)
		}
		return nil
	}, nil
}
