package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rpggio/phasefold/internal/analysis"
	"github.com/rpggio/phasefold/internal/binning"
)

// DefaultPattern matches the configuration files the generator writes.
const DefaultPattern = "*" + binning.ConfigExt

// Discover lists the bins under root: every directory whose name starts with
// dirPrefix, paired with the single file in it matching pattern. The
// selection bounds are read back from each configuration. When every bin
// carries them, bins are ordered by lower edge (name breaks ties) so that
// Index matches the axis position; otherwise they stay in lexical order.
// Returned paths are absolute.
func Discover(root, dirPrefix, pattern string) ([]binning.Job, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("config pattern %q: %w", pattern, err)
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve bin root: %w", err)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read bin root: %w", err)
	}

	var jobs []binning.Job
	bounded := true
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), dirPrefix) {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		job := binning.Job{Index: len(jobs), Name: entry.Name(), Dir: dir}

		cfg, err := findConfig(dir, pattern)
		if err != nil {
			return nil, &BinError{Index: job.Index, Dir: dir, Stage: StageDiscover, Err: err}
		}
		job.ConfigPath = cfg
		doc, err := analysis.Load(cfg)
		if err != nil {
			return nil, &BinError{Index: job.Index, Dir: dir, Stage: StageDiscover, Err: err}
		}
		var okMin, okMax bool
		job.EdgeMin, okMin = doc.Float(binning.SelectionSection, binning.PhaseMinKey)
		job.EdgeMax, okMax = doc.Float(binning.SelectionSection, binning.PhaseMaxKey)
		bounded = bounded && okMin && okMax
		jobs = append(jobs, job)
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoBins, filepath.Join(root, dirPrefix+"*"))
	}
	if bounded {
		sort.SliceStable(jobs, func(i, j int) bool {
			if jobs[i].EdgeMin != jobs[j].EdgeMin {
				return jobs[i].EdgeMin < jobs[j].EdgeMin
			}
			return jobs[i].Name < jobs[j].Name
		})
		for i := range jobs {
			jobs[i].Index = i
		}
	}
	return jobs, nil
}

func findConfig(dir, pattern string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return "", err
	}
	var files []string
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && info.Mode().IsRegular() {
			files = append(files, m)
		}
	}
	switch len(files) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrConfigNotFound, pattern)
	case 1:
		return files[0], nil
	}
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = filepath.Base(f)
	}
	return "", fmt.Errorf("%w: %s", ErrAmbiguousConfig, strings.Join(names, ", "))
}
