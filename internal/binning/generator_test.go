package binning_test

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/rpggio/phasefold/internal/analysis"
	"github.com/rpggio/phasefold/internal/axis"
	"github.com/rpggio/phasefold/internal/binning"
	"github.com/stretchr/testify/require"
)

const base = `data:
  evfile: ../ft1_phased.db
selection:
  emin: 100
  phasemin: null
  phasemax: null
`

func baseDoc(t *testing.T) *analysis.Document {
	t.Helper()
	doc, err := analysis.Parse([]byte(base))
	require.NoError(t, err)
	return doc
}

func TestName(t *testing.T) {
	require.Equal(t, "phase_0.0-0.5", binning.Name("phase", 0, 0.5))
	require.Equal(t, "phase_0.5-1.0", binning.Name("phase", 0.5, 1))
	require.Equal(t, "orbit_0.3333333333333333-0.6666666666666666", binning.Name("orbit", 1.0/3, 2.0/3))
	require.Equal(t, "phase_0.0-1e-05", binning.Name("phase", 0, 1e-5))
}

func TestGenerate_TwoBins(t *testing.T) {
	root := t.TempDir()
	ax, err := axis.FromBounds(0, 1, 2)
	require.NoError(t, err)

	jobs, err := binning.NewGenerator(nil).Generate(baseDoc(t), ax, root)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	require.Equal(t, "phase_0.0-0.5", jobs[0].Name)
	require.Equal(t, "phase_0.5-1.0", jobs[1].Name)
	require.Equal(t, filepath.Join(root, "phase_0.5-1.0", "phase_0.5-1.0.yaml"), jobs[1].ConfigPath)

	for _, job := range jobs {
		doc, err := analysis.Load(job.ConfigPath)
		require.NoError(t, err)
		lo, ok := doc.Float(binning.SelectionSection, binning.PhaseMinKey)
		require.True(t, ok)
		hi, ok := doc.Float(binning.SelectionSection, binning.PhaseMaxKey)
		require.True(t, ok)
		require.Equal(t, job.EdgeMin, lo)
		require.Equal(t, job.EdgeMax, hi)

		emin, ok := doc.Float(binning.SelectionSection, "emin")
		require.True(t, ok)
		require.Equal(t, 100.0, emin)
	}

	b, err := os.ReadFile(jobs[0].ConfigPath)
	require.NoError(t, err)
	require.Equal(t, "data:\n  evfile: ../ft1_phased.db\nselection:\n  emin: 100\n  phasemin: 0.0\n  phasemax: 0.5\n", string(b))
}

func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		out[rel] = string(b)
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestGenerate_Idempotent(t *testing.T) {
	root := t.TempDir()
	ax, err := axis.FromBounds(0.1, 0.9, 4, axis.WithName("phase"))
	require.NoError(t, err)
	gen := binning.NewGenerator(nil)

	first, err := gen.Generate(baseDoc(t), ax, root)
	require.NoError(t, err)
	before := snapshot(t, root)

	second, err := gen.Generate(baseDoc(t), ax, root)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, before, snapshot(t, root))

	dirs, err := os.ReadDir(root)
	require.NoError(t, err)
	names := make([]string, len(dirs))
	for i, d := range dirs {
		names[i] = d.Name()
	}
	want := make([]string, len(first))
	for i, j := range first {
		want[i] = j.Name
	}
	sort.Strings(want)
	require.Equal(t, want, names)
}

func TestGenerate_BaseUnchanged(t *testing.T) {
	doc := baseDoc(t)
	ax, err := axis.FromBounds(0, 1, 2)
	require.NoError(t, err)
	_, err = binning.NewGenerator(nil).Generate(doc, ax, t.TempDir())
	require.NoError(t, err)

	v, ok := doc.Get(binning.SelectionSection, binning.PhaseMinKey)
	require.True(t, ok)
	require.Nil(t, v)
}

func TestPlan_AbsolutePhase(t *testing.T) {
	ax, err := axis.FromEdges([]float64{0.25, 0.5}, []float64{0.5, 0.75})
	require.NoError(t, err)

	rel := binning.NewGenerator(nil).Plan(ax, "out")
	require.Equal(t, "phase_0.0-0.25", rel[0].Name)
	require.Equal(t, 0.5, rel[1].EdgeMax)

	abs := binning.NewGenerator(nil, binning.UseAbsolutePhase()).Plan(ax, "out")
	require.Equal(t, "phase_0.25-0.5", abs[0].Name)
	require.Equal(t, 0.75, abs[1].EdgeMax)
	require.Equal(t, filepath.Join("out", "phase_0.25-0.5"), abs[0].Dir)
}
