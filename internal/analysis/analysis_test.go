package analysis_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rpggio/phasefold/internal/analysis"
	"github.com/stretchr/testify/require"
)

const baseConfig = `# fermipy configuration
data:
  evfile: ft1_phased.db
  scfile: ft2.fits
selection:
  emin: 100
  emax: 300000
  phasemin: 0
  target: PSR J0835-4510
model:
  galdiff: gll_iem_v07.fits
`

func TestDocument_AddEntryAndGet(t *testing.T) {
	doc, err := analysis.Parse([]byte(baseConfig))
	require.NoError(t, err)

	require.NoError(t, doc.AddEntry("selection", "phasemin", 0.25))
	require.NoError(t, doc.AddEntry("selection", "phasemax", 0.5))
	require.NoError(t, doc.AddEntry("gtlike", "edisp", true))

	v, ok := doc.Float("selection", "phasemin")
	require.True(t, ok)
	require.Equal(t, 0.25, v)

	emin, ok := doc.Float("selection", "emin")
	require.True(t, ok)
	require.Equal(t, 100.0, emin)

	target, ok := doc.Get("selection", "target")
	require.True(t, ok)
	require.Equal(t, "PSR J0835-4510", target)

	_, ok = doc.Get("selection", "nope")
	require.False(t, ok)

	out, err := doc.Bytes()
	require.NoError(t, err)
	require.Equal(t, `# fermipy configuration
data:
  evfile: ft1_phased.db
  scfile: ft2.fits
selection:
  emin: 100
  emax: 300000
  phasemin: 0.25
  target: PSR J0835-4510
  phasemax: 0.5
model:
  galdiff: gll_iem_v07.fits
gtlike:
  edisp: true
`, string(out))
}

func TestDocument_AddEntryNotMapping(t *testing.T) {
	doc, err := analysis.Parse([]byte("selection: 3\n"))
	require.NoError(t, err)
	require.ErrorIs(t, doc.AddEntry("selection", "phasemin", 0.0), analysis.ErrNotMapping)
}

func TestDocument_FloatsStayFloats(t *testing.T) {
	doc, err := analysis.Parse(nil)
	require.NoError(t, err)
	require.NoError(t, doc.AddEntry("selection", "phasemin", 0.0))
	require.NoError(t, doc.AddEntry("selection", "phasemax", 1.0))

	out, err := doc.Bytes()
	require.NoError(t, err)
	require.Equal(t, "selection:\n  phasemin: 0.0\n  phasemax: 1.0\n", string(out))

	back, err := analysis.Parse(out)
	require.NoError(t, err)
	v, ok := back.Get("selection", "phasemax")
	require.True(t, ok)
	require.IsType(t, float64(0), v)
}

func TestDocument_CloneIsIndependent(t *testing.T) {
	doc, err := analysis.Parse([]byte(baseConfig))
	require.NoError(t, err)
	clone := doc.Clone()
	require.NoError(t, clone.AddEntry("selection", "phasemin", 0.75))

	v, _ := doc.Float("selection", "phasemin")
	require.Equal(t, 0.0, v)
	v, _ = clone.Float("selection", "phasemin")
	require.Equal(t, 0.75, v)
}

func TestDocument_WriteLoad(t *testing.T) {
	dir := t.TempDir()
	doc, err := analysis.Parse([]byte(baseConfig))
	require.NoError(t, err)

	path := filepath.Join(dir, "phase_0.0-0.5.yaml")
	require.NoError(t, doc.Write(path))

	loaded, err := analysis.Load(path)
	require.NoError(t, err)
	require.Equal(t, path, loaded.Path())

	a, err := doc.Bytes()
	require.NoError(t, err)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, a, b)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestParse_Invalid(t *testing.T) {
	_, err := analysis.Parse([]byte("- a\n- b\n"))
	require.ErrorIs(t, err, analysis.ErrInvalidDocument)

	_, err = analysis.Parse([]byte("a: [\n"))
	require.ErrorIs(t, err, analysis.ErrInvalidDocument)
}

func TestFormatFloat(t *testing.T) {
	cases := map[float64]string{
		0:         "0.0",
		0.5:       "0.5",
		1:         "1.0",
		1.0 / 3:   "0.3333333333333333",
		0.0001:    "0.0001",
		0.00001:   "1e-05",
		-0.25:     "-0.25",
		123456789: "123456789.0",
		1e16:      "1e+16",
		2.5e-7:    "2.5e-07",
		9999999e9: "9999999000000000.0",
	}
	for in, want := range cases {
		require.Equal(t, want, analysis.FormatFloat(in), "FormatFloat(%v)", in)
	}
}

func TestParsePlan(t *testing.T) {
	plan, err := analysis.ParsePlan([]byte(`
source_name: PSR J0835-4510
free_sources:
  distance: 5.0
  pars: [norm, index]
free_diff:
  isodiff: false
spectral:
  default: false
  spectrum_type: PowerLaw
  index: 2.1
  prefactor: 1.0e-11
  scale: 1000
batch:
  continue_on_error: true
  bin_timeout: 30m
`))
	require.NoError(t, err)
	require.Equal(t, "PSR J0835-4510", plan.SourceName)
	require.Equal(t, 5.0, plan.FreeSources.Distance)
	require.Equal(t, analysis.ParList{"norm", "index"}, plan.FreeSources.Pars)
	require.True(t, plan.FreeDiffuse.Galdiff)
	require.False(t, plan.FreeDiffuse.Isodiff)
	require.True(t, plan.FreeSource)
	require.Equal(t, "likelihood", plan.SED.Type)
	require.True(t, plan.Batch.ContinueOnError)
	require.True(t, plan.Batch.ContinueOnTimeout)
	require.Equal(t, 30*time.Minute, plan.Batch.BinTimeout)

	require.Equal(t, map[string]float64{"Index": 2.1, "Prefactor": 1e-11, "Scale": 1000}, plan.Spectral.Overrides())
}

func TestParsePlan_Defaults(t *testing.T) {
	plan, err := analysis.ParsePlan([]byte("source_name: vela\nfree_sources:\n  pars: norm\n"))
	require.NoError(t, err)
	require.Equal(t, analysis.ParList{"norm"}, plan.FreeSources.Pars)
	require.Equal(t, 3.0, plan.FreeSources.Distance)
	require.True(t, plan.Spectral.Default)
	require.Empty(t, plan.Spectral.Overrides())
	require.False(t, plan.ROI.Write)
}

func TestParsePlan_Invalid(t *testing.T) {
	_, err := analysis.ParsePlan([]byte("free_source: true\n"))
	require.ErrorIs(t, err, analysis.ErrInvalidPlan)

	_, err = analysis.ParsePlan([]byte("source_name: vela\nroi:\n  write: true\n  filename: \"\"\n"))
	require.ErrorIs(t, err, analysis.ErrInvalidPlan)
}

func TestLoadPlan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source_name: vela\n"), 0o644))
	plan, err := analysis.LoadPlan(path)
	require.NoError(t, err)
	require.Equal(t, "vela", plan.SourceName)

	_, err = analysis.LoadPlan(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
