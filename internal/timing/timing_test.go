package timing_test

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rpggio/phasefold/internal/events"
	"github.com/rpggio/phasefold/internal/timing"
	"github.com/stretchr/testify/require"
)

const velaPar = `# Vela
PSRJ           J0835-4510
RAJ            08:35:20.61149
DECJ           -45:10:34.8751
F0             11.18 1 0.000001
F1             -1.5D-11
PEPOCH         55000
TZRMJD         55000.5
TZRSITE        @
TZRFREQ        0
EPHEM          DE421
C a legacy comment
F0             99
`

func TestParsePar(t *testing.T) {
	par, err := timing.ParsePar(strings.NewReader(velaPar))
	require.NoError(t, err)

	require.Equal(t, []string{"PSRJ", "RAJ", "DECJ", "F0", "F1", "PEPOCH", "TZRMJD", "TZRSITE", "TZRFREQ", "EPHEM"}, par.Keys())

	f0, err := par.Float("F0")
	require.NoError(t, err)
	require.Equal(t, 11.18, f0)

	f1, err := par.Float("f1")
	require.NoError(t, err)
	require.InDelta(t, -1.5e-11, f1, 1e-24)

	ra, ok := par.Param("RA")
	require.True(t, ok)
	require.Equal(t, "08:35:20.61149", ra)

	_, err = par.Float("F2")
	require.ErrorIs(t, err, timing.ErrParamNotFound)
}

func TestParsePar_Invalid(t *testing.T) {
	_, err := timing.ParsePar(strings.NewReader("# only comments\n"))
	require.ErrorIs(t, err, timing.ErrInvalidParFile)

	_, err = timing.ParsePar(strings.NewReader("F0\n"))
	require.ErrorIs(t, err, timing.ErrInvalidParFile)
}

func TestParseSexagesimal(t *testing.T) {
	v, err := timing.ParseSexagesimal("08:30:00")
	require.NoError(t, err)
	require.InDelta(t, 8.5, v, 1e-12)

	v, err = timing.ParseSexagesimal("-45:30:36")
	require.NoError(t, err)
	require.InDelta(t, -45.51, v, 1e-12)

	_, err = timing.ParseSexagesimal("aa:bb")
	require.Error(t, err)
}

func TestRegistry(t *testing.T) {
	reg := timing.NewRegistry()

	_, err := reg.Lookup(timing.FermiObservatory)
	require.ErrorIs(t, err, timing.ErrObservatoryNotRegistered)

	_, err = reg.Register(timing.FermiObservatory, "sc1.fits", false)
	require.NoError(t, err)
	_, err = reg.Register(timing.FermiObservatory, "sc2.fits", false)
	require.ErrorIs(t, err, timing.ErrObservatoryExists)

	var seen timing.Observatory
	err = reg.Use(timing.FermiObservatory, "sc2.fits", func(obs timing.Observatory) error {
		seen = obs
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "sc2.fits", seen.SpacecraftFile)

	obs, err := reg.Lookup(timing.FermiObservatory)
	require.NoError(t, err)
	require.Equal(t, "sc2.fits", obs.SpacecraftFile)
}

func writePar(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "psr.par")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSpinModel_AbsPhase(t *testing.T) {
	path := writePar(t, "PSRJ J0000+0000\nF0 2\nPEPOCH 55000\n")
	model, err := timing.LoadSpinModel(path)
	require.NoError(t, err)
	require.Equal(t, "J0000+0000", model.Name())
	require.Equal(t, timing.Version, model.Version())

	quarter := 0.25 / 2 / 86400
	toas := []timing.TOA{{MJD: 55000}, {MJD: 55000 + quarter}, {MJD: 55000 - quarter}}
	phases, err := model.AbsPhase(context.Background(), toas)
	require.NoError(t, err)
	require.InDelta(t, 0, phases[0], 1e-5)
	require.InDelta(t, 0.25, phases[1], 1e-5)
	require.InDelta(t, -0.25, phases[2], 1e-5)
}

func TestSpinModel_RequiresF0(t *testing.T) {
	par, err := timing.ParsePar(strings.NewReader("PEPOCH 55000\n"))
	require.NoError(t, err)
	_, err = timing.NewSpinModel(par)
	require.ErrorIs(t, err, timing.ErrParamNotFound)
}

func TestSpinModel_CancelledContext(t *testing.T) {
	par, err := timing.ParsePar(strings.NewReader(velaPar))
	require.NoError(t, err)
	model, err := timing.NewSpinModel(par)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = model.AbsPhase(ctx, make([]timing.TOA, 3))
	require.ErrorIs(t, err, context.Canceled)
}

func barycentredEvents(t *testing.T, timeref string) *events.EventList {
	t.Helper()
	table, err := events.NewTable(events.NewHeader(
		events.Card{Key: "TIMEREF", Value: timeref},
		events.Card{Key: "MJDREFI", Value: "51910"},
		events.Card{Key: "MJDREFF", Value: "0.0"},
	),
		events.Column{Name: "TIME", Values: []float64{0, 86400}},
		events.Column{Name: "RA", Values: []float64{10, 12}},
		events.Column{Name: "DEC", Values: []float64{0, 0}},
		events.Column{Name: "WEIGHT", Values: []float64{0.5, 0.9}},
	)
	require.NoError(t, err)
	return &events.EventList{Filename: "ev.db", Table: table}
}

func TestFermiBuilder_Build(t *testing.T) {
	ctx := context.Background()
	obs := timing.Observatory{ID: timing.FermiObservatory, SpacecraftFile: "sc.fits"}

	toas, err := timing.FermiBuilder{}.Build(ctx, barycentredEvents(t, "SOLARSYSTEM"), obs, timing.BuildOptions{})
	require.NoError(t, err)
	require.Len(t, toas, 2)
	require.Equal(t, 51910.0, toas[0].MJD)
	require.Equal(t, 51911.0, toas[1].MJD)
	require.Equal(t, 1.0, toas[0].Weight)
	require.True(t, math.IsNaN(toas[0].Separation))
	require.Equal(t, timing.FermiObservatory, toas[1].Observatory)

	target := &events.SkyCoord{RA: 10, Dec: 0}
	toas, err = timing.FermiBuilder{}.Build(ctx, barycentredEvents(t, "SOLARSYSTEM"), obs,
		timing.BuildOptions{WeightColumn: "WEIGHT", Target: target})
	require.NoError(t, err)
	require.Equal(t, 0.9, toas[1].Weight)
	require.InDelta(t, 0, toas[0].Separation, 1e-9)
	require.InDelta(t, 2, toas[1].Separation, 1e-9)
}

func TestFermiBuilder_Errors(t *testing.T) {
	ctx := context.Background()
	obs := timing.Observatory{ID: timing.FermiObservatory}

	_, err := timing.FermiBuilder{}.Build(ctx, barycentredEvents(t, "LOCAL"), obs, timing.BuildOptions{})
	require.ErrorIs(t, err, timing.ErrNotBarycentered)

	_, err = timing.FermiBuilder{}.Build(ctx, barycentredEvents(t, "SOLARSYSTEM"), obs, timing.BuildOptions{WeightColumn: "PROB"})
	require.ErrorIs(t, err, events.ErrColumnNotFound)
}

func TestBuildOptions_WithDefaults(t *testing.T) {
	require.Equal(t, timing.DefaultEphem, timing.BuildOptions{}.WithDefaults().Ephem)
	require.Equal(t, "DE430", timing.BuildOptions{Ephem: "DE430"}.WithDefaults().Ephem)
}
