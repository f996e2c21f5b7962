package events

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Fermi mission reference epoch (MJD of MET zero, TT).
const (
	FermiMJDRefInt  = 51910
	FermiMJDRefFrac = 7.428703703703703e-4
)

// TimeColumn is the column holding arrival times in mission elapsed seconds.
const TimeColumn = "TIME"

// EventList is a photon event table read from Filename.
type EventList struct {
	Filename string
	Table    *Table
}

// Times returns the arrival times in mission elapsed seconds.
func (e *EventList) Times() ([]float64, error) {
	col, err := e.Table.Column(TimeColumn)
	if err != nil {
		return nil, err
	}
	return col.Values, nil
}

// MJDRef returns the mission reference epoch in MJD.
func (e *EventList) MJDRef() float64 {
	h := e.Table.Header
	if i, err := h.Float("MJDREFI"); err == nil {
		f, _ := h.Float("MJDREFF")
		return i + f
	}
	if ref, err := h.Float("MJDREF"); err == nil {
		return ref
	}
	return FermiMJDRefInt + FermiMJDRefFrac
}

// SkyCircle is a cone on the sky in ICRS degrees.
type SkyCircle struct {
	RA     float64 `json:"ra"`
	Dec    float64 `json:"dec"`
	Radius float64 `json:"radius"`
}

// SkyCoord is an ICRS position in degrees.
type SkyCoord struct {
	RA  float64 `json:"ra"`
	Dec float64 `json:"dec"`
}

// Separation returns the great-circle distance to o in degrees.
func (c SkyCoord) Separation(o SkyCoord) float64 {
	ra1, dec1 := c.RA*math.Pi/180, c.Dec*math.Pi/180
	ra2, dec2 := o.RA*math.Pi/180, o.Dec*math.Pi/180
	sdr := math.Sin((ra2 - ra1) / 2)
	sdd := math.Sin((dec2 - dec1) / 2)
	h := sdd*sdd + math.Cos(dec1)*math.Cos(dec2)*sdr*sdr
	return 2 * math.Asin(math.Min(1, math.Sqrt(h))) * 180 / math.Pi
}

var circleRe = regexp.MustCompile(`^CIRCLE\(\s*([^,]+),\s*([^,]+),\s*([^)]+)\)$`)

// Region returns the acceptance cone recorded in the data-subspace keywords.
func (e *EventList) Region() (SkyCircle, error) {
	typ, unit, val, err := e.subspace("POS(RA,DEC)")
	if err != nil {
		return SkyCircle{}, err
	}
	if unit != "deg" {
		return SkyCircle{}, fmt.Errorf("%w: position unit %q", ErrUnsupportedRegion, unit)
	}
	m := circleRe.FindStringSubmatch(strings.TrimSpace(val))
	if m == nil {
		return SkyCircle{}, fmt.Errorf("%w: %s = %q", ErrUnsupportedRegion, typ, val)
	}
	var out [3]float64
	for i := range out {
		f, err := strconv.ParseFloat(strings.TrimSpace(m[i+1]), 64)
		if err != nil {
			return SkyCircle{}, fmt.Errorf("%w: %s = %q", ErrUnsupportedRegion, typ, val)
		}
		out[i] = f
	}
	return SkyCircle{RA: out[0], Dec: out[1], Radius: out[2]}, nil
}

// Center returns the centre of the acceptance cone.
func (e *EventList) Center() (SkyCoord, error) {
	r, err := e.Region()
	if err != nil {
		return SkyCoord{}, err
	}
	return SkyCoord{RA: r.RA, Dec: r.Dec}, nil
}

// EnergyRange is a selection range in Unit.
type EnergyRange struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Unit string  `json:"unit"`
}

// EnergyRange returns the energy selection recorded in the data-subspace keywords.
func (e *EventList) EnergyRange() (EnergyRange, error) {
	typ, unit, val, err := e.subspace("ENERGY")
	if err != nil {
		return EnergyRange{}, err
	}
	parts := strings.Split(strings.TrimSpace(val), ":")
	if len(parts) != 2 {
		return EnergyRange{}, fmt.Errorf("%w: %s = %q", ErrUnsupportedRegion, typ, val)
	}
	lo, err1 := strconv.ParseFloat(parts[0], 64)
	hi, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil {
		return EnergyRange{}, fmt.Errorf("%w: %s = %q", ErrUnsupportedRegion, typ, val)
	}
	return EnergyRange{Min: lo, Max: hi, Unit: unit}, nil
}

// subspace finds the DSTYPn/DSUNIn/DSVALn triplet whose type is typ.
func (e *EventList) subspace(typ string) (string, string, string, error) {
	h := e.Table.Header
	for n := 1; n <= 99; n++ {
		t, ok := h.Get(fmt.Sprintf("DSTYP%d", n))
		if !ok {
			continue
		}
		if strings.TrimSpace(t) != typ {
			continue
		}
		unit, _ := h.Get(fmt.Sprintf("DSUNI%d", n))
		val, ok := h.Get(fmt.Sprintf("DSVAL%d", n))
		if !ok {
			return "", "", "", fmt.Errorf("%w: DSVAL%d", ErrKeyNotFound, n)
		}
		return t, strings.TrimSpace(unit), val, nil
	}
	return "", "", "", fmt.Errorf("%w: no %s data subspace", ErrUnsupportedRegion, typ)
}

// Spacecraft identifies the spacecraft attitude and orbit file of an observation.
type Spacecraft struct {
	Filename string
}

// Observation pairs one event list with the spacecraft data covering it.
// It borrows both files; nothing here closes or owns them. GTI is nil when
// the event file carries no GTI extension.
type Observation struct {
	Events     *EventList
	GTI        *GTI
	Spacecraft *Spacecraft
}

// Validate checks that both halves of the observation are present.
func (o *Observation) Validate() error {
	if o == nil {
		return fmt.Errorf("%w: nil observation", ErrInvalidObservation)
	}
	if o.Events == nil || o.Events.Table == nil {
		return fmt.Errorf("%w: missing event list", ErrInvalidObservation)
	}
	if o.Spacecraft == nil || strings.TrimSpace(o.Spacecraft.Filename) == "" {
		return fmt.Errorf("%w: missing spacecraft file", ErrInvalidObservation)
	}
	return nil
}

// Observations is an ordered collection sharing one spacecraft file.
type Observations []*Observation

// Filenames returns the event file of each observation.
func (obs Observations) Filenames() []string {
	names := make([]string, 0, len(obs))
	for _, o := range obs {
		if o != nil && o.Events != nil {
			names = append(names, o.Events.Filename)
		}
	}
	return names
}

// FromFiles reads every event file, with its good time intervals when
// present, and pairs it with the shared spacecraft file.
func FromFiles(ctx context.Context, store Store, eventFiles []string, spacecraftFile string) (Observations, error) {
	if strings.TrimSpace(spacecraftFile) == "" {
		return nil, fmt.Errorf("%w: missing spacecraft file", ErrInvalidObservation)
	}
	spacecraft := &Spacecraft{Filename: spacecraftFile}
	obs := make(Observations, 0, len(eventFiles))
	for _, file := range eventFiles {
		table, err := store.Read(ctx, file)
		if err != nil {
			return nil, fmt.Errorf("reading events %s: %w", file, err)
		}
		list := &EventList{Filename: file, Table: table}
		var gti *GTI
		if _, ok := table.Extension(GTIExtension); ok {
			if gti, err = list.GTI(); err != nil {
				return nil, fmt.Errorf("reading events %s: %w", file, err)
			}
		}
		obs = append(obs, &Observation{
			Events:     list,
			GTI:        gti,
			Spacecraft: spacecraft,
		})
	}
	return obs, nil
}
