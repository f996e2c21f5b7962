package phase

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rpggio/phasefold/internal/timing"
)

// ProvenanceKey is the header keyword holding the encoded provenance record.
const ProvenanceKey = "PHSE_LOG"

// Provenance records how a phase column was produced. Model fields are nil
// when the ephemeris does not define them. Field order is the encoded key order.
type Provenance struct {
	Column        string   `json:"COLUMN_NAME"`
	EphemerisFile string   `json:"EPHEMERIS_FILE"`
	TimingVersion string   `json:"TIMING_VERS"`
	PSRJ          *string  `json:"PSRJ"`
	Start         *float64 `json:"START"`
	Finish        *float64 `json:"FINISH"`
	TZRMJD        *float64 `json:"TZRMJD"`
	TZRSite       *string  `json:"TZRSITE"`
	TZRFreq       *float64 `json:"TZRFREQ"`
	Ephem         *string  `json:"EPHEM"`
	// RA is the ephemeris right ascension in hours.
	RA *float64 `json:"EPHEM_RA"`
	// Dec is the ephemeris declination in degrees.
	Dec    *float64 `json:"EPHEM_DEC"`
	Offset *float64 `json:"PHASE_OFFSET"`
	// Date is the MJD of the write.
	Date *float64 `json:"DATE"`
}

// Encode renders the record as the single-line JSON stored under ProvenanceKey.
func (p Provenance) Encode() (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encoding provenance: %w", err)
	}
	return string(b), nil
}

// DecodeProvenance parses a value previously produced by Encode.
func DecodeProvenance(s string) (Provenance, error) {
	var p Provenance
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return Provenance{}, fmt.Errorf("decoding provenance: %w", err)
	}
	return p, nil
}

const unixEpochMJD = 40587.0

// MJD converts a wall-clock time to a Modified Julian Date.
func MJD(t time.Time) float64 {
	return unixEpochMJD + float64(t.UnixNano())/1e9/86400
}

func newProvenance(model timing.Model, ephemerisFile string, offset *float64, logger *slog.Logger) Provenance {
	p := Provenance{
		EphemerisFile: ephemerisFile,
		TimingVersion: model.Version(),
	}
	if offset != nil {
		v := *offset
		p.Offset = &v
	}
	s := paramReader{model: model, file: ephemerisFile, logger: logger}
	p.PSRJ = s.str("PSRJ")
	p.Start = s.float("START")
	p.Finish = s.float("FINISH")
	p.TZRMJD = s.float("TZRMJD")
	p.TZRSite = s.str("TZRSITE")
	p.TZRFreq = s.float("TZRFREQ")
	p.Ephem = s.str("EPHEM")
	p.RA = s.sexagesimal("RAJ")
	p.Dec = s.sexagesimal("DECJ")
	return p
}

type paramReader struct {
	model  timing.Model
	file   string
	logger *slog.Logger
}

func (r paramReader) raw(key string) (string, bool) {
	v, ok := r.model.Param(key)
	if !ok {
		r.logger.Warn("timing parameter missing from ephemeris", "key", key, "ephemeris", r.file)
	}
	return v, ok
}

func (r paramReader) str(key string) *string {
	v, ok := r.raw(key)
	if !ok {
		return nil
	}
	return &v
}

func (r paramReader) float(key string) *float64 {
	v, ok := r.raw(key)
	if !ok {
		return nil
	}
	f, err := timing.ParseFloat(v)
	if err != nil {
		r.logger.Warn("timing parameter is not numeric", "key", key, "value", v, "ephemeris", r.file)
		return nil
	}
	return &f
}

func (r paramReader) sexagesimal(key string) *float64 {
	v, ok := r.raw(key)
	if !ok {
		return nil
	}
	f, err := timing.ParseSexagesimal(v)
	if err != nil {
		r.logger.Warn("timing parameter is not sexagesimal", "key", key, "value", v, "ephemeris", r.file)
		return nil
	}
	return &f
}
