package analysis

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Plan holds the settings a batch fit applies to every phase bin.
type Plan struct {
	SourceName  string       `yaml:"source_name"`
	FreeSources FreeSources  `yaml:"free_sources"`
	FreeDiffuse FreeDiffuse  `yaml:"free_diff"`
	FreeSource  bool         `yaml:"free_source"`
	ROI         ROIOutput    `yaml:"roi"`
	Spectral    Spectral     `yaml:"spectral"`
	SED         SEDOptions   `yaml:"sed"`
	Batch       BatchOptions `yaml:"batch"`
}

// FreeSources frees the named parameters of sources near the target.
type FreeSources struct {
	// Distance is the radius in degrees around the ROI centre.
	Distance float64 `yaml:"distance"`
	Pars     ParList `yaml:"pars"`
}

// FreeDiffuse selects diffuse components to free before the fit.
type FreeDiffuse struct {
	Galdiff bool `yaml:"galdiff"`
	Isodiff bool `yaml:"isodiff"`
}

// ROIOutput controls the post-fit ROI serialization.
type ROIOutput struct {
	Write    bool   `yaml:"write"`
	Filename string `yaml:"filename"`
}

// Spectral overrides the target's spectral parameters when Default is false.
type Spectral struct {
	Default      bool     `yaml:"default"`
	SpectrumType string   `yaml:"spectrum_type"`
	Index        *float64 `yaml:"index"`
	Prefactor    *float64 `yaml:"prefactor"`
	Scale        *float64 `yaml:"scale"`
}

// Overrides returns the parameter values to apply, keyed by fit-engine name.
// It is empty for the default spectrum.
func (s Spectral) Overrides() map[string]float64 {
	out := map[string]float64{}
	if s.Default {
		return out
	}
	if s.Index != nil {
		out["Index"] = *s.Index
	}
	if s.Prefactor != nil {
		out["Prefactor"] = *s.Prefactor
	}
	if s.Scale != nil {
		out["Scale"] = *s.Scale
	}
	return out
}

// SEDOptions configures the flux-point computation.
type SEDOptions struct {
	Type string `yaml:"sed_type"`
}

// BatchOptions controls failure handling across bins.
type BatchOptions struct {
	ContinueOnError   bool          `yaml:"continue_on_error"`
	ContinueOnTimeout bool          `yaml:"continue_on_timeout"`
	BinTimeout        time.Duration `yaml:"bin_timeout"`
}

// ParList accepts either a single parameter name or a list of names.
type ParList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *ParList) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		*p = ParList{n.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := n.Decode(&list); err != nil {
			return err
		}
		*p = list
		return nil
	}
	return fmt.Errorf("pars must be a name or a list of names")
}

// DefaultPlan returns the settings used for keys a plan file leaves out.
func DefaultPlan() Plan {
	return Plan{
		FreeSources: FreeSources{Distance: 3, Pars: ParList{"norm"}},
		FreeDiffuse: FreeDiffuse{Galdiff: true, Isodiff: true},
		FreeSource:  true,
		ROI:         ROIOutput{Filename: "fit_model.npy"},
		Spectral:    Spectral{Default: true},
		SED:         SEDOptions{Type: "likelihood"},
		Batch:       BatchOptions{ContinueOnTimeout: true},
	}
}

// LoadPlan reads a plan file over DefaultPlan.
func LoadPlan(path string) (Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, fmt.Errorf("read analysis plan: %w", err)
	}
	plan, err := ParsePlan(data)
	if err != nil {
		return Plan{}, fmt.Errorf("%s: %w", path, err)
	}
	return plan, nil
}

// ParsePlan decodes data over DefaultPlan and validates the result.
func ParsePlan(data []byte) (Plan, error) {
	plan := DefaultPlan()
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return Plan{}, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	if err := plan.Validate(); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

// Validate checks the settings a batch cannot run without.
func (p Plan) Validate() error {
	if p.SourceName == "" {
		return fmt.Errorf("%w: source_name is required", ErrInvalidPlan)
	}
	if p.ROI.Write && p.ROI.Filename == "" {
		return fmt.Errorf("%w: roi.filename is required when roi.write is set", ErrInvalidPlan)
	}
	if p.FreeSources.Distance < 0 {
		return fmt.Errorf("%w: free_sources.distance must not be negative", ErrInvalidPlan)
	}
	if p.Batch.BinTimeout < 0 {
		return fmt.Errorf("%w: batch.bin_timeout must not be negative", ErrInvalidPlan)
	}
	return nil
}
