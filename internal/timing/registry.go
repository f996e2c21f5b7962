package timing

import (
	"fmt"
	"sync"
)

// FermiObservatory is the registry key used for Fermi-LAT spacecraft data.
const FermiObservatory = "fermi"

// Observatory associates an observatory identity with the spacecraft file
// describing its position and attitude.
type Observatory struct {
	ID             string
	SpacecraftFile string
}

// Registry maps observatory ids to their spacecraft sources. Registration and
// the TOA build that depends on it must happen inside one Use call when
// several observations share a registry.
type Registry struct {
	mu  sync.Mutex
	obs map[string]Observatory
}

// DefaultRegistry is the process-wide registry.
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{obs: make(map[string]Observatory)}
}

// Register records spacecraftFile for id. With overwrite, an existing
// registration is replaced.
func (r *Registry) Register(id, spacecraftFile string, overwrite bool) (Observatory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.register(id, spacecraftFile, overwrite)
}

// Lookup returns the observatory registered under id.
func (r *Registry) Lookup(id string) (Observatory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookup(id)
}

// Use registers spacecraftFile under id (replacing any previous source) and
// runs fn while holding the registry lock, so no other caller can swap the
// spacecraft source before fn returns.
func (r *Registry) Use(id, spacecraftFile string, fn func(Observatory) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	obs, err := r.register(id, spacecraftFile, true)
	if err != nil {
		return err
	}
	return fn(obs)
}

func (r *Registry) register(id, spacecraftFile string, overwrite bool) (Observatory, error) {
	if id == "" {
		return Observatory{}, fmt.Errorf("register observatory: empty id")
	}
	if _, ok := r.obs[id]; ok && !overwrite {
		return Observatory{}, fmt.Errorf("%w: %s", ErrObservatoryExists, id)
	}
	obs := Observatory{ID: id, SpacecraftFile: spacecraftFile}
	r.obs[id] = obs
	return obs, nil
}

func (r *Registry) lookup(id string) (Observatory, error) {
	obs, ok := r.obs[id]
	if !ok {
		return Observatory{}, fmt.Errorf("%w: %s", ErrObservatoryNotRegistered, id)
	}
	return obs, nil
}
