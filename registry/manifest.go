package registry

import (
	"embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var tables embed.FS

// Manifest is the YAML representation of one environment's chain table.
type Manifest struct {
	Environment Environment   `yaml:"environment"`
	Guardians   []string      `yaml:"guardians"`
	Chains      []ChainConfig `yaml:"chains"`
}

// Load builds the Registry for env from the tables shipped with the module.
func Load(env Environment) (*Registry, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}

	b, err := tables.ReadFile("data/" + string(env) + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read %s chain table: %w", env, err)
	}

	return FromManifest(env, b)
}

// MustLoad is Load that panics on error. The embedded tables are validated by tests.
func MustLoad(env Environment) *Registry {
	r, err := Load(env)
	if err != nil {
		panic(err)
	}

	return r
}

// LoadFile builds a Registry from a manifest on disk.
func LoadFile(env Environment, path string) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain table %s: %w", path, err)
	}

	return FromManifest(env, b)
}

// FromManifest builds a Registry from YAML bytes. The manifest environment, when set, must
// match env.
func FromManifest(env Environment, b []byte) (*Registry, error) {
	var m Manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chain table: %w", err)
	}

	if m.Environment != "" && m.Environment != env {
		return nil, fmt.Errorf("chain table is for %s, not %s", m.Environment, env)
	}

	return New(env, m.Chains, WithGuardianHosts(m.Guardians...))
}

// WithRPCOverrides returns a copy of the registry where the RPC URL of each named chain is
// replaced. Keys may be names or ids.
func (r *Registry) WithRPCOverrides(overrides map[string]string) (*Registry, error) {
	chains := r.Chains()
	for key, url := range overrides {
		c, err := r.Resolve(key)
		if err != nil {
			return nil, err
		}
		for i := range chains {
			if chains[i].ID == c.ID {
				chains[i].RPC = url
			}
		}
	}

	return New(r.env, chains, WithGuardianHosts(r.guardian...))
}
