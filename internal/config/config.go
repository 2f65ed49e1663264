// Package config loads the optional Trustgate YAML configuration file, which
// can override the default factor weights, tier table, and action policy
// table. All overrides pass through the trust package validators before use.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ssd-technologies/trustgate/internal/trust"
)

// File is the on-disk configuration shape.
type File struct {
	Weights  *trust.Weights          `yaml:"weights"`
	Tiers    []trust.Tier            `yaml:"tiers"`
	Policies map[string]trust.Policy `yaml:"policies"`
}

// Load reads and validates a YAML config file. Sections left empty fall back
// to the built-in defaults; sections that are present must validate.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if f.Weights != nil {
		if err := f.Weights.Validate(); err != nil {
			return nil, err
		}
	}
	if f.Tiers != nil {
		if _, err := trust.NewTierTable(f.Tiers); err != nil {
			return nil, err
		}
	}
	return &f, nil
}

// PolicyTable converts the configured policies, or nil when the section was
// absent.
func (f *File) PolicyTable() trust.PolicyTable {
	if f.Policies == nil {
		return nil
	}
	table := make(trust.PolicyTable, len(f.Policies))
	for action, p := range f.Policies {
		table[action] = p
	}
	return table
}
