// Package manifest loads the composition manifest emitted by the
// generation front end: per composed schema, its kind, nullability,
// ordered candidate list, and discriminator. Bind resolves the described
// schemas against Go type bindings and registers them.
package manifest

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/composed-go/composed"
)

// Manifest is the root document. The input may be YAML or JSON (YAML is
// a superset, so one decoder serves both).
type Manifest struct {
	Schemas []Schema `yaml:"schemas" json:"schemas"`
}

// Schema describes one composed schema.
type Schema struct {
	Name          string         `yaml:"name" json:"name"`
	Kind          string         `yaml:"kind" json:"kind"`
	Nullable      bool           `yaml:"nullable" json:"nullable"`
	Candidates    []Candidate    `yaml:"candidates" json:"candidates"`
	Discriminator *Discriminator `yaml:"discriminator" json:"discriminator"`
}

// Candidate names one member type. A candidate literally named "null"
// marks the schema nullable instead of contributing a type. Fields, when
// present, lets Bind synthesize a generic map-backed decoder for the
// candidate (strictness enforced against the declared set).
type Candidate struct {
	Name   string   `yaml:"name" json:"name"`
	Strict bool     `yaml:"strict" json:"strict"`
	Fields []string `yaml:"fields" json:"fields"`
}

// Discriminator describes the tag property and its value mapping. A
// mapping value naming another manifest schema produces a nested
// composition link. Fallback is "matching" (default) or "error".
type Discriminator struct {
	Property   string            `yaml:"property" json:"property"`
	Fallback   string            `yaml:"fallback" json:"fallback"`
	TrialFirst bool              `yaml:"trialFirst" json:"trialFirst"`
	Mapping    map[string]string `yaml:"mapping" json:"mapping"`
}

// Load parses and validates a manifest document.
func Load(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	if len(m.Schemas) == 0 {
		return fmt.Errorf("manifest: no schemas")
	}
	seen := make(map[string]bool, len(m.Schemas))
	for i := range m.Schemas {
		s := &m.Schemas[i]
		if s.Name == "" {
			return fmt.Errorf("manifest: schema %d needs a name", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("manifest: duplicate schema %q", s.Name)
		}
		seen[s.Name] = true
		if _, err := parseKind(s.Kind); err != nil {
			return fmt.Errorf("manifest: %s: %w", s.Name, err)
		}
		if s.Kind == "allOf" && s.Discriminator == nil {
			return fmt.Errorf("manifest: %s: allOf dispatch needs a discriminator", s.Name)
		}
		if d := s.Discriminator; d != nil {
			if d.Property == "" {
				return fmt.Errorf("manifest: %s: discriminator needs a property", s.Name)
			}
			switch d.Fallback {
			case "", "matching", "error":
			default:
				return fmt.Errorf("manifest: %s: unknown fallback %q", s.Name, d.Fallback)
			}
		}
	}
	return nil
}

func parseKind(s string) (composed.Kind, error) {
	switch s {
	case "oneOf":
		return composed.OneOf, nil
	case "anyOf":
		return composed.AnyOf, nil
	case "allOf":
		return composed.AllOf, nil
	}
	return 0, fmt.Errorf("unknown kind %q", s)
}
