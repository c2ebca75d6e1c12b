package manifest

import (
	"fmt"

	"github.com/composed-go/composed"
	"github.com/composed-go/composed/internal/jsonx"
)

// Bind resolves every schema in the manifest against the provided Go type
// bindings, builds the composition descriptors, and registers them into
// reg. A candidate without a binding falls back to a generic field-set
// decoder when it declares fields; otherwise Options.OnUnbound decides
// between a hard error and a warning that drops the entry. Mapping values
// naming another manifest schema become nested composition targets.
func (m *Manifest) Bind(reg *composed.Registry, types map[string]composed.TypeDescriptor, opts Options) (Diag, error) {
	d := &simpleDiag{}
	byName := make(map[string]*Schema, len(m.Schemas))
	for i := range m.Schemas {
		byName[m.Schemas[i].Name] = &m.Schemas[i]
	}
	built := make(map[string]*composed.CompositionDescriptor, len(m.Schemas))

	var build func(name string, stack map[string]bool) (*composed.CompositionDescriptor, error)
	build = func(name string, stack map[string]bool) (*composed.CompositionDescriptor, error) {
		if cd, ok := built[name]; ok {
			return cd, nil
		}
		if stack[name] {
			return nil, fmt.Errorf("manifest: cyclic reference through %q", name)
		}
		stack[name] = true
		defer delete(stack, name)
		s := byName[name]

		local := make(map[string]composed.TypeDescriptor, len(s.Candidates))
		ordered := make([]composed.TypeDescriptor, 0, len(s.Candidates))
		nullable := s.Nullable
		for _, c := range s.Candidates {
			if c.Name == "null" {
				nullable = true
				continue
			}
			td, bound := resolveCandidate(c, types)
			if !bound {
				if opts.OnUnbound == ErrorUnbound {
					return nil, fmt.Errorf("manifest: %s: candidate %q has no type binding and no field list", name, c.Name)
				}
				d.warnf("%s: candidate %q unbound; dropped", name, c.Name)
				continue
			}
			if td.Strict != c.Strict {
				d.warnf("%s: candidate %q: manifest strictness %v disagrees with binding", name, c.Name, c.Strict)
			}
			local[c.Name] = td
			ordered = append(ordered, td)
		}

		var copts []composed.CompositionOption
		if nullable {
			copts = append(copts, composed.Nullable())
		}
		if s.Discriminator != nil {
			mapping := make(map[string]composed.Target, len(s.Discriminator.Mapping))
			for tag, ref := range s.Discriminator.Mapping {
				if ref == name {
					d.warnf("%s: self-referential mapping %q dropped", name, tag)
					continue
				}
				if _, isSchema := byName[ref]; isSchema {
					cd, err := build(ref, stack)
					if err != nil {
						return nil, err
					}
					mapping[tag] = composed.ToComposition(cd)
					continue
				}
				if td, ok := local[ref]; ok {
					mapping[tag] = composed.ToType(td)
					continue
				}
				if td, ok := types[ref]; ok {
					mapping[tag] = composed.ToType(td)
					continue
				}
				if opts.OnUnbound == ErrorUnbound {
					return nil, fmt.Errorf("manifest: %s: mapping %q -> %q is unbound", name, tag, ref)
				}
				d.warnf("%s: mapping %q -> %q unbound; dropped", name, tag, ref)
			}
			copts = append(copts, composed.WithMapping(s.Discriminator.Property, mapping))
			if s.Discriminator.TrialFirst {
				copts = append(copts, composed.TrialFirst())
			}
			if s.Discriminator.Fallback == "error" {
				copts = append(copts, composed.OnDiscriminatorMiss(composed.FallbackError))
			}
		}

		kind, err := parseKind(s.Kind)
		if err != nil {
			return nil, fmt.Errorf("manifest: %s: %w", name, err)
		}
		cd, err := composed.NewComposition(name, kind, ordered, copts...)
		if err != nil {
			return nil, err
		}
		built[name] = cd
		return cd, nil
	}

	for i := range m.Schemas {
		if _, err := build(m.Schemas[i].Name, map[string]bool{}); err != nil {
			return d, err
		}
	}
	for i := range m.Schemas {
		if err := reg.Register(built[m.Schemas[i].Name]); err != nil {
			return d, err
		}
	}
	return d, nil
}

func resolveCandidate(c Candidate, types map[string]composed.TypeDescriptor) (composed.TypeDescriptor, bool) {
	if td, ok := types[c.Name]; ok {
		return td, true
	}
	if len(c.Fields) > 0 {
		return genericType(c), true
	}
	return composed.TypeDescriptor{}, false
}

// genericType synthesizes a map-backed descriptor from a declared field
// list. When strict, input fields outside that set reject the trial.
func genericType(c Candidate) composed.TypeDescriptor {
	fields := make(map[string]bool, len(c.Fields))
	for _, f := range c.Fields {
		fields[f] = true
	}
	name := c.Name
	strict := c.Strict
	dec := func(data []byte) (any, error) {
		var obj map[string]any
		if err := jsonx.Unmarshal(data, &obj); err != nil {
			return nil, err
		}
		if obj == nil {
			return nil, fmt.Errorf("%s: expected object", name)
		}
		if strict {
			for k := range obj {
				if !fields[k] {
					return nil, fmt.Errorf("%s: unknown field %q", name, k)
				}
			}
		}
		return obj, nil
	}
	td := composed.TypeOf[map[string]any](name, composed.WithDecoder(dec))
	td.Strict = strict
	return td
}
