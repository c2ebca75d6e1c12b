package composed

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/composed-go/composed/internal/jsonx"
)

// Kind enumerates the composition keywords.
type Kind int

const (
	OneOf Kind = iota
	AnyOf
	AllOf
)

func (k Kind) String() string {
	switch k {
	case OneOf:
		return "oneOf"
	case AnyOf:
		return "anyOf"
	case AllOf:
		return "allOf"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// FallbackPolicy decides what a discriminator miss does on a flat
// oneOf/anyOf schema: an input whose tag property is absent or whose
// value is not in the mapping.
type FallbackPolicy int

const (
	// FallbackMatching falls through to the ordered trial-matching loop
	// over all candidates.
	FallbackMatching FallbackPolicy = iota
	// FallbackError fails immediately with discriminator_unresolved.
	FallbackError
)

// DecodeFunc turns raw JSON into a candidate instance. A returned error
// counts as a non-match on trial paths and as a decode failure on
// discriminator paths.
type DecodeFunc func(data []byte) (any, error)

// EncodeFunc serializes a candidate instance.
type EncodeFunc func(v any) ([]byte, error)

// UnknownFieldCarrier is implemented by candidate types built with
// CaptureUnknown. Input fields beyond the declared set are handed to the
// instance after decoding and merged back into its output on encoding.
type UnknownFieldCarrier interface {
	SetUnknownFields(map[string]any)
	UnknownFields() map[string]any
}

// TypeDescriptor identifies one candidate type participating in a
// composition. Descriptors are immutable after registration; build them
// with TypeOf during the registration phase.
type TypeDescriptor struct {
	Name    string
	Strict  bool
	Capture bool
	// Discriminator carries a nested spec when this candidate is itself
	// the base of a deeper hierarchy.
	Discriminator *DiscriminatorSpec

	rtype  reflect.Type
	decode DecodeFunc
	encode EncodeFunc
}

// Decode runs the candidate's decode hook.
func (t TypeDescriptor) Decode(data []byte) (any, error) { return t.decode(data) }

// Encode serializes an instance of this candidate.
func (t TypeDescriptor) Encode(v any) ([]byte, error) {
	if t.encode != nil {
		return t.encode(v)
	}
	return jsonx.Marshal(v)
}

// owns reports whether v's dynamic type is this candidate's type. Both T
// and *T are accepted.
func (t TypeDescriptor) owns(v any) bool {
	if t.rtype == nil {
		return false
	}
	rt := reflect.TypeOf(v)
	if rt == nil {
		return false
	}
	if rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	return rt == t.rtype
}

// TypeOption configures TypeOf.
type TypeOption func(*typeConfig)

type typeConfig struct {
	strict   bool
	capture  bool
	validate bool
	decode   DecodeFunc
	encode   EncodeFunc
	disc     *DiscriminatorSpec
}

// Strict makes unknown input fields reject the decode.
func Strict() TypeOption { return func(c *typeConfig) { c.strict = true } }

// CaptureUnknown accepts unknown input fields and stores them on the
// instance through its UnknownFieldCarrier implementation.
func CaptureUnknown() TypeOption { return func(c *typeConfig) { c.capture = true } }

// WithValidation runs a struct validation pass (go-playground/validator
// tags) as the tail of the decode hook. A validation failure behaves like
// any other decode failure of the candidate.
func WithValidation() TypeOption { return func(c *typeConfig) { c.validate = true } }

// WithDecoder replaces the generated decode hook.
func WithDecoder(fn DecodeFunc) TypeOption { return func(c *typeConfig) { c.decode = fn } }

// WithEncoder replaces the generated encode hook.
func WithEncoder(fn EncodeFunc) TypeOption { return func(c *typeConfig) { c.encode = fn } }

// WithDiscriminator attaches a nested discriminator spec, marking this
// candidate as the base of a deeper hierarchy.
func WithDiscriminator(spec *DiscriminatorSpec) TypeOption {
	return func(c *typeConfig) { c.disc = spec }
}

// structValidator is cached to avoid recreation on each decode.
var (
	structValidator *validator.Validate
	validatorOnce   sync.Once
)

func getValidator() *validator.Validate {
	validatorOnce.Do(func() {
		structValidator = validator.New()
	})
	return structValidator
}

// TypeOf builds the TypeDescriptor for candidate type T. It panics on
// conflicting options or a CaptureUnknown T that does not implement
// UnknownFieldCarrier: descriptors are built during the registration
// phase, where misconfiguration is a programming error.
func TypeOf[T any](name string, opts ...TypeOption) TypeDescriptor {
	var cfg typeConfig
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.strict && cfg.capture {
		panic("composed: TypeOf " + name + ": Strict and CaptureUnknown are mutually exclusive")
	}
	rt := reflect.TypeOf((*T)(nil)).Elem()
	if cfg.capture {
		if _, ok := any(new(T)).(UnknownFieldCarrier); !ok {
			panic("composed: TypeOf " + name + ": CaptureUnknown requires *" + rt.String() + " to implement UnknownFieldCarrier")
		}
	}
	dec := cfg.decode
	if dec == nil {
		dec = func(data []byte) (any, error) {
			out := new(T)
			switch {
			case cfg.strict:
				if err := jsonx.UnmarshalStrict(data, out); err != nil {
					return nil, err
				}
			case cfg.capture:
				rest, err := jsonx.UnmarshalCapture(data, out)
				if err != nil {
					return nil, err
				}
				if len(rest) > 0 {
					any(out).(UnknownFieldCarrier).SetUnknownFields(rest)
				}
			default:
				if err := jsonx.Unmarshal(data, out); err != nil {
					return nil, err
				}
			}
			if cfg.validate {
				if err := getValidator().Struct(out); err != nil {
					return nil, err
				}
			}
			return out, nil
		}
	}
	enc := cfg.encode
	if enc == nil && cfg.capture {
		enc = func(v any) ([]byte, error) {
			carrier, ok := v.(UnknownFieldCarrier)
			if !ok {
				return jsonx.Marshal(v)
			}
			return jsonx.MergeObject(v, carrier.UnknownFields())
		}
	}
	return TypeDescriptor{
		Name:          name,
		Strict:        cfg.strict,
		Capture:       cfg.capture,
		Discriminator: cfg.disc,
		rtype:         rt,
		decode:        dec,
		encode:        enc,
	}
}

// TargetKind tags the Target variants.
type TargetKind int

const (
	// TargetType dispatches to a concrete candidate type.
	TargetType TargetKind = iota
	// TargetComposition recurses into a nested composed schema.
	TargetComposition
)

// Target is the closed destination union of one discriminator mapping
// entry. Build values with ToType or ToComposition; consumers switch on
// Kind exhaustively.
type Target struct {
	Kind        TargetKind
	Type        TypeDescriptor
	Composition *CompositionDescriptor
}

// ToType maps a tag value to a concrete candidate type.
func ToType(td TypeDescriptor) Target { return Target{Kind: TargetType, Type: td} }

// ToComposition maps a tag value to a nested composed schema.
func ToComposition(cd *CompositionDescriptor) Target {
	return Target{Kind: TargetComposition, Composition: cd}
}

func (t Target) name() string {
	switch t.Kind {
	case TargetComposition:
		if t.Composition != nil {
			return t.Composition.Name
		}
		return ""
	default:
		return t.Type.Name
	}
}

// DiscriminatorSpec names the tag property and maps tag values to their
// dispatch targets. Lookups are case-sensitive exact matches; keys are
// unique by construction.
type DiscriminatorSpec struct {
	Property string
	mapping  map[string]Target
}

// NewDiscriminator builds a spec from a property name and mapping. The
// mapping is copied.
func NewDiscriminator(property string, mapping map[string]Target) *DiscriminatorSpec {
	m := make(map[string]Target, len(mapping))
	for k, v := range mapping {
		m[k] = v
	}
	return &DiscriminatorSpec{Property: property, mapping: m}
}

// Lookup resolves a tag value against this spec's own mapping.
func (d *DiscriminatorSpec) Lookup(value string) (Target, bool) {
	t, ok := d.mapping[value]
	return t, ok
}

// Values returns the mapped tag values in sorted order.
func (d *DiscriminatorSpec) Values() []string {
	out := make([]string, 0, len(d.mapping))
	for k := range d.mapping {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// resolve looks a tag up through this spec and, transitively, through the
// specs of every mapped base type or nested composition, returning the
// most specific registered target.
func (d *DiscriminatorSpec) resolve(tag string, seen map[*DiscriminatorSpec]bool) (Target, bool) {
	if d == nil || seen[d] {
		return Target{}, false
	}
	seen[d] = true
	if t, ok := d.mapping[tag]; ok {
		return t, true
	}
	for _, t := range d.mapping {
		switch t.Kind {
		case TargetComposition:
			if t.Composition != nil {
				if r, ok := t.Composition.discriminator.resolve(tag, seen); ok {
					return r, true
				}
			}
		case TargetType:
			if r, ok := t.Type.Discriminator.resolve(tag, seen); ok {
				return r, true
			}
		}
	}
	return Target{}, false
}

// CompositionDescriptor describes one composed schema: its kind, the
// ordered candidate list (order is the anyOf tie-break), nullability, and
// an optional discriminator. Created once at registration time and never
// mutated afterward.
type CompositionDescriptor struct {
	Name string
	Kind Kind

	nullable      bool
	candidates    []TypeDescriptor
	discriminator *DiscriminatorSpec
	trialFirst    bool
	fallback      FallbackPolicy
}

// CompositionOption configures NewComposition.
type CompositionOption func(*CompositionDescriptor)

// Nullable allows the JSON null literal as a decoded result.
func Nullable() CompositionOption { return func(c *CompositionDescriptor) { c.nullable = true } }

// WithMapping attaches a discriminator: the property carrying the type
// tag and the tag-to-target mapping.
func WithMapping(property string, mapping map[string]Target) CompositionOption {
	return func(c *CompositionDescriptor) { c.discriminator = NewDiscriminator(property, mapping) }
}

// WithSpec attaches an already built discriminator spec.
func WithSpec(spec *DiscriminatorSpec) CompositionOption {
	return func(c *CompositionDescriptor) { c.discriminator = spec }
}

// TrialFirst disables discriminator-first dispatch: the trial-matching
// loop runs even when a discriminator is configured.
func TrialFirst() CompositionOption { return func(c *CompositionDescriptor) { c.trialFirst = true } }

// OnDiscriminatorMiss selects what a discriminator miss does on a flat
// oneOf/anyOf schema. The default is FallbackMatching.
func OnDiscriminatorMiss(p FallbackPolicy) CompositionOption {
	return func(c *CompositionDescriptor) { c.fallback = p }
}

// NewComposition builds and validates a composition descriptor.
func NewComposition(name string, kind Kind, candidates []TypeDescriptor, opts ...CompositionOption) (*CompositionDescriptor, error) {
	if name == "" {
		return nil, fmt.Errorf("composed: composition needs a name")
	}
	c := &CompositionDescriptor{Name: name, Kind: kind}
	c.candidates = append(c.candidates, candidates...)
	for _, o := range opts {
		o(c)
	}
	switch kind {
	case OneOf, AnyOf:
		if len(c.candidates) == 0 {
			return nil, fmt.Errorf("composed: %s: %s needs at least one candidate", name, kind)
		}
	case AllOf:
		if c.discriminator == nil || len(c.discriminator.mapping) == 0 {
			return nil, fmt.Errorf("composed: %s: allOf dispatch needs a discriminator mapping", name)
		}
	default:
		return nil, fmt.Errorf("composed: %s: unsupported kind %s", name, kind)
	}
	if c.discriminator != nil && c.discriminator.Property == "" {
		return nil, fmt.Errorf("composed: %s: discriminator needs a property name", name)
	}
	names := make(map[string]bool, len(c.candidates))
	for _, td := range c.candidates {
		if td.Name == "" {
			return nil, fmt.Errorf("composed: %s: candidate needs a name", name)
		}
		if names[td.Name] {
			return nil, fmt.Errorf("composed: %s: duplicate candidate %q", name, td.Name)
		}
		names[td.Name] = true
	}
	return c, nil
}

// MustComposition is NewComposition panicking on error, for registration
// blocks in generated code.
func MustComposition(name string, kind Kind, candidates []TypeDescriptor, opts ...CompositionOption) *CompositionDescriptor {
	c, err := NewComposition(name, kind, candidates, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// IsNullable reports whether null is a valid decoded result.
func (c *CompositionDescriptor) IsNullable() bool { return c.nullable }

// Candidates returns a copy of the ordered candidate list.
func (c *CompositionDescriptor) Candidates() []TypeDescriptor {
	return append([]TypeDescriptor(nil), c.candidates...)
}

// Discriminator returns the attached spec, or nil.
func (c *CompositionDescriptor) Discriminator() *DiscriminatorSpec { return c.discriminator }

// Fallback returns the discriminator-miss policy.
func (c *CompositionDescriptor) Fallback() FallbackPolicy { return c.fallback }

// IsTrialFirst reports whether discriminator-first dispatch is disabled.
func (c *CompositionDescriptor) IsTrialFirst() bool { return c.trialFirst }

// walk visits every type descriptor reachable from this composition:
// candidates, discriminator targets, and nested compositions, with a
// cycle guard. It stops and reports true as soon as fn does.
func (c *CompositionDescriptor) walk(seen map[*CompositionDescriptor]bool, fn func(TypeDescriptor) bool) bool {
	if c == nil || seen[c] {
		return false
	}
	seen[c] = true
	for _, td := range c.candidates {
		if fn(td) {
			return true
		}
		if walkSpec(td.Discriminator, seen, fn) {
			return true
		}
	}
	return walkSpec(c.discriminator, seen, fn)
}

func walkSpec(d *DiscriminatorSpec, seen map[*CompositionDescriptor]bool, fn func(TypeDescriptor) bool) bool {
	if d == nil {
		return false
	}
	for _, t := range d.mapping {
		switch t.Kind {
		case TargetComposition:
			if t.Composition.walk(seen, fn) {
				return true
			}
		case TargetType:
			if fn(t.Type) {
				return true
			}
			if walkSpec(t.Type.Discriminator, seen, fn) {
				return true
			}
		}
	}
	return false
}

// locate finds the reachable candidate owning v's dynamic type.
func (c *CompositionDescriptor) locate(v any) (TypeDescriptor, bool) {
	var found TypeDescriptor
	ok := c.walk(map[*CompositionDescriptor]bool{}, func(td TypeDescriptor) bool {
		if td.owns(v) {
			found = td
			return true
		}
		return false
	})
	return found, ok
}

// encoderFor finds the reachable candidate named name, for transparent
// re-encoding of a resolved instance.
func (c *CompositionDescriptor) encoderFor(name string) (TypeDescriptor, bool) {
	var found TypeDescriptor
	ok := c.walk(map[*CompositionDescriptor]bool{}, func(td TypeDescriptor) bool {
		if td.Name == name {
			found = td
			return true
		}
		return false
	})
	return found, ok
}
