package composed

import (
	"context"
	"errors"
	"fmt"

	"github.com/composed-go/composed/internal/jsonx"
)

// Decode resolves raw JSON against a composition descriptor and returns
// the populated Value. When a discriminator is configured it dispatches
// on the tag property first (unless TrialFirst was set); otherwise, and
// on a discriminator miss under FallbackMatching, it runs the ordered
// trial-matching loop.
//
// Matching is structural only: a candidate matches when its decode hook
// accepts the value. Declared constraints such as required properties are
// not consulted, so ambiguity can be under-counted relative to full
// JSON-Schema validation.
func Decode(ctx context.Context, desc *CompositionDescriptor, data []byte) (Value, error) {
	if desc == nil {
		return Value{}, errors.New("composed: nil composition descriptor")
	}
	if jsonx.IsNull(data) {
		if desc.nullable {
			return Value{desc: desc}, nil
		}
		return Value{}, &Error{Schema: desc.Name, Code: CodeNullNotAllowed}
	}
	if desc.Kind == AllOf {
		return decodeSubtype(ctx, desc, data)
	}
	if d := desc.discriminator; d != nil && !desc.trialFirst {
		v, hit, err := dispatch(ctx, desc, d, data)
		if hit {
			return v, err
		}
		if desc.fallback == FallbackError {
			return Value{}, unresolvedFlat(desc, d, data)
		}
	}
	switch desc.Kind {
	case OneOf:
		return matchOne(desc, data)
	case AnyOf:
		return matchAny(desc, data)
	}
	return Value{}, fmt.Errorf("composed: %s: unsupported kind %s", desc.Name, desc.Kind)
}

// Encode serializes a value transparently: the wrapper contributes no
// fields of its own, and a null value emits the null literal.
func Encode(v Value) ([]byte, error) { return v.MarshalJSON() }

// dispatch attempts discriminator-first resolution on a flat oneOf/anyOf.
// hit is false when the tag property is absent, not a string, or unmapped;
// the caller then applies the fallback policy. A self-referential mapping
// entry (the composed type's own name as the default branch) also reports
// a miss so the trial loop decides.
func dispatch(ctx context.Context, desc *CompositionDescriptor, d *DiscriminatorSpec, data []byte) (Value, bool, error) {
	tag, ok := jsonx.StringField(data, d.Property)
	if !ok || tag == "" {
		return Value{}, false, nil
	}
	target, ok := d.Lookup(tag)
	if !ok {
		return Value{}, false, nil
	}
	if target.Kind == TargetComposition && target.Composition == desc {
		return Value{}, false, nil
	}
	v, err := decodeTarget(ctx, desc, target, data)
	return v, true, err
}

// decodeSubtype is the allOf inheritance path: the discriminator is
// load-bearing and mandatory, and no trial loop runs. The tag resolves
// transitively through nested specs to the most specific registered type.
func decodeSubtype(ctx context.Context, desc *CompositionDescriptor, data []byte) (Value, error) {
	d := desc.discriminator
	tag, ok := jsonx.StringField(data, d.Property)
	if !ok || tag == "" {
		return Value{}, &Error{Schema: desc.Name, Code: CodeDiscriminatorUnresolved, Property: d.Property}
	}
	target, ok := d.resolve(tag, map[*DiscriminatorSpec]bool{})
	if !ok {
		return Value{}, &Error{Schema: desc.Name, Code: CodeUnresolvedTypeID, TypeID: tag}
	}
	return decodeTarget(ctx, desc, target, data)
}

// decodeTarget decodes the full input against a resolved dispatch target,
// recursing through nested compositions and through a base candidate's
// own spec when the tag names a deeper subtype. The returned value is
// re-homed under desc so the container reports the outer schema.
func decodeTarget(ctx context.Context, desc *CompositionDescriptor, target Target, data []byte) (Value, error) {
	switch target.Kind {
	case TargetComposition:
		inner, err := Decode(ctx, target.Composition, data)
		if err != nil {
			return Value{}, err
		}
		return Value{desc: desc, instance: inner.instance, typeName: inner.typeName}, nil
	default:
		td := target.Type
		if nested := td.Discriminator; nested != nil {
			if tag, ok := jsonx.StringField(data, nested.Property); ok && tag != "" {
				if nt, deeper := nested.resolve(tag, map[*DiscriminatorSpec]bool{}); deeper && nt.name() != td.Name {
					return decodeTarget(ctx, desc, nt, data)
				}
			}
		}
		inst, err := td.Decode(data)
		if err != nil {
			return Value{}, fmt.Errorf("composed: %s: decoding %s: %w", desc.Name, td.Name, err)
		}
		return Value{desc: desc, instance: inst, typeName: td.Name}, nil
	}
}

// trialResult carries the outcome of one candidate attempt. Failures stay
// inside the matching loop; only the aggregate taxonomy crosses the
// package boundary.
type trialResult struct {
	ok       bool
	name     string
	instance any
	reason   error
}

func trial(td TypeDescriptor, data []byte) trialResult {
	inst, err := td.Decode(data)
	if err != nil {
		return trialResult{name: td.Name, reason: fmt.Errorf("%s: %s: %w", td.Name, codeFieldMismatch, err)}
	}
	return trialResult{ok: true, name: td.Name, instance: inst}
}

// matchOne runs the ordered trial loop and requires exactly one
// structural match. Every candidate is attempted; one trial's failure
// never aborts the loop.
func matchOne(desc *CompositionDescriptor, data []byte) (Value, error) {
	var won trialResult
	var lastMiss error
	matches := 0
	for i := range desc.candidates {
		res := trial(desc.candidates[i], data)
		if !res.ok {
			lastMiss = res.reason
			continue
		}
		matches++
		if matches == 1 {
			won = res
		}
	}
	if matches == 1 {
		return Value{desc: desc, instance: won.instance, typeName: won.name}, nil
	}
	code := CodeNoMatch
	if matches > 1 {
		code = CodeAmbiguousMatch
		lastMiss = nil
	}
	return Value{}, &Error{Schema: desc.Name, Code: code, Matches: matches, cause: lastMiss}
}

// matchAny returns the first candidate whose trial succeeds; declaration
// order is a semantic tie-break, not an implementation detail.
func matchAny(desc *CompositionDescriptor, data []byte) (Value, error) {
	var lastMiss error
	for i := range desc.candidates {
		res := trial(desc.candidates[i], data)
		if res.ok {
			return Value{desc: desc, instance: res.instance, typeName: res.name}, nil
		}
		lastMiss = res.reason
	}
	return Value{}, &Error{Schema: desc.Name, Code: CodeNoMatch, Matches: 0, cause: lastMiss}
}

func unresolvedFlat(desc *CompositionDescriptor, d *DiscriminatorSpec, data []byte) *Error {
	if tag, ok := jsonx.StringField(data, d.Property); ok && tag != "" {
		return &Error{Schema: desc.Name, Code: CodeUnresolvedTypeID, TypeID: tag}
	}
	return &Error{Schema: desc.Name, Code: CodeDiscriminatorUnresolved, Property: d.Property}
}
