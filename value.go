package composed

import (
	"errors"
	"fmt"

	"github.com/composed-go/composed/internal/jsonx"
)

// Value is the runtime container produced by a successful decode of a
// composed schema. It owns exactly one resolved instance, or none when
// the input was null against a nullable schema. Encoding a Value emits
// the held instance transparently; the wrapper is invisible on the wire.
type Value struct {
	desc     *CompositionDescriptor
	instance any
	typeName string
}

// NewValue constructs a Value from an already-typed instance,
// re-validating membership against the candidate set.
//
// Membership goes by runtime type. When several candidates share one Go
// type (manifest-bound generic candidates are all map[string]any), the
// first-declared owner wins regardless of which field set the instance
// satisfies; use Decode for content-based resolution.
func NewValue(desc *CompositionDescriptor, inst any) (Value, error) {
	v := Value{desc: desc}
	if err := v.SetActualInstance(inst); err != nil {
		return Value{}, err
	}
	return v, nil
}

// Schema returns the owning composed schema's name.
func (v Value) Schema() string {
	if v.desc == nil {
		return ""
	}
	return v.desc.Name
}

// IsNull reports whether the container holds no instance.
func (v Value) IsNull() bool { return v.instance == nil }

// ActualInstance returns the held instance, or nil for a null value.
func (v Value) ActualInstance() any { return v.instance }

// TypeName returns the resolved candidate's name, or "" for a null value.
func (v Value) TypeName() string { return v.typeName }

// SetActualInstance replaces the held instance after re-validating that
// inst's runtime type is a member of the candidate set, recursing through
// nested compositions. A nil instance is only accepted when the schema is
// nullable.
func (v *Value) SetActualInstance(inst any) error {
	if v.desc == nil {
		return errors.New("composed: value has no composition descriptor")
	}
	if inst == nil {
		if !v.desc.nullable {
			return &Error{Schema: v.desc.Name, Code: CodeNullNotAllowed}
		}
		v.instance = nil
		v.typeName = ""
		return nil
	}
	td, ok := v.desc.locate(inst)
	if !ok {
		return &Error{Schema: v.desc.Name, Code: CodeInvalidInstance, Instance: fmt.Sprintf("%T", inst)}
	}
	v.instance = inst
	v.typeName = td.Name
	return nil
}

// MarshalJSON serializes exactly the held instance's fields through the
// resolved candidate's encode hook, so captured unknown fields round-trip
// as part of that candidate's own output.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.instance == nil {
		return []byte("null"), nil
	}
	if v.desc != nil {
		if td, ok := v.desc.encoderFor(v.typeName); ok {
			return td.Encode(v.instance)
		}
	}
	return jsonx.Marshal(v.instance)
}
