// Package jsonx is the JSON engine behind the composed package. It wraps
// goccy/go-json for plain and unknown-field-rejecting decodes and
// perimeterx/marshmallow for unknown-field-capturing decodes, so the rest
// of the module never touches a JSON library directly.
package jsonx

import (
	"bytes"
	"fmt"

	gojson "github.com/goccy/go-json"
	"github.com/perimeterx/marshmallow"
)

// Unmarshal decodes data into v, ignoring fields not declared on v.
func Unmarshal(data []byte, v any) error { return gojson.Unmarshal(data, v) }

// Marshal encodes v.
func Marshal(v any) ([]byte, error) { return gojson.Marshal(v) }

// UnmarshalStrict decodes data into v and fails on any input field not
// declared on v.
func UnmarshalStrict(data []byte, v any) error {
	dec := gojson.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// UnmarshalCapture decodes the declared fields of data into v (a struct
// pointer) and returns the input fields that have no declared counterpart.
func UnmarshalCapture(data []byte, v any) (map[string]any, error) {
	return marshmallow.Unmarshal(data, v, marshmallow.WithExcludeKnownFieldsFromMap(true))
}

// IsNull reports whether data is the JSON null literal, ignoring
// surrounding whitespace.
func IsNull(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}

// FieldMap decodes only the top level of an object, leaving every value
// raw.
func FieldMap(data []byte) (map[string]gojson.RawMessage, error) {
	var m map[string]gojson.RawMessage
	if err := gojson.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// StringField returns the string value of key at the top level of data.
// ok is false when data is not an object, the key is absent, or the value
// is not a JSON string.
func StringField(data []byte, key string) (string, bool) {
	m, err := FieldMap(data)
	if err != nil {
		return "", false
	}
	raw, present := m[key]
	if !present {
		return "", false
	}
	var s string
	if err := gojson.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// MergeObject encodes v as an object and adds extra top-level fields to
// it. Declared fields win on key collision.
func MergeObject(v any, extra map[string]any) ([]byte, error) {
	base, err := gojson.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return base, nil
	}
	var m map[string]any
	if err := gojson.Unmarshal(base, &m); err != nil {
		return nil, fmt.Errorf("jsonx: merge target is not an object: %w", err)
	}
	for k, val := range extra {
		if _, taken := m[k]; !taken {
			m[k] = val
		}
	}
	return gojson.Marshal(m)
}
