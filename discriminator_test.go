package composed_test

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/composed-go/composed"
)

type Whale struct {
	HasBaleen bool   `json:"hasBaleen"`
	HasTeeth  bool   `json:"hasTeeth"`
	ClassName string `json:"className"`
}

type Zebra struct {
	Type      string `json:"type,omitempty" validate:"omitempty,oneof=plains mountain grevys"`
	ClassName string `json:"className"`

	extra map[string]any
}

func (z *Zebra) SetUnknownFields(m map[string]any) { z.extra = m }
func (z *Zebra) UnknownFields() map[string]any     { return z.extra }

func newMammal(t *testing.T, opts ...composed.CompositionOption) *composed.CompositionDescriptor {
	t.Helper()
	whale := composed.TypeOf[Whale]("Whale", composed.Strict())
	zebra := composed.TypeOf[Zebra]("Zebra", composed.CaptureUnknown(), composed.WithValidation())
	spec := composed.NewDiscriminator("className", map[string]composed.Target{
		"whale": composed.ToType(whale),
		"zebra": composed.ToType(zebra),
	})
	all := append([]composed.CompositionOption{composed.WithSpec(spec)}, opts...)
	cd, err := composed.NewComposition("Mammal", composed.OneOf,
		[]composed.TypeDescriptor{whale, zebra}, all...)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	return cd
}

func TestDiscriminatorDispatch(t *testing.T) {
	ctx := context.Background()
	mammal := newMammal(t)

	v, err := composed.Decode(ctx, mammal, []byte(`{"className":"whale","hasBaleen":true,"hasTeeth":false}`))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	w, ok := v.ActualInstance().(*Whale)
	if !ok || !w.HasBaleen || w.HasTeeth {
		t.Fatalf("expected baleen whale, got %T %#v", v.ActualInstance(), v.ActualInstance())
	}

	v, err = composed.Decode(ctx, mammal, []byte(`{"className":"zebra","type":"plains"}`))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	z, ok := v.ActualInstance().(*Zebra)
	if !ok || z.Type != "plains" {
		t.Fatalf("expected plains zebra, got %T %#v", v.ActualInstance(), v.ActualInstance())
	}
}

// The discriminator overrides whatever the field shapes would suggest:
// whale-looking payloads tagged zebra land in the Zebra capture map.
func TestDiscriminatorTakesPrecedenceOverShape(t *testing.T) {
	mammal := newMammal(t)

	v, err := composed.Decode(context.Background(), mammal,
		[]byte(`{"className":"zebra","hasBaleen":true,"hasTeeth":false}`))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	z, ok := v.ActualInstance().(*Zebra)
	if !ok {
		t.Fatalf("expected *Zebra, got %T", v.ActualInstance())
	}
	if got, ok := z.UnknownFields()["hasBaleen"].(bool); !ok || !got {
		t.Fatalf("expected hasBaleen captured, got %#v", z.UnknownFields())
	}
}

func TestCaptureRoundTrip(t *testing.T) {
	mammal := newMammal(t)
	input := []byte(`{"className":"zebra","hasBaleen":true,"hasTeeth":false}`)

	v, err := composed.Decode(context.Background(), mammal, input)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	out, err := composed.Encode(v)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got, want := mustMap(t, out), mustMap(t, input); !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip lost captured fields: %v vs %v", got, want)
	}
}

func TestValidationRejectsBadEnum(t *testing.T) {
	mammal := newMammal(t)

	_, err := composed.Decode(context.Background(), mammal,
		[]byte(`{"className":"zebra","type":"garbage"}`))
	if err == nil {
		t.Fatalf("expected validation failure")
	}
	if !strings.Contains(err.Error(), "decoding Zebra") {
		t.Fatalf("unexpected message: %v", err)
	}
}

// With the default fallback, a missing tag drops to trial matching. An
// untagged whale payload satisfies both candidates (Zebra captures the
// unknown keys), so the miss surfaces as an ambiguity.
func TestDiscriminatorMissFallsBackToMatching(t *testing.T) {
	mammal := newMammal(t)

	_, err := composed.Decode(context.Background(), mammal,
		[]byte(`{"hasBaleen":true,"hasTeeth":false}`))
	ce, ok := composed.AsError(err)
	if !ok || ce.Code != composed.CodeAmbiguousMatch || ce.Matches != 2 {
		t.Fatalf("expected ambiguous_match with 2, got: %v", err)
	}
}

// A present-but-unmapped tag is a miss too, and under the default policy
// it drops to trial matching just like an absent tag: shape matching
// decides, for better or worse.
func TestUnmappedTagFallsBackToMatching(t *testing.T) {
	ctx := context.Background()
	mammal := newMammal(t)

	// Both candidates accept this shape, so the fallthrough ends ambiguous.
	_, err := composed.Decode(ctx, mammal,
		[]byte(`{"className":"dolphin","hasBaleen":true,"hasTeeth":false}`))
	ce, ok := composed.AsError(err)
	if !ok || ce.Code != composed.CodeAmbiguousMatch || ce.Matches != 2 {
		t.Fatalf("expected ambiguous_match with 2, got: %v", err)
	}

	// Only Zebra accepts this one, so the fallthrough resolves it.
	v, err := composed.Decode(ctx, mammal, []byte(`{"className":"dolphin","type":"plains"}`))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if v.TypeName() != "Zebra" {
		t.Fatalf("expected Zebra via trial matching, got %q", v.TypeName())
	}
}

func TestDiscriminatorMissFallbackError(t *testing.T) {
	ctx := context.Background()
	mammal := newMammal(t, composed.OnDiscriminatorMiss(composed.FallbackError))

	_, err := composed.Decode(ctx, mammal, []byte(`{"hasBaleen":true}`))
	ce, ok := composed.AsError(err)
	if !ok || ce.Code != composed.CodeDiscriminatorUnresolved {
		t.Fatalf("expected discriminator_unresolved, got: %v", err)
	}
	if err.Error() != "Could not resolve subtype of Mammal: missing type id property 'className'" {
		t.Fatalf("unexpected message: %v", err)
	}

	_, err = composed.Decode(ctx, mammal, []byte(`{"className":"dolphin"}`))
	ce, ok = composed.AsError(err)
	if !ok || ce.Code != composed.CodeUnresolvedTypeID || ce.TypeID != "dolphin" {
		t.Fatalf("expected unresolved_type_id, got: %v", err)
	}
	if err.Error() != "Could not resolve type id 'dolphin' as a subtype of Mammal" {
		t.Fatalf("unexpected message: %v", err)
	}
}

// TrialFirst skips the tag entirely, so even a properly tagged payload
// goes through shape matching and hits the same ambiguity.
func TestTrialFirstIgnoresTag(t *testing.T) {
	mammal := newMammal(t, composed.TrialFirst())

	_, err := composed.Decode(context.Background(), mammal,
		[]byte(`{"className":"whale","hasBaleen":true,"hasTeeth":false}`))
	ce, ok := composed.AsError(err)
	if !ok || ce.Code != composed.CodeAmbiguousMatch {
		t.Fatalf("expected ambiguous_match, got: %v", err)
	}
}
