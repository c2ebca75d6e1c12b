package composed_test

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/composed-go/composed"
	gojson "github.com/goccy/go-json"
)

type AppleReq struct {
	Cultivar string `json:"cultivar"`
	Mealy    bool   `json:"mealy"`
}

type BananaReq struct {
	LengthCm float64 `json:"lengthCm"`
}

type Apple struct {
	Cultivar string `json:"cultivar,omitempty"`
	Origin   string `json:"origin,omitempty"`
}

type Banana struct {
	LengthCm float64 `json:"lengthCm,omitempty"`
}

func newFruitReq(t *testing.T) *composed.CompositionDescriptor {
	t.Helper()
	cd, err := composed.NewComposition("FruitReq", composed.OneOf,
		[]composed.TypeDescriptor{
			composed.TypeOf[AppleReq]("AppleReq", composed.Strict()),
			composed.TypeOf[BananaReq]("BananaReq", composed.Strict()),
		},
		composed.Nullable(),
	)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	return cd
}

func mustMap(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var m map[string]any
	if err := gojson.Unmarshal(data, &m); err != nil {
		t.Fatalf("not an object: %v", err)
	}
	return m
}

func TestOneOfMatchesSingleCandidate(t *testing.T) {
	ctx := context.Background()
	fruit := newFruitReq(t)

	v, err := composed.Decode(ctx, fruit, []byte(`{"cultivar":"golden delicious","mealy":false}`))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	apple, ok := v.ActualInstance().(*AppleReq)
	if !ok {
		t.Fatalf("expected *AppleReq, got %T", v.ActualInstance())
	}
	if apple.Cultivar != "golden delicious" || apple.Mealy {
		t.Fatalf("unexpected value: %#v", apple)
	}
	if v.TypeName() != "AppleReq" || v.Schema() != "FruitReq" {
		t.Fatalf("unexpected resolution: %q of %q", v.TypeName(), v.Schema())
	}

	v, err = composed.Decode(ctx, fruit, []byte(`{"lengthCm":17}`))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	banana, ok := v.ActualInstance().(*BananaReq)
	if !ok {
		t.Fatalf("expected *BananaReq, got %T", v.ActualInstance())
	}
	if banana.LengthCm != 17 {
		t.Fatalf("unexpected value: %#v", banana)
	}
}

func TestOneOfUnknownFieldDisqualifies(t *testing.T) {
	fruit := newFruitReq(t)

	_, err := composed.Decode(context.Background(), fruit,
		[]byte(`{"cultivar":"golden delicious","mealy":false,"garbage_prop":"abc"}`))
	if err == nil {
		t.Fatalf("expected no_match")
	}
	ce, ok := composed.AsError(err)
	if !ok || ce.Code != composed.CodeNoMatch || ce.Matches != 0 {
		t.Fatalf("expected no_match with 0, got: %v", err)
	}
	if !strings.Contains(err.Error(), "Failed deserialization for FruitReq: 0 classes match result") {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestOneOfEmptyObjectIsAmbiguous(t *testing.T) {
	fruit := newFruitReq(t)

	_, err := composed.Decode(context.Background(), fruit, []byte(`{}`))
	ce, ok := composed.AsError(err)
	if !ok || ce.Code != composed.CodeAmbiguousMatch || ce.Matches != 2 {
		t.Fatalf("expected ambiguous_match with 2, got: %v", err)
	}
	if !strings.Contains(err.Error(), "Failed deserialization for FruitReq: 2 classes match result") {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestOneOfNullable(t *testing.T) {
	fruit := newFruitReq(t)

	v, err := composed.Decode(context.Background(), fruit, []byte(` null `))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !v.IsNull() || v.ActualInstance() != nil || v.TypeName() != "" {
		t.Fatalf("expected empty container, got: %#v", v)
	}
	out, err := composed.Encode(v)
	if err != nil || string(out) != "null" {
		t.Fatalf("expected null literal, got %q (err %v)", out, err)
	}
}

func TestNullNotAllowed(t *testing.T) {
	gm, err := composed.NewComposition("GmFruit", composed.AnyOf,
		[]composed.TypeDescriptor{
			composed.TypeOf[Apple]("Apple"),
			composed.TypeOf[Banana]("Banana"),
		},
	)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	_, err = composed.Decode(context.Background(), gm, []byte(`null`))
	ce, ok := composed.AsError(err)
	if !ok || ce.Code != composed.CodeNullNotAllowed {
		t.Fatalf("expected null_not_allowed, got: %v", err)
	}
	if err.Error() != "GmFruit cannot be null" {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestOneOfRoundTrip(t *testing.T) {
	fruit := newFruitReq(t)
	input := []byte(`{"cultivar":"golden delicious","mealy":true}`)

	v, err := composed.Decode(context.Background(), fruit, input)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	out, err := composed.Encode(v)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got, want := mustMap(t, out), mustMap(t, input); !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip changed the field set: %v vs %v", got, want)
	}
}

func TestAnyOfFirstDeclaredWins(t *testing.T) {
	ctx := context.Background()
	apple := composed.TypeOf[Apple]("Apple")
	banana := composed.TypeOf[Banana]("Banana")

	gm, err := composed.NewComposition("GmFruit", composed.AnyOf,
		[]composed.TypeDescriptor{apple, banana})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	v, err := composed.Decode(ctx, gm, []byte(`{}`))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, ok := v.ActualInstance().(*Apple); !ok {
		t.Fatalf("expected first-declared *Apple, got %T", v.ActualInstance())
	}

	// Declaration order is a semantic tie-break: flipping it flips the result.
	flipped, err := composed.NewComposition("GmFruit", composed.AnyOf,
		[]composed.TypeDescriptor{banana, apple})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	v, err = composed.Decode(ctx, flipped, []byte(`{}`))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, ok := v.ActualInstance().(*Banana); !ok {
		t.Fatalf("expected first-declared *Banana, got %T", v.ActualInstance())
	}
}

func TestAnyOfStrictCandidates(t *testing.T) {
	ctx := context.Background()
	gm, err := composed.NewComposition("GmFruit", composed.AnyOf,
		[]composed.TypeDescriptor{
			composed.TypeOf[Apple]("Apple", composed.Strict()),
			composed.TypeOf[Banana]("Banana", composed.Strict()),
		},
	)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	v, err := composed.Decode(ctx, gm, []byte(`{"cultivar":"golden delicious","origin":"California"}`))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	a, ok := v.ActualInstance().(*Apple)
	if !ok || a.Cultivar != "golden delicious" || a.Origin != "California" {
		t.Fatalf("expected *Apple from California, got %T %#v", v.ActualInstance(), v.ActualInstance())
	}

	v, err = composed.Decode(ctx, gm, []byte(`{"lengthCm":17}`))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, ok := v.ActualInstance().(*Banana); !ok {
		t.Fatalf("expected *Banana, got %T", v.ActualInstance())
	}

	_, err = composed.Decode(ctx, gm, []byte(`[1,2,3]`))
	ce, ok := composed.AsError(err)
	if !ok || ce.Code != composed.CodeNoMatch || ce.Matches != 0 {
		t.Fatalf("expected no_match with 0, got: %v", err)
	}
}
