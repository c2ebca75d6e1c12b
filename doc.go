// Package composed decodes and encodes JSON values against OpenAPI
// composed schemas: oneOf, anyOf, and allOf combinations of candidate
// types, optionally dispatched through a discriminator property.
//
// It provides:
//
// - An ordered trial-matching engine with oneOf exactly-one and anyOf
//   first-match semantics
// - Discriminator dispatch for flat compositions and multi-level
//   inheritance chains, with a configurable miss-fallback policy
// - A Value container that owns the resolved instance and encodes it
//   transparently
// - A write-once-then-read-only Registry keyed by schema name
// - A stable error taxonomy via *Error (code, schema name, match count,
//   type id) whose message shapes are part of the wire contract
//
// Design policy:
// - Keep only public APIs in the root package; put the JSON engine under
//   internal/.
// - Place the descriptor manifest loader under manifest/ and the CLI
//   under cmd/composed.
// - Prefer black-box testing against public APIs.
//
// Matching is structural: a candidate matches when the value decodes into
// its declared field set under the candidate's strictness, not when every
// schema constraint holds. Constraint-level validation is out of scope.
//
// Typical usage:
//
//	apple := composed.TypeOf[AppleReq]("AppleReq", composed.Strict())
//	banana := composed.TypeOf[BananaReq]("BananaReq", composed.Strict())
//	fruit := composed.MustComposition("FruitReq", composed.OneOf,
//		[]composed.TypeDescriptor{apple, banana}, composed.Nullable())
//	composed.MustRegister(fruit)
//	composed.Default().Freeze()
//
//	v, err := composed.Default().Decode(ctx, "FruitReq", data)
//	out, err := composed.Encode(v)
package composed
