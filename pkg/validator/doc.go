// Package validator wraps go-playground/validator and reports failures as
// ValidationErrors keyed by JSON field name.
//
// Struct handles tag-driven checks. Apply runs ad-hoc Rule values for
// constraints that tags cannot express; Merge joins both results.
//
//	err := validator.Merge(
//	    validator.Struct(input),
//	    validator.Apply(validator.Rule{Check: ..., Error: ...}),
//	)
package validator
