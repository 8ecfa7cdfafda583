// Package errors provides structured error types for bundle lowering.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the module and operation it is attached to, so a
// failed pass run can point at the offending op.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseConvert, errors.KindArityMismatch).
//		Module("Top").
//		Location("instance \"m0\"").
//		Detail("expected %d operands, got %d", 2, 3).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.TypeMismatch(errors.PhaseVerify, "Top", "pack", "i1", "i8")
//	err := errors.ResidualAdapter("Top", "%b = pack")
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
