// Package hw is the in-memory design representation the lowering pass
// operates on.
//
// A Design is an arena of modules, ops and values addressed by integer
// handles (ModuleID, OpID, ValueID). Handles stay valid while ports,
// operands and ops are inserted and removed, so transforms can hold them
// across rewrites.
//
// # Modules
//
// Three module kinds exist:
//
//	Definition   has a body, signature may be rewritten
//	Extern       declaration only, signature may be rewritten
//	Fixed        declaration only, signature frozen
//
// A Definition's body is one block: an argument per input port and an op
// list ending in the output terminator, which has one operand per output
// port.
//
// # Adapters
//
// Pack and Unpack convert between a bundle value and its channels:
//
//	pack   operands: to-channels            results: bundle, from-channels
//	unpack operands: bundle, from-channels  results: to-channels
//
// When the target type is an array of N bundles, every channel value is
// carried as an array of N channel values.
//
// # Mutation
//
// All edits go through Design and Builder methods so use lists stay
// consistent. Verify checks a design after construction or rewriting.
package hw
