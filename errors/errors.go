package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseParse        Phase = "parse"        // text format reading
	PhaseVerify       Phase = "verify"       // structural and type checks
	PhaseConvert      Phase = "convert"      // port conversion of one module
	PhaseCanonicalize Phase = "canonicalize" // adapter cleanup worklist
	PhaseLower        Phase = "lower"        // pass-level invariants
	PhaseConfig       Phase = "config"       // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidInput    Kind = "invalid_input"
	KindNotFound        Kind = "not_found"
	KindDuplicate       Kind = "duplicate"
	KindTypeMismatch    Kind = "type_mismatch"
	KindArityMismatch   Kind = "arity_mismatch"
	KindOutOfBounds     Kind = "out_of_bounds"
	KindDanglingUse     Kind = "dangling_use"
	KindUnsupported     Kind = "unsupported"
	KindConversion      Kind = "conversion"
	KindResidualAdapter Kind = "residual_adapter"
	KindNonConvergence  Kind = "non_convergence"
	KindCycle           Kind = "cycle"
)

// Error is the structured error type used throughout the module
type Error struct {
	Cause    error
	Phase    Phase
	Kind     Kind
	Module   string
	Location string
	Detail   string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Line > 0 {
		fmt.Fprintf(&b, " at line %d", e.Line)
	}

	if e.Module != "" {
		b.WriteString(" in module ")
		b.WriteString(e.Module)
	}

	if e.Location != "" {
		b.WriteString(" (")
		b.WriteString(e.Location)
		b.WriteByte(')')
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return (t.Phase == phaseAny || e.Phase == t.Phase) && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Module sets the module the error is attached to
func (b *Builder) Module(name string) *Builder {
	b.err.Module = name
	return b
}

// Location sets the operation or port the error is attached to
func (b *Builder) Location(loc string) *Builder {
	b.err.Location = loc
	return b
}

// Line sets the source line for text format errors
func (b *Builder) Line(line int) *Builder {
	b.err.Line = line
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, module, location, want, got string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindTypeMismatch,
		Module:   module,
		Location: location,
		Detail:   fmt.Sprintf("expected %s, got %s", want, got),
	}
}

// ArityMismatch creates an arity mismatch error
func ArityMismatch(phase Phase, module, location, what string, want, got int) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindArityMismatch,
		Module:   module,
		Location: location,
		Detail:   fmt.Sprintf("expected %d %s, got %d", want, what, got),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Duplicate creates a duplicate definition error
func Duplicate(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDuplicate,
		Detail: fmt.Sprintf("%s %q already defined", what, name),
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, module, location string, index, length int) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindOutOfBounds,
		Module:   module,
		Location: location,
		Detail:   fmt.Sprintf("index %d out of bounds (length %d)", index, length),
	}
}

// DanglingUse creates an error for a value that is still used after its
// definition was replaced or erased.
func DanglingUse(phase Phase, module, location string, uses int) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindDanglingUse,
		Module:   module,
		Location: location,
		Detail:   fmt.Sprintf("value still has %d use(s)", uses),
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// Conversion wraps a port conversion failure for a module
func Conversion(module string, cause error) *Error {
	return &Error{
		Phase:  PhaseConvert,
		Kind:   KindConversion,
		Module: module,
		Detail: "port conversion failed",
		Cause:  cause,
	}
}

// ResidualAdapter reports a pack operation that survived cleanup
func ResidualAdapter(module, location string) *Error {
	return &Error{
		Phase:    PhaseLower,
		Kind:     KindResidualAdapter,
		Module:   module,
		Location: location,
		Detail:   "pack should have been canonicalized away by now",
	}
}

// NonConvergence reports a cleanup worklist that hit its iteration bound
func NonConvergence(limit int) *Error {
	return &Error{
		Phase:  PhaseCanonicalize,
		Kind:   KindNonConvergence,
		Detail: fmt.Sprintf("cleanup did not converge within %d iterations", limit),
	}
}

// Cycle reports a recursive instantiation chain
func Cycle(phase Phase, chain []string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindCycle,
		Detail: "instance cycle: " + strings.Join(chain, " -> "),
	}
}

// ParseFailed creates a parsing error at a source line
func ParseFailed(line int, format string, args ...any) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidInput,
		Line:   line,
		Detail: fmt.Sprintf(format, args...),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// As finds the first *Error in err's chain, including errors combined
// with multierr.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HasKind reports whether any *Error in err's chain has the given kind.
func HasKind(err error, kind Kind) bool {
	return stderrors.Is(err, &Error{Kind: kind, Phase: phaseAny})
}

// phaseAny matches every phase in Is.
const phaseAny Phase = "*"
