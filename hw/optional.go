package hw

// Optional is a value that may be absent. Declaration-only modules have
// nothing to wire their new output ports to, so port builders receive
// None instead of a sentinel handle.
type Optional struct {
	v  ValueID
	ok bool
}

// Some wraps a present value.
func Some(v ValueID) Optional {
	return Optional{v: v, ok: true}
}

// None is the absent value.
func None() Optional {
	return Optional{v: NoValue}
}

// Get returns the value and whether it is present.
func (o Optional) Get() (ValueID, bool) {
	return o.v, o.ok
}

// Present reports whether a value is present.
func (o Optional) Present() bool {
	return o.ok
}

// OrNoValue returns the value, or NoValue when absent.
func (o Optional) OrNoValue() ValueID {
	if !o.ok {
		return NoValue
	}
	return o.v
}
