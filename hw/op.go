package hw

// OpKind identifies an operation.
type OpKind uint8

const (
	// OpGeneric is an opaque named op with explicit result types.
	OpGeneric OpKind = iota
	// OpInstance instantiates another module: one operand per input port,
	// one result per output port.
	OpInstance
	// OpOutput terminates a body: one operand per output port.
	OpOutput
	// OpPack builds a bundle from its to-channels. Operands: to-channels.
	// Results: the bundle, then the from-channels.
	OpPack
	// OpUnpack splits a bundle. Operands: the bundle, then the
	// from-channels. Results: the to-channels.
	OpUnpack
	// OpArrayGet reads one element at a constant index.
	OpArrayGet
	// OpArrayCreate builds an array from its elements.
	OpArrayCreate
)

var opKindNames = [...]string{
	OpGeneric:     "generic",
	OpInstance:    "instance",
	OpOutput:      "output",
	OpPack:        "pack",
	OpUnpack:      "unpack",
	OpArrayGet:    "array_get",
	OpArrayCreate: "array_create",
}

func (k OpKind) String() string {
	if int(k) < len(opKindNames) {
		return opKindNames[k]
	}
	return "unknown"
}

// OpAttrs carries the non-operand attributes of an op.
type OpAttrs struct {
	// Type is the pack target type or the array_create element type.
	Type Type
	// Name is the generic op name or the instance name.
	Name string
	// Callee is the instantiated module's name.
	Callee string
	// Index is the array_get element index.
	Index int
}

// Op is one operation in a module body.
type Op struct {
	Type     Type
	Name     string
	Callee   string
	operands []ValueID
	results  []ValueID
	Index    int
	ID       OpID
	Parent   ModuleID
	Kind     OpKind
	erased   bool
}

// Operands returns the operand values.
func (o *Op) Operands() []ValueID {
	return append([]ValueID(nil), o.operands...)
}

// Operand returns operand i.
func (o *Op) Operand(i int) ValueID {
	return o.operands[i]
}

// NumOperands returns the number of operands.
func (o *Op) NumOperands() int {
	return len(o.operands)
}

// Results returns the result values.
func (o *Op) Results() []ValueID {
	return append([]ValueID(nil), o.results...)
}

// Result returns result i.
func (o *Op) Result(i int) ValueID {
	return o.results[i]
}

// NumResults returns the number of results.
func (o *Op) NumResults() int {
	return len(o.results)
}

// Erased reports whether the op was removed from its block.
func (o *Op) Erased() bool {
	return o.erased
}

// Attrs returns the op's attributes.
func (o *Op) Attrs() OpAttrs {
	return OpAttrs{Type: o.Type, Name: o.Name, Callee: o.Callee, Index: o.Index}
}

// PackBundle returns the bundle result of a pack.
func (o *Op) PackBundle() ValueID {
	return o.results[0]
}

// PackToChannels returns the to-channel operands of a pack.
func (o *Op) PackToChannels() []ValueID {
	return o.Operands()
}

// PackFromChannels returns the from-channel results of a pack.
func (o *Op) PackFromChannels() []ValueID {
	return append([]ValueID(nil), o.results[1:]...)
}

// UnpackBundle returns the bundle operand of an unpack.
func (o *Op) UnpackBundle() ValueID {
	return o.operands[0]
}

// UnpackFromChannels returns the from-channel operands of an unpack.
func (o *Op) UnpackFromChannels() []ValueID {
	return append([]ValueID(nil), o.operands[1:]...)
}

// UnpackToChannels returns the to-channel results of an unpack.
func (o *Op) UnpackToChannels() []ValueID {
	return o.Results()
}
