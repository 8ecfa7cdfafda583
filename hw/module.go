package hw

// PortDirection is the direction of a module port.
type PortDirection uint8

const (
	Input PortDirection = iota
	Output
)

func (d PortDirection) String() string {
	if d == Input {
		return "input"
	}
	return "output"
}

// Port is a named, typed connection point on a module.
type Port struct {
	Type      Type
	Name      string
	Direction PortDirection
}

// PortInfo is a port together with its position within its direction
// class: the block argument / instance operand index for inputs, the
// terminator operand / instance result index for outputs.
type PortInfo struct {
	Port
	ArgNum int
}

// ModuleKind distinguishes modules by whether they have a body and
// whether their signature may be rewritten.
type ModuleKind uint8

const (
	// Definition has a body and a mutable signature.
	Definition ModuleKind = iota
	// Extern is a declaration-only module whose signature may be rewritten.
	Extern
	// Fixed is a declaration-only module with a frozen signature.
	Fixed
)

func (k ModuleKind) String() string {
	switch k {
	case Definition:
		return "module"
	case Extern:
		return "extern"
	case Fixed:
		return "fixed"
	}
	return "unknown"
}

// Module is one hardware module. A Definition owns a single block: the
// argument list (one value per input port) and an op list ending in the
// output terminator.
type Module struct {
	Name  string
	Ports []Port
	args  []ValueID
	ops   []OpID
	id    ModuleID
	Kind  ModuleKind
}

// ID returns the module's handle.
func (m *Module) ID() ModuleID {
	return m.id
}

// HasBody reports whether the module is a definition.
func (m *Module) HasBody() bool {
	return m.Kind == Definition
}

// Mutable reports whether the module's signature may be rewritten.
func (m *Module) Mutable() bool {
	return m.Kind != Fixed
}

// Args returns the block arguments, one per input port.
func (m *Module) Args() []ValueID {
	return append([]ValueID(nil), m.args...)
}

// Arg returns the block argument for input port i.
func (m *Module) Arg(i int) ValueID {
	return m.args[i]
}

// Ops returns the body's ops in block order.
func (m *Module) Ops() []OpID {
	return append([]OpID(nil), m.ops...)
}

// NumOps returns the number of ops in the body.
func (m *Module) NumOps() int {
	return len(m.ops)
}

// Terminator returns the trailing op of the body, or NoOp if the body is
// empty. Callers check its kind.
func (m *Module) Terminator() OpID {
	if len(m.ops) == 0 {
		return NoOp
	}
	return m.ops[len(m.ops)-1]
}

// PortInfos returns every port in declaration order with its ArgNum.
func (m *Module) PortInfos() []PortInfo {
	out := make([]PortInfo, 0, len(m.Ports))
	in, outIdx := 0, 0
	for _, p := range m.Ports {
		pi := PortInfo{Port: p}
		if p.Direction == Input {
			pi.ArgNum = in
			in++
		} else {
			pi.ArgNum = outIdx
			outIdx++
		}
		out = append(out, pi)
	}
	return out
}

// Inputs returns the input ports in order.
func (m *Module) Inputs() []PortInfo {
	return m.filterPorts(Input)
}

// Outputs returns the output ports in order.
func (m *Module) Outputs() []PortInfo {
	return m.filterPorts(Output)
}

// NumInputs returns the number of input ports.
func (m *Module) NumInputs() int {
	return len(m.filterPorts(Input))
}

// NumOutputs returns the number of output ports.
func (m *Module) NumOutputs() int {
	return len(m.filterPorts(Output))
}

func (m *Module) filterPorts(dir PortDirection) []PortInfo {
	var out []PortInfo
	for _, p := range m.PortInfos() {
		if p.Direction == dir {
			out = append(out, p)
		}
	}
	return out
}
