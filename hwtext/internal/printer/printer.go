package printer

import (
	"strconv"
	"strings"

	"github.com/wippyai/bundle-lower/hw"
)

const indent = "  "

// Design renders a whole design.
func Design(d *hw.Design) string {
	var b strings.Builder
	b.WriteString("(design")
	for _, m := range d.Modules() {
		b.WriteByte('\n')
		writeModule(&b, d, m, 1)
	}
	b.WriteString(")\n")
	return b.String()
}

// Module renders one module at top level.
func Module(d *hw.Design, id hw.ModuleID) string {
	var b strings.Builder
	writeModule(&b, d, d.Module(id), 0)
	b.WriteByte('\n')
	return b.String()
}

func writeModule(b *strings.Builder, d *hw.Design, m *hw.Module, depth int) {
	pad := strings.Repeat(indent, depth)
	b.WriteString(pad)
	b.WriteByte('(')
	b.WriteString(m.Kind.String())
	b.WriteString(" $")
	b.WriteString(m.Name)

	for _, p := range m.Ports {
		b.WriteByte('\n')
		b.WriteString(pad + indent)
		b.WriteByte('(')
		b.WriteString(p.Direction.String())
		b.WriteByte(' ')
		b.WriteString(p.Name)
		b.WriteByte(' ')
		b.WriteString(hw.TypeString(p.Type))
		b.WriteByte(')')
	}

	if m.HasBody() {
		names := newNamer(d, m)
		b.WriteByte('\n')
		b.WriteString(pad + indent)
		b.WriteString("(body")
		for _, id := range m.Ops() {
			b.WriteByte('\n')
			b.WriteString(pad + indent + indent)
			writeOp(b, d, d.Op(id), names)
		}
		b.WriteByte(')')
	}
	b.WriteByte(')')
}

func writeOp(b *strings.Builder, d *hw.Design, op *hw.Op, names *namer) {
	b.WriteByte('(')
	if op.NumResults() > 0 {
		for _, r := range op.Results() {
			b.WriteString(names.ref(r))
			b.WriteByte(' ')
		}
		b.WriteString("= ")
	}
	b.WriteString(op.Kind.String())

	switch op.Kind {
	case hw.OpOutput:
		for _, v := range op.Operands() {
			b.WriteByte(' ')
			b.WriteString(names.ref(v))
		}

	case hw.OpPack:
		b.WriteByte(' ')
		b.WriteString(hw.TypeString(op.Type))
		b.WriteByte(' ')
		writeValueList(b, op.Operands(), names)

	case hw.OpUnpack:
		b.WriteByte(' ')
		b.WriteString(names.ref(op.UnpackBundle()))
		b.WriteByte(' ')
		writeValueList(b, op.UnpackFromChannels(), names)

	case hw.OpArrayGet:
		b.WriteByte(' ')
		b.WriteString(names.ref(op.Operand(0)))
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(op.Index))

	case hw.OpArrayCreate:
		b.WriteByte(' ')
		b.WriteString(hw.TypeString(op.Type))
		b.WriteByte(' ')
		writeValueList(b, op.Operands(), names)

	case hw.OpGeneric:
		b.WriteByte(' ')
		b.WriteString(strconv.Quote(op.Name))
		b.WriteByte(' ')
		writeValueList(b, op.Operands(), names)
		b.WriteString(" (")
		for i, r := range op.Results() {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(hw.TypeString(d.TypeOf(r)))
		}
		b.WriteByte(')')

	case hw.OpInstance:
		b.WriteByte(' ')
		b.WriteString(strconv.Quote(op.Name))
		b.WriteString(" $")
		b.WriteString(op.Callee)
		b.WriteByte(' ')
		writeValueList(b, op.Operands(), names)
	}
	b.WriteByte(')')
}

func writeValueList(b *strings.Builder, vs []hw.ValueID, names *namer) {
	b.WriteByte('(')
	for i, v := range vs {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(names.ref(v))
	}
	b.WriteByte(')')
}

// namer assigns each value of a module a unique printable name. Block
// arguments take their port names; op results keep their name hint when
// it is free and valid, and get vN otherwise.
type namer struct {
	names map[hw.ValueID]string
	used  map[string]bool
	next  int
}

func newNamer(d *hw.Design, m *hw.Module) *namer {
	n := &namer{
		names: make(map[hw.ValueID]string),
		used:  make(map[string]bool),
	}
	inputs := m.Inputs()
	for i, v := range m.Args() {
		if i < len(inputs) {
			n.names[v] = inputs[i].Name
			n.used[inputs[i].Name] = true
		}
	}
	for _, id := range m.Ops() {
		for _, r := range d.Op(id).Results() {
			hint := d.NameOf(r)
			if hint == "" || n.used[hint] || !validName(hint) {
				hint = n.fresh()
			}
			n.names[r] = hint
			n.used[hint] = true
		}
	}
	return n
}

func (n *namer) fresh() string {
	for {
		name := "v" + strconv.Itoa(n.next)
		n.next++
		if !n.used[name] {
			return name
		}
	}
}

func (n *namer) ref(v hw.ValueID) string {
	if name, ok := n.names[v]; ok {
		return "%" + name
	}
	if v == hw.NoValue {
		return "%<unset>"
	}
	return "%<foreign" + strconv.Itoa(int(v)) + ">"
}

func validName(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == '.' || r == '-':
		default:
			return false
		}
	}
	return s != ""
}
