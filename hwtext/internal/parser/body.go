package parser

import (
	"sort"

	"github.com/wippyai/bundle-lower/errors"
	"github.com/wippyai/bundle-lower/hw"
	"github.com/wippyai/bundle-lower/hwtext/internal/token"
)

// parseBody reads (body op...). Values may be used before the op that
// defines them; such uses get a placeholder that the definition binds.
func (p *Parser) parseBody(mod hw.ModuleID) error {
	if _, err := p.expect(token.LParen); err != nil {
		return err
	}
	if err := p.expectKeyword("body"); err != nil {
		return err
	}

	m := p.design.Module(mod)
	p.values = make(map[string]hw.ValueID)
	p.pending = make(map[string]int)
	for i, in := range m.Inputs() {
		p.values[in.Name] = m.Arg(i)
	}

	b := hw.NewBuilder(p.design, mod)
	for !p.atRParen() {
		if p.peek() == nil {
			return errors.ParseFailed(p.line(), "unexpected end of input in body of $%s", m.Name)
		}
		if err := p.parseOp(b); err != nil {
			if e, ok := errors.As(err); ok && e.Module == "" {
				e.Module = m.Name
			}
			return err
		}
	}
	p.next()

	if len(p.pending) > 0 {
		names := make([]string, 0, len(p.pending))
		for name := range p.pending {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			li, lj := p.pending[names[i]], p.pending[names[j]]
			if li != lj {
				return li < lj
			}
			return names[i] < names[j]
		})
		return errors.New(errors.PhaseParse, errors.KindNotFound).
			Module(m.Name).
			Line(p.pending[names[0]]).
			Detail("value %%%s is used but never defined", names[0]).
			Build()
	}
	return nil
}

func (p *Parser) parseOp(b *hw.Builder) error {
	open, err := p.expect(token.LParen)
	if err != nil {
		return err
	}

	var results []*token.Token
	for {
		t := p.peek()
		if t == nil || t.Type != token.Value {
			break
		}
		results = append(results, p.next())
	}
	if len(results) > 0 {
		if _, err := p.expect(token.Equals); err != nil {
			return err
		}
	}

	kw, err := p.expect(token.Ident)
	if err != nil {
		return err
	}

	var (
		kind     hw.OpKind
		attrs    hw.OpAttrs
		operands []hw.ValueID
		types    []hw.Type
	)
	switch kw.Value {
	case "output":
		kind = hw.OpOutput
		for !p.atRParen() {
			v, err := p.parseValueRef()
			if err != nil {
				return err
			}
			operands = append(operands, v)
		}

	case "pack":
		kind = hw.OpPack
		if attrs.Type, err = p.parseType(); err != nil {
			return err
		}
		shape, ok := hw.ShapeOf(attrs.Type)
		if !ok {
			return errors.ParseFailed(kw.Line, "pack target %s is not a bundle", attrs.Type)
		}
		types = append([]hw.Type{shape.Type()}, shape.ChannelTypes(hw.From)...)
		if operands, err = p.parseValueList(); err != nil {
			return err
		}

	case "unpack":
		kind = hw.OpUnpack
		bundle, err := p.parseValueRef()
		if err != nil {
			return err
		}
		from, err := p.parseValueList()
		if err != nil {
			return err
		}
		operands = append([]hw.ValueID{bundle}, from...)

	case "array_get":
		kind = hw.OpArrayGet
		arr, err := p.parseValueRef()
		if err != nil {
			return err
		}
		if attrs.Index, err = p.parseNumber(); err != nil {
			return err
		}
		operands = []hw.ValueID{arr}

	case "array_create":
		kind = hw.OpArrayCreate
		if attrs.Type, err = p.parseType(); err != nil {
			return err
		}
		if operands, err = p.parseValueList(); err != nil {
			return err
		}
		types = []hw.Type{hw.ArrayType{Elem: attrs.Type, Len: len(operands)}}

	case "generic":
		kind = hw.OpGeneric
		if attrs.Name, err = p.parseString(); err != nil {
			return err
		}
		if operands, err = p.parseValueList(); err != nil {
			return err
		}
		if types, err = p.parseTypeList(); err != nil {
			return err
		}

	case "instance":
		kind = hw.OpInstance
		if attrs.Name, err = p.parseString(); err != nil {
			return err
		}
		callee, err := p.expect(token.Symbol)
		if err != nil {
			return err
		}
		attrs.Callee = callee.Value
		if operands, err = p.parseValueList(); err != nil {
			return err
		}

	default:
		return errors.ParseFailed(kw.Line, "unknown op %q", kw.Value)
	}
	if _, err := p.expect(token.RParen); err != nil {
		return err
	}

	if kind == hw.OpOutput && len(results) > 0 {
		return errors.ParseFailed(open.Line, "output has no results")
	}
	if types != nil && len(types) != len(results) {
		return errors.ParseFailed(open.Line, "%s defines %d results, got %d names", kw.Value, len(types), len(results))
	}
	if kind == hw.OpArrayGet && len(results) != 1 {
		return errors.ParseFailed(open.Line, "array_get defines 1 result, got %d names", len(results))
	}

	resultIDs := make([]hw.ValueID, len(results))
	for i, r := range results {
		v, err := p.define(r)
		if err != nil {
			return err
		}
		if types != nil {
			p.design.SetType(v, types[i])
		}
		resultIDs[i] = v
	}
	b.Create(kind, attrs, operands, resultIDs)
	return nil
}

// define binds a result name, reusing the placeholder of an earlier
// forward reference.
func (p *Parser) define(t *token.Token) (hw.ValueID, error) {
	if v, ok := p.values[t.Value]; ok {
		if _, fwd := p.pending[t.Value]; !fwd {
			return hw.NoValue, errors.ParseFailed(t.Line, "value %%%s defined twice", t.Value)
		}
		delete(p.pending, t.Value)
		return v, nil
	}
	v := p.design.NewValue(nil, t.Value)
	p.values[t.Value] = v
	return v, nil
}

func (p *Parser) parseValueRef() (hw.ValueID, error) {
	t, err := p.expect(token.Value)
	if err != nil {
		return hw.NoValue, err
	}
	if v, ok := p.values[t.Value]; ok {
		return v, nil
	}
	v := p.design.NewValue(nil, t.Value)
	p.values[t.Value] = v
	p.pending[t.Value] = t.Line
	return v, nil
}

func (p *Parser) parseValueList() ([]hw.ValueID, error) {
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	var out []hw.ValueID
	for !p.atRParen() {
		v, err := p.parseValueRef()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	p.next()
	return out, nil
}

func (p *Parser) parseTypeList() ([]hw.Type, error) {
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	out := []hw.Type{}
	for !p.atRParen() {
		if p.peek() == nil {
			return nil, errors.ParseFailed(p.line(), "unexpected end of input in type list")
		}
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	p.next()
	return out, nil
}

// inferTypes fills in result types that depend on operand types or on
// callee ports, repeating until nothing changes. Results whose type
// cannot be derived stay nil and are reported by hw.Verify.
func inferTypes(d *hw.Design) {
	for changed := true; changed; {
		changed = false
		d.Walk(func(op *hw.Op) bool {
			if op.Kind == hw.OpGeneric {
				return true
			}
			want, err := d.ResultTypes(op)
			if err != nil || len(want) != op.NumResults() {
				return true
			}
			for i, r := range op.Results() {
				if d.TypeOf(r) == nil && want[i] != nil {
					d.SetType(r, want[i])
					changed = true
				}
			}
			return true
		})
	}
}
