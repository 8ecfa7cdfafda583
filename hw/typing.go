package hw

import "github.com/wippyai/bundle-lower/errors"

// ResultTypes computes the result types an op must have from its
// attributes, operand types and, for instances, the callee's ports.
// Generic ops declare their own result types and are returned as is.
func (d *Design) ResultTypes(o *Op) ([]Type, error) {
	switch o.Kind {
	case OpGeneric:
		out := make([]Type, len(o.results))
		for i, r := range o.results {
			out[i] = d.TypeOf(r)
		}
		return out, nil

	case OpOutput:
		return nil, nil

	case OpInstance:
		callee, ok := d.ModuleByName(o.Callee)
		if !ok {
			return nil, d.opError(o, errors.KindNotFound, "module %q not found", o.Callee)
		}
		var out []Type
		for _, p := range callee.Outputs() {
			out = append(out, p.Type)
		}
		return out, nil

	case OpPack:
		shape, ok := ShapeOf(o.Type)
		if !ok {
			return nil, d.opError(o, errors.KindTypeMismatch, "pack target %s is not a bundle", TypeString(o.Type))
		}
		return append([]Type{shape.Type()}, shape.ChannelTypes(From)...), nil

	case OpUnpack:
		if len(o.operands) == 0 {
			return nil, d.opError(o, errors.KindArityMismatch, "unpack needs a bundle operand")
		}
		t := d.TypeOf(o.operands[0])
		if t == nil {
			return nil, nil
		}
		shape, ok := ShapeOf(t)
		if !ok {
			return nil, d.opError(o, errors.KindTypeMismatch, "unpack operand %s is not a bundle", t)
		}
		return shape.ChannelTypes(To), nil

	case OpArrayGet:
		if len(o.operands) != 1 {
			return nil, d.opError(o, errors.KindArityMismatch, "array_get takes one operand")
		}
		t := d.TypeOf(o.operands[0])
		if t == nil {
			return nil, nil
		}
		arr, ok := t.(ArrayType)
		if !ok {
			return nil, d.opError(o, errors.KindTypeMismatch, "array_get operand %s is not an array", t)
		}
		return []Type{arr.Elem}, nil

	case OpArrayCreate:
		if o.Type == nil {
			return nil, d.opError(o, errors.KindInvalidInput, "array_create has no element type")
		}
		return []Type{ArrayType{Elem: o.Type, Len: len(o.operands)}}, nil
	}
	return nil, d.opError(o, errors.KindUnsupported, "unknown op kind %d", o.Kind)
}

// OperandTypes computes the operand types an op must have. Generic ops
// accept anything and return nil.
func (d *Design) OperandTypes(o *Op) ([]Type, error) {
	switch o.Kind {
	case OpGeneric:
		return nil, nil

	case OpOutput:
		var out []Type
		for _, p := range d.modules[o.Parent].Outputs() {
			out = append(out, p.Type)
		}
		return out, nil

	case OpInstance:
		callee, ok := d.ModuleByName(o.Callee)
		if !ok {
			return nil, d.opError(o, errors.KindNotFound, "module %q not found", o.Callee)
		}
		var out []Type
		for _, p := range callee.Inputs() {
			out = append(out, p.Type)
		}
		return out, nil

	case OpPack:
		shape, ok := ShapeOf(o.Type)
		if !ok {
			return nil, d.opError(o, errors.KindTypeMismatch, "pack target %s is not a bundle", TypeString(o.Type))
		}
		return shape.ChannelTypes(To), nil

	case OpUnpack:
		if len(o.operands) == 0 {
			return nil, d.opError(o, errors.KindArityMismatch, "unpack needs a bundle operand")
		}
		shape, ok := ShapeOf(d.TypeOf(o.operands[0]))
		if !ok {
			return nil, d.opError(o, errors.KindTypeMismatch, "unpack operand %s is not a bundle", TypeString(d.TypeOf(o.operands[0])))
		}
		return append([]Type{shape.Type()}, shape.ChannelTypes(From)...), nil

	case OpArrayGet:
		if len(o.operands) != 1 {
			return nil, d.opError(o, errors.KindArityMismatch, "array_get takes one operand")
		}
		arr, ok := d.TypeOf(o.operands[0]).(ArrayType)
		if !ok {
			return nil, d.opError(o, errors.KindTypeMismatch, "array_get operand %s is not an array", TypeString(d.TypeOf(o.operands[0])))
		}
		if o.Index < 0 || o.Index >= arr.Len {
			return nil, errors.OutOfBounds(errors.PhaseVerify, d.modules[o.Parent].Name, d.Describe(o.ID), o.Index, arr.Len)
		}
		return []Type{arr}, nil

	case OpArrayCreate:
		out := make([]Type, len(o.operands))
		for i := range out {
			out[i] = o.Type
		}
		return out, nil
	}
	return nil, d.opError(o, errors.KindUnsupported, "unknown op kind %d", o.Kind)
}

func (d *Design) opError(o *Op, kind errors.Kind, format string, args ...any) *errors.Error {
	module := ""
	if o.Parent != NoModule {
		module = d.modules[o.Parent].Name
	}
	return errors.New(errors.PhaseVerify, kind).
		Module(module).
		Location(o.Kind.String()).
		Detail(format, args...).
		Build()
}
