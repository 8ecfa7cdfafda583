package hw

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/wippyai/bundle-lower/errors"
)

// Verify checks the structural and type invariants of a design and
// returns every violation found, combined with multierr.
//
// Checked: callees exist and are acyclic, declaration-only modules have
// no body, block arguments match input ports, every body ends in an
// output terminator matching the output ports, operands are live values
// of the same module, and operand and result types agree with each op's
// typing rule.
func Verify(d *Design) error {
	var errs error
	for _, m := range d.modules {
		errs = multierr.Append(errs, verifyModule(d, m))
	}
	if errs != nil {
		return errs
	}
	if _, err := BuildInstanceGraph(d).PostOrder(); err != nil {
		return err
	}
	return nil
}

func verifyModule(d *Design, m *Module) error {
	if !m.HasBody() {
		if len(m.ops) > 0 || len(m.args) > 0 {
			return errors.New(errors.PhaseVerify, errors.KindInvalidInput).
				Module(m.Name).
				Detail("%s module has a body", m.Kind).
				Build()
		}
		return nil
	}

	var errs error
	inputs := m.Inputs()
	if len(inputs) != len(m.args) {
		errs = multierr.Append(errs, errors.ArityMismatch(errors.PhaseVerify, m.Name, "block", "arguments", len(inputs), len(m.args)))
	} else {
		for i, p := range inputs {
			if got := d.TypeOf(m.args[i]); !TypesEqual(p.Type, got) {
				errs = multierr.Append(errs, errors.TypeMismatch(errors.PhaseVerify, m.Name, "input "+p.Name, p.Type.String(), TypeString(got)))
			}
		}
	}

	term := m.Terminator()
	if term == NoOp || d.ops[term].Kind != OpOutput {
		errs = multierr.Append(errs, errors.New(errors.PhaseVerify, errors.KindInvalidInput).
			Module(m.Name).
			Detail("body does not end in an output terminator").
			Build())
	}

	for i, id := range m.ops {
		op := d.ops[id]
		if op.Kind == OpOutput && i != len(m.ops)-1 {
			errs = multierr.Append(errs, errors.New(errors.PhaseVerify, errors.KindInvalidInput).
				Module(m.Name).
				Location(d.Describe(id)).
				Detail("output terminator is not the last op").
				Build())
		}
		errs = multierr.Append(errs, verifyOp(d, m, op))
	}
	return errs
}

func verifyOp(d *Design, m *Module, op *Op) error {
	loc := d.Describe(op.ID)
	var errs error

	for i, v := range op.operands {
		if v == NoValue {
			errs = multierr.Append(errs, errors.New(errors.PhaseVerify, errors.KindInvalidInput).
				Module(m.Name).
				Location(loc).
				Detail("operand %d is unset", i).
				Build())
			continue
		}
		if !d.IsBound(v) {
			errs = multierr.Append(errs, errors.New(errors.PhaseVerify, errors.KindDanglingUse).
				Module(m.Name).
				Location(loc).
				Detail("operand %d reads a value with no live definition", i).
				Build())
			continue
		}
		if d.ValueModule(v) != m.id {
			errs = multierr.Append(errs, errors.New(errors.PhaseVerify, errors.KindInvalidInput).
				Module(m.Name).
				Location(loc).
				Detail("operand %d is defined in another module", i).
				Build())
		}
	}
	if errs != nil {
		return errs
	}

	if op.Kind == OpPack || op.Kind == OpUnpack {
		if err := checkPartition(d, op); err != nil {
			return err
		}
	}

	wantOperands, err := d.OperandTypes(op)
	if err != nil {
		return err
	}
	if op.Kind != OpGeneric {
		if len(wantOperands) != len(op.operands) {
			return errors.ArityMismatch(errors.PhaseVerify, m.Name, loc, "operands", len(wantOperands), len(op.operands))
		}
		for i, want := range wantOperands {
			if got := d.TypeOf(op.operands[i]); !TypesEqual(want, got) {
				errs = multierr.Append(errs, errors.TypeMismatch(errors.PhaseVerify, m.Name, fmt.Sprintf("%s operand %d", loc, i), TypeString(want), TypeString(got)))
			}
		}
	}

	wantResults, err := d.ResultTypes(op)
	if err != nil {
		return multierr.Append(errs, err)
	}
	if len(wantResults) != len(op.results) {
		return multierr.Append(errs, errors.ArityMismatch(errors.PhaseVerify, m.Name, loc, "results", len(wantResults), len(op.results)))
	}
	for i, want := range wantResults {
		if got := d.TypeOf(op.results[i]); !TypesEqual(want, got) {
			errs = multierr.Append(errs, errors.TypeMismatch(errors.PhaseVerify, m.Name, fmt.Sprintf("%s result %d", loc, i), TypeString(want), TypeString(got)))
		}
	}
	return errs
}

// checkPartition rejects bundles whose to/from halves do not cover every
// channel exactly once.
func checkPartition(d *Design, op *Op) error {
	var t Type
	if op.Kind == OpPack {
		t = op.Type
	} else if len(op.operands) > 0 {
		t = d.TypeOf(op.operands[0])
	}
	shape, ok := ShapeOf(t)
	if !ok {
		return nil
	}
	if err := CheckPartition(shape.Bundle); err != nil {
		return errors.New(errors.PhaseVerify, errors.KindUnsupported).
			Module(d.modules[op.Parent].Name).
			Location(d.Describe(op.ID)).
			Cause(err).
			Build()
	}
	return nil
}

// CheckPartition verifies that the to and from channels of b are disjoint
// and together cover every channel.
func CheckPartition(b BundleType) error {
	to, from := b.Filter(To), b.Filter(From)
	if len(to)+len(from) != len(b.Channels) {
		return errors.Unsupported(errors.PhaseVerify,
			fmt.Sprintf("bundle %s has %d channels but %d to and %d from", b, len(b.Channels), len(to), len(from)))
	}
	return nil
}

// CheckLinearBundles reports every live bundle-typed value (including
// arrays of bundles) that does not have exactly one use.
func CheckLinearBundles(d *Design) error {
	var errs error
	check := func(m *Module, v ValueID, loc string) {
		if _, ok := ShapeOf(d.TypeOf(v)); !ok {
			return
		}
		if n := d.NumUses(v); n != 1 {
			errs = multierr.Append(errs, errors.New(errors.PhaseVerify, errors.KindInvalidInput).
				Module(m.Name).
				Location(loc).
				Detail("bundle value has %d uses, want exactly 1", n).
				Build())
		}
	}
	for _, m := range d.modules {
		if !m.HasBody() {
			continue
		}
		inputs := m.Inputs()
		for i, v := range m.args {
			loc := "input"
			if i < len(inputs) {
				loc += " " + inputs[i].Name
			}
			check(m, v, loc)
		}
		for _, id := range m.ops {
			for _, r := range d.ops[id].results {
				check(m, r, d.Describe(id))
			}
		}
	}
	return errs
}
