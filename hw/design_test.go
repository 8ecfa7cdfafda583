package hw

import (
	"testing"

	"github.com/wippyai/bundle-lower/errors"
)

// newPassThrough builds:
//
//	module M (input in i8) (output o i8) { output %in }
//	module Top (input x i8) (output y i8) { %r = instance "m0" M (%x); output %r }
func newPassThrough(t *testing.T) (*Design, ModuleID, ModuleID) {
	t.Helper()
	d := NewDesign()
	i8 := IntType{Width: 8}

	m, err := d.AddModule("M", Definition, []Port{
		{Name: "in", Direction: Input, Type: i8},
		{Name: "o", Direction: Output, Type: i8},
	})
	if err != nil {
		t.Fatalf("AddModule(M): %v", err)
	}
	NewBuilder(d, m).Output([]ValueID{d.Module(m).Arg(0)})

	top, err := d.AddModule("Top", Definition, []Port{
		{Name: "x", Direction: Input, Type: i8},
		{Name: "y", Direction: Output, Type: i8},
	})
	if err != nil {
		t.Fatalf("AddModule(Top): %v", err)
	}
	b := NewBuilder(d, top)
	inst := b.Instance("m0", "M", []ValueID{d.Module(top).Arg(0)})
	b.Output([]ValueID{d.Op(inst).Result(0)})
	return d, m, top
}

func TestAddModule(t *testing.T) {
	d, m, _ := newPassThrough(t)

	if got := d.NameOf(d.Module(m).Arg(0)); got != "in" {
		t.Errorf("arg name = %q, want in", got)
	}
	if _, _, ok := d.BlockArg(d.Module(m).Arg(0)); !ok {
		t.Error("arg is not a block argument")
	}

	_, err := d.AddModule("M", Extern, nil)
	if !errors.HasKind(err, errors.KindDuplicate) {
		t.Errorf("duplicate AddModule error = %v", err)
	}
}

func TestPortInfos(t *testing.T) {
	d := NewDesign()
	id, err := d.AddModule("E", Extern, []Port{
		{Name: "a", Direction: Input, Type: IntType{Width: 1}},
		{Name: "b", Direction: Output, Type: IntType{Width: 1}},
		{Name: "c", Direction: Input, Type: IntType{Width: 1}},
	})
	if err != nil {
		t.Fatalf("AddModule: %v", err)
	}
	infos := d.Module(id).PortInfos()
	want := []int{0, 0, 1}
	for i, pi := range infos {
		if pi.ArgNum != want[i] {
			t.Errorf("port %s ArgNum = %d, want %d", pi.Name, pi.ArgNum, want[i])
		}
	}
	if d.Module(id).HasBody() || !d.Module(id).Mutable() {
		t.Error("extern should be bodiless and mutable")
	}
}

func TestBuilderInsertionPoints(t *testing.T) {
	d, m, _ := newPassThrough(t)
	b := NewBuilder(d, m)

	b.SetInsertionPointToStart()
	first := b.Generic("first", nil, nil)
	b.SetInsertionPointBeforeTerminator()
	last := b.Generic("last", nil, nil)
	b.SetInsertionPointBefore(last)
	mid := b.Generic("mid", nil, nil)

	ops := d.Module(m).Ops()
	want := []OpID{first, mid, last, d.Module(m).Terminator()}
	if len(ops) != len(want) {
		t.Fatalf("ops = %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("ops[%d] = %d, want %d", i, ops[i], want[i])
		}
	}
	if d.Op(ops[3]).Kind != OpOutput {
		t.Error("terminator moved")
	}
}

func TestBuilderArrays(t *testing.T) {
	d := NewDesign()
	m, _ := d.AddModule("A", Definition, nil)
	b := NewBuilder(d, m)

	x := d.Op(b.Generic("x", nil, []Type{IntType{Width: 4}})).Result(0)
	y := d.Op(b.Generic("y", nil, []Type{IntType{Width: 4}})).Result(0)
	arr := b.ArrayCreate(IntType{Width: 4}, []ValueID{x, y})
	if want := (ArrayType{Elem: IntType{Width: 4}, Len: 2}); !d.TypeOf(arr).Equal(want) {
		t.Errorf("array_create type = %s, want %s", d.TypeOf(arr), want)
	}
	elem := b.ArrayGet(arr, 1)
	if !d.TypeOf(elem).Equal(IntType{Width: 4}) {
		t.Errorf("array_get type = %s", d.TypeOf(elem))
	}

	empty := b.ArrayCreate(chanOf(1), nil)
	if want := (ArrayType{Elem: chanOf(1), Len: 0}); !d.TypeOf(empty).Equal(want) {
		t.Errorf("empty array_create type = %s", d.TypeOf(empty))
	}
}

func TestReplaceAllUsesAndErase(t *testing.T) {
	d, _, top := newPassThrough(t)
	mod := d.Module(top)
	inst := mod.Ops()[0]
	result := d.Op(inst).Result(0)

	if err := d.EraseOp(inst); !errors.HasKind(err, errors.KindDanglingUse) {
		t.Fatalf("EraseOp with live result = %v, want dangling_use", err)
	}

	d.ReplaceAllUses(result, mod.Arg(0))
	if d.NumUses(result) != 0 {
		t.Errorf("result still has %d uses", d.NumUses(result))
	}
	if got := d.NumUses(mod.Arg(0)); got != 2 {
		t.Errorf("arg uses = %d, want 2", got)
	}
	if err := d.EraseOp(inst); err != nil {
		t.Fatalf("EraseOp: %v", err)
	}
	if !d.Op(inst).Erased() || d.IsBound(result) {
		t.Error("erased op still live")
	}
	if got := d.NumUses(mod.Arg(0)); got != 1 {
		t.Errorf("arg uses after erase = %d, want 1", got)
	}
	if err := Verify(d); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

func TestSetArgs(t *testing.T) {
	d, m, _ := newPassThrough(t)
	old := d.Module(m).Arg(0)
	fresh := d.NewValue(IntType{Width: 8}, "in2")
	if err := d.SetArgs(m, []ValueID{fresh}); err != nil {
		t.Fatalf("SetArgs: %v", err)
	}
	if _, _, ok := d.BlockArg(old); ok {
		t.Error("old arg still bound")
	}
	if mod, idx, ok := d.BlockArg(fresh); !ok || mod != m || idx != 0 {
		t.Errorf("BlockArg(fresh) = %d, %d, %v", mod, idx, ok)
	}

	ext, _ := d.AddModule("E", Extern, nil)
	if err := d.SetArgs(ext, nil); !errors.HasKind(err, errors.KindUnsupported) {
		t.Errorf("SetArgs on extern = %v", err)
	}
}
