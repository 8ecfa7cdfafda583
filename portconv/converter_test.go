package portconv

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/bundle-lower/errors"
	"github.com/wippyai/bundle-lower/hw"
	"github.com/wippyai/bundle-lower/hwtext"
)

// tap replaces an input port with a renamed input plus an output that
// echoes it back, exercising both directions of the framework.
type tap struct {
	c       *Converter
	orig    hw.PortInfo
	in, out PortRef
}

func (t *tap) BuildPorts() error {
	var v hw.ValueID
	v, t.in = t.c.CreateNewInput(t.orig, "_in", t.orig.Type)
	wired := hw.None()
	if t.c.HasBody() {
		t.c.Design().ReplaceAllUses(t.c.OrigArg(t.orig), v)
		wired = hw.Some(v)
	}
	t.out = t.c.CreateNewOutput(t.orig, "_tap", t.orig.Type, wired)
	return nil
}

func (t *tap) MapInputSignals(_ *hw.Builder, inst hw.OpID, newOperands, _ []hw.ValueID) error {
	newOperands[t.c.Port(t.in).ArgNum] = t.c.Design().Op(inst).Operand(t.orig.ArgNum)
	return nil
}

func (t *tap) MapOutputSignals(*hw.Builder, hw.OpID, []hw.ValueID, []hw.ValueID) error {
	return nil
}

func tapPort(name string) ConversionBuilder {
	return BuilderFunc(func(c *Converter, port hw.PortInfo) (Conversion, error) {
		if port.Name == name {
			return &tap{c: c, orig: port}, nil
		}
		return Default(c, port)
	})
}

func mustParse(t *testing.T, src string) *hw.Design {
	t.Helper()
	d, err := hwtext.Parse(src)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if err := hw.Verify(d); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	return d
}

func convert(t *testing.T, d *hw.Design, module string, builder ConversionBuilder) (*Converter, error) {
	t.Helper()
	m, ok := d.ModuleByName(module)
	if !ok {
		t.Fatalf("module %s not found", module)
	}
	c := NewConverter(d, hw.BuildInstanceGraph(d), m.ID(), builder)
	return c, c.Run()
}

const tapDesign = `(design
  (module $M
    (input x i8)
    (output o i8)
    (input y i4)
    (body
      (output %x)))
  (module $Top
    (input a i8)
    (input b i4)
    (output z i8)
    (body
      (%r = instance "m0" $M (%a %b))
      (output %r))))
`

func TestConverterPortOrder(t *testing.T) {
	d := mustParse(t, tapDesign)
	c, err := convert(t, d, "M", tapPort("x"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if err := hw.Verify(d); err != nil {
		t.Fatalf("Verify after conversion: %v", err)
	}

	m, _ := d.ModuleByName("M")
	i8, i4 := hw.IntType{Width: 8}, hw.IntType{Width: 4}
	want := []hw.Port{
		{Name: "x_in", Type: i8, Direction: hw.Input},
		{Name: "o", Type: i8, Direction: hw.Output},
		{Name: "y", Type: i4, Direction: hw.Input},
		{Name: "x_tap", Type: i8, Direction: hw.Output},
	}
	if diff := cmp.Diff(want, m.Ports); diff != "" {
		t.Errorf("ports mismatch (-want +got):\n%s", diff)
	}

	got := c.Summary()
	if got.PortsConverted != 1 || got.InstancesRewritten != 1 {
		t.Errorf("Summary = %+v", got)
	}

	text := hwtext.Print(d)
	for _, frag := range []string{
		"(output %x_in %x_in)",
		`= instance "m0" $M (%a %b))`,
		"(output %r)",
	} {
		if !strings.Contains(text, frag) {
			t.Errorf("printed design missing %q:\n%s", frag, text)
		}
	}
}

func TestConverterUntouched(t *testing.T) {
	d := mustParse(t, tapDesign)
	before := hwtext.Print(d)
	c, err := convert(t, d, "M", BuilderFunc(Default))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if diff := cmp.Diff(before, hwtext.Print(d)); diff != "" {
		t.Errorf("untouched conversion changed the design (-before +after):\n%s", diff)
	}
	if c.Summary() != (Summary{}) {
		t.Errorf("Summary = %+v, want zero", c.Summary())
	}
}

func TestConverterExtern(t *testing.T) {
	d := mustParse(t, `(design
		(extern $E (input x i8) (output o i1))
		(module $Top (input a i8) (output z i1)
			(body
				(%r = instance "e0" $E (%a))
				(output %r))))`)
	if _, err := convert(t, d, "E", tapPort("x")); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if err := hw.Verify(d); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	e, _ := d.ModuleByName("E")
	if e.HasBody() || e.NumInputs() != 1 || e.NumOutputs() != 2 {
		t.Errorf("E ports = %v", e.Ports)
	}
	top, _ := d.ModuleByName("Top")
	inst := d.Op(top.Ops()[0])
	if inst.NumResults() != 2 || inst.NumOperands() != 1 {
		t.Errorf("instance shape = %d operands, %d results", inst.NumOperands(), inst.NumResults())
	}
	if name := d.NameOf(inst.Result(0)); name != "r" {
		t.Errorf("untouched result name = %q, want r", name)
	}
}

// forgetful declares a new input but never rewires the old argument.
type forgetful struct {
	c    *Converter
	orig hw.PortInfo
}

func (f *forgetful) BuildPorts() error {
	f.c.CreateNewInput(f.orig, "_new", f.orig.Type)
	return nil
}

func (f *forgetful) MapInputSignals(*hw.Builder, hw.OpID, []hw.ValueID, []hw.ValueID) error {
	return nil
}

func (f *forgetful) MapOutputSignals(*hw.Builder, hw.OpID, []hw.ValueID, []hw.ValueID) error {
	return nil
}

func TestConverterFailures(t *testing.T) {
	boom := stderrors.New("boom")

	tests := []struct {
		name     string
		module   string
		builder  ConversionBuilder
		wantKind errors.Kind
	}{
		{
			name:   "builder_error",
			module: "M",
			builder: BuilderFunc(func(c *Converter, port hw.PortInfo) (Conversion, error) {
				return nil, boom
			}),
			wantKind: errors.KindConversion,
		},
		{
			name:   "argument_still_used",
			module: "M",
			builder: BuilderFunc(func(c *Converter, port hw.PortInfo) (Conversion, error) {
				if port.Name == "x" {
					return &forgetful{c: c, orig: port}, nil
				}
				return Default(c, port)
			}),
			wantKind: errors.KindDanglingUse,
		},
		{
			name:   "operand_unset",
			module: "M",
			builder: BuilderFunc(func(c *Converter, port hw.PortInfo) (Conversion, error) {
				if port.Name == "y" {
					return &forgetful{c: c, orig: port}, nil
				}
				return Default(c, port)
			}),
			wantKind: errors.KindInvalidInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := mustParse(t, tapDesign)
			_, err := convert(t, d, tt.module, tt.builder)
			if err == nil {
				t.Fatal("expected error")
			}
			e, ok := errors.As(err)
			if !ok || e.Kind != errors.KindConversion || e.Module != tt.module {
				t.Errorf("error %v is not a conversion failure of %s", err, tt.module)
			}
			if !errors.HasKind(err, tt.wantKind) {
				t.Errorf("error %v does not carry %s", err, tt.wantKind)
			}
		})
	}

	t.Run("fixed_module", func(t *testing.T) {
		d := mustParse(t, `(design (fixed $F (input x i1)))`)
		_, err := convert(t, d, "F", tapPort("x"))
		if !errors.HasKind(err, errors.KindUnsupported) {
			t.Errorf("Run on fixed module = %v, want unsupported", err)
		}
	})

	t.Run("builder_error_cause", func(t *testing.T) {
		d := mustParse(t, tapDesign)
		_, err := convert(t, d, "M", BuilderFunc(func(*Converter, hw.PortInfo) (Conversion, error) {
			return nil, boom
		}))
		if !stderrors.Is(err, boom) {
			t.Errorf("error %v does not wrap the builder error", err)
		}
	})
}
