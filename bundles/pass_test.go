package bundles

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/multierr"

	"github.com/wippyai/bundle-lower/errors"
	"github.com/wippyai/bundle-lower/hw"
	"github.com/wippyai/bundle-lower/hwtext"
)

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

// lower runs the pass and checks that the result is still well-formed.
func lower(t *testing.T, src string, cfg Config) (*hw.Design, Stats) {
	t.Helper()
	d := mustParse(t, src)
	stats, err := New(cfg).Run(d)
	if err != nil {
		t.Fatalf("Run failed: %v\n%s", err, hwtext.Print(d))
	}
	if err := hw.Verify(d); err != nil {
		t.Fatalf("Verify after lowering: %v\n%s", err, hwtext.Print(d))
	}
	return d, stats
}

func ports(t *testing.T, d *hw.Design, module string) []hw.Port {
	t.Helper()
	m, ok := d.ModuleByName(module)
	if !ok {
		t.Fatalf("module %s not found", module)
	}
	return m.Ports
}

func intT(w int) hw.Type { return hw.IntType{Width: w} }

func arrT(n, w int) hw.Type { return hw.ArrayType{Elem: intT(w), Len: n} }

const reqRespBoth = `(design
  (module $M
    (input in (bundle (to req i1) (from resp i8)))
    (output done i1)
    (body
      (%req = unpack %in (%resp))
      (%resp = generic "respond" (%req) (i8))
      (output %req)))
  (module $Top
    (input in (bundle (to req i1) (from resp i8)))
    (output done i1)
    (body
      (%d = instance "m0" $M (%in))
      (output %d))))
`

func TestLowerBundleBothSides(t *testing.T) {
	d, stats := lower(t, reqRespBoth, Config{})

	want := `(design
  (module $M
    (input in_req i1)
    (output done i1)
    (output in_resp i8)
    (body
      (%resp = generic "respond" (%in_req) (i8))
      (output %in_req %resp)))
  (module $Top
    (input in_req i1)
    (output done i1)
    (output in_resp i8)
    (body
      (%d %v0 = instance "m0" $M (%in_req))
      (output %d %v0))))
`
	if diff := cmp.Diff(want, hwtext.Print(d)); diff != "" {
		t.Errorf("lowered design mismatch (-want +got):\n%s", diff)
	}

	wantStats := Stats{
		ModulesConverted:   2,
		PortsLowered:       2,
		InstancesRewritten: 1,
		AdaptersInserted:   3,
		AdaptersEliminated: 4,
	}
	got := stats
	got.Cleanup = CleanupStats{}
	if diff := cmp.Diff(wantStats, got); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
	if stats.Cleanup.PairsEliminated != 2 {
		t.Errorf("PairsEliminated = %d, want 2", stats.Cleanup.PairsEliminated)
	}
}

func TestLowerBundleLiteralAtCallSite(t *testing.T) {
	src := `(design
  (module $M
    (input in (bundle (to req i1) (from resp i8)))
    (output done i1)
    (body
      (%req = unpack %in (%resp))
      (%resp = generic "respond" (%req) (i8))
      (output %req)))
  (module $Top
    (output done i1)
    (body
      (%lit = generic "literal" () ((bundle (to req i1) (from resp i8))))
      (%d = instance "m0" $M (%lit))
      (output %d))))
`
	d, _ := lower(t, src, Config{})

	wantM := []hw.Port{
		{Name: "in_req", Type: intT(1), Direction: hw.Input},
		{Name: "done", Type: intT(1), Direction: hw.Output},
		{Name: "in_resp", Type: intT(8), Direction: hw.Output},
	}
	if diff := cmp.Diff(wantM, ports(t, d, "M")); diff != "" {
		t.Errorf("M ports mismatch (-want +got):\n%s", diff)
	}

	top, _ := d.ModuleByName("Top")
	text := hwtext.PrintModule(d, top.ID())
	for _, frag := range []string{
		"(%v0 = unpack %lit (%v1))",
		`(%d %v1 = instance "m0" $M (%v0))`,
	} {
		if !strings.Contains(text, frag) {
			t.Errorf("Top missing %q:\n%s", frag, text)
		}
	}
	if n := d.CountOps(hw.OpPack); n != 0 {
		t.Errorf("%d packs left", n)
	}
}

func TestLowerArrayOutputPort(t *testing.T) {
	src := `(design
  (module $M
    (output o (array 2 (bundle (to a i4) (from b i2))))
    (body
      (%o = generic "src" () ((array 2 (bundle (to a i4) (from b i2)))))
      (output %o))))
`
	d, stats := lower(t, src, Config{})

	want := `(design
  (module $M
    (output o_a (array 2 i4))
    (input o_b (array 2 i2))
    (body
      (%o = generic "src" () ((array 2 (bundle (to a i4) (from b i2)))))
      (%v0 = array_get %o_b 0)
      (%v1 = array_get %o 0)
      (%v2 = unpack %v1 (%v0))
      (%v3 = array_get %o_b 1)
      (%v4 = array_get %o 1)
      (%v5 = unpack %v4 (%v3))
      (%v6 = array_create i4 (%v2 %v5))
      (output %v6))))
`
	if diff := cmp.Diff(want, hwtext.Print(d)); diff != "" {
		t.Errorf("lowered design mismatch (-want +got):\n%s", diff)
	}
	if stats.AdaptersInserted != 2 || stats.Cleanup.Changed() {
		t.Errorf("stats = %+v", stats)
	}
}

func TestLowerEmptyArray(t *testing.T) {
	src := `(design
  (module $M
    (input in (array 0 (bundle (to a i4) (from b i2))))
    (output out (array 0 (bundle (to a i4) (from b i2))))
    (body
      (output %in)))
  (module $Top
    (output o (array 0 (bundle (to a i4) (from b i2))))
    (body
      (%e = array_create (bundle (to a i4) (from b i2)) ())
      (%r = instance "m0" $M (%e))
      (output %r))))
`
	d, stats := lower(t, src, Config{})

	want := `(design
  (module $M
    (input in_a (array 0 i4))
    (output out_a (array 0 i4))
    (input out_b (array 0 i2))
    (output in_b (array 0 i2))
    (body
      (%v0 = array_create i2 ())
      (%v1 = array_create i4 ())
      (output %v1 %v0)))
  (module $Top
    (output o_a (array 0 i4))
    (input o_b (array 0 i2))
    (body
      (%v0 = array_create i4 ())
      (%v1 = array_create i2 ())
      (%v2 %v3 = instance "m0" $M (%v0 %v1))
      (%v4 = array_create i4 ())
      (output %v4))))
`
	if diff := cmp.Diff(want, hwtext.Print(d)); diff != "" {
		t.Errorf("lowered design mismatch (-want +got):\n%s", diff)
	}
	if stats.AdaptersInserted != 0 {
		t.Errorf("AdaptersInserted = %d, want 0", stats.AdaptersInserted)
	}
	if stats.Cleanup.DeadRemoved != 3 {
		t.Errorf("DeadRemoved = %d, want 3", stats.Cleanup.DeadRemoved)
	}
}

const arrayRoundTrip = `(design
  (module $M
    (input i (array 2 (bundle (to a i4) (from b i2))))
    (output o (array 2 (bundle (to a i4) (from b i2))))
    (body
      (output %i)))
  (module $Top
    (input x (array 2 (bundle (to a i4) (from b i2))))
    (output y (array 2 (bundle (to a i4) (from b i2))))
    (body
      (%r = instance "m0" $M (%x))
      (output %r))))
`

func TestLowerArrayRoundTrip(t *testing.T) {
	d, stats := lower(t, arrayRoundTrip, Config{})

	want := `(design
  (module $M
    (input i_a (array 2 i4))
    (output o_a (array 2 i4))
    (input o_b (array 2 i2))
    (output i_b (array 2 i2))
    (body
      (output %i_a %o_b)))
  (module $Top
    (input x_a (array 2 i4))
    (output y_a (array 2 i4))
    (input y_b (array 2 i2))
    (output x_b (array 2 i2))
    (body
      (%v0 %v1 = instance "m0" $M (%x_a %y_b))
      (output %v0 %v1))))
`
	if diff := cmp.Diff(want, hwtext.Print(d)); diff != "" {
		t.Errorf("lowered design mismatch (-want +got):\n%s", diff)
	}
	if stats.Cleanup.Scalarized != 2 {
		t.Errorf("Scalarized = %d, want 2 (one arrayed pack, one arrayed unpack)", stats.Cleanup.Scalarized)
	}
}

func TestPortCountLaw(t *testing.T) {
	src := `(design
  (extern $E
    (input p (bundle (to a i1) (from b i2) (to c i3)))
    (output q i1)))
`
	d, _ := lower(t, src, Config{})

	want := []hw.Port{
		{Name: "p_a", Type: intT(1), Direction: hw.Input},
		{Name: "p_c", Type: intT(3), Direction: hw.Input},
		{Name: "q", Type: intT(1), Direction: hw.Output},
		{Name: "p_b", Type: intT(2), Direction: hw.Output},
	}
	if diff := cmp.Diff(want, ports(t, d, "E")); diff != "" {
		t.Errorf("ports mismatch (-want +got):\n%s", diff)
	}
}

func TestArrayTransposeLaw(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []hw.Port
	}{
		{
			name: "input",
			src:  `(design (extern $E (input p (array 3 (bundle (to a i1) (from b i2) (to c i3))))))`,
			want: []hw.Port{
				{Name: "p_a", Type: arrT(3, 1), Direction: hw.Input},
				{Name: "p_c", Type: arrT(3, 3), Direction: hw.Input},
				{Name: "p_b", Type: arrT(3, 2), Direction: hw.Output},
			},
		},
		{
			name: "output",
			src:  `(design (extern $E (output p (array 3 (bundle (to a i1) (from b i2) (to c i3))))))`,
			want: []hw.Port{
				{Name: "p_a", Type: arrT(3, 1), Direction: hw.Output},
				{Name: "p_c", Type: arrT(3, 3), Direction: hw.Output},
				{Name: "p_b", Type: arrT(3, 2), Direction: hw.Input},
			},
		},
		{
			name: "single_element",
			src:  `(design (extern $E (input p (array 1 (bundle (to a i1) (from b i2))))))`,
			want: []hw.Port{
				{Name: "p_a", Type: arrT(1, 1), Direction: hw.Input},
				{Name: "p_b", Type: arrT(1, 2), Direction: hw.Output},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := lower(t, tt.src, Config{})
			if diff := cmp.Diff(tt.want, ports(t, d, "E")); diff != "" {
				t.Errorf("ports mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSingleElementArrayBody(t *testing.T) {
	src := `(design
  (module $M
    (input p (array 1 (bundle (to a i1) (from b i2))))
    (output o i1)
    (body
      (%e = array_get %p 0)
      (%a = unpack %e (%b))
      (%b = generic "reply" (%a) (i2))
      (output %a))))
`
	d, _ := lower(t, src, Config{})

	want := `(design
  (module $M
    (input p_a (array 1 i1))
    (output o i1)
    (output p_b (array 1 i2))
    (body
      (%v0 = array_get %p_a 0)
      (%v1 = array_create i2 (%b))
      (%b = generic "reply" (%v0) (i2))
      (output %v0 %v1))))
`
	if diff := cmp.Diff(want, hwtext.Print(d)); diff != "" {
		t.Errorf("lowered design mismatch (-want +got):\n%s", diff)
	}
}

func TestOpaqueModules(t *testing.T) {
	src := `(design
  (extern $E
    (input in (bundle (to req i1) (from resp i8))))
  (fixed $F
    (input in (bundle (to req i1) (from resp i8))))
  (module $Top
    (body
      (%l1 = generic "literal" () ((bundle (to req i1) (from resp i8))))
      (%l2 = generic "literal" () ((bundle (to req i1) (from resp i8))))
      (instance "e0" $E (%l1))
      (instance "f0" $F (%l2))
      (output))))
`
	d, stats := lower(t, src, Config{})

	e, _ := d.ModuleByName("E")
	if e.HasBody() || e.NumOps() != 0 {
		t.Error("adapters inserted into a module without a body")
	}
	wantE := []hw.Port{
		{Name: "in_req", Type: intT(1), Direction: hw.Input},
		{Name: "in_resp", Type: intT(8), Direction: hw.Output},
	}
	if diff := cmp.Diff(wantE, e.Ports); diff != "" {
		t.Errorf("E ports mismatch (-want +got):\n%s", diff)
	}

	f, _ := d.ModuleByName("F")
	if len(f.Ports) != 1 || f.Ports[0].Name != "in" {
		t.Errorf("fixed module ports changed: %v", f.Ports)
	}

	top, _ := d.ModuleByName("Top")
	text := hwtext.PrintModule(d, top.ID())
	for _, frag := range []string{
		"(%v0 = unpack %l1 (%v1))",
		`(%v1 = instance "e0" $E (%v0))`,
		`(instance "f0" $F (%l2))`,
	} {
		if !strings.Contains(text, frag) {
			t.Errorf("Top missing %q:\n%s", frag, text)
		}
	}
	if stats.ModulesConverted != 1 || stats.InstancesRewritten != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestCleanupIdempotent(t *testing.T) {
	for name, src := range map[string]string{
		"scalar": reqRespBoth,
		"array":  arrayRoundTrip,
	} {
		t.Run(name, func(t *testing.T) {
			d, _ := lower(t, src, Config{})
			before := hwtext.Print(d)
			stats, err := Canonicalize(d, 0)
			if err != nil {
				t.Fatalf("Canonicalize: %v", err)
			}
			if stats.Changed() {
				t.Errorf("second cleanup changed something: %+v", stats)
			}
			if diff := cmp.Diff(before, hwtext.Print(d)); diff != "" {
				t.Errorf("second cleanup changed the design (-before +after):\n%s", diff)
			}
		})
	}
}

func TestNoResidualAfterSuccess(t *testing.T) {
	for name, src := range map[string]string{
		"scalar": reqRespBoth,
		"array":  arrayRoundTrip,
	} {
		t.Run(name, func(t *testing.T) {
			d, _ := lower(t, src, Config{})
			if n := d.CountOps(hw.OpPack); n != 0 {
				t.Errorf("%d packs survived", n)
			}
			if err := Residuals(d); err != nil {
				t.Errorf("Residuals = %v", err)
			}
			if err := hw.CheckLinearBundles(d); err != nil {
				t.Errorf("CheckLinearBundles = %v", err)
			}
		})
	}
}

func TestSkipCleanup(t *testing.T) {
	d, stats := lower(t, reqRespBoth, Config{SkipCleanup: true})
	if stats.AdaptersInserted != 3 {
		t.Errorf("AdaptersInserted = %d, want 3", stats.AdaptersInserted)
	}
	if got := d.CountOps(hw.OpPack); got != 2 {
		t.Errorf("packs = %d, want 2", got)
	}
	if got := d.CountOps(hw.OpUnpack); got != 2 {
		t.Errorf("unpacks = %d, want 2", got)
	}
}

func TestResidualAdapters(t *testing.T) {
	src := `(design
  (module $A
    (input in (bundle (to req i1) (from resp i8)))
    (body
      (generic "sink" (%in) ())
      (output)))
  (module $B
    (input in (bundle (to req i1) (from resp i8)))
    (body
      (generic "sink" (%in) ())
      (output))))
`
	d := mustParse(t, src)
	_, err := New(Config{}).Run(d)
	if err == nil {
		t.Fatal("expected residual adapter errors")
	}
	errs := multierr.Errors(err)
	if len(errs) != 2 {
		t.Fatalf("got %d errors, want 2: %v", len(errs), err)
	}
	for i, want := range []string{"A", "B"} {
		e, ok := errors.As(errs[i])
		if !ok || e.Kind != errors.KindResidualAdapter || e.Phase != errors.PhaseLower {
			t.Errorf("error %d = %v, want residual adapter", i, errs[i])
			continue
		}
		if e.Module != want {
			t.Errorf("error %d module = %q, want %q", i, e.Module, want)
		}
	}
}

func TestNonConvergence(t *testing.T) {
	d := mustParse(t, reqRespBoth)
	_, err := New(Config{MaxCleanupIterations: 1}).Run(d)
	if !errors.HasKind(err, errors.KindNonConvergence) {
		t.Fatalf("Run = %v, want non-convergence", err)
	}
	if !errors.HasKind(err, errors.KindResidualAdapter) {
		t.Errorf("Run = %v, want residual adapters reported alongside", err)
	}
}

func TestConversionFailureStopsPass(t *testing.T) {
	src := `(design
  (extern $A (input p (bundle (to x i1))))
  (extern $B (input p (bundle (to x i1))))
  (module $Top
    (body
      (instance "a0" $A ())
      (output))))
`
	d, err := hwtext.Parse(src)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	_, err = New(Config{}).Run(d)
	if !errors.HasKind(err, errors.KindConversion) || !errors.HasKind(err, errors.KindArityMismatch) {
		t.Fatalf("Run = %v, want conversion failure from arity mismatch", err)
	}
	if e, _ := errors.As(err); e.Module != "A" {
		t.Errorf("failing module = %q, want A", e.Module)
	}
	if p := ports(t, d, "B"); len(p) != 1 || p[0].Name != "p" {
		t.Errorf("B was converted after the failure: %v", p)
	}
}

func TestUnpartitionedBundle(t *testing.T) {
	d := hw.NewDesign()
	bad := hw.NewBundleType(hw.BundledChannel{Name: "x", Direction: hw.ChannelDirection(9), Type: intT(1)})
	if _, err := d.AddModule("E", hw.Extern, []hw.Port{{Name: "p", Direction: hw.Input, Type: bad}}); err != nil {
		t.Fatalf("AddModule: %v", err)
	}
	_, err := New(Config{}).Run(d)
	if !errors.HasKind(err, errors.KindUnsupported) {
		t.Fatalf("Run = %v, want unsupported", err)
	}
}
