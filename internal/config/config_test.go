package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/multierr"

	"github.com/wippyai/bundle-lower/bundles"
	"github.com/wippyai/bundle-lower/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}
	if !cfg.Verify.Input || !cfg.Verify.Output || cfg.Verify.LinearBundles {
		t.Errorf("Verify = %+v", cfg.Verify)
	}
	if diff := cmp.Diff(bundles.Config{}, cfg.Pass()); diff != "" {
		t.Errorf("Pass() mismatch (-want +got):\n%s", diff)
	}
}

func TestParse(t *testing.T) {
	src := `
[lower]
max_cleanup_iterations = 500
skip_cleanup = true

[verify]
linear_bundles = true

[log]
level = "debug"
format = "json"
`
	cfg, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	want := Default()
	want.Lower = Lower{MaxCleanupIterations: 500, SkipCleanup: true}
	want.Verify.LinearBundles = true
	want.Log = Log{Level: "debug", Format: FormatJSON}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
		count   int
	}{
		{"unknown_key", "[lower]\nmax_iterations = 3\n", "max_iterations", 1},
		{"unknown_table", "[render]\ncolor = true\n", "render", 1},
		{"syntax", "[lower\n", "config", 1},
		{"bad_color", "[output]\ncolor = \"sometimes\"\n", "output.color", 1},
		{"negative_bound", "[lower]\nmax_cleanup_iterations = -1\n", "max_cleanup_iterations", 1},
		{"several", "[log]\nlevel = \"loud\"\nformat = \"xml\"\n", "log.", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q missing %q", err, tt.wantErr)
			}
			if n := len(multierr.Errors(err)); n != tt.count {
				t.Errorf("got %d errors, want %d: %v", n, tt.count, err)
			}
			if e, ok := errors.As(err); !ok || e.Phase != errors.PhaseConfig {
				t.Errorf("error %v is not a config error", err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bundlelower.toml")
	if err := os.WriteFile(path, []byte("[output]\ncolor = \"never\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Output.Color != ColorNever {
		t.Errorf("Color = %q, want never", cfg.Output.Color)
	}

	_, err = Load(filepath.Join(dir, "missing.toml"))
	if !errors.HasKind(err, errors.KindNotFound) {
		t.Errorf("Load(missing) = %v, want not found", err)
	}
}
