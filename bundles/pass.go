package bundles

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/bundle-lower/errors"
	"github.com/wippyai/bundle-lower/hw"
	"github.com/wippyai/bundle-lower/portconv"
)

// Config controls a lowering run.
type Config struct {
	// MaxCleanupIterations bounds the cleanup worklist. 0 picks a bound
	// proportional to the number of adapter ops.
	MaxCleanupIterations int

	// SkipCleanup leaves every inserted adapter in place and skips the
	// residual check. The result is well-typed but not fully lowered.
	SkipCleanup bool
}

// Stats summarizes a lowering run.
type Stats struct {
	ModulesConverted   int
	PortsLowered       int
	InstancesRewritten int
	AdaptersInserted   int
	AdaptersEliminated int
	Cleanup            CleanupStats
}

// Pass lowers every bundle-typed port of a design into per-channel ports.
type Pass struct {
	cfg Config
}

// New creates a lowering pass.
func New(cfg Config) *Pass {
	return &Pass{cfg: cfg}
}

// Run lowers d in place.
//
// Definitions and externs are converted in design order; fixed modules and
// their instances are left untouched. The first conversion failure aborts
// the run with the design partially rewritten. After conversion the
// cleanup worklist removes the adapters that cancel across instance
// boundaries; every Pack that survives is reported as a residual adapter,
// one error per Pack, combined with multierr.
func (p *Pass) Run(d *hw.Design) (Stats, error) {
	var stats Stats
	log := Logger()

	graph := hw.BuildInstanceGraph(d)
	before := d.CountOps(hw.OpPack) + d.CountOps(hw.OpUnpack)
	for _, m := range d.Modules() {
		if !m.Mutable() {
			continue
		}
		c := portconv.NewConverter(d, graph, m.ID(), Selector{})
		if err := c.Run(); err != nil {
			log.Error("conversion failed", zap.String("module", m.Name), zap.Error(err))
			return stats, err
		}
		sum := c.Summary()
		if sum.PortsConverted > 0 {
			stats.ModulesConverted++
			stats.PortsLowered += sum.PortsConverted
			stats.InstancesRewritten += sum.InstancesRewritten
		}
	}
	stats.AdaptersInserted = d.CountOps(hw.OpPack) + d.CountOps(hw.OpUnpack) - before

	if p.cfg.SkipCleanup {
		log.Info("lowered bundles without cleanup",
			zap.Int("modules", stats.ModulesConverted),
			zap.Int("ports", stats.PortsLowered),
			zap.Int("instances", stats.InstancesRewritten),
			zap.Int("adapters", stats.AdaptersInserted))
		return stats, nil
	}

	cleanup, cerr := Canonicalize(d, p.cfg.MaxCleanupIterations)
	stats.Cleanup = cleanup
	stats.AdaptersEliminated = 2 * cleanup.PairsEliminated

	err := multierr.Append(cerr, Residuals(d))
	for _, e := range multierr.Errors(err) {
		log.Error("lowering left a residual", zap.Error(e))
	}

	log.Info("lowered bundles",
		zap.Int("modules", stats.ModulesConverted),
		zap.Int("ports", stats.PortsLowered),
		zap.Int("instances", stats.InstancesRewritten),
		zap.Int("adapters_eliminated", stats.AdaptersEliminated),
		zap.Int("cleanup_iterations", cleanup.Iterations))
	return stats, err
}

// Residuals returns one error per Pack left in d, or nil.
func Residuals(d *hw.Design) error {
	var errs error
	d.Walk(func(op *hw.Op) bool {
		if op.Kind == hw.OpPack {
			errs = multierr.Append(errs, errors.ResidualAdapter(d.Module(op.Parent).Name, d.Describe(op.ID)))
		}
		return true
	})
	return errs
}
