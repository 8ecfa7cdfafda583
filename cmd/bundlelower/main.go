package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	bundlelower "github.com/wippyai/bundle-lower"
	"github.com/wippyai/bundle-lower/bundles"
	"github.com/wippyai/bundle-lower/internal/config"
	"github.com/wippyai/bundle-lower/portconv"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code.
func run(args []string, in io.Reader, out, errOut io.Writer) int {
	a := &app{in: in, out: out, errOut: errOut}
	root := newRootCommand(a)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		a.reportError(err)
		return 1
	}
	return 0
}

// app holds what every subcommand needs once flags are parsed.
type app struct {
	cfg    *config.Config
	log    *zap.Logger
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	configPath string
	verbose    bool
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "bundlelower",
		Short: "Lower bundle-typed module ports into per-channel ports",
		Long: `Lower bundle-typed module ports into per-channel ports.

Designs are read in the hwtext S-expression format. Every bundle port of
a module definition or extern is split into one port per channel, and
every instance is rewired to match.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "TOML configuration file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log conversion details")
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	root.AddCommand(newLowerCommand(a), newCheckCommand(a), newInspectCommand(a))
	return root
}

func (a *app) setup() error {
	cfg := config.Default()
	if a.configPath != "" {
		loaded, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	a.cfg = cfg
	configureColor(cfg.Output.Color, a.out)

	log, err := newLogger(cfg.Log, a.verbose)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	a.log = log
	portconv.SetLogger(log.Named("portconv"))
	bundles.SetLogger(log.Named("bundles"))
	return nil
}

func (a *app) options() bundlelower.Options {
	return bundlelower.Options{
		Pass:          a.cfg.Pass(),
		VerifyInput:   a.cfg.Verify.Input,
		VerifyOutput:  a.cfg.Verify.Output,
		LinearBundles: a.cfg.Verify.LinearBundles,
	}
}

// reportError prints every error of a combined error on its own line.
func (a *app) reportError(err error) {
	for _, e := range multierr.Errors(err) {
		fmt.Fprintln(a.errOut, errorStyle.Render("error:"), e.Error())
	}
}

func newLogger(cfg config.Log, verbose bool) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.Format == config.FormatJSON {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}
