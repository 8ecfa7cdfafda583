package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	bundlelower "github.com/wippyai/bundle-lower"
	"github.com/wippyai/bundle-lower/bundles"
	"github.com/wippyai/bundle-lower/hw"
	"github.com/wippyai/bundle-lower/hwtext"
)

func newLowerCommand(a *app) *cobra.Command {
	var output string
	var showStats bool

	cmd := &cobra.Command{
		Use:   "lower <file>",
		Short: "Lower every bundle port of a design",
		Long: `Lower every bundle port of a design and print the result.

Use - to read the design from standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.readDesign(args[0])
			if err != nil {
				return err
			}
			stats, err := bundlelower.LowerDesign(d, a.options())
			if err != nil {
				return err
			}
			a.log.Info("lowered design",
				zap.String("file", args[0]),
				zap.Int("ports", stats.PortsLowered),
				zap.Int("instances", stats.InstancesRewritten))

			text := hwtext.Print(d)
			if output == "" {
				fmt.Fprint(a.out, text)
			} else if err := os.WriteFile(output, []byte(text), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			if showStats {
				fmt.Fprintln(a.errOut, formatStats(stats))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the lowered design to a file")
	cmd.Flags().BoolVar(&showStats, "stats", false, "print lowering statistics to stderr")
	return cmd
}

func newCheckCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Report whether a design lowers cleanly",
		Long: `Lower a design without printing it and report any problem.

Unlike lower, check always requires every bundle value left in the
lowered design to have exactly one use.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.readDesign(args[0])
			if err != nil {
				return err
			}
			opts := a.options()
			opts.LinearBundles = true
			stats, err := bundlelower.LowerDesign(d, opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, okStyle.Render("ok:"), formatStats(stats))
			return nil
		},
	}
}

func newInspectCommand(a *app) *cobra.Command {
	var interactive bool

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "List the bundle ports of a design and what they lower to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.readDesign(args[0])
			if err != nil {
				return err
			}
			if interactive {
				return a.browse(args[0], d)
			}
			for _, m := range d.Modules() {
				fmt.Fprint(a.out, describeModule(m))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "browse modules before and after lowering")
	return cmd
}

func (a *app) readDesign(path string) (*hw.Design, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(a.in)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return hwtext.Parse(string(data))
}

func formatStats(s bundles.Stats) string {
	return fmt.Sprintf("%d modules, %d ports lowered, %d instances rewritten, %d adapters inserted, %d eliminated",
		s.ModulesConverted, s.PortsLowered, s.InstancesRewritten, s.AdaptersInserted, s.AdaptersEliminated)
}

// describeModule lists the bundle ports of m and the ports each one is
// split into.
func describeModule(m *hw.Module) string {
	var b strings.Builder
	b.WriteString(moduleStyle.Render(m.Name))
	b.WriteString(" ")
	b.WriteString(m.Kind.String())
	if !m.Mutable() {
		b.WriteString(" (not lowered)")
	}
	b.WriteString("\n")

	for _, p := range m.PortInfos() {
		shape, ok := hw.ShapeOf(p.Type)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "  %s %s %s\n", p.Direction, p.Name, typeStyle.Render(hw.TypeString(p.Type)))
		if !m.Mutable() {
			continue
		}
		for _, lp := range loweredPorts(p.Port, shape) {
			fmt.Fprintf(&b, "    -> %s %s %s\n", lp.Direction, lp.Name, typeStyle.Render(hw.TypeString(lp.Type)))
		}
	}
	return b.String()
}

// loweredPorts returns the ports p becomes: to channels keep the port's
// direction and from channels are flipped.
func loweredPorts(p hw.Port, shape hw.BundleShape) []hw.Port {
	var same, flipped []hw.Port
	for _, ch := range shape.Bundle.Channels {
		lp := hw.Port{Name: p.Name + "_" + ch.Name, Type: shape.ChannelType(ch), Direction: p.Direction}
		if ch.Direction == hw.To {
			same = append(same, lp)
			continue
		}
		lp.Direction = hw.Input
		if p.Direction == hw.Input {
			lp.Direction = hw.Output
		}
		flipped = append(flipped, lp)
	}
	return append(same, flipped...)
}
