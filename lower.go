package bundlelower

import (
	"github.com/wippyai/bundle-lower/bundles"
	"github.com/wippyai/bundle-lower/errors"
	"github.com/wippyai/bundle-lower/hw"
	"github.com/wippyai/bundle-lower/hwtext"
)

// Options controls Lower and LowerDesign.
type Options struct {
	Pass bundles.Config

	// VerifyInput and VerifyOutput run hw.Verify before and after the pass.
	VerifyInput  bool
	VerifyOutput bool

	// LinearBundles additionally requires every bundle value left in the
	// output to have exactly one use.
	LinearBundles bool
}

// DefaultOptions verifies the design on both sides of the pass.
func DefaultOptions() Options {
	return Options{VerifyInput: true, VerifyOutput: true}
}

// Lower parses a design, lowers it and prints the result.
func Lower(source string, opts Options) (string, bundles.Stats, error) {
	d, err := hwtext.Parse(source)
	if err != nil {
		return "", bundles.Stats{}, err
	}
	stats, err := LowerDesign(d, opts)
	if err != nil {
		return "", stats, err
	}
	return hwtext.Print(d), stats, nil
}

// LowerDesign lowers d in place.
func LowerDesign(d *hw.Design, opts Options) (bundles.Stats, error) {
	if opts.VerifyInput {
		if err := hw.Verify(d); err != nil {
			return bundles.Stats{}, errors.Wrap(errors.PhaseVerify, errors.KindInvalidInput, err, "input design")
		}
	}
	stats, err := bundles.New(opts.Pass).Run(d)
	if err != nil {
		return stats, err
	}
	if opts.VerifyOutput {
		if err := hw.Verify(d); err != nil {
			return stats, errors.Wrap(errors.PhaseVerify, errors.KindInvalidInput, err, "lowered design")
		}
	}
	if opts.LinearBundles {
		if err := hw.CheckLinearBundles(d); err != nil {
			return stats, err
		}
	}
	return stats, nil
}
