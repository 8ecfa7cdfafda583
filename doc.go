// Package bundlelower lowers bundle-typed module ports of a hardware design
// into plain per-channel ports.
//
// A bundle is a group of named, independently flow-controlled channels
// passed through a single port, some flowing toward the module and some
// back. Many back ends only understand individual channels, so bundles
// must be split before code generation without changing what any module
// computes.
//
// # Architecture Overview
//
//	bundlelower/         Root package with the text-to-text Lower entry point
//	├── hw/              Design IR: types, modules, ops, builder, instance graph, verifier
//	├── hwtext/          S-expression text format for designs
//	├── portconv/        Generic port-conversion framework (signatures and instances)
//	├── bundles/         Bundle and array-of-bundle lowering, adapter cleanup, the pass
//	├── errors/          Structured error types for diagnostics
//	├── internal/config/ TOML configuration for the command-line tool
//	└── cmd/bundlelower/ Command-line tool: lower, check, inspect
//
// # Quick Start
//
//	out, stats, err := bundlelower.Lower(src, bundlelower.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(out)
//	fmt.Println(stats.PortsLowered, "ports lowered")
//
// # Text Format
//
//	(design
//	  (module $M
//	    (input in (bundle (to req i1) (from resp i8)))
//	    (body
//	      (%req = unpack %in (%resp))
//	      (%resp = generic "respond" (%req) (i8))
//	      (output))))
//
// lowers to
//
//	(design
//	  (module $M
//	    (input in_req i1)
//	    (output in_resp i8)
//	    (body
//	      (%resp = generic "respond" (%in_req) (i8))
//	      (output %resp))))
//
// # Error Handling
//
// Errors are *errors.Error values carrying the phase and kind of the
// failure. A run that leaves adapters behind reports one error per
// adapter; use multierr.Errors to list them.
package bundlelower
