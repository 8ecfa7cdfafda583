// Package hwtext reads and writes designs in an S-expression text form.
//
//	(design
//	  (module $Top
//	    (input in (bundle (to req (chan i1)) (from resp (chan i8))))
//	    (output o (chan i8))
//	    (body
//	      (%resp = instance "m0" $M (%in))
//	      (output %resp)))
//	  (extern $M
//	    (input in (bundle (to req (chan i1)) (from resp (chan i8))))
//	    (output resp (chan i8))))
//
// Op forms inside a body:
//
//	(%b %f... = pack <type> (%to...))
//	(%t... = unpack %b (%from...))
//	(%e = array_get %a <index>)
//	(%a = array_create <elemType> (%x...))
//	(%r... = generic "<name>" (%x...) (<types>))
//	(%r... = instance "<name>" $Callee (%x...))
//	(output %x...)
//
// Types are iN, (chan T), (array N T) and (bundle (to|from name T)...).
// Values may be referenced before the op defining them. Block arguments
// are named after their input ports.
package hwtext

import (
	"github.com/wippyai/bundle-lower/hw"
	"github.com/wippyai/bundle-lower/hwtext/internal/parser"
	"github.com/wippyai/bundle-lower/hwtext/internal/printer"
	"github.com/wippyai/bundle-lower/hwtext/internal/token"
)

// Parse reads a design. The result is not verified; call hw.Verify.
func Parse(source string) (*hw.Design, error) {
	tokens := token.Tokenize(source)
	p := parser.New(tokens)
	return p.Parse()
}

// Print renders a design. Printing a parsed design and parsing the output
// again yields the same text.
func Print(d *hw.Design) string {
	return printer.Design(d)
}

// PrintModule renders a single module.
func PrintModule(d *hw.Design, id hw.ModuleID) string {
	return printer.Module(d, id)
}
