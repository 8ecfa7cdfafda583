// Package bundles lowers bundle-typed module ports into one port per
// channel.
//
// A bundle groups named channels, each flowing either "to" the module that
// receives the bundle or back "from" it. Lowering an input bundle port
// turns its to-channels into inputs and its from-channels into outputs;
// an output bundle port is lowered the other way round. Ports carrying an
// array of N bundles become one array<N x T> port per channel.
//
// Bodies and instantiation sites are kept equivalent with pack and unpack
// adapters. When both sides of an instance boundary are lowered the
// adapters meet and cancel; Canonicalize removes them, and Pass.Run fails
// if any pack survives.
//
// Typical use:
//
//	stats, err := bundles.New(bundles.Config{}).Run(design)
//	if err != nil {
//	    for _, e := range multierr.Errors(err) {
//	        log.Println(e)
//	    }
//	}
package bundles
