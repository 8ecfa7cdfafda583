package hw

import "github.com/wippyai/bundle-lower/errors"

// InstanceGraph records, for every module, the instance ops that
// instantiate it and the modules it instantiates.
//
// The graph is built once and kept current by the port converter through
// Replace when it rebuilds an instance op.
type InstanceGraph struct {
	d       *Design
	sites   map[ModuleID][]OpID
	callees map[ModuleID][]ModuleID
}

// BuildInstanceGraph scans every definition body. Instances of unknown
// modules are skipped; Verify reports them.
func BuildInstanceGraph(d *Design) *InstanceGraph {
	g := &InstanceGraph{
		d:       d,
		sites:   make(map[ModuleID][]OpID),
		callees: make(map[ModuleID][]ModuleID),
	}
	d.Walk(func(op *Op) bool {
		if op.Kind != OpInstance {
			return true
		}
		callee, ok := d.ModuleByName(op.Callee)
		if !ok {
			return true
		}
		g.sites[callee.id] = append(g.sites[callee.id], op.ID)
		g.callees[op.Parent] = appendUniqueModule(g.callees[op.Parent], callee.id)
		return true
	})
	return g
}

// InstancesOf returns the live instance ops of mod, in discovery order.
func (g *InstanceGraph) InstancesOf(mod ModuleID) []OpID {
	var out []OpID
	for _, id := range g.sites[mod] {
		if !g.d.ops[id].erased {
			out = append(out, id)
		}
	}
	return out
}

// Replace records that instance op old was rebuilt as repl.
func (g *InstanceGraph) Replace(old, repl OpID) {
	callee, ok := g.d.ModuleByName(g.d.ops[repl].Callee)
	if !ok {
		return
	}
	sites := g.sites[callee.id]
	for i, id := range sites {
		if id == old {
			sites[i] = repl
			return
		}
	}
	g.sites[callee.id] = append(sites, repl)
}

// Callees returns the distinct modules instantiated by mod.
func (g *InstanceGraph) Callees(mod ModuleID) []ModuleID {
	return append([]ModuleID(nil), g.callees[mod]...)
}

// Roots returns the modules no other module instantiates, in design order.
func (g *InstanceGraph) Roots() []ModuleID {
	var out []ModuleID
	for _, m := range g.d.modules {
		if len(g.InstancesOf(m.id)) == 0 {
			out = append(out, m.id)
		}
	}
	return out
}

// PostOrder returns every module with callees before callers. A module
// that transitively instantiates itself yields a cycle error naming the
// chain.
func (g *InstanceGraph) PostOrder() ([]ModuleID, error) {
	const (
		unvisited = iota
		active
		done
	)
	state := make([]int, len(g.d.modules))
	var order []ModuleID
	var stack []ModuleID

	var visit func(m ModuleID) error
	visit = func(m ModuleID) error {
		switch state[m] {
		case done:
			return nil
		case active:
			var chain []string
			start := 0
			for i, s := range stack {
				if s == m {
					start = i
					break
				}
			}
			for _, s := range stack[start:] {
				chain = append(chain, g.d.modules[s].Name)
			}
			chain = append(chain, g.d.modules[m].Name)
			return errors.Cycle(errors.PhaseVerify, chain)
		}
		state[m] = active
		stack = append(stack, m)
		for _, c := range g.callees[m] {
			if err := visit(c); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[m] = done
		order = append(order, m)
		return nil
	}

	for _, m := range g.d.modules {
		if err := visit(m.id); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func appendUniqueModule(slice []ModuleID, val ModuleID) []ModuleID {
	for _, v := range slice {
		if v == val {
			return slice
		}
	}
	return append(slice, val)
}
