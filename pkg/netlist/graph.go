package netlist

import (
	"github.com/schemforge/schemforge/pkg/oracle"
	"github.com/schemforge/schemforge/pkg/schematic"
)

// Graph is a read-only connectivity view over a schematic and its
// (possibly partial) netlist. It is derived on demand, never stored.
type Graph struct {
	sch *schematic.Schematic
	nl  *Netlist
}

// NewGraph builds a connectivity view.
func NewGraph(sch *schematic.Schematic, nl *Netlist) *Graph {
	return &Graph{sch: sch, nl: nl}
}

// Unassigned returns the pins without a net, in schematic declaration
// order. This ordering drives inference, so runs are reproducible.
func (g *Graph) Unassigned() []schematic.PinRef {
	var out []schematic.PinRef
	for _, pin := range g.sch.AllPins() {
		if _, ok := g.nl.NetOf(pin); !ok {
			out = append(out, pin)
		}
	}
	return out
}

// SharedNets counts nets with member pins on both components. The
// placement engine uses this as the attraction weight between parts.
func (g *Graph) SharedNets(refA, refB string) int {
	count := 0
	for _, n := range g.nl.Nets() {
		onA, onB := false, false
		for _, pin := range n.Pins {
			switch pin.Ref {
			case refA:
				onA = true
			case refB:
				onB = true
			}
		}
		if onA && onB {
			count++
		}
	}
	return count
}

// Snapshot captures the current connectivity state in the form oracles
// consume. Nets appear sorted by ID and components in declaration order.
func (g *Graph) Snapshot() *oracle.Snapshot {
	snap := &oracle.Snapshot{Labels: g.sch.Labels()}

	for _, c := range g.sch.Components() {
		cs := oracle.ComponentState{
			Ref:   c.Ref,
			Value: c.Value,
			Kind:  c.Kind,
		}
		for _, p := range c.Pins {
			ps := oracle.PinState{Index: p.Index, Name: p.Name, Role: p.Role}
			if id, ok := g.nl.NetOf(schematic.PinRef{Ref: c.Ref, Pin: p.Index}); ok {
				ps.Net = id
			}
			cs.Pins = append(cs.Pins, ps)
		}
		snap.Components = append(snap.Components, cs)
	}

	for _, n := range g.nl.Nets() {
		snap.Nets = append(snap.Nets, oracle.NetState{ID: n.ID, Pins: n.Pins})
	}
	return snap
}
