// Package schematic provides the in-memory model for circuit schematics.
//
// A [Schematic] owns its Components and their Pins for the lifetime of a
// pipeline run. Nets declared in the input are kept as [DeclaredNet] seeds;
// the completed netlist lives in pkg/netlist and only references pins by
// [PinRef]. After parsing, a schematic is frozen before the placement stage
// runs so later stages operate on an immutable snapshot.
//
// Two input formats are supported:
//   - the canonical JSON document (see [Parse])
//   - KiCad .kicad_sch s-expression files (see [ParseKiCad])
package schematic

import (
	"fmt"
	"strconv"
)

// PinRef identifies a pin by component reference and pin index.
// It is the only way downstream stages (netlist, placement, export)
// refer to pins; they never own Component or Pin values.
type PinRef struct {
	Ref string `json:"ref" bson:"ref"`
	Pin int    `json:"pin" bson:"pin"`
}

// String returns the conventional "REF.PIN" spelling (e.g., "R1.2").
func (p PinRef) String() string { return p.Ref + "." + strconv.Itoa(p.Pin) }

// Compare orders pin references by component reference, then pin index.
// Used for deterministic iteration and tie-breaking.
func (p PinRef) Compare(other PinRef) int {
	if p.Ref != other.Ref {
		if p.Ref < other.Ref {
			return -1
		}
		return 1
	}
	return p.Pin - other.Pin
}

// Position is a board coordinate in millimeters.
type Position struct {
	X float64 `json:"x" bson:"x"`
	Y float64 `json:"y" bson:"y"`
}

// Pin is a connection point on a component.
// A pin belongs to exactly one component and, once inference completes,
// to exactly one net.
type Pin struct {
	Index int    `json:"index" bson:"index"`                   // 1-based pin number
	Name  string `json:"name,omitempty" bson:"name,omitempty"` // e.g. "VDD", "OUT"
	Role  Role   `json:"role,omitempty" bson:"role,omitempty"`
}

// Component is a schematic part with an ordered pin sequence.
type Component struct {
	Ref       string    `json:"ref" bson:"ref"`                     // unique reference (e.g. "R1")
	Value     string    `json:"value,omitempty" bson:"value,omitempty"`
	Kind      string    `json:"kind,omitempty" bson:"kind,omitempty"` // category tag (e.g. "resistor")
	Footprint string    `json:"footprint,omitempty" bson:"footprint,omitempty"`
	Pins      []Pin     `json:"pins" bson:"pins"`
	Fixed     *Position `json:"fixed,omitempty" bson:"fixed,omitempty"` // locked placement, if any
}

// Pin returns the pin with the given index, or nil if absent.
func (c *Component) Pin(index int) *Pin {
	for i := range c.Pins {
		if c.Pins[i].Index == index {
			return &c.Pins[i]
		}
	}
	return nil
}

// DeclaredNet is a net named in the input, used to seed inference.
type DeclaredNet struct {
	Name string   `json:"name" bson:"name"`
	Pins []PinRef `json:"pins" bson:"pins"`
}

// Schematic is the parsed component/pin/net model for one pipeline run.
// It is mutable while being built by a parser and frozen afterwards;
// all later stages treat it as read-only.
type Schematic struct {
	components []*Component
	byRef      map[string]*Component
	declared   []DeclaredNet
	labels     []string // net label names seen in the source, in order
	frozen     bool
}

// New creates an empty schematic.
func New() *Schematic {
	return &Schematic{byRef: make(map[string]*Component)}
}

// AddComponent appends a component, preserving declaration order.
// It panics if called after Freeze; duplicate detection is the parser's
// responsibility (it has position information for better messages).
func (s *Schematic) AddComponent(c *Component) {
	s.mustBeMutable()
	s.components = append(s.components, c)
	s.byRef[c.Ref] = c
}

// DeclareNet records a pre-declared net from the input.
func (s *Schematic) DeclareNet(n DeclaredNet) {
	s.mustBeMutable()
	s.declared = append(s.declared, n)
}

// AddLabel records a net label name seen in the source.
// Labels are schematic-level hints passed through to the oracle.
func (s *Schematic) AddLabel(name string) {
	s.mustBeMutable()
	s.labels = append(s.labels, name)
}

// Freeze marks the schematic immutable. Mutating calls after Freeze panic;
// the pipeline freezes the model between validation and placement.
func (s *Schematic) Freeze() { s.frozen = true }

// Frozen reports whether the schematic has been frozen.
func (s *Schematic) Frozen() bool { return s.frozen }

func (s *Schematic) mustBeMutable() {
	if s.frozen {
		panic("schematic: mutation after Freeze")
	}
}

// Components returns all components in declaration order.
// The returned slice must be treated as read-only.
func (s *Schematic) Components() []*Component { return s.components }

// Component returns the component with the given reference.
func (s *Schematic) Component(ref string) (*Component, bool) {
	c, ok := s.byRef[ref]
	return c, ok
}

// ComponentCount returns the number of components.
func (s *Schematic) ComponentCount() int { return len(s.components) }

// PinCount returns the total number of pins across all components.
func (s *Schematic) PinCount() int {
	n := 0
	for _, c := range s.components {
		n += len(c.Pins)
	}
	return n
}

// DeclaredNets returns the pre-declared nets in declaration order.
func (s *Schematic) DeclaredNets() []DeclaredNet { return s.declared }

// Labels returns the net label names seen in the source, in order.
func (s *Schematic) Labels() []string { return s.labels }

// Pin resolves a PinRef to its Pin, or nil if the component or
// pin index does not exist.
func (s *Schematic) Pin(ref PinRef) *Pin {
	c, ok := s.byRef[ref.Ref]
	if !ok {
		return nil
	}
	return c.Pin(ref.Pin)
}

// AllPins returns every pin reference in declaration order: components in
// the order they were added, pins in their declared sequence. This order
// is the deterministic iteration order used by inference.
func (s *Schematic) AllPins() []PinRef {
	refs := make([]PinRef, 0, s.PinCount())
	for _, c := range s.components {
		for _, p := range c.Pins {
			refs = append(refs, PinRef{Ref: c.Ref, Pin: p.Index})
		}
	}
	return refs
}

// Validate checks the structural invariants the parsers enforce:
// non-empty component set, every component has at least one pin with a
// distinct index, and every declared net references an existing pin.
// Parsers call this before returning; it is exposed for programmatically
// built schematics.
func (s *Schematic) Validate() error {
	if len(s.components) == 0 {
		return errMalformed("schematic contains no components")
	}
	for _, c := range s.components {
		if len(c.Pins) == 0 {
			return errEmptyComponent(c.Ref)
		}
		seen := make(map[int]bool, len(c.Pins))
		for _, p := range c.Pins {
			if seen[p.Index] {
				return errMalformed("component %s declares pin index %d twice", c.Ref, p.Index)
			}
			seen[p.Index] = true
		}
	}
	for _, n := range s.declared {
		for _, p := range n.Pins {
			if s.Pin(p) == nil {
				return errUnknownPin(n.Name, p)
			}
		}
	}
	return nil
}

func (s *Schematic) String() string {
	return fmt.Sprintf("schematic(%d components, %d pins, %d declared nets)",
		s.ComponentCount(), s.PinCount(), len(s.declared))
}
