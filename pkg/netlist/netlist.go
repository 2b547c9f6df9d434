// Package netlist builds and validates the electrical connectivity of a
// schematic. The inference engine completes partial connectivity with
// oracle suggestions, falling back to singleton nets when the oracle is
// unavailable, and the validator enforces the structural rules a board
// generator depends on.
package netlist

import (
	"encoding/json"
	"sort"

	apperrors "github.com/schemforge/schemforge/pkg/errors"
	"github.com/schemforge/schemforge/pkg/schematic"
)

// Net is a named electrical node joining two or more pins, or a
// singleton placeholder for a pin the oracle could not connect.
type Net struct {
	ID       string             `json:"id" bson:"id"`
	Pins     []schematic.PinRef `json:"pins" bson:"pins"`
	Declared bool               `json:"declared" bson:"declared"`
}

// Singleton reports whether the net joins fewer than two pins.
func (n *Net) Singleton() bool { return len(n.Pins) < 2 }

// Netlist maps every pin of a schematic to exactly one net. Assignment
// is exclusive: joining a pin that already belongs to a different net
// is an error, never a silent move.
type Netlist struct {
	nets       map[string]*Net
	order      []string
	assignment map[schematic.PinRef]string
}

// New returns an empty netlist.
func New() *Netlist {
	return &Netlist{
		nets:       map[string]*Net{},
		assignment: map[schematic.PinRef]string{},
	}
}

// Assign joins pin to the net with the given ID, creating the net when
// it does not exist yet. Assigning a pin to the net it already belongs
// to is a no-op; assigning it to a different net fails with
// [apperrors.ErrCodeDoubleAssigned].
func (nl *Netlist) Assign(netID string, pin schematic.PinRef) error {
	if netID == "" {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "net ID must not be empty")
	}
	if current, ok := nl.assignment[pin]; ok {
		if current == netID {
			return nil
		}
		return apperrors.New(apperrors.ErrCodeDoubleAssigned,
			"pin %s is already on net %q, cannot join %q", pin, current, netID)
	}

	n, ok := nl.nets[netID]
	if !ok {
		n = &Net{ID: netID}
		nl.nets[netID] = n
		nl.order = append(nl.order, netID)
	}
	n.Pins = append(n.Pins, pin)
	nl.assignment[pin] = netID
	return nil
}

// MarkDeclared flags a net as originating from an explicit declaration
// in the source schematic.
func (nl *Netlist) MarkDeclared(netID string) {
	if n, ok := nl.nets[netID]; ok {
		n.Declared = true
	}
}

// Net returns the net with the given ID, or nil.
func (nl *Netlist) Net(id string) *Net { return nl.nets[id] }

// NetOf returns the net ID a pin is assigned to.
func (nl *Netlist) NetOf(pin schematic.PinRef) (string, bool) {
	id, ok := nl.assignment[pin]
	return id, ok
}

// Nets returns all nets sorted by ID.
func (nl *Netlist) Nets() []*Net {
	out := make([]*Net, 0, len(nl.nets))
	for _, id := range nl.order {
		out = append(out, nl.nets[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of nets.
func (nl *Netlist) Len() int { return len(nl.nets) }

// PinCount returns the number of assigned pins.
func (nl *Netlist) PinCount() int { return len(nl.assignment) }

// HasNet reports whether a net with the given ID exists.
func (nl *Netlist) HasNet(id string) bool {
	_, ok := nl.nets[id]
	return ok
}

// MarshalJSON encodes the netlist as a sorted array of nets, so equal
// netlists always serialize to identical bytes.
func (nl *Netlist) MarshalJSON() ([]byte, error) {
	return json.Marshal(nl.Nets())
}

// UnmarshalJSON rebuilds the netlist from its serialized net array.
func (nl *Netlist) UnmarshalJSON(data []byte) error {
	var nets []*Net
	if err := json.Unmarshal(data, &nets); err != nil {
		return err
	}
	*nl = *New()
	for _, n := range nets {
		for _, pin := range n.Pins {
			if err := nl.Assign(n.ID, pin); err != nil {
				return err
			}
		}
		if n.Declared {
			nl.MarkDeclared(n.ID)
		}
	}
	return nil
}
