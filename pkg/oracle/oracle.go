// Package oracle defines the net-suggestion interface used by the net
// inference engine, plus the two in-tree implementations: a local
// heuristic oracle and a client for a remote generative-inference backend.
//
// The oracle is advisory. It proposes candidate nets with confidence
// scores; the inference engine decides what to accept. Oracle failures
// are never fatal: a timeout or error degrades to an empty candidate
// list and the engine falls back to singleton nets.
package oracle

import (
	"context"

	"github.com/schemforge/schemforge/pkg/schematic"
)

// Suggestion is one candidate net assignment for a pin.
type Suggestion struct {
	// Net is the target net: either the ID of an existing net in the
	// snapshot or a proposed name for a new net.
	Net string `json:"net"`

	// Confidence is the oracle's score in [0,1]. Candidates are applied
	// in descending confidence order.
	Confidence float64 `json:"confidence"`
}

// PinState describes one pin in a graph snapshot, including its current
// net assignment (empty while unassigned).
type PinState struct {
	Index int            `json:"index"`
	Name  string         `json:"name,omitempty"`
	Role  schematic.Role `json:"role,omitempty"`
	Net   string         `json:"net,omitempty"`
}

// ComponentState describes one component in a graph snapshot.
type ComponentState struct {
	Ref   string     `json:"ref"`
	Value string     `json:"value,omitempty"`
	Kind  string     `json:"kind,omitempty"`
	Pins  []PinState `json:"pins"`
}

// NetState describes one net in a graph snapshot.
type NetState struct {
	ID   string             `json:"id"`
	Pins []schematic.PinRef `json:"pins"`
}

// Snapshot is the read-only connectivity state handed to an oracle.
// It is rebuilt by the engine as inference proceeds, so suggestions for
// later pins can reference nets created for earlier ones.
type Snapshot struct {
	Components []ComponentState `json:"components"`
	Nets       []NetState       `json:"nets"`
	Labels     []string         `json:"labels,omitempty"`
}

// Net returns the net state with the given ID, or nil.
func (s *Snapshot) Net(id string) *NetState {
	for i := range s.Nets {
		if s.Nets[i].ID == id {
			return &s.Nets[i]
		}
	}
	return nil
}

// Oracle proposes candidate nets for an unconnected pin.
//
// Implementations must honor ctx cancellation and deadlines. A degraded
// oracle returns an empty list and a non-nil error; the engine records
// the outage and proceeds fail-open. Returning (nil, nil) is a valid
// "no opinion" response.
type Oracle interface {
	SuggestNets(ctx context.Context, snap *Snapshot, target schematic.PinRef) ([]Suggestion, error)
}

// Null is an oracle that never has an opinion.
// Useful to force the fail-open singleton path in tests and dry runs.
type Null struct{}

// SuggestNets returns no candidates.
func (Null) SuggestNets(context.Context, *Snapshot, schematic.PinRef) ([]Suggestion, error) {
	return nil, nil
}

var _ Oracle = Null{}
