package board

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/schemforge/schemforge/pkg/netlist"
	"github.com/schemforge/schemforge/pkg/schematic"
)

// Board is the assembled physical model: outline, placed components,
// nets, and routed copper. Once assembled it is treated as immutable.
type Board struct {
	Title   string  `json:"title" bson:"title"`
	Profile Profile `json:"profile" bson:"profile"`

	Placements []Placement    `json:"placements" bson:"placements"`
	Nets       []*netlist.Net `json:"nets" bson:"nets"`
	Tracks     []Track        `json:"tracks" bson:"tracks"`

	Unresolved  []Unrouted `json:"unresolved,omitempty" bson:"unresolved,omitempty"`
	Unconverged bool       `json:"unconverged" bson:"unconverged"`
}

// Assemble combines the stage outputs into a board.
func Assemble(profile Profile, nl *netlist.Netlist, placed *PlaceResult, routed *RouteResult) *Board {
	return &Board{
		Title:       profile.Title,
		Profile:     profile,
		Placements:  placed.Placements,
		Nets:        nl.Nets(),
		Tracks:      routed.Tracks,
		Unresolved:  routed.Unresolved,
		Unconverged: placed.Unconverged,
	}
}

// Generate runs placement and routing back to back and assembles the
// result.
func Generate(ctx context.Context, profile Profile, sch *schematic.Schematic, nl *netlist.Netlist, logger *log.Logger) (*Board, error) {
	placed, err := NewPlacer(profile, logger).Place(ctx, sch, nl)
	if err != nil {
		return nil, err
	}
	routed, err := NewRouter(profile, logger).Route(ctx, sch, nl, placed)
	if err != nil {
		return nil, err
	}
	return Assemble(profile, nl, placed, routed), nil
}
