package board

import (
	"context"
	"math"

	"github.com/charmbracelet/log"

	apperrors "github.com/schemforge/schemforge/pkg/errors"
	"github.com/schemforge/schemforge/pkg/netlist"
	"github.com/schemforge/schemforge/pkg/schematic"
)

// Point is a position on the board, in millimeters.
type Point struct {
	X float64 `json:"x" bson:"x"`
	Y float64 `json:"y" bson:"y"`
}

// Segment is one straight, axis-aligned track piece.
type Segment struct {
	From Point `json:"from" bson:"from"`
	To   Point `json:"to" bson:"to"`
}

// Track is the routed copper for one net.
type Track struct {
	Net      string    `json:"net" bson:"net"`
	Width    float64   `json:"width" bson:"width"`
	Segments []Segment `json:"segments" bson:"segments"`
}

// Unrouted is a pin-to-pin connection the router could not realize.
type Unrouted struct {
	Net  string           `json:"net" bson:"net"`
	From schematic.PinRef `json:"from" bson:"from"`
	To   schematic.PinRef `json:"to" bson:"to"`
}

// RouteResult is the outcome of a routing run. Unresolved connections
// degrade the board but do not fail it.
type RouteResult struct {
	Tracks     []Track    `json:"tracks" bson:"tracks"`
	Unresolved []Unrouted `json:"unresolved,omitempty" bson:"unresolved,omitempty"`
}

// Router draws L-shaped Manhattan tracks between the pads of each net,
// avoiding the clearance-inflated courtyards of uninvolved components.
type Router struct {
	profile Profile
	logger  *log.Logger
}

// NewRouter builds a router for the given profile.
func NewRouter(profile Profile, logger *log.Logger) *Router {
	if logger == nil {
		logger = log.Default()
	}
	return &Router{profile: profile, logger: logger}
}

type obstacle struct {
	ref                    string
	minX, minY, maxX, maxY float64
}

// Route connects every multi-pin net by chaining its pins in order.
// Each hop tries the two L-shaped elbows and keeps the first one that
// clears all obstacles; hops with no clear elbow are reported as
// unresolved.
func (r *Router) Route(ctx context.Context, sch *schematic.Schematic, nl *netlist.Netlist, placed *PlaceResult) (*RouteResult, error) {
	obstacles, err := r.obstacles(sch, placed)
	if err != nil {
		return nil, err
	}

	res := &RouteResult{}
	for _, net := range nl.Nets() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if net.Singleton() {
			continue
		}

		track := Track{Net: net.ID, Width: r.profile.TrackWidth}
		for i := 0; i+1 < len(net.Pins); i++ {
			from, to := net.Pins[i], net.Pins[i+1]
			a, err := r.padAt(sch, placed, from)
			if err != nil {
				return nil, err
			}
			b, err := r.padAt(sch, placed, to)
			if err != nil {
				return nil, err
			}

			segs, ok := r.elbow(a, b, from.Ref, to.Ref, obstacles)
			if !ok {
				r.logger.Warn("no clear path for connection",
					"net", net.ID, "from", from.String(), "to", to.String())
				res.Unresolved = append(res.Unresolved, Unrouted{Net: net.ID, From: from, To: to})
				continue
			}
			track.Segments = append(track.Segments, segs...)
		}
		if len(track.Segments) > 0 {
			res.Tracks = append(res.Tracks, track)
		}
	}
	return res, nil
}

// elbow tries horizontal-then-vertical, then vertical-then-horizontal.
func (r *Router) elbow(a, b Point, refA, refB string, obstacles []obstacle) ([]Segment, bool) {
	if a == b {
		return nil, true
	}

	candidates := [][]Segment{
		{{From: a, To: Point{X: b.X, Y: a.Y}}, {From: Point{X: b.X, Y: a.Y}, To: b}},
		{{From: a, To: Point{X: a.X, Y: b.Y}}, {From: Point{X: a.X, Y: b.Y}, To: b}},
	}

	for _, segs := range candidates {
		clear := true
		for _, seg := range segs {
			if seg.From == seg.To {
				continue
			}
			for _, ob := range obstacles {
				if ob.ref == refA || ob.ref == refB {
					continue
				}
				if segmentHitsBox(seg, ob) {
					clear = false
					break
				}
			}
			if !clear {
				break
			}
		}
		if clear {
			// Drop zero-length pieces from straight connections.
			kept := segs[:0]
			for _, seg := range segs {
				if seg.From != seg.To {
					kept = append(kept, seg)
				}
			}
			return kept, true
		}
	}
	return nil, false
}

func (r *Router) obstacles(sch *schematic.Schematic, placed *PlaceResult) ([]obstacle, error) {
	c := r.profile.Clearance
	var out []obstacle
	for _, pl := range placed.Placements {
		comp, ok := sch.Component(pl.Ref)
		if !ok {
			return nil, apperrors.New(apperrors.ErrCodeInternal,
				"placement references unknown component %s", pl.Ref)
		}
		fp, err := FootprintFor(comp)
		if err != nil {
			return nil, err
		}
		out = append(out, obstacle{
			ref:  pl.Ref,
			minX: pl.Position.X - fp.Width/2 - c,
			minY: pl.Position.Y - fp.Height/2 - c,
			maxX: pl.Position.X + fp.Width/2 + c,
			maxY: pl.Position.Y + fp.Height/2 + c,
		})
	}
	return out, nil
}

// padAt returns the absolute position of a pin's pad.
func (r *Router) padAt(sch *schematic.Schematic, placed *PlaceResult, pin schematic.PinRef) (Point, error) {
	pl := placed.Placement(pin.Ref)
	if pl == nil {
		return Point{}, apperrors.New(apperrors.ErrCodeInternal,
			"no placement for component %s", pin.Ref)
	}
	comp, ok := sch.Component(pin.Ref)
	if !ok {
		return Point{}, apperrors.New(apperrors.ErrCodeInternal,
			"unknown component %s", pin.Ref)
	}
	fp, err := FootprintFor(comp)
	if err != nil {
		return Point{}, err
	}
	pad := fp.Pad(pin.Pin)
	return Point{X: pl.Position.X + pad.DX, Y: pl.Position.Y + pad.DY}, nil
}

// segmentHitsBox reports whether an axis-aligned segment crosses an
// obstacle's interior.
func segmentHitsBox(seg Segment, ob obstacle) bool {
	minX := math.Min(seg.From.X, seg.To.X)
	maxX := math.Max(seg.From.X, seg.To.X)
	minY := math.Min(seg.From.Y, seg.To.Y)
	maxY := math.Max(seg.From.Y, seg.To.Y)
	return minX < ob.maxX && maxX > ob.minX && minY < ob.maxY && maxY > ob.minY
}
