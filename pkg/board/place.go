package board

import (
	"context"
	"math"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/schemforge/schemforge/pkg/netlist"
	"github.com/schemforge/schemforge/pkg/schematic"
)

// Force model tuning. Attraction pulls connected parts together in
// proportion to shared net count; repulsion separates overlapping
// courtyards by their penetration depth.
const (
	attractGain = 0.05
	repulseGain = 0.60
	snapPitch   = 0.5
)

// Placement is one component's resolved position on the board.
type Placement struct {
	Ref       string             `json:"ref" bson:"ref"`
	Footprint string             `json:"footprint" bson:"footprint"`
	Position  schematic.Position `json:"position" bson:"position"`
	Rotation  float64            `json:"rotation" bson:"rotation"`
	Locked    bool               `json:"locked" bson:"locked"`
}

// PlaceResult is the outcome of a placement run.
type PlaceResult struct {
	Placements []Placement `json:"placements" bson:"placements"`

	// Unconverged is set when the relaxation hit its iteration budget
	// or overlaps remain. The placements are then the best arrangement
	// seen, not a clean one.
	Unconverged bool `json:"unconverged" bson:"unconverged"`

	Iterations int `json:"iterations" bson:"iterations"`
	Overlaps   int `json:"overlaps" bson:"overlaps"`
}

// Placement returns the entry for a reference designator, or nil.
func (r *PlaceResult) Placement(ref string) *Placement {
	for i := range r.Placements {
		if r.Placements[i].Ref == ref {
			return &r.Placements[i]
		}
	}
	return nil
}

// Placer arranges components inside the board outline using weighted
// force-directed relaxation over the netlist connectivity.
type Placer struct {
	profile Profile
	logger  *log.Logger
}

// NewPlacer builds a placer for the given profile.
func NewPlacer(profile Profile, logger *log.Logger) *Placer {
	if logger == nil {
		logger = log.Default()
	}
	return &Placer{profile: profile, logger: logger}
}

type item struct {
	ref          string
	fp           Footprint
	x, y         float64
	halfW, halfH float64
	fixed        bool
}

// Place computes positions for every component of sch. Components with
// a fixed position never move. The run is deterministic: identical
// inputs yield identical placements.
func (p *Placer) Place(ctx context.Context, sch *schematic.Schematic, nl *netlist.Netlist) (*PlaceResult, error) {
	items, err := p.seed(sch)
	if err != nil {
		return nil, err
	}

	weights := p.weights(sch, nl, items)

	best := snapshot(items)
	bestOverlaps := p.countOverlaps(items)
	converged := false
	iterations := 0

	for iter := 0; iter < p.profile.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		iterations = iter + 1

		maxDisp := p.relax(items, weights)

		if n := p.countOverlaps(items); n < bestOverlaps {
			bestOverlaps = n
			best = snapshot(items)
		}
		if maxDisp < p.profile.ConvergenceThreshold {
			converged = true
			break
		}
	}

	if !converged {
		restore(items, best)
		p.logger.Warn("placement did not converge, keeping best arrangement",
			"iterations", iterations, "overlaps", bestOverlaps)
	}

	p.snap(items)
	overlaps := p.countOverlaps(items)

	res := &PlaceResult{
		Unconverged: !converged || overlaps > 0,
		Iterations:  iterations,
		Overlaps:    overlaps,
	}
	for _, it := range items {
		res.Placements = append(res.Placements, Placement{
			Ref:       it.ref,
			Footprint: it.fp.Name,
			Position:  schematic.Position{X: it.x, Y: it.y},
			Locked:    it.fixed,
		})
	}
	sort.Slice(res.Placements, func(i, j int) bool {
		return res.Placements[i].Ref < res.Placements[j].Ref
	})
	return res, nil
}

// seed resolves footprints and drops every movable component onto the
// coarse placement grid, in declaration order.
func (p *Placer) seed(sch *schematic.Schematic) ([]*item, error) {
	cols := int((p.profile.Outline.Width - 2*p.profile.GridOrigin) / p.profile.GridPitch)
	cols = max(cols, 1)

	var items []*item
	slot := 0
	for _, c := range sch.Components() {
		fp, err := FootprintFor(c)
		if err != nil {
			return nil, err
		}
		it := &item{
			ref:   c.Ref,
			fp:    fp,
			halfW: fp.Width / 2,
			halfH: fp.Height / 2,
		}
		if c.Fixed != nil {
			it.x, it.y = c.Fixed.X, c.Fixed.Y
			it.fixed = true
		} else {
			it.x = p.profile.GridOrigin + float64(slot%cols)*p.profile.GridPitch
			it.y = p.profile.GridOrigin + float64(slot/cols)*p.profile.GridPitch
			slot++
		}
		p.clamp(it)
		items = append(items, it)
	}
	return items, nil
}

// weights maps item index pairs to their shared net count.
func (p *Placer) weights(sch *schematic.Schematic, nl *netlist.Netlist, items []*item) map[[2]int]float64 {
	g := netlist.NewGraph(sch, nl)
	out := map[[2]int]float64{}
	for i := range items {
		for j := i + 1; j < len(items); j++ {
			if w := g.SharedNets(items[i].ref, items[j].ref); w > 0 {
				out[[2]int{i, j}] = float64(w)
			}
		}
	}
	return out
}

// relax performs one force iteration and returns the largest single
// displacement.
func (p *Placer) relax(items []*item, weights map[[2]int]float64) float64 {
	maxDisp := 0.0
	for i, it := range items {
		if it.fixed {
			continue
		}

		fx, fy := 0.0, 0.0
		for j, other := range items {
			if i == j {
				continue
			}

			key := [2]int{min(i, j), max(i, j)}
			if w := weights[key]; w > 0 {
				dx, dy := other.x-it.x, other.y-it.y
				dist := math.Hypot(dx, dy)
				// The spring relaxes at a separation that keeps the
				// clearance-inflated courtyards apart.
				rest := math.Hypot(
					it.halfW+other.halfW+p.profile.Clearance,
					it.halfH+other.halfH+p.profile.Clearance)
				if dist > rest {
					pull := attractGain * w * (dist - rest) / dist
					fx += pull * dx
					fy += pull * dy
				}
			}

			if px, py, ok := p.penetration(it, other, i < j); ok {
				fx -= repulseGain * px
				fy -= repulseGain * py
			}
		}

		// Cap the step so a crowded board cannot fling parts around.
		if mag := math.Hypot(fx, fy); mag > p.profile.GridPitch/2 {
			scale := p.profile.GridPitch / 2 / mag
			fx *= scale
			fy *= scale
		}

		it.x += fx
		it.y += fy
		p.clamp(it)

		if disp := math.Hypot(fx, fy); disp > maxDisp {
			maxDisp = disp
		}
	}
	return maxDisp
}

// penetration returns the push vector moving it away from other when
// their clearance-inflated boxes intersect. first breaks the tie for
// coincident centers so the pair separates deterministically.
func (p *Placer) penetration(it, other *item, first bool) (float64, float64, bool) {
	c := p.profile.Clearance
	ox := it.halfW + other.halfW + c - math.Abs(it.x-other.x)
	oy := it.halfH + other.halfH + c - math.Abs(it.y-other.y)
	if ox <= 0 || oy <= 0 {
		return 0, 0, false
	}

	dx, dy := other.x-it.x, other.y-it.y
	// Push along the axis of least penetration.
	if dx == 0 && dy == 0 {
		if first {
			return ox, 0, true
		}
		return -ox, 0, true
	}
	if ox < oy {
		return math.Copysign(ox, dx), 0, true
	}
	return 0, math.Copysign(oy, dy), true
}

func (p *Placer) overlap(a, b *item) bool {
	_, _, ok := p.penetration(a, b, true)
	return ok
}

func (p *Placer) countOverlaps(items []*item) int {
	n := 0
	for i := range items {
		for j := i + 1; j < len(items); j++ {
			if p.overlap(items[i], items[j]) {
				n++
			}
		}
	}
	return n
}

// clamp keeps an item's courtyard inside the outline.
func (p *Placer) clamp(it *item) {
	it.x = math.Max(it.halfW, math.Min(p.profile.Outline.Width-it.halfW, it.x))
	it.y = math.Max(it.halfH, math.Min(p.profile.Outline.Height-it.halfH, it.y))
}

// snap rounds movable items onto the fine grid and re-clamps.
func (p *Placer) snap(items []*item) {
	for _, it := range items {
		if it.fixed {
			continue
		}
		it.x = math.Round(it.x/snapPitch) * snapPitch
		it.y = math.Round(it.y/snapPitch) * snapPitch
		p.clamp(it)
	}
}

func snapshot(items []*item) []schematic.Position {
	out := make([]schematic.Position, len(items))
	for i, it := range items {
		out[i] = schematic.Position{X: it.x, Y: it.y}
	}
	return out
}

func restore(items []*item, positions []schematic.Position) {
	for i, it := range items {
		it.x, it.y = positions[i].X, positions[i].Y
	}
}
