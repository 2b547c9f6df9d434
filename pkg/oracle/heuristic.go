package oracle

import (
	"context"
	"sort"
	"strings"

	"github.com/schemforge/schemforge/pkg/schematic"
)

// Heuristic confidence tiers. Role rails and label matches are strong
// signals; name affinity across components is weaker.
const (
	confRail  = 0.90
	confLabel = 0.80
	confName  = 0.60
)

// Heuristic is a local oracle that suggests nets from structural signals
// in the snapshot: shared power/ground rails, sheet labels matching pin
// names, and identical pin names across components. It is the default
// oracle when no remote backend is configured, and it is deterministic.
type Heuristic struct{}

// NewHeuristic returns a ready-to-use heuristic oracle.
func NewHeuristic() *Heuristic { return &Heuristic{} }

// SuggestNets implements Oracle.
func (h *Heuristic) SuggestNets(ctx context.Context, snap *Snapshot, target schematic.PinRef) ([]Suggestion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pin, ok := h.lookup(snap, target)
	if !ok {
		return nil, nil
	}

	var out []Suggestion
	seen := map[string]bool{}
	add := func(net string, conf float64) {
		if net == "" || seen[net] {
			return
		}
		seen[net] = true
		out = append(out, Suggestion{Net: net, Confidence: conf})
	}

	// Power and ground pins join the existing rail when one exists,
	// otherwise propose a conventional rail name.
	switch pin.Role {
	case schematic.RolePower:
		if id := h.railNet(snap, schematic.RolePower); id != "" {
			add(id, confRail)
		} else {
			add("VDD", confRail)
		}
	case schematic.RoleGround:
		if id := h.railNet(snap, schematic.RoleGround); id != "" {
			add(id, confRail)
		} else {
			add("GND", confRail)
		}
	}

	// A sheet label equal to the pin name is a direct connection hint.
	for _, label := range snap.Labels {
		if pin.Name != "" && strings.EqualFold(label, pin.Name) {
			add(strings.ToUpper(label), confLabel)
		}
	}

	// Pins with the same name on other components tend to share a net.
	if pin.Name != "" {
		for _, c := range snap.Components {
			if c.Ref == target.Ref {
				continue
			}
			for _, p := range c.Pins {
				if strings.EqualFold(p.Name, pin.Name) && p.Net != "" {
					add(p.Net, confName)
				}
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Net < out[j].Net
	})
	return out, nil
}

func (h *Heuristic) lookup(snap *Snapshot, target schematic.PinRef) (PinState, bool) {
	for _, c := range snap.Components {
		if c.Ref != target.Ref {
			continue
		}
		for _, p := range c.Pins {
			if p.Index == target.Pin {
				return p, true
			}
		}
	}
	return PinState{}, false
}

// railNet returns the ID of a net whose member pins carry the given
// role, preferring the largest such net.
func (h *Heuristic) railNet(snap *Snapshot, role schematic.Role) string {
	best := ""
	bestSize := 0
	for _, n := range snap.Nets {
		matched := 0
		for _, ref := range n.Pins {
			if p, ok := h.lookup(snap, ref); ok && p.Role == role {
				matched++
			}
		}
		if matched > 0 && (matched > bestSize || (matched == bestSize && n.ID < best)) {
			best = n.ID
			bestSize = matched
		}
	}
	return best
}

var _ Oracle = (*Heuristic)(nil)
