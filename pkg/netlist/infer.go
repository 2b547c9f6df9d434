package netlist

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	apperrors "github.com/schemforge/schemforge/pkg/errors"
	"github.com/schemforge/schemforge/pkg/observability"
	"github.com/schemforge/schemforge/pkg/oracle"
	"github.com/schemforge/schemforge/pkg/schematic"
)

// DefaultOracleTimeout bounds a single oracle query.
const DefaultOracleTimeout = 60 * time.Second

// Outage records one oracle failure during inference. Outages degrade
// the result (the pin gets a singleton net) but never fail the run.
type Outage struct {
	Pin    schematic.PinRef `json:"pin" bson:"pin"`
	Reason string           `json:"reason" bson:"reason"`
}

// Result is a completed inference pass.
type Result struct {
	Netlist *Netlist

	// LowConfidence lists pins connected via the fail-open singleton
	// path rather than an accepted oracle candidate.
	LowConfidence []schematic.PinRef

	// Outages lists oracle failures encountered along the way.
	Outages []Outage
}

// Degraded reports whether any oracle outage occurred.
func (r *Result) Degraded() bool { return len(r.Outages) > 0 }

// Engine completes a schematic's connectivity. Declared nets are seeded
// first; remaining pins are resolved one at a time, in declaration
// order, from oracle suggestions.
type Engine struct {
	oracle  oracle.Oracle
	timeout time.Duration
	logger  *log.Logger
}

// NewEngine builds an inference engine around the given oracle.
// A nil oracle falls back to the local heuristic.
func NewEngine(o oracle.Oracle, timeout time.Duration, logger *log.Logger) *Engine {
	if o == nil {
		o = oracle.NewHeuristic()
	}
	if timeout <= 0 {
		timeout = DefaultOracleTimeout
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{oracle: o, timeout: timeout, logger: logger}
}

// Complete resolves every pin of sch to exactly one net.
//
// Conflicting declared nets are fatal. Oracle failures are not: the
// affected pin receives a fresh singleton net, is flagged low
// confidence, and the outage is recorded on the result.
func (e *Engine) Complete(ctx context.Context, sch *schematic.Schematic) (*Result, error) {
	nl := New()
	res := &Result{Netlist: nl}

	if err := e.seed(sch, nl); err != nil {
		return nil, err
	}

	graph := NewGraph(sch, nl)
	for _, pin := range graph.Unassigned() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, ok := nl.NetOf(pin); ok {
			// An earlier accepted candidate may have pulled this pin in.
			continue
		}

		suggestions, err := e.query(ctx, graph, pin)
		if err != nil {
			e.logger.Warn("oracle unavailable, falling back to singleton",
				"pin", pin.String(), "error", err)
			observability.Oracle().OnOutage(ctx, pin.String(), err)
			res.Outages = append(res.Outages, Outage{Pin: pin, Reason: err.Error()})
			suggestions = nil
		}

		if accepted := e.apply(sch, nl, pin, suggestions); !accepted {
			id := singletonID(nl, pin)
			if err := nl.Assign(id, pin); err != nil {
				return nil, err
			}
			res.LowConfidence = append(res.LowConfidence, pin)
		}
	}

	return res, nil
}

// seed applies the schematic's declared nets. Declarations are
// authoritative, so any overlap between them is a hard error.
func (e *Engine) seed(sch *schematic.Schematic, nl *Netlist) error {
	for _, d := range sch.DeclaredNets() {
		for _, pin := range d.Pins {
			if sch.Pin(pin) == nil {
				return apperrors.New(apperrors.ErrCodeUnknownPin,
					"declared net %q references unknown pin %s", d.Name, pin)
			}
			if err := nl.Assign(d.Name, pin); err != nil {
				if apperrors.GetCode(err) == apperrors.ErrCodeDoubleAssigned {
					return apperrors.Wrap(apperrors.ErrCodeDeclaredConflict, err,
						"declared net %q conflicts with an earlier declaration", d.Name)
				}
				return err
			}
		}
		nl.MarkDeclared(d.Name)
	}
	return nil
}

func (e *Engine) query(ctx context.Context, g *Graph, pin schematic.PinRef) ([]oracle.Suggestion, error) {
	qctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	observability.Oracle().OnQuery(qctx, pin.String())
	start := time.Now()
	suggestions, err := e.oracle.SuggestNets(qctx, g.Snapshot(), pin)
	if err != nil {
		return nil, err
	}
	observability.Oracle().OnSuggestions(qctx, pin.String(), len(suggestions), time.Since(start))
	return suggestions, nil
}

// apply walks candidates from highest confidence down and joins the pin
// to the first admissible one. Ties break on net ID so results do not
// depend on oracle ordering.
func (e *Engine) apply(sch *schematic.Schematic, nl *Netlist, pin schematic.PinRef, suggestions []oracle.Suggestion) bool {
	sorted := make([]oracle.Suggestion, len(suggestions))
	copy(sorted, suggestions)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Confidence != sorted[j].Confidence {
			return sorted[i].Confidence > sorted[j].Confidence
		}
		return sorted[i].Net < sorted[j].Net
	})

	for _, s := range sorted {
		if s.Net == "" {
			continue
		}
		if reason := e.admissible(sch, nl, pin, s.Net); reason != "" {
			e.logger.Debug("rejected oracle candidate",
				"pin", pin.String(), "net", s.Net, "reason", reason)
			continue
		}
		if err := nl.Assign(s.Net, pin); err != nil {
			continue
		}
		return true
	}
	return false
}

// admissible checks whether joining pin to netID would violate a
// structural rule. It returns an empty string when the join is allowed,
// otherwise a short reason.
func (e *Engine) admissible(sch *schematic.Schematic, nl *Netlist, pin schematic.PinRef, netID string) string {
	target := sch.Pin(pin)
	if target == nil {
		return "unknown pin"
	}

	net := nl.Net(netID)
	if net == nil {
		return "" // fresh net, nothing to conflict with
	}

	for _, member := range net.Pins {
		other := sch.Pin(member)
		if other == nil {
			continue
		}
		if target.Role.ConflictsWith(other.Role) {
			return fmt.Sprintf("role %s conflicts with %s on %s", target.Role, other.Role, member)
		}
		if member.Ref == pin.Ref && !net.Declared {
			// Joining two pins of one component shorts it out; only an
			// explicit declaration may do that.
			return fmt.Sprintf("would short %s against %s", pin, member)
		}
	}
	return ""
}

// singletonID derives a stable placeholder net name for an unconnected
// pin, suffixing on the rare collision with an existing net.
func singletonID(nl *Netlist, pin schematic.PinRef) string {
	base := fmt.Sprintf("NET_%s_%d", pin.Ref, pin.Pin)
	id := base
	for i := 2; nl.HasNet(id); i++ {
		id = fmt.Sprintf("%s_%d", base, i)
	}
	return id
}
