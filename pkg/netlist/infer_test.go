package netlist

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	apperrors "github.com/schemforge/schemforge/pkg/errors"
	"github.com/schemforge/schemforge/pkg/observability"
	"github.com/schemforge/schemforge/pkg/oracle"
	"github.com/schemforge/schemforge/pkg/schematic"
)

// stubOracle answers per-pin from a canned map and optionally fails.
type stubOracle struct {
	answers map[string][]oracle.Suggestion
	err     error
}

func (s *stubOracle) SuggestNets(_ context.Context, _ *oracle.Snapshot, pin schematic.PinRef) ([]oracle.Suggestion, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.answers[pin.String()], nil
}

func twoResistors(t *testing.T, declared ...schematic.DeclaredNet) *schematic.Schematic {
	t.Helper()
	sch := schematic.New()
	for _, ref := range []string{"R1", "R2"} {
		sch.AddComponent(&schematic.Component{
			Ref:   ref,
			Value: "10k",
			Kind:  "resistor",
			Pins:  []schematic.Pin{{Index: 1}, {Index: 2}},
		})
	}
	for _, d := range declared {
		sch.DeclareNet(d)
	}
	sch.Freeze()
	return sch
}

func TestCompleteDeclaredPlusSuggested(t *testing.T) {
	sch := twoResistors(t, schematic.DeclaredNet{
		Name: "N1",
		Pins: []schematic.PinRef{{Ref: "R1", Pin: 1}, {Ref: "R2", Pin: 1}},
	})
	o := &stubOracle{answers: map[string][]oracle.Suggestion{
		"R1.2": {{Net: "N2", Confidence: 0.9}},
		"R2.2": {{Net: "N2", Confidence: 0.9}},
	}}

	res, err := NewEngine(o, time.Second, nil).Complete(context.Background(), sch)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	nl := res.Netlist
	if nl.Len() != 2 {
		t.Fatalf("net count = %d, want 2", nl.Len())
	}
	n1 := nl.Net("N1")
	if n1 == nil || !n1.Declared || len(n1.Pins) != 2 {
		t.Errorf("N1 = %+v, want declared with 2 pins", n1)
	}
	n2 := nl.Net("N2")
	if n2 == nil || n2.Declared || len(n2.Pins) != 2 {
		t.Errorf("N2 = %+v, want inferred with 2 pins", n2)
	}
	if len(res.LowConfidence) != 0 || res.Degraded() {
		t.Errorf("unexpected degradation: low=%v outages=%v", res.LowConfidence, res.Outages)
	}
	if err := Validate(sch, nl); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestCompleteOracleOutage(t *testing.T) {
	sch := schematic.New()
	sch.AddComponent(&schematic.Component{
		Ref:  "R1",
		Pins: []schematic.Pin{{Index: 1}, {Index: 2}},
	})
	sch.Freeze()

	o := &stubOracle{err: errors.New("deadline exceeded")}
	res, err := NewEngine(o, time.Second, nil).Complete(context.Background(), sch)
	if err != nil {
		t.Fatalf("outage must not fail the run: %v", err)
	}

	nl := res.Netlist
	for _, id := range []string{"NET_R1_1", "NET_R1_2"} {
		n := nl.Net(id)
		if n == nil || !n.Singleton() {
			t.Errorf("net %s = %+v, want singleton", id, n)
		}
	}
	if len(res.Outages) != 2 {
		t.Errorf("outages = %d, want 2", len(res.Outages))
	}
	if len(res.LowConfidence) != 2 {
		t.Errorf("low confidence pins = %d, want 2", len(res.LowConfidence))
	}
	if err := Validate(sch, nl); err != nil {
		t.Errorf("fail-open netlist must validate: %v", err)
	}
}

func TestCompleteRejectsShortingCandidate(t *testing.T) {
	sch := twoResistors(t)
	// The best candidate for R1.2 would short R1; the engine must skip
	// it and take the next admissible one.
	o := &stubOracle{answers: map[string][]oracle.Suggestion{
		"R1.1": {{Net: "A", Confidence: 0.9}},
		"R1.2": {{Net: "A", Confidence: 0.9}, {Net: "B", Confidence: 0.5}},
	}}

	res, err := NewEngine(o, time.Second, nil).Complete(context.Background(), sch)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if id, _ := res.Netlist.NetOf(schematic.PinRef{Ref: "R1", Pin: 2}); id != "B" {
		t.Errorf("R1.2 on net %q, want B", id)
	}
}

func TestCompleteRejectsRoleConflict(t *testing.T) {
	sch := schematic.New()
	sch.AddComponent(&schematic.Component{
		Ref: "U1",
		Pins: []schematic.Pin{
			{Index: 1, Role: schematic.RolePower},
			{Index: 2, Role: schematic.RoleGround},
		},
	})
	sch.Freeze()

	// Both pins point at the same net; the ground pin must refuse it.
	o := &stubOracle{answers: map[string][]oracle.Suggestion{
		"U1.1": {{Net: "VDD", Confidence: 0.9}},
		"U1.2": {{Net: "VDD", Confidence: 0.9}},
	}}

	res, err := NewEngine(o, time.Second, nil).Complete(context.Background(), sch)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if id, _ := res.Netlist.NetOf(schematic.PinRef{Ref: "U1", Pin: 2}); id == "VDD" {
		t.Error("ground pin must not join the power net")
	}
	if len(res.LowConfidence) != 1 {
		t.Errorf("low confidence pins = %d, want 1", len(res.LowConfidence))
	}
}

func TestCompleteDeclaredConflict(t *testing.T) {
	sch := twoResistors(t,
		schematic.DeclaredNet{Name: "N1", Pins: []schematic.PinRef{{Ref: "R1", Pin: 1}}},
		schematic.DeclaredNet{Name: "N2", Pins: []schematic.PinRef{{Ref: "R1", Pin: 1}}},
	)

	_, err := NewEngine(&stubOracle{}, time.Second, nil).Complete(context.Background(), sch)
	if err == nil {
		t.Fatal("expected error for overlapping declared nets")
	}
	if code := apperrors.GetCode(err); code != apperrors.ErrCodeDeclaredConflict {
		t.Errorf("code = %s, want %s", code, apperrors.ErrCodeDeclaredConflict)
	}
}

func TestCompleteDeterministic(t *testing.T) {
	build := func() string {
		sch := twoResistors(t)
		o := &stubOracle{answers: map[string][]oracle.Suggestion{
			// Equal confidence: the tie must break on net ID.
			"R1.1": {{Net: "B", Confidence: 0.7}, {Net: "A", Confidence: 0.7}},
		}}
		res, err := NewEngine(o, time.Second, nil).Complete(context.Background(), sch)
		if err != nil {
			t.Fatal(err)
		}
		data, err := res.Netlist.MarshalJSON()
		if err != nil {
			t.Fatal(err)
		}
		return string(data)
	}

	first := build()
	for range 5 {
		if got := build(); got != first {
			t.Fatalf("inference not deterministic:\n%s\n%s", first, got)
		}
	}
	// The equal-confidence tie lands on the lexicographically first net.
	if !strings.Contains(first, `"id":"A"`) {
		t.Errorf("result %s should contain net A", first)
	}
}

// recordingOracleHooks counts oracle hook events.
type recordingOracleHooks struct {
	queries     int
	suggestions int
	outages     int
}

func (h *recordingOracleHooks) OnQuery(context.Context, string) { h.queries++ }
func (h *recordingOracleHooks) OnSuggestions(_ context.Context, _ string, _ int, _ time.Duration) {
	h.suggestions++
}
func (h *recordingOracleHooks) OnOutage(context.Context, string, error) { h.outages++ }

func TestCompleteEmitsOracleHooks(t *testing.T) {
	hooks := &recordingOracleHooks{}
	observability.SetOracleHooks(hooks)
	defer observability.Reset()

	sch := twoResistors(t)
	o := &stubOracle{answers: map[string][]oracle.Suggestion{
		"R1.1": {{Net: "N1", Confidence: 0.9}},
	}}
	if _, err := NewEngine(o, time.Second, nil).Complete(context.Background(), sch); err != nil {
		t.Fatal(err)
	}
	if hooks.queries != 4 || hooks.suggestions != 4 || hooks.outages != 0 {
		t.Errorf("hooks = %+v, want 4 queries, 4 suggestions, 0 outages", hooks)
	}

	hooks2 := &recordingOracleHooks{}
	observability.SetOracleHooks(hooks2)

	sch = twoResistors(t)
	failing := &stubOracle{err: errors.New("oracle down")}
	if _, err := NewEngine(failing, time.Second, nil).Complete(context.Background(), sch); err != nil {
		t.Fatal(err)
	}
	if hooks2.queries != 4 || hooks2.suggestions != 0 || hooks2.outages != 4 {
		t.Errorf("hooks = %+v, want 4 queries, 0 suggestions, 4 outages", hooks2)
	}
}
