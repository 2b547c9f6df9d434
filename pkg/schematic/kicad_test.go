package schematic

import (
	"strings"
	"testing"

	"github.com/chewxy/sexp"

	"github.com/schemforge/schemforge/pkg/errors"
)

const kicadFixture = `(kicad_sch (version 20240101) (generator "eeschema")
  (symbol (lib_id "Device:R")
    (property "Reference" "R")
    (property "Value" "R")
    (pin (number "1"))
    (pin (number "2")))
  (symbol (lib_id "Device:R")
    (property "Reference" "R1")
    (property "Value" "10k")
    (property "Footprint" "Resistor_SMD:R_0603")
    (pin (number "1"))
    (pin (number "2")))
  (symbol (lib_id "Device:C")
    (property "Reference" "C1")
    (property "Value" "100n")
    (pin (number "1"))
    (pin (number "2")))
  (symbol (lib_id "Amplifier:TLV2372")
    (property "Reference" "U1")
    (property "Value" "TLV2372")
    (pin (number "1"))
    (pin (number "4"))
    (pin (number "8")))
  (label "VOUT")
  (global_label "GND"))`

func TestParseKiCad(t *testing.T) {
	s, err := ParseKiCad(strings.NewReader(kicadFixture))
	if err != nil {
		t.Fatalf("ParseKiCad: %v", err)
	}

	// The digit-less library placeholder "R" is skipped.
	if s.ComponentCount() != 3 {
		t.Fatalf("ComponentCount() = %d, want 3", s.ComponentCount())
	}

	r1, ok := s.Component("R1")
	if !ok {
		t.Fatal("R1 not found")
	}
	if r1.Value != "10k" {
		t.Errorf("R1 value = %q, want 10k", r1.Value)
	}
	if r1.Kind != "resistor" {
		t.Errorf("R1 kind = %q, want resistor", r1.Kind)
	}
	if r1.Footprint != "Resistor_SMD:R_0603" {
		t.Errorf("R1 footprint = %q", r1.Footprint)
	}
	if len(r1.Pins) != 2 {
		t.Errorf("R1 pins = %d, want 2", len(r1.Pins))
	}

	// KiCad schematics carry no net membership.
	if len(s.DeclaredNets()) != 0 {
		t.Errorf("DeclaredNets() = %d, want 0", len(s.DeclaredNets()))
	}

	labels := s.Labels()
	if len(labels) != 2 || labels[0] != "VOUT" || labels[1] != "GND" {
		t.Errorf("Labels() = %v, want [VOUT GND]", labels)
	}

	if !s.Frozen() {
		t.Error("parsed schematic should be frozen")
	}
}

func TestParseKiCadWellKnownRoles(t *testing.T) {
	s, err := ParseKiCad(strings.NewReader(kicadFixture))
	if err != nil {
		t.Fatalf("ParseKiCad: %v", err)
	}

	u1, ok := s.Component("U1")
	if !ok {
		t.Fatal("U1 not found")
	}
	if got := u1.Pin(4).Role; got != RoleGround {
		t.Errorf("U1.4 role = %v, want ground", got)
	}
	if got := u1.Pin(8).Role; got != RolePower {
		t.Errorf("U1.8 role = %v, want power", got)
	}
	if got := u1.Pin(1).Role; got != RoleUnknown {
		t.Errorf("U1.1 role = %v, want unknown", got)
	}
}

func TestParseKiCadRejectsWrongRoot(t *testing.T) {
	_, err := ParseKiCad(strings.NewReader(`(kicad_pcb (version 1))`))
	if err == nil {
		t.Fatal("expected error for non-schematic root")
	}
	if !errors.Is(err, errors.ErrCodeMalformedInput) {
		t.Errorf("error code = %v, want malformed input", errors.GetCode(err))
	}
}

func TestElems(t *testing.T) {
	nodes, err := sexp.ParseString(`(pin (number "1"))`)
	if err != nil {
		t.Fatal(err)
	}
	es := elems(nodes[0])
	if len(es) != 2 {
		t.Fatalf("elems returned %d elements, want 2", len(es))
	}
	if got := atomOf(es[0]); got != "pin" {
		t.Errorf("first element = %q, want pin", got)
	}

	// The tail of a one-element list is an empty list, not nil. The walk
	// must stop there instead of indexing into it.
	nodes, err = sexp.ParseString(`(lonely)`)
	if err != nil {
		t.Fatal(err)
	}
	es = elems(nodes[0])
	if len(es) != 1 || atomOf(es[0]) != "lonely" {
		t.Errorf("elems = %v, want single atom lonely", es)
	}
}

func TestAtomOf(t *testing.T) {
	nodes, err := sexp.ParseString(`(label "VOUT")`)
	if err != nil {
		t.Fatal(err)
	}
	es := elems(nodes[0])
	if got := atomOf(es[1]); got != "VOUT" {
		t.Errorf("atomOf = %q, want VOUT", got)
	}
	if got := atomOf(nodes[0]); got != "" {
		t.Errorf("atomOf on a list = %q, want empty", got)
	}
}

func TestKindForRef(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{"R1", "resistor"},
		{"C12", "capacitor"},
		{"TP1", "testpoint"},
		{"U3", "ic"},
		{"J1", "connector"},
		{"X1", "other"},
	}
	for _, tt := range tests {
		if got := KindForRef(tt.ref); got != tt.want {
			t.Errorf("KindForRef(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}
}
