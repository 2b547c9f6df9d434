package schematic

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chewxy/sexp"

	"github.com/schemforge/schemforge/pkg/errors"
)

// =============================================================================
// KiCad Schematic Reader
// =============================================================================

// ParseKiCad reads a KiCad schematic (.kicad_sch) and builds a schematic
// model. Symbols become components, symbol pins become pins, and net labels
// are recorded as label hints for the oracle. KiCad schematics carry no
// explicit net membership, so the returned schematic usually has zero
// declared nets and relies entirely on inference.
//
// Symbols whose Reference carries no digit (generic library placeholders
// like "R" or "U") are skipped.
func ParseKiCad(r io.Reader) (*Schematic, error) {
	nodes, err := sexp.Parse(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeMalformedInput, err, "parse s-expression")
	}
	if len(nodes) == 0 {
		return nil, errMalformed("empty schematic file")
	}

	root := nodes[0]
	if head := atomOf(root.Head()); head != "kicad_sch" {
		return nil, errMalformed("not a KiCad schematic: expected kicad_sch, got %q", head)
	}

	s := New()

	for _, sym := range findAll(root, "symbol") {
		props := properties(sym)
		ref := props["Reference"]
		if !hasDigit(ref) {
			continue
		}
		if _, exists := s.Component(ref); exists {
			return nil, errors.New(errors.ErrCodeDuplicateComponent, "duplicate component reference %q", ref)
		}

		c := &Component{
			Ref:       ref,
			Value:     props["Value"],
			Kind:      KindForRef(ref),
			Footprint: props["Footprint"],
		}
		for _, num := range pinNumbers(sym) {
			c.Pins = append(c.Pins, Pin{
				Index: num,
				Role:  roleForPart(c.Value, num),
			})
		}
		if len(c.Pins) == 0 {
			return nil, errEmptyComponent(ref)
		}
		s.AddComponent(c)
	}

	for _, label := range findAll(root, "label") {
		if name := atomAt(label, 1); name != "" {
			s.AddLabel(name)
		}
	}
	for _, label := range findAll(root, "global_label") {
		if name := atomAt(label, 1); name != "" {
			s.AddLabel(name)
		}
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	s.Freeze()
	return s, nil
}

// ParseKiCadFile reads and parses a KiCad schematic file.
func ParseKiCadFile(path string) (*Schematic, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ParseKiCad(f)
}

// KindForRef derives a component category tag from its reference prefix.
func KindForRef(ref string) string {
	switch {
	case strings.HasPrefix(ref, "TP"):
		return "testpoint"
	case strings.HasPrefix(ref, "R"):
		return "resistor"
	case strings.HasPrefix(ref, "C"):
		return "capacitor"
	case strings.HasPrefix(ref, "L"):
		return "inductor"
	case strings.HasPrefix(ref, "D"):
		return "diode"
	case strings.HasPrefix(ref, "U"):
		return "ic"
	case strings.HasPrefix(ref, "J"):
		return "connector"
	default:
		return "other"
	}
}

// wellKnownPinRoles maps part values to pin-number role assignments for
// parts whose supply pins are fixed by their datasheet.
var wellKnownPinRoles = map[string]map[int]Role{
	// Dual opamps in SOIC-8: pin 4 is the negative supply, pin 8 positive.
	"TLV2372": {4: RoleGround, 8: RolePower},
	"LM358":   {4: RoleGround, 8: RolePower},
	"MCP6002": {4: RoleGround, 8: RolePower},
}

func roleForPart(value string, pin int) Role {
	if roles, ok := wellKnownPinRoles[strings.ToUpper(strings.TrimSpace(value))]; ok {
		if r, ok := roles[pin]; ok {
			return r
		}
	}
	return RoleUnknown
}

// =============================================================================
// S-expression Walking
// =============================================================================

// elems flattens a list node into its elements.
// Returns nil for leaf nodes.
func elems(s sexp.Sexp) []sexp.Sexp {
	if s == nil || s.IsLeaf() {
		return nil
	}
	var out []sexp.Sexp
	for cur := s; cur != nil; cur = cur.Tail() {
		// Tail of a one-element list is an empty, non-nil list.
		if l, ok := cur.(sexp.List); ok && len(l) == 0 {
			break
		}
		if h := cur.Head(); h != nil {
			out = append(out, h)
		}
	}
	return out
}

// atomOf returns the string value of a leaf, with surrounding quotes removed.
func atomOf(s sexp.Sexp) string {
	if s == nil || !s.IsLeaf() {
		return ""
	}
	return strings.Trim(fmt.Sprintf("%v", s), `"`)
}

// atomAt returns the atom at position i of a list, or "".
func atomAt(s sexp.Sexp, i int) string {
	es := elems(s)
	if i < 0 || i >= len(es) {
		return ""
	}
	return atomOf(es[i])
}

// findAll recursively collects every list whose first atom equals keyword.
// Matches the traversal order of the source file.
func findAll(s sexp.Sexp, keyword string) []sexp.Sexp {
	var out []sexp.Sexp
	if s == nil || s.IsLeaf() {
		return out
	}
	es := elems(s)
	if len(es) > 0 && atomOf(es[0]) == keyword {
		out = append(out, s)
	}
	for _, e := range es[1:] {
		out = append(out, findAll(e, keyword)...)
	}
	return out
}

// properties extracts (property "Key" "Value") pairs from a symbol.
func properties(sym sexp.Sexp) map[string]string {
	props := make(map[string]string)
	for _, p := range findAll(sym, "property") {
		es := elems(p)
		if len(es) >= 3 {
			props[atomOf(es[1])] = atomOf(es[2])
		}
	}
	return props
}

// pinNumbers extracts the numeric pin numbers of a symbol, in file order.
// Non-numeric pin numbers (e.g. BGA grid references) are skipped; the
// board writers only deal with numeric pads.
func pinNumbers(sym sexp.Sexp) []int {
	var nums []int
	seen := make(map[int]bool)
	for _, pin := range findAll(sym, "pin") {
		for _, part := range elems(pin) {
			es := elems(part)
			if len(es) >= 2 && atomOf(es[0]) == "number" {
				if n, err := strconv.Atoi(atomOf(es[1])); err == nil && !seen[n] {
					seen[n] = true
					nums = append(nums, n)
				}
			}
		}
	}
	return nums
}

func hasDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}
