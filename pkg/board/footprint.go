package board

import (
	"strings"
	"unicode"

	apperrors "github.com/schemforge/schemforge/pkg/errors"
	"github.com/schemforge/schemforge/pkg/schematic"
)

// PadOffset is a pad position relative to the footprint center.
type PadOffset struct {
	Pin int     `json:"pin" bson:"pin"`
	DX  float64 `json:"dx" bson:"dx"`
	DY  float64 `json:"dy" bson:"dy"`
}

// Footprint describes a physical land pattern: its KiCad library name,
// courtyard extents, and pad offsets.
type Footprint struct {
	Name   string      `json:"name" bson:"name"`
	Width  float64     `json:"width" bson:"width"`
	Height float64     `json:"height" bson:"height"`
	Pads   []PadOffset `json:"pads" bson:"pads"`
}

// Pad returns the offset of the pad bound to a pin index. Pins beyond
// the defined pads fall back to the footprint center.
func (f Footprint) Pad(pin int) PadOffset {
	for _, p := range f.Pads {
		if p.Pin == pin {
			return p
		}
	}
	return PadOffset{Pin: pin}
}

// twoPad builds the standard horizontal two-pad passive pattern.
func twoPad(name string, w, h, pitch float64) Footprint {
	return Footprint{
		Name: name, Width: w, Height: h,
		Pads: []PadOffset{
			{Pin: 1, DX: -pitch / 2},
			{Pin: 2, DX: pitch / 2},
		},
	}
}

// library is the built-in footprint catalog, keyed by KiCad name.
var library = map[string]Footprint{
	"Resistor_SMD:R_0603":  twoPad("Resistor_SMD:R_0603", 2.8, 1.4, 1.65),
	"Capacitor_SMD:C_0603": twoPad("Capacitor_SMD:C_0603", 2.8, 1.4, 1.65),
	"Inductor_SMD:L_0603":  twoPad("Inductor_SMD:L_0603", 2.8, 1.4, 1.65),
	"Diode_SMD:D_SOD-123":  twoPad("Diode_SMD:D_SOD-123", 4.0, 1.8, 2.65),
	"Package_SO:SOIC-8_3.9x4.9mm_P1.27mm": {
		Name: "Package_SO:SOIC-8_3.9x4.9mm_P1.27mm", Width: 6.0, Height: 5.0,
		Pads: []PadOffset{
			{Pin: 1, DX: -2.7, DY: -1.905}, {Pin: 2, DX: -2.7, DY: -0.635},
			{Pin: 3, DX: -2.7, DY: 0.635}, {Pin: 4, DX: -2.7, DY: 1.905},
			{Pin: 5, DX: 2.7, DY: 1.905}, {Pin: 6, DX: 2.7, DY: 0.635},
			{Pin: 7, DX: 2.7, DY: -0.635}, {Pin: 8, DX: 2.7, DY: -1.905},
		},
	},
	"Connector_PinHeader_2.54mm:PinHeader_1x02_P2.54mm_Vertical": {
		Name: "Connector_PinHeader_2.54mm:PinHeader_1x02_P2.54mm_Vertical", Width: 2.6, Height: 5.1,
		Pads: []PadOffset{
			{Pin: 1, DY: -1.27},
			{Pin: 2, DY: 1.27},
		},
	},
	"TestPoint:TestPoint_Pad_D1.0mm": {
		Name: "TestPoint:TestPoint_Pad_D1.0mm", Width: 1.0, Height: 1.0,
		Pads: []PadOffset{{Pin: 1}},
	},
}

// prefix→footprint mapping used when a component declares no footprint.
var suggestions = []struct {
	prefix string
	name   string
}{
	{"TP", "TestPoint:TestPoint_Pad_D1.0mm"},
	{"R", "Resistor_SMD:R_0603"},
	{"C", "Capacitor_SMD:C_0603"},
	{"L", "Inductor_SMD:L_0603"},
	{"D", "Diode_SMD:D_SOD-123"},
	{"U", "Package_SO:SOIC-8_3.9x4.9mm_P1.27mm"},
	{"J", "Connector_PinHeader_2.54mm:PinHeader_1x02_P2.54mm_Vertical"},
}

// SuggestFootprint picks a footprint name for a reference designator.
// Longer prefixes win (TP before T or R), and unknown prefixes fall
// back to the 0603 resistor pattern.
func SuggestFootprint(ref string) string {
	prefix := refPrefix(ref)
	for _, s := range suggestions {
		if prefix == s.prefix {
			return s.name
		}
	}
	return "Resistor_SMD:R_0603"
}

// Lookup resolves a footprint by its KiCad name.
func Lookup(name string) (Footprint, error) {
	if fp, ok := library[name]; ok {
		return fp, nil
	}
	return Footprint{}, apperrors.New(apperrors.ErrCodeUnknownFootprint,
		"footprint %q is not in the library", name)
}

// FootprintFor resolves a component's footprint: the declared one when
// present and known, otherwise a suggestion from the reference prefix.
// Declared names may omit the library prefix ("R_0603" for
// "Resistor_SMD:R_0603").
func FootprintFor(c *schematic.Component) (Footprint, error) {
	if c.Footprint != "" {
		if fp, err := Lookup(c.Footprint); err == nil {
			return fp, nil
		}
		for name, fp := range library {
			if short := name[strings.IndexByte(name, ':')+1:]; short == c.Footprint {
				return fp, nil
			}
		}
	}
	return Lookup(SuggestFootprint(c.Ref))
}

func refPrefix(ref string) string {
	end := 0
	for end < len(ref) && !unicode.IsDigit(rune(ref[end])) {
		end++
	}
	return strings.ToUpper(ref[:end])
}
