package netlist

import (
	"fmt"

	apperrors "github.com/schemforge/schemforge/pkg/errors"
	"github.com/schemforge/schemforge/pkg/schematic"
)

// ValidationError reports the first structural rule a netlist breaks,
// carrying the offending net and pin identifiers for display.
type ValidationError struct {
	Code apperrors.Code
	Net  string
	Pins []schematic.PinRef
	msg  string
}

func (e *ValidationError) Error() string { return e.msg }

// Unwrap exposes the underlying coded error so callers can match on
// [apperrors.GetCode].
func (e *ValidationError) Unwrap() error { return apperrors.New(e.Code, "%s", e.msg) }

func validationErr(code apperrors.Code, net string, pins []schematic.PinRef, format string, args ...any) *ValidationError {
	return &ValidationError{
		Code: code,
		Net:  net,
		Pins: pins,
		msg:  fmt.Sprintf(format, args...),
	}
}

// Validate checks a completed netlist against a schematic. Checks run
// in a fixed order and stop at the first failure:
//
//  1. every pin belongs to exactly one net
//  2. no net is empty
//  3. no undeclared net shorts two pins of one component
//  4. no net mixes conflicting roles
//
// A nil return means the netlist is sound enough to place and route.
func Validate(sch *schematic.Schematic, nl *Netlist) error {
	// 1. Pin coverage.
	for _, pin := range sch.AllPins() {
		if _, ok := nl.NetOf(pin); !ok {
			return validationErr(apperrors.ErrCodeUnassignedPin, "", []schematic.PinRef{pin},
				"pin %s is not assigned to any net", pin)
		}
	}

	for _, net := range nl.Nets() {
		// 2. No empty nets.
		if len(net.Pins) == 0 {
			return validationErr(apperrors.ErrCodeEmptyNet, net.ID, nil,
				"net %q has no pins", net.ID)
		}

		// 3. Undeclared intra-component shorts.
		if !net.Declared {
			byRef := map[string]schematic.PinRef{}
			for _, pin := range net.Pins {
				if prev, ok := byRef[pin.Ref]; ok {
					return validationErr(apperrors.ErrCodeComponentShort, net.ID,
						[]schematic.PinRef{prev, pin},
						"net %q shorts pins %s and %s of the same component", net.ID, prev, pin)
				}
				byRef[pin.Ref] = pin
			}
		}

		// 4. Role compatibility.
		for i, a := range net.Pins {
			pa := sch.Pin(a)
			if pa == nil {
				return validationErr(apperrors.ErrCodeUnknownPin, net.ID, []schematic.PinRef{a},
					"net %q references unknown pin %s", net.ID, a)
			}
			for _, b := range net.Pins[i+1:] {
				pb := sch.Pin(b)
				if pb == nil {
					return validationErr(apperrors.ErrCodeUnknownPin, net.ID, []schematic.PinRef{b},
						"net %q references unknown pin %s", net.ID, b)
				}
				if pa.Role.ConflictsWith(pb.Role) {
					return validationErr(apperrors.ErrCodeRoleConflict, net.ID,
						[]schematic.PinRef{a, b},
						"net %q joins %s pin %s with %s pin %s", net.ID, pa.Role, a, pb.Role, b)
				}
			}
		}
	}
	return nil
}
