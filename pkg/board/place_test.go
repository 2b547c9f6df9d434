package board

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/schemforge/schemforge/pkg/netlist"
	"github.com/schemforge/schemforge/pkg/schematic"
)

func resistorChain(t *testing.T, n int) (*schematic.Schematic, *netlist.Netlist) {
	t.Helper()
	sch := schematic.New()
	nl := netlist.New()
	for i := 1; i <= n; i++ {
		ref := fmt.Sprintf("R%d", i)
		sch.AddComponent(&schematic.Component{
			Ref:  ref,
			Pins: []schematic.Pin{{Index: 1}, {Index: 2}},
		})
		// Chain R1.2-R2.1, R2.2-R3.1, ...
		if i > 1 {
			net := fmt.Sprintf("N%d", i-1)
			nl.Assign(net, schematic.PinRef{Ref: fmt.Sprintf("R%d", i-1), Pin: 2})
			nl.Assign(net, schematic.PinRef{Ref: ref, Pin: 1})
		}
	}
	nl.Assign("NET_R1_1", schematic.PinRef{Ref: "R1", Pin: 1})
	nl.Assign(fmt.Sprintf("NET_R%d_2", n), schematic.PinRef{Ref: fmt.Sprintf("R%d", n), Pin: 2})
	sch.Freeze()
	return sch, nl
}

func TestPlaceNoOverlaps(t *testing.T) {
	sch, nl := resistorChain(t, 4)
	res, err := NewPlacer(DefaultProfile(), nil).Place(context.Background(), sch, nl)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if res.Unconverged {
		t.Errorf("4 resistors on a 100x80 board must converge (overlaps=%d, iterations=%d)",
			res.Overlaps, res.Iterations)
	}
	if res.Overlaps != 0 {
		t.Errorf("overlaps = %d, want 0", res.Overlaps)
	}
	if len(res.Placements) != 4 {
		t.Fatalf("placements = %d, want 4", len(res.Placements))
	}

	outline := DefaultProfile().Outline
	for _, pl := range res.Placements {
		fp, err := Lookup(pl.Footprint)
		if err != nil {
			t.Fatal(err)
		}
		if !outline.Contains(pl.Position.X, pl.Position.Y, fp.Width/2, fp.Height/2) {
			t.Errorf("%s at %+v sticks out of the outline", pl.Ref, pl.Position)
		}
	}
}

func TestPlaceRespectsFixed(t *testing.T) {
	sch := schematic.New()
	sch.AddComponent(&schematic.Component{
		Ref:   "J1",
		Pins:  []schematic.Pin{{Index: 1}, {Index: 2}},
		Fixed: &schematic.Position{X: 5, Y: 40},
	})
	sch.AddComponent(&schematic.Component{
		Ref:  "R1",
		Pins: []schematic.Pin{{Index: 1}, {Index: 2}},
	})
	sch.Freeze()

	nl := netlist.New()
	nl.Assign("N1", schematic.PinRef{Ref: "J1", Pin: 1})
	nl.Assign("N1", schematic.PinRef{Ref: "R1", Pin: 1})
	nl.Assign("NET_J1_2", schematic.PinRef{Ref: "J1", Pin: 2})
	nl.Assign("NET_R1_2", schematic.PinRef{Ref: "R1", Pin: 2})

	res, err := NewPlacer(DefaultProfile(), nil).Place(context.Background(), sch, nl)
	if err != nil {
		t.Fatal(err)
	}
	j1 := res.Placement("J1")
	if j1 == nil || !j1.Locked {
		t.Fatal("fixed component must be reported locked")
	}
	if j1.Position.X != 5 || j1.Position.Y != 40 {
		t.Errorf("J1 moved to %+v, want (5, 40)", j1.Position)
	}
}

func TestPlaceOvercrowdedBoard(t *testing.T) {
	sch, nl := resistorChain(t, 20)
	profile := DefaultProfile()
	profile.Outline = Outline{Width: 12, Height: 10}
	profile.GridPitch = 3
	profile.GridOrigin = 2

	res, err := NewPlacer(profile, nil).Place(context.Background(), sch, nl)
	if err != nil {
		t.Fatalf("overcrowding must degrade, not fail: %v", err)
	}
	if !res.Unconverged {
		t.Error("20 components on a 12x10 board must report unconverged")
	}
	if len(res.Placements) != 20 {
		t.Errorf("placements = %d, want best-effort positions for all 20", len(res.Placements))
	}
	for _, pl := range res.Placements {
		fp, err := Lookup(pl.Footprint)
		if err != nil {
			t.Fatal(err)
		}
		if !profile.Outline.Contains(pl.Position.X, pl.Position.Y, fp.Width/2, fp.Height/2) {
			t.Errorf("%s at %+v left the outline", pl.Ref, pl.Position)
		}
	}
}

func TestPlaceDeterministic(t *testing.T) {
	run := func() string {
		sch, nl := resistorChain(t, 6)
		res, err := NewPlacer(DefaultProfile(), nil).Place(context.Background(), sch, nl)
		if err != nil {
			t.Fatal(err)
		}
		data, err := json.Marshal(res.Placements)
		if err != nil {
			t.Fatal(err)
		}
		return string(data)
	}

	first := run()
	for range 3 {
		if got := run(); got != first {
			t.Fatalf("placement not deterministic:\n%s\n%s", first, got)
		}
	}
}

func TestPlaceUnknownFootprint(t *testing.T) {
	sch := schematic.New()
	sch.AddComponent(&schematic.Component{
		Ref:       "R1",
		Footprint: "Nope:Nope",
		Pins:      []schematic.Pin{{Index: 1}},
	})
	sch.Freeze()

	if _, err := NewPlacer(DefaultProfile(), nil).Place(context.Background(), sch, netlist.New()); err == nil {
		t.Fatal("expected unknown footprint error")
	}
}
