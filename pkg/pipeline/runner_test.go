package pipeline

import (
	"bytes"
	"context"
	"testing"

	"github.com/schemforge/schemforge/pkg/cache"
	"github.com/schemforge/schemforge/pkg/oracle"
	"github.com/schemforge/schemforge/pkg/schematic"
)

const dividerJSON = `{
  "components": [
    {"ref": "R1", "value": "10k", "pins": [{"index": 1}, {"index": 2}]},
    {"ref": "R2", "value": "10k", "pins": [{"index": 1}, {"index": 2}]}
  ],
  "nets": [
    {"name": "MID", "pins": [{"ref": "R1", "pin": 2}, {"ref": "R2", "pin": 1}]}
  ]
}`

// chainOracle connects the outer pins to rails.
type chainOracle struct{}

func (chainOracle) SuggestNets(_ context.Context, _ *oracle.Snapshot, pin schematic.PinRef) ([]oracle.Suggestion, error) {
	switch pin.String() {
	case "R1.1":
		return []oracle.Suggestion{{Net: "VIN", Confidence: 0.95}}, nil
	case "R2.2":
		return []oracle.Suggestion{{Net: "GND", Confidence: 0.95}}, nil
	}
	return nil, nil
}

func TestExecuteFullPipeline(t *testing.T) {
	runner := NewRunner(nil, nil, nil)
	opts := Options{
		Schematic:    dividerJSON,
		OracleClient: chainOracle{},
		Formats:      []string{FormatKiCadPCB, FormatText, FormatJSON},
	}

	res, err := runner.Execute(context.Background(), opts)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if res.Schematic.ComponentCount() != 2 {
		t.Errorf("components = %d, want 2", res.Schematic.ComponentCount())
	}
	if res.Netlist.Len() != 3 {
		t.Errorf("nets = %d, want MID, VIN, GND", res.Netlist.Len())
	}
	if n := res.Netlist.Net("MID"); n == nil || !n.Declared || len(n.Pins) != 2 {
		t.Errorf("MID = %+v, want declared 2-pin net", n)
	}
	if res.Board == nil || len(res.Board.Placements) != 2 {
		t.Fatal("board missing placements")
	}
	if res.Board.Unconverged {
		t.Error("two resistors on a stock board must converge")
	}

	for _, format := range opts.Formats {
		if len(res.Artifacts[format]) == 0 {
			t.Errorf("artifact %s is empty", format)
		}
	}
	if !bytes.Contains(res.Artifacts[FormatKiCadPCB], []byte(`"MID"`)) {
		t.Error("kicad_pcb artifact missing net MID")
	}

	rep := res.Report
	if rep == nil || rep.RunID == "" {
		t.Fatal("report missing")
	}
	if !rep.Clean() {
		t.Errorf("run with healthy oracle must be clean: %+v", rep)
	}
	if len(rep.Timings) == 0 || rep.InputHash != res.SchematicHash {
		t.Errorf("report bookkeeping incomplete: %+v", rep)
	}
}

func TestExecuteDeterministic(t *testing.T) {
	run := func() []byte {
		runner := NewRunner(nil, nil, nil)
		res, err := runner.Execute(context.Background(), Options{
			Schematic:    dividerJSON,
			OracleClient: chainOracle{},
			Formats:      []string{FormatKiCadPCB},
		})
		if err != nil {
			t.Fatal(err)
		}
		return res.Artifacts[FormatKiCadPCB]
	}

	first := run()
	for range 3 {
		if !bytes.Equal(run(), first) {
			t.Fatal("identical inputs must produce identical artifacts")
		}
	}
}

func TestExecuteCaching(t *testing.T) {
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	runner := NewRunner(c, nil, nil)
	opts := Options{
		Schematic:    dividerJSON,
		OracleClient: chainOracle{},
		Formats:      []string{FormatText},
	}

	cold, err := runner.Execute(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if cold.CacheInfo.NetlistHit || cold.CacheInfo.BoardHit || cold.CacheInfo.ExportHit {
		t.Errorf("cold run must miss everywhere: %+v", cold.CacheInfo)
	}

	warm, err := runner.Execute(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if !warm.CacheInfo.NetlistHit || !warm.CacheInfo.BoardHit || !warm.CacheInfo.ExportHit {
		t.Errorf("warm run must hit everywhere: %+v", warm.CacheInfo)
	}
	if !bytes.Equal(cold.Artifacts[FormatText], warm.Artifacts[FormatText]) {
		t.Error("cached artifact differs from computed one")
	}

	// Refresh bypasses the cache.
	opts.Refresh = true
	fresh, err := runner.Execute(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.CacheInfo.NetlistHit || fresh.CacheInfo.BoardHit || fresh.CacheInfo.ExportHit {
		t.Errorf("refresh run must recompute: %+v", fresh.CacheInfo)
	}
}

func TestExecuteOutageNotCached(t *testing.T) {
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	runner := NewRunner(c, nil, nil)

	// The null oracle yields singleton-only netlists without outages,
	// which are cacheable. An erroring oracle must not be.
	opts := Options{
		Schematic:    dividerJSON,
		OracleClient: failingOracle{},
		Formats:      []string{FormatText},
	}
	res, err := runner.Execute(context.Background(), opts)
	if err != nil {
		t.Fatalf("outage must degrade, not fail: %v", err)
	}
	if len(res.Report.Outages) != 2 {
		t.Fatalf("outages = %d, want 2", len(res.Report.Outages))
	}

	again, err := runner.Execute(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if again.CacheInfo.NetlistHit {
		t.Error("degraded netlist must not be served from cache")
	}
}

type failingOracle struct{}

func (failingOracle) SuggestNets(ctx context.Context, _ *oracle.Snapshot, _ schematic.PinRef) ([]oracle.Suggestion, error) {
	return nil, context.DeadlineExceeded
}

func TestParseKiCadDetection(t *testing.T) {
	src := `(kicad_sch (version 20231120)
  (symbol (property "Reference" "R1") (property "Value" "10k")
    (pin (number "1")) (pin (number "2")))
)`
	runner := NewRunner(nil, nil, nil)
	sch, hash, err := runner.Parse(context.Background(), Options{Schematic: src})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if hash == "" || sch.ComponentCount() != 1 {
		t.Errorf("parsed %d components, want 1 via kicad sniffing", sch.ComponentCount())
	}
}
