// Package report records the outcome of a pipeline run in a
// queryable document: what was inferred, how degraded the result is,
// and where the time went. Reports persist to MongoDB on the server
// and stay in memory for CLI runs.
package report

import (
	"time"

	"github.com/google/uuid"

	"github.com/schemforge/schemforge/pkg/board"
	"github.com/schemforge/schemforge/pkg/netlist"
	"github.com/schemforge/schemforge/pkg/schematic"
)

// NetSummary is a per-net digest for the report document.
type NetSummary struct {
	ID       string `json:"id" bson:"id"`
	PinCount int    `json:"pin_count" bson:"pin_count"`
	Declared bool   `json:"declared" bson:"declared"`
	Routed   bool   `json:"routed" bson:"routed"`
}

// StageTiming records one stage's wall-clock duration.
type StageTiming struct {
	Stage    string        `json:"stage" bson:"stage"`
	Duration time.Duration `json:"duration" bson:"duration"`
	Cached   bool          `json:"cached" bson:"cached"`
}

// Report is the persistent record of one schematic-to-board run.
type Report struct {
	RunID     string    `json:"run_id" bson:"_id"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`

	// InputHash fingerprints the source schematic.
	InputHash string `json:"input_hash" bson:"input_hash"`
	Title     string `json:"title" bson:"title"`

	Components int          `json:"components" bson:"components"`
	Pins       int          `json:"pins" bson:"pins"`
	Nets       []NetSummary `json:"nets" bson:"nets"`

	// Degradation markers. A report with none of these describes a
	// clean, fully routed board.
	LowConfidence []schematic.PinRef `json:"low_confidence,omitempty" bson:"low_confidence,omitempty"`
	Outages       []netlist.Outage   `json:"outages,omitempty" bson:"outages,omitempty"`
	Unconverged   bool               `json:"unconverged" bson:"unconverged"`
	Unrouted      []board.Unrouted   `json:"unrouted,omitempty" bson:"unrouted,omitempty"`

	Timings []StageTiming `json:"timings,omitempty" bson:"timings,omitempty"`
}

// New creates an empty report with a fresh run ID.
func New() *Report {
	return &Report{
		RunID:     uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
}

// Clean reports whether the run completed without any degradation.
func (r *Report) Clean() bool {
	return len(r.LowConfidence) == 0 && len(r.Outages) == 0 &&
		!r.Unconverged && len(r.Unrouted) == 0
}

// AddTiming appends a stage timing entry.
func (r *Report) AddTiming(stage string, d time.Duration, cached bool) {
	r.Timings = append(r.Timings, StageTiming{Stage: stage, Duration: d, Cached: cached})
}

// Summarize fills the connectivity section from the run outputs.
func (r *Report) Summarize(sch *schematic.Schematic, nl *netlist.Netlist, b *board.Board) {
	r.Components = sch.ComponentCount()
	r.Pins = sch.PinCount()

	routed := map[string]bool{}
	if b != nil {
		r.Title = b.Title
		r.Unconverged = b.Unconverged
		r.Unrouted = b.Unresolved
		for _, t := range b.Tracks {
			routed[t.Net] = true
		}
	}
	for _, n := range nl.Nets() {
		r.Nets = append(r.Nets, NetSummary{
			ID:       n.ID,
			PinCount: len(n.Pins),
			Declared: n.Declared,
			Routed:   routed[n.ID],
		})
	}
}
