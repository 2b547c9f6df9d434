package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/schemforge/schemforge/pkg/cache"
	"github.com/schemforge/schemforge/pkg/observability"
	"github.com/schemforge/schemforge/pkg/report"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API can use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Close releases resources held by the runner's cache.
func (r *Runner) Close() error {
	return r.Cache.Close()
}

// Execute runs the complete parse → infer → validate → generate →
// export pipeline with caching.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	r.applyLogger(&opts)

	source := opts.SchematicPath
	if source == "" {
		source = "<inline>"
	}
	runStart := time.Now()
	observability.Pipeline().OnRunStart(ctx, source)

	result := &Result{
		Artifacts: make(map[string][]byte),
		Report:    report.New(),
	}

	var runErr error
	defer func() {
		observability.Pipeline().OnRunComplete(ctx, source, time.Since(runStart), runErr)
	}()

	// Stage 1: Parse
	parseStart := time.Now()
	sch, hash, err := r.Parse(ctx, opts)
	if err != nil {
		runErr = fmt.Errorf("parse: %w", err)
		return nil, runErr
	}
	result.Schematic = sch
	result.SchematicHash = hash
	result.Stats.ParseTime = time.Since(parseStart)
	result.Report.InputHash = hash
	result.Report.AddTiming("parse", result.Stats.ParseTime, false)

	r.Logger.Info("parsed schematic",
		"components", sch.ComponentCount(),
		"pins", sch.PinCount(),
		"duration", result.Stats.ParseTime)

	// Stages 2+3: Infer and validate
	inferStart := time.Now()
	inference, netlistHit, err := r.CompleteNetlist(ctx, sch, hash, opts)
	if err != nil {
		runErr = fmt.Errorf("infer: %w", err)
		return nil, runErr
	}
	result.Netlist = inference.Netlist
	result.Inference = inference
	result.Stats.InferTime = time.Since(inferStart)
	result.CacheInfo.NetlistHit = netlistHit
	result.Report.LowConfidence = inference.LowConfidence
	result.Report.Outages = inference.Outages
	result.Report.AddTiming("infer", result.Stats.InferTime, netlistHit)

	r.Logger.Info("completed netlist",
		"nets", result.Netlist.Len(),
		"outages", len(inference.Outages),
		"cached", netlistHit,
		"duration", result.Stats.InferTime)

	// Stage 4: Place and route
	boardStart := time.Now()
	b, boardHit, err := r.GenerateBoard(ctx, sch, result.Netlist, opts)
	if err != nil {
		runErr = fmt.Errorf("board: %w", err)
		return nil, runErr
	}
	result.Board = b
	result.Stats.BoardTime = time.Since(boardStart)
	result.CacheInfo.BoardHit = boardHit
	result.Report.AddTiming("board", result.Stats.BoardTime, boardHit)

	r.Logger.Info("generated board",
		"placements", len(b.Placements),
		"tracks", len(b.Tracks),
		"unconverged", b.Unconverged,
		"cached", boardHit,
		"duration", result.Stats.BoardTime)

	// Stage 5: Export
	exportStart := time.Now()
	artifacts, exportHit, err := r.Materialize(ctx, b, opts)
	if err != nil {
		runErr = fmt.Errorf("export: %w", err)
		return nil, runErr
	}
	result.Artifacts = artifacts
	result.Stats.ExportTime = time.Since(exportStart)
	result.CacheInfo.ExportHit = exportHit
	result.Report.AddTiming("export", result.Stats.ExportTime, exportHit)

	r.Logger.Info("materialized artifacts",
		"formats", opts.Formats,
		"cached", exportHit,
		"duration", result.Stats.ExportTime)

	result.Report.Summarize(sch, result.Netlist, b)
	return result, nil
}

// applyLogger threads the runner's logger into options that don't carry
// their own.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

// stage wraps a stage body with observability events.
func stage(ctx context.Context, name string, fn func() error) error {
	observability.Pipeline().OnStageStart(ctx, name)
	start := time.Now()
	err := fn()
	observability.Pipeline().OnStageComplete(ctx, name, time.Since(start), err)
	return err
}
