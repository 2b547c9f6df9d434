// Package pipeline provides the core schematic-to-board pipeline for
// SchemForge.
//
// This package implements the complete parse → infer → validate →
// place/route → export pipeline that can be used by CLI and API
// components. By centralizing this logic, we ensure consistent behavior
// across all entry points and avoid code duplication.
//
// # Architecture
//
// The pipeline consists of five stages:
//
//  1. Parse: Load the schematic from JSON or KiCad sources
//  2. Infer: Complete the netlist with oracle suggestions
//  3. Validate: Enforce structural rules on the result
//  4. Generate: Place components and route tracks
//  5. Export: Materialize board artifacts in the requested formats
//
// # Usage
//
// Create a Runner and execute the pipeline:
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.Options{
//	    SchematicPath: "amp.json",
//	    Formats:       []string{"kicad_pcb"},
//	}
//	result, err := runner.Execute(ctx, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	pcb := result.Artifacts["kicad_pcb"]
package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/schemforge/schemforge/pkg/board"
	"github.com/schemforge/schemforge/pkg/netlist"
	"github.com/schemforge/schemforge/pkg/oracle"
	"github.com/schemforge/schemforge/pkg/report"
	"github.com/schemforge/schemforge/pkg/schematic"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

const (
	// DefaultOracleTimeout bounds each oracle query. Generative
	// backends can be slow; local heuristics answer instantly either way.
	DefaultOracleTimeout = 60 * time.Second
)

// Oracle backend names.
const (
	OracleHeuristic = "heuristic"
	OracleGemini    = "gemini"
	OracleNull      = "null"
)

// DefaultOracle is the oracle used when none is configured.
const DefaultOracle = OracleHeuristic

// Format constants for output formats.
const (
	FormatKiCadPCB = "kicad_pcb"
	FormatText     = "text"
	FormatJSON     = "json"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatKiCadPCB: true,
	FormatText:     true,
	FormatJSON:     true,
}

// ValidOracles is the set of supported oracle backends.
var ValidOracles = map[string]bool{
	OracleHeuristic: true,
	OracleGemini:    true,
	OracleNull:      true,
}

// Input format constants.
const (
	InputJSON  = "json"
	InputKiCad = "kicad"
)

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for the board pipeline.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Input options. Exactly one of Schematic (inline source text) or
	// SchematicPath must be set.
	Schematic     string `json:"schematic,omitempty"`
	SchematicPath string `json:"-"`
	InputFormat   string `json:"input_format,omitempty"` // json or kicad; empty = detect

	// Inference options
	Oracle        string        `json:"oracle,omitempty"`
	OracleTimeout time.Duration `json:"oracle_timeout,omitempty"`

	// Board options
	Profile     *board.Profile `json:"profile,omitempty"`
	ProfilePath string         `json:"-"`

	// Export options
	Formats []string `json:"formats,omitempty"`

	// Refresh bypasses cached stage results.
	Refresh bool `json:"refresh,omitempty"`

	// Runtime options (not serialized)
	Logger       *log.Logger   `json:"-"`
	OracleClient oracle.Oracle `json:"-"` // overrides Oracle when set
	GeminiAPIKey string        `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Schematic is the parsed component model.
	Schematic *schematic.Schematic

	// SchematicHash is the content hash of the parsed schematic.
	SchematicHash string

	// Netlist is the completed connectivity.
	Netlist *netlist.Netlist

	// Inference carries degradation details from the infer stage.
	Inference *netlist.Result

	// Board is the placed and routed board model.
	Board *board.Board

	// Artifacts contains materialized outputs keyed by format.
	Artifacts map[string][]byte

	// Report is the persistent run record.
	Report *report.Report

	// Stats contains timing information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	ParseTime  time.Duration
	InferTime  time.Duration
	BoardTime  time.Duration
	ExportTime time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	NetlistHit bool // Whether the completed netlist came from cache
	BoardHit   bool // Whether placement and routing came from cache
	ExportHit  bool // Whether all artifacts came from cache
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return fmt.Errorf("invalid format: %q (must be one of: kicad_pcb, text, json)", format)
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// ValidateOracle checks that an oracle backend name is valid.
func ValidateOracle(name string) error {
	if !ValidOracles[name] {
		return fmt.Errorf("invalid oracle: %q (must be one of: heuristic, gemini, null)", name)
	}
	return nil
}

// ValidateInputFormat checks that an input format is valid or empty.
func ValidateInputFormat(format string) error {
	if format != "" && format != InputJSON && format != InputKiCad {
		return fmt.Errorf("invalid input format: %q (must be json or kicad)", format)
	}
	return nil
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks required fields and applies defaults for the full pipeline.
// This method is idempotent - calling it multiple times has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if err := o.ValidateForParse(); err != nil {
		return err
	}
	if err := o.SetInferDefaults(); err != nil {
		return err
	}
	if err := o.SetBoardDefaults(); err != nil {
		return err
	}
	if err := o.SetExportDefaults(); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// ValidateForParse checks required fields for parsing.
func (o *Options) ValidateForParse() error {
	if o.Schematic == "" && o.SchematicPath == "" {
		return fmt.Errorf("schematic source is required")
	}
	if o.Schematic != "" && o.SchematicPath != "" {
		return fmt.Errorf("schematic and schematic path are mutually exclusive")
	}
	if err := ValidateInputFormat(o.InputFormat); err != nil {
		return err
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return nil
}

// SetInferDefaults applies defaults for the inference stage.
func (o *Options) SetInferDefaults() error {
	if o.Oracle == "" {
		o.Oracle = DefaultOracle
	}
	if err := ValidateOracle(o.Oracle); err != nil {
		return err
	}
	if o.OracleTimeout <= 0 {
		o.OracleTimeout = DefaultOracleTimeout
	}
	return nil
}

// SetBoardDefaults resolves the board profile.
func (o *Options) SetBoardDefaults() error {
	if o.Profile != nil && o.ProfilePath != "" {
		return fmt.Errorf("profile and profile path are mutually exclusive")
	}
	if o.ProfilePath != "" {
		p, err := board.LoadProfile(o.ProfilePath)
		if err != nil {
			return err
		}
		o.Profile = &p
	}
	if o.Profile == nil {
		p := board.DefaultProfile()
		o.Profile = &p
	}
	return o.Profile.Validate()
}

// SetExportDefaults applies defaults for the export stage.
func (o *Options) SetExportDefaults() error {
	if len(o.Formats) == 0 {
		o.Formats = []string{FormatKiCadPCB}
	}
	return ValidateFormats(o.Formats)
}
