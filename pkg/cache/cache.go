// Package cache provides pluggable byte caches for expensive pipeline
// stages: oracle-completed netlists, placements, and board artifacts.
// Backends include a file cache for CLI usage, Redis for server
// deployments, and a null cache for tests.
package cache

import (
	"context"
	"time"
)

// Default TTLs per cached stage. Netlists depend on oracle behavior and
// age out fastest; materialized artifacts are pure functions of their
// board and can live long.
const (
	DefaultNetlistTTL   = 24 * time.Hour
	DefaultPlacementTTL = 7 * 24 * time.Hour
	DefaultArtifactTTL  = 30 * 24 * time.Hour
)

// Cache is a byte store with TTL semantics.
type Cache interface {
	// Get retrieves a value. The bool reports whether the key was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A zero ttl means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// NetlistKeyOpts are the inference parameters a cached netlist depends on.
type NetlistKeyOpts struct {
	OracleName string
	Timeout    time.Duration
}

// PlacementKeyOpts are the placement parameters a cached board layout
// depends on.
type PlacementKeyOpts struct {
	ProfileHash string
}

// ArtifactKeyOpts are the materialization parameters a cached artifact
// depends on.
type ArtifactKeyOpts struct {
	Format string
}

// Keyer derives cache keys for the pipeline stages. Keys embed every
// input the stage output depends on, so a changed parameter is a miss,
// never a stale hit.
type Keyer interface {
	NetlistKey(schematicHash string, opts NetlistKeyOpts) string
	PlacementKey(netlistHash string, opts PlacementKeyOpts) string
	ArtifactKey(boardHash string, opts ArtifactKeyOpts) string
}

// DefaultKeyer is the standard key derivation.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer { return &DefaultKeyer{} }

// NetlistKey generates a key for a completed netlist.
func (k *DefaultKeyer) NetlistKey(schematicHash string, opts NetlistKeyOpts) string {
	return hashKey("netlist", schematicHash, opts.OracleName, opts.Timeout.String())
}

// PlacementKey generates a key for a placed and routed board.
func (k *DefaultKeyer) PlacementKey(netlistHash string, opts PlacementKeyOpts) string {
	return hashKey("placement", netlistHash, opts.ProfileHash)
}

// ArtifactKey generates a key for a materialized artifact.
func (k *DefaultKeyer) ArtifactKey(boardHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", boardHash, opts.Format)
}

var _ Keyer = (*DefaultKeyer)(nil)
