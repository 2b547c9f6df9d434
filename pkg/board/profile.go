// Package board turns a schematic plus a completed netlist into a
// physical board model: footprint selection, force-directed placement,
// Manhattan routing, and materialization into board file formats.
package board

import (
	"os"

	"github.com/BurntSushi/toml"

	apperrors "github.com/schemforge/schemforge/pkg/errors"
)

// Default board profile values, in millimeters unless noted.
const (
	DefaultTitle       = "AI_Generated_PCB"
	DefaultBoardWidth  = 100.0
	DefaultBoardHeight = 80.0
	DefaultGridPitch   = 20.0
	DefaultGridOrigin  = 10.0
	DefaultClearance   = 1.0
	DefaultTrackWidth  = 0.25
	DefaultEdgeWidth   = 0.15

	DefaultMaxIterations        = 500
	DefaultConvergenceThreshold = 0.05
)

// Outline is the rectangular board boundary.
type Outline struct {
	Width  float64 `toml:"width" json:"width" bson:"width"`
	Height float64 `toml:"height" json:"height" bson:"height"`
}

// Contains reports whether a component bounding box at (x, y) with the
// given half extents fits fully inside the outline.
func (o Outline) Contains(x, y, halfW, halfH float64) bool {
	return x-halfW >= 0 && y-halfH >= 0 && x+halfW <= o.Width && y+halfH <= o.Height
}

// Profile is the set of physical parameters a board is generated with.
// Profiles load from TOML files so board houses and form factors can be
// swapped without touching code.
type Profile struct {
	Title   string  `toml:"title" json:"title" bson:"title"`
	Outline Outline `toml:"outline" json:"outline" bson:"outline"`

	// GridPitch is the coarse placement grid step; GridOrigin offsets
	// the first grid site from the outline corner.
	GridPitch  float64 `toml:"grid_pitch" json:"grid_pitch" bson:"grid_pitch"`
	GridOrigin float64 `toml:"grid_origin" json:"grid_origin" bson:"grid_origin"`

	// Clearance inflates component bounding boxes during overlap and
	// routing checks.
	Clearance float64 `toml:"clearance" json:"clearance" bson:"clearance"`

	TrackWidth float64 `toml:"track_width" json:"track_width" bson:"track_width"`
	EdgeWidth  float64 `toml:"edge_width" json:"edge_width" bson:"edge_width"`

	MaxIterations        int     `toml:"max_iterations" json:"max_iterations" bson:"max_iterations"`
	ConvergenceThreshold float64 `toml:"convergence_threshold" json:"convergence_threshold" bson:"convergence_threshold"`
}

// DefaultProfile returns the stock 100x80mm two-layer profile.
func DefaultProfile() Profile {
	return Profile{
		Title:                DefaultTitle,
		Outline:              Outline{Width: DefaultBoardWidth, Height: DefaultBoardHeight},
		GridPitch:            DefaultGridPitch,
		GridOrigin:           DefaultGridOrigin,
		Clearance:            DefaultClearance,
		TrackWidth:           DefaultTrackWidth,
		EdgeWidth:            DefaultEdgeWidth,
		MaxIterations:        DefaultMaxIterations,
		ConvergenceThreshold: DefaultConvergenceThreshold,
	}
}

// LoadProfile reads a TOML profile, filling unset fields from the
// defaults.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	data, err := os.ReadFile(path)
	if err != nil {
		return p, apperrors.Wrap(apperrors.ErrCodeInvalidInput, err, "read profile %s", path)
	}
	if err := toml.Unmarshal(data, &p); err != nil {
		return p, apperrors.Wrap(apperrors.ErrCodeInvalidInput, err, "parse profile %s", path)
	}
	return p, p.Validate()
}

// Validate checks a profile for physically meaningful values.
func (p Profile) Validate() error {
	switch {
	case p.Outline.Width <= 0 || p.Outline.Height <= 0:
		return apperrors.New(apperrors.ErrCodeInvalidInput, "board outline must have positive dimensions")
	case p.GridPitch <= 0:
		return apperrors.New(apperrors.ErrCodeInvalidInput, "grid pitch must be positive")
	case p.Clearance < 0:
		return apperrors.New(apperrors.ErrCodeInvalidInput, "clearance must not be negative")
	case p.TrackWidth <= 0 || p.EdgeWidth <= 0:
		return apperrors.New(apperrors.ErrCodeInvalidInput, "track and edge widths must be positive")
	case p.MaxIterations <= 0:
		return apperrors.New(apperrors.ErrCodeInvalidInput, "iteration budget must be positive")
	case p.ConvergenceThreshold <= 0:
		return apperrors.New(apperrors.ErrCodeInvalidInput, "convergence threshold must be positive")
	}
	return nil
}
