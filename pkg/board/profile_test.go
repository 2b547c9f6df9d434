package board

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultProfile(t *testing.T) {
	p := DefaultProfile()
	if err := p.Validate(); err != nil {
		t.Fatalf("default profile invalid: %v", err)
	}
	if p.Outline.Width != 100 || p.Outline.Height != 80 {
		t.Errorf("outline = %+v, want 100x80", p.Outline)
	}
	if p.TrackWidth != 0.25 || p.EdgeWidth != 0.15 {
		t.Errorf("widths = %v/%v, want 0.25/0.15", p.TrackWidth, p.EdgeWidth)
	}
}

func TestLoadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.toml")
	content := `
title = "demo"

[outline]
width = 50.0
height = 40.0
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if p.Title != "demo" || p.Outline.Width != 50 {
		t.Errorf("loaded %+v, want overridden title and outline", p)
	}
	// Unset fields keep their defaults.
	if p.TrackWidth != DefaultTrackWidth {
		t.Errorf("track width = %v, want default %v", p.TrackWidth, DefaultTrackWidth)
	}
}

func TestLoadProfileMissing(t *testing.T) {
	if _, err := LoadProfile(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestProfileValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Profile)
	}{
		{"zero outline", func(p *Profile) { p.Outline.Width = 0 }},
		{"negative clearance", func(p *Profile) { p.Clearance = -1 }},
		{"zero pitch", func(p *Profile) { p.GridPitch = 0 }},
		{"zero iterations", func(p *Profile) { p.MaxIterations = 0 }},
		{"zero track width", func(p *Profile) { p.TrackWidth = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultProfile()
			tt.mutate(&p)
			if err := p.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestOutlineContains(t *testing.T) {
	o := Outline{Width: 100, Height: 80}
	if !o.Contains(50, 40, 2, 2) {
		t.Error("center must fit")
	}
	if o.Contains(1, 40, 2, 2) {
		t.Error("box past the left edge must not fit")
	}
}
