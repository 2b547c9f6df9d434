package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/schemforge/schemforge/pkg/cache"
	"github.com/schemforge/schemforge/pkg/schematic"
)

// Parse loads the schematic from the configured source and returns it
// together with its canonical content hash. The hash covers the parsed
// document, not the raw bytes, so formatting differences in the source
// do not defeat downstream caching.
func (r *Runner) Parse(ctx context.Context, opts Options) (*schematic.Schematic, string, error) {
	if err := opts.ValidateForParse(); err != nil {
		return nil, "", err
	}

	var sch *schematic.Schematic
	err := stage(ctx, "parse", func() error {
		src := opts.Schematic
		if opts.SchematicPath != "" {
			data, err := os.ReadFile(opts.SchematicPath)
			if err != nil {
				return err
			}
			src = string(data)
		}

		var err error
		switch detectInput(opts) {
		case InputKiCad:
			sch, err = schematic.ParseKiCad(strings.NewReader(src))
		default:
			sch, err = schematic.Parse(strings.NewReader(src))
		}
		return err
	})
	if err != nil {
		return nil, "", err
	}

	data, err := schematic.Marshal(sch)
	if err != nil {
		return nil, "", err
	}
	return sch, cache.Hash(data), nil
}

// detectInput resolves the input format: explicit option first, then
// file extension, then a cheap sniff (KiCad sources are s-expressions).
func detectInput(opts Options) string {
	if opts.InputFormat != "" {
		return opts.InputFormat
	}
	if opts.SchematicPath != "" {
		if ext := filepath.Ext(opts.SchematicPath); ext == ".kicad_sch" {
			return InputKiCad
		}
		return InputJSON
	}
	if strings.HasPrefix(strings.TrimSpace(opts.Schematic), "(") {
		return InputKiCad
	}
	return InputJSON
}
