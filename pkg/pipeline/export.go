package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/schemforge/schemforge/pkg/board"
	"github.com/schemforge/schemforge/pkg/cache"
	"github.com/schemforge/schemforge/pkg/observability"
)

// materializers maps format names to their writers. The json format is
// handled inline since it serializes the board model itself.
var materializers = map[string]board.Materializer{
	FormatKiCadPCB: board.KiCadWriter{},
	FormatText:     board.TextWriter{},
}

// Extension returns the file extension (without dot) for a format.
func Extension(format string) string {
	if m, ok := materializers[format]; ok {
		return m.Extension()
	}
	return "json"
}

// Materialize produces artifacts for every requested format with
// caching. The bool reports whether all artifacts came from cache.
func (r *Runner) Materialize(ctx context.Context, b *board.Board, opts Options) (map[string][]byte, bool, error) {
	if err := opts.SetExportDefaults(); err != nil {
		return nil, false, err
	}

	boardData, err := json.Marshal(b)
	if err != nil {
		return nil, false, err
	}
	boardHash := cache.Hash(boardData)

	artifacts := make(map[string][]byte, len(opts.Formats))
	allHit := true

	err = stage(ctx, "export", func() error {
		for _, format := range opts.Formats {
			key := r.Keyer.ArtifactKey(boardHash, cache.ArtifactKeyOpts{Format: format})

			if !opts.Refresh {
				if data, found, err := r.Cache.Get(ctx, key); err == nil && found {
					observability.Cache().OnCacheHit(ctx, "artifact")
					artifacts[format] = data
					continue
				}
				observability.Cache().OnCacheMiss(ctx, "artifact")
			}
			allHit = false

			data, err := materialize(b, format, boardData)
			if err != nil {
				return fmt.Errorf("materialize %s: %w", format, err)
			}
			artifacts[format] = data

			if err := r.Cache.Set(ctx, key, data, cache.DefaultArtifactTTL); err != nil {
				r.Logger.Warn("failed to cache artifact", "format", format, "error", err)
			} else {
				observability.Cache().OnCacheSet(ctx, "artifact", len(data))
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return artifacts, allHit && len(opts.Formats) > 0, nil
}

func materialize(b *board.Board, format string, boardJSON []byte) ([]byte, error) {
	if format == FormatJSON {
		return boardJSON, nil
	}
	m, ok := materializers[format]
	if !ok {
		return nil, fmt.Errorf("invalid format: %q", format)
	}
	return m.Materialize(b)
}
