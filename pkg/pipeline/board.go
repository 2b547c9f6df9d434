package pipeline

import (
	"context"
	"encoding/json"

	"github.com/schemforge/schemforge/pkg/board"
	"github.com/schemforge/schemforge/pkg/cache"
	"github.com/schemforge/schemforge/pkg/netlist"
	"github.com/schemforge/schemforge/pkg/observability"
	"github.com/schemforge/schemforge/pkg/schematic"
)

// GenerateBoard runs placement and routing with caching. The bool
// reports whether the board came from cache.
func (r *Runner) GenerateBoard(ctx context.Context, sch *schematic.Schematic, nl *netlist.Netlist, opts Options) (*board.Board, bool, error) {
	if err := opts.SetBoardDefaults(); err != nil {
		return nil, false, err
	}

	netlistData, err := nl.MarshalJSON()
	if err != nil {
		return nil, false, err
	}
	profileData, err := json.Marshal(opts.Profile)
	if err != nil {
		return nil, false, err
	}
	key := r.Keyer.PlacementKey(cache.Hash(netlistData), cache.PlacementKeyOpts{
		ProfileHash: cache.Hash(profileData),
	})

	if !opts.Refresh {
		if data, found, err := r.Cache.Get(ctx, key); err == nil && found {
			var b board.Board
			if err := json.Unmarshal(data, &b); err == nil {
				observability.Cache().OnCacheHit(ctx, "board")
				return &b, true, nil
			}
			_ = r.Cache.Delete(ctx, key)
		}
		observability.Cache().OnCacheMiss(ctx, "board")
	}

	var b *board.Board
	err = stage(ctx, "board", func() error {
		var err error
		b, err = board.Generate(ctx, *opts.Profile, sch, nl, opts.Logger)
		return err
	})
	if err != nil {
		return nil, false, err
	}

	if data, err := json.Marshal(b); err == nil {
		if err := r.Cache.Set(ctx, key, data, cache.DefaultPlacementTTL); err != nil {
			r.Logger.Warn("failed to cache board", "error", err)
		} else {
			observability.Cache().OnCacheSet(ctx, "board", len(data))
		}
	}
	return b, false, nil
}
