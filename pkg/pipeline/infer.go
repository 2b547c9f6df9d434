package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/schemforge/schemforge/pkg/cache"
	"github.com/schemforge/schemforge/pkg/netlist"
	"github.com/schemforge/schemforge/pkg/observability"
	"github.com/schemforge/schemforge/pkg/oracle"
	"github.com/schemforge/schemforge/pkg/schematic"
)

// cachedInference is the serialized form of an inference result.
type cachedInference struct {
	Netlist       *netlist.Netlist   `json:"netlist"`
	LowConfidence []schematic.PinRef `json:"low_confidence,omitempty"`
	Outages       []netlist.Outage   `json:"outages,omitempty"`
}

// CompleteNetlist runs inference and validation with caching. The bool
// reports whether the result came from cache.
//
// Results with oracle outages are never cached: a later run should get
// another chance at a healthy oracle instead of replaying the outage.
func (r *Runner) CompleteNetlist(ctx context.Context, sch *schematic.Schematic, schematicHash string, opts Options) (*netlist.Result, bool, error) {
	if err := opts.SetInferDefaults(); err != nil {
		return nil, false, err
	}

	key := r.Keyer.NetlistKey(schematicHash, cache.NetlistKeyOpts{
		OracleName: opts.Oracle,
		Timeout:    opts.OracleTimeout,
	})

	if !opts.Refresh {
		if data, found, err := r.Cache.Get(ctx, key); err == nil && found {
			var cached cachedInference
			if err := json.Unmarshal(data, &cached); err == nil && cached.Netlist != nil {
				observability.Cache().OnCacheHit(ctx, "netlist")
				return &netlist.Result{
					Netlist:       cached.Netlist,
					LowConfidence: cached.LowConfidence,
					Outages:       cached.Outages,
				}, true, nil
			}
			// Corrupt entry: fall through and recompute.
			_ = r.Cache.Delete(ctx, key)
		}
		observability.Cache().OnCacheMiss(ctx, "netlist")
	}

	o, err := r.buildOracle(opts)
	if err != nil {
		return nil, false, err
	}

	var res *netlist.Result
	err = stage(ctx, "infer", func() error {
		engine := netlist.NewEngine(o, opts.OracleTimeout, opts.Logger)
		var err error
		res, err = engine.Complete(ctx, sch)
		return err
	})
	if err != nil {
		return nil, false, err
	}

	if err := stage(ctx, "validate", func() error {
		return netlist.Validate(sch, res.Netlist)
	}); err != nil {
		return nil, false, err
	}

	if !res.Degraded() {
		data, err := json.Marshal(cachedInference{
			Netlist:       res.Netlist,
			LowConfidence: res.LowConfidence,
		})
		if err == nil {
			if err := r.Cache.Set(ctx, key, data, cache.DefaultNetlistTTL); err != nil {
				r.Logger.Warn("failed to cache netlist", "error", err)
			} else {
				observability.Cache().OnCacheSet(ctx, "netlist", len(data))
			}
		}
	}
	return res, false, nil
}

// buildOracle resolves the oracle backend from options.
func (r *Runner) buildOracle(opts Options) (oracle.Oracle, error) {
	if opts.OracleClient != nil {
		return opts.OracleClient, nil
	}
	switch opts.Oracle {
	case OracleGemini:
		return oracle.NewGemini(oracle.GeminiOptions{
			APIKey:  opts.GeminiAPIKey,
			Timeout: opts.OracleTimeout,
			Logger:  opts.Logger,
		})
	case OracleNull:
		return oracle.Null{}, nil
	case OracleHeuristic, "":
		return oracle.NewHeuristic(), nil
	default:
		return nil, fmt.Errorf("invalid oracle: %q", opts.Oracle)
	}
}
