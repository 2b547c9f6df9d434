// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers can register hooks at startup
// to receive events about pipeline execution, oracle calls, and cache operations.
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetPipelineHooks(&myPipelineHooks{})
//	    observability.SetOracleHooks(&myOracleHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Pipeline().OnStageStart(ctx, "infer")
//	// ... run inference ...
//	observability.Pipeline().OnStageComplete(ctx, "infer", duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Pipeline Hooks
// =============================================================================

// PipelineHooks receives events from the board generation pipeline.
type PipelineHooks interface {
	// OnRunStart fires when a run begins, with the source name.
	OnRunStart(ctx context.Context, source string)

	// Stage events cover parse, infer, validate, place, route, export.
	OnStageStart(ctx context.Context, stage string)
	OnStageComplete(ctx context.Context, stage string, duration time.Duration, err error)

	// OnRunComplete fires once per run with the overall outcome.
	OnRunComplete(ctx context.Context, source string, duration time.Duration, err error)
}

// =============================================================================
// Oracle Hooks
// =============================================================================

// OracleHooks receives events from net inference oracle calls.
type OracleHooks interface {
	// OnQuery records a per-pin oracle query.
	OnQuery(ctx context.Context, pin string)

	// OnSuggestions records a successful answer.
	OnSuggestions(ctx context.Context, pin string, count int, duration time.Duration)

	// OnOutage records an oracle failure (the run continues fail-open).
	OnOutage(ctx context.Context, pin string, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopPipelineHooks is a no-op implementation of PipelineHooks.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnRunStart(context.Context, string)                              {}
func (NoopPipelineHooks) OnStageStart(context.Context, string)                            {}
func (NoopPipelineHooks) OnStageComplete(context.Context, string, time.Duration, error)   {}
func (NoopPipelineHooks) OnRunComplete(context.Context, string, time.Duration, error)     {}

// NoopOracleHooks is a no-op implementation of OracleHooks.
type NoopOracleHooks struct{}

func (NoopOracleHooks) OnQuery(context.Context, string)                            {}
func (NoopOracleHooks) OnSuggestions(context.Context, string, int, time.Duration)  {}
func (NoopOracleHooks) OnOutage(context.Context, string, error)                    {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	pipelineHooks PipelineHooks = NoopPipelineHooks{}
	oracleHooks   OracleHooks   = NoopOracleHooks{}
	cacheHooks    CacheHooks    = NoopCacheHooks{}
	hooksMu       sync.RWMutex
)

// SetPipelineHooks registers custom pipeline hooks.
// This should be called once at application startup before any runs.
func SetPipelineHooks(h PipelineHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		pipelineHooks = h
	}
}

// SetOracleHooks registers custom oracle hooks.
// This should be called once at application startup before any runs.
func SetOracleHooks(h OracleHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		oracleHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// Pipeline returns the registered pipeline hooks.
func Pipeline() PipelineHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return pipelineHooks
}

// Oracle returns the registered oracle hooks.
func Oracle() OracleHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return oracleHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	pipelineHooks = NoopPipelineHooks{}
	oracleHooks = NoopOracleHooks{}
	cacheHooks = NoopCacheHooks{}
}
