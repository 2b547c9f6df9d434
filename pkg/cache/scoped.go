package cache

// ScopedKeyer wraps a Keyer with a prefix for multi-tenant isolation.
// The server uses this to give each API client its own cache namespace
// while CLI runs share the global one.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// NetlistKey generates a prefixed key for netlist caching.
func (k *ScopedKeyer) NetlistKey(schematicHash string, opts NetlistKeyOpts) string {
	return k.prefix + k.inner.NetlistKey(schematicHash, opts)
}

// PlacementKey generates a prefixed key for placement caching.
func (k *ScopedKeyer) PlacementKey(netlistHash string, opts PlacementKeyOpts) string {
	return k.prefix + k.inner.PlacementKey(netlistHash, opts)
}

// ArtifactKey generates a prefixed key for artifact caching.
func (k *ScopedKeyer) ArtifactKey(boardHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(boardHash, opts)
}
