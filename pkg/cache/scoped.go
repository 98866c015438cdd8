package cache

// ScopedKeyer wraps a Keyer with a prefix for multi-tenant isolation.
// The HTTP API uses it to keep each client's statuses apart when several
// clients share one Redis instance.
//
// Example usage:
//
//	tenant := NewScopedKeyer(NewDefaultKeyer(), "tenant:abc123:")
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
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// MediaKey generates a prefixed media key.
func (k *ScopedKeyer) MediaKey(src string) string {
	return k.prefix + k.inner.MediaKey(src)
}

// StatusKey generates a prefixed status key.
func (k *ScopedKeyer) StatusKey(markupHash string, opts StatusKeyOpts) string {
	return k.prefix + k.inner.StatusKey(markupHash, opts)
}
