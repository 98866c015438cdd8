// Package cache provides byte-oriented caching for layout statuses and
// media dimensions.
//
// # Backends
//
//   - [NullCache]: never stores anything (caching disabled)
//   - [FileCache]: one JSON file per entry, for CLI usage
//   - [RedisCache]: shared cache for the HTTP API
//
// # Keys
//
// Keys are produced by a [Keyer] so that every backend sees the same
// namespaced layout:
//
//	k := cache.NewDefaultKeyer()
//	key := k.StatusKey(cache.Hash(markup), cache.StatusKeyOpts{Strategy: "stack"})
//
// Use [NewScopedKeyer] to isolate tenants sharing one backend.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte values under string keys.
type Cache interface {
	// Get returns the value and true on hit, or nil and false on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A zero ttl means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// StatusKeyOpts are the layout options that influence a captured status.
type StatusKeyOpts struct {
	Strategy   string  `json:"strategy"`
	Params     any     `json:"params,omitempty"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Gap        float64 `json:"gap"`
	Horizontal bool    `json:"horizontal,omitempty"`
	Direction  string  `json:"direction,omitempty"`

	// Extra holds any further options that change the applied styles.
	Extra map[string]any `json:"extra,omitempty"`
}

// Keyer generates cache keys.
type Keyer interface {
	// MediaKey addresses the decoded dimensions of one media source.
	MediaKey(src string) string

	// StatusKey addresses a grid status for one markup hash and option set.
	StatusKey(markupHash string, opts StatusKeyOpts) string
}

// DefaultKeyer is the standard key layout.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the standard keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// MediaKey returns "media:<sha256(src)>".
func (DefaultKeyer) MediaKey(src string) string {
	return hashKey("media", src)
}

// StatusKey returns "status:<sha256(markupHash, opts)>".
func (DefaultKeyer) StatusKey(markupHash string, opts StatusKeyOpts) string {
	return hashKey("status", markupHash, opts)
}
