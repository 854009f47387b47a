// Package cache defines the compilation cache interface. A cache maps a
// content key, derived from the unit's source text and the stack budget it
// was compiled under, to an immutable bytecode artifact. Backends live in
// subpackages: memory for in-process caching, redis for sharing artifacts
// across engine instances.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/tidelang/tide/compiler"
)

// Key identifies a compiled artifact by content. Two units with the same
// source text and stack budget produce the same key.
type Key string

// KeyFor derives the cache key for a unit. The stack budget is part of the
// key because it decides whether compilation succeeds at all.
func KeyFor(src string, stackLimit int) Key {
	h := sha256.New()
	h.Write([]byte(src))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(stackLimit)))
	return Key(hex.EncodeToString(h.Sum(nil)))
}

// Store is a compilation cache backend. Get returns
// tide.ErrArtifactNotFound when the key has no entry. Implementations must
// be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key Key) (*compiler.Artifact, error)
	Put(ctx context.Context, key Key, art *compiler.Artifact) error
	Delete(ctx context.Context, key Key) error
	Close(ctx context.Context) error
}
