// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package zk

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/luxfi/geth/common"
)

// CachedVerifier memoizes verification results by bundle hash. Errors are not
// cached.
type CachedVerifier struct {
	inner Verifier
	cache *lru.Cache[common.Hash, bool]

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCachedVerifier wraps inner with an LRU of the given size.
func NewCachedVerifier(inner Verifier, size int) (*CachedVerifier, error) {
	cache, err := lru.New[common.Hash, bool](size)
	if err != nil {
		return nil, err
	}
	return &CachedVerifier{inner: inner, cache: cache}, nil
}

// Verify implements Verifier.
func (c *CachedVerifier) Verify(b *ProofBundle) (bool, error) {
	if b == nil {
		return false, ErrMalformedProof
	}
	key := b.Hash()
	if ok, found := c.cache.Get(key); found {
		c.hits.Add(1)
		return ok, nil
	}
	c.misses.Add(1)

	ok, err := c.inner.Verify(b)
	if err != nil {
		return false, err
	}
	c.cache.Add(key, ok)
	return ok, nil
}

// Stats returns cache hits and misses.
func (c *CachedVerifier) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}
