package mapsource

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/superoverlay/internal/core/observability"
)

// CachedStore keeps decoded sources of an underlying store in an LRU keyed
// by ID. Entries live until evicted by size or invalidated explicitly.
type CachedStore struct {
	next  Store
	cache *lru.Cache[string, *Source]
}

func NewCachedStore(next Store, size int) (*CachedStore, error) {
	if size <= 0 {
		size = 256
	}
	c, err := lru.NewWithEvict(size, func(string, *Source) {
		observability.ObserveDescriptorCache("evict")
	})
	if err != nil {
		return nil, err
	}
	return &CachedStore{next: next, cache: c}, nil
}

func (s *CachedStore) Get(ctx context.Context, id string) (*Source, error) {
	if src, ok := s.cache.Get(id); ok {
		observability.ObserveDescriptorCache("hit")
		return src, nil
	}
	observability.ObserveDescriptorCache("miss")
	src, err := s.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Add(id, src)
	return src, nil
}

// List always reads through; the catalog must see added descriptors.
func (s *CachedStore) List(ctx context.Context) ([]*Source, error) {
	return s.next.List(ctx)
}

// Invalidate drops id so the next Get reloads it.
func (s *CachedStore) Invalidate(id string) {
	s.cache.Remove(id)
}

func (s *CachedStore) Purge() {
	s.cache.Purge()
}

func (s *CachedStore) Len() int {
	return s.cache.Len()
}

// Check forwards to the underlying store when it supports health checks.
func (s *CachedStore) Check(ctx context.Context) error {
	if c, ok := s.next.(interface{ Check(context.Context) error }); ok {
		return c.Check(ctx)
	}
	return nil
}
