// ABOUTME: Read-through content cache in front of any snapshot store
// ABOUTME: Only Load is cached; a hit is served only while the snapshot still exists

package cache

import (
	"context"
	"errors"

	"github.com/nainya/confsnap/pkg/snapshot"
)

// ErrNotCached is returned by a Cache on a miss.
var ErrNotCached = errors.New("cache: not cached")

// Cache stores snapshot content by key.
type Cache interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// Option configures a Store.
type Option func(*Store)

// WithErrorHandler receives cache failures, which otherwise degrade silently to misses.
func WithErrorHandler(fn func(op string, err error)) Option {
	return func(s *Store) { s.onError = fn }
}

// WithNamespace prefixes every cache key, so stores sharing one cache
// cannot read each other's entries.
func WithNamespace(ns string) Option {
	return func(s *Store) { s.namespace = ns }
}

// WithHitRecorder is told about every lookup.
func WithHitRecorder(fn func(hit bool)) Option {
	return func(s *Store) { s.onLookup = fn }
}

// Store wraps a snapshot.Store with a content cache.
// List and Save always reach the backing store.
type Store struct {
	snapshot.Store

	cache     Cache
	namespace string
	onError   func(op string, err error)
	onLookup  func(hit bool)
}

// New decorates store with c.
func New(store snapshot.Store, c Cache, opts ...Option) *Store {
	s := &Store{
		Store:    store,
		cache:    c,
		onError:  func(string, error) {},
		onLookup: func(bool) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load serves content from the cache when possible. Cached content is
// returned only after the backing store confirms the snapshot still exists;
// a snapshot removed by retention is a *snapshot.NotFoundError.
func (s *Store) Load(ctx context.Context, ref snapshot.Ref) (string, error) {
	key := s.key(ref)

	val, err := s.cache.Get(key)
	if err == nil {
		ok, err := s.exists(ctx, ref)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", &snapshot.NotFoundError{Ref: ref}
		}
		s.onLookup(true)
		return val, nil
	}
	if !errors.Is(err, ErrNotCached) {
		s.onError("get", err)
	}
	s.onLookup(false)

	val, err = s.Store.Load(ctx, ref)
	if err != nil {
		return "", err
	}

	if err := s.cache.Set(key, val); err != nil {
		s.onError("set", err)
	}
	return val, nil
}

// Save stores through and warms the cache with the new content.
func (s *Store) Save(ctx context.Context, deviceID, config string) (*snapshot.Snapshot, error) {
	snap, err := s.Store.Save(ctx, deviceID, config)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(s.key(snap.Ref), snap.Config); err != nil {
		s.onError("set", err)
	}
	return snap, nil
}

func (s *Store) key(ref snapshot.Ref) string {
	return s.namespace + ref.Key()
}

// exists asks the backing store, falling back to a List when it has no
// cheaper check.
func (s *Store) exists(ctx context.Context, ref snapshot.Ref) (bool, error) {
	if c, ok := s.Store.(snapshot.Checker); ok {
		return c.Exists(ctx, ref)
	}
	refs, err := s.Store.List(ctx, ref.DeviceID)
	if err != nil {
		return false, err
	}
	for _, r := range refs {
		if r.Key() == ref.Key() {
			return true, nil
		}
	}
	return false, nil
}
