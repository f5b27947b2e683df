/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package manifest

import (
	"sync"
	"time"

	"github.com/kentakayama/bt-verify/internal/config"
	"github.com/kentakayama/bt-verify/internal/domain/model"
	"github.com/kentakayama/bt-verify/internal/util"
)

// LookupResult tells a cache miss on the origin apart from a miss on the
// version.
type LookupResult int

const (
	Found LookupResult = iota
	UnknownOrigin
	UnknownVersion
)

func (r LookupResult) String() string {
	switch r {
	case Found:
		return "found"
	case UnknownOrigin:
		return "unknown origin"
	case UnknownVersion:
		return "unknown version"
	default:
		return "invalid"
	}
}

type entry struct {
	root      string
	leaves    *util.OrderedSet[string]
	createdAt time.Time
}

// Store caches verified manifests per origin and version. Expired versions
// of an origin are pruned lazily whenever that origin is touched.
type Store struct {
	mu      sync.Mutex
	origins config.OriginTable
	now     func() time.Time
	cache   map[model.Origin]map[string]*entry
}

type Option func(*Store)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func NewStore(origins config.OriginTable, opts ...Option) *Store {
	s := &Store{
		origins: origins,
		now:     time.Now,
		cache:   make(map[model.Origin]map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordManifest stores leaves for (origin, version). Callers must have
// verified the manifest first. Leaves already present are skipped, so
// recording the same manifest twice is a no-op.
func (s *Store) RecordManifest(origin model.Origin, version, rootHash string, leaves []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	versions, ok := s.cache[origin]
	if !ok {
		versions = make(map[string]*entry)
		s.cache[origin] = versions
	}
	s.pruneLocked(origin, versions)

	e, ok := versions[version]
	if !ok {
		e = &entry{
			root:      rootHash,
			leaves:    util.NewOrderedSet[string](),
			createdAt: s.now(),
		}
		versions[version] = e
	}
	for _, leaf := range leaves {
		e.leaves.Add(leaf)
	}
}

// LookupLeaves returns the leaves for (origin, version). The slice is nil
// unless the result is Found; a found manifest may have no leaves.
func (s *Store) LookupLeaves(origin model.Origin, version string) ([]string, LookupResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, res := s.lookupLocked(origin, version)
	if res != Found {
		return nil, res
	}
	return e.leaves.Items(), Found
}

// Contains reports whether hash is a trusted leaf of (origin, version).
func (s *Store) Contains(origin model.Origin, version, hash string) (bool, LookupResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, res := s.lookupLocked(origin, version)
	if res != Found {
		return false, res
	}
	return e.leaves.Has(hash), Found
}

// Get returns a snapshot of the cached manifest.
func (s *Store) Get(origin model.Origin, version string) (*model.Manifest, LookupResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, res := s.lookupLocked(origin, version)
	if res != Found {
		return nil, res
	}
	return &model.Manifest{
		Origin:    origin,
		Version:   version,
		RootHash:  e.root,
		Leaves:    e.leaves.Items(),
		CreatedAt: e.createdAt,
	}, Found
}

// Versions returns the number of cached versions for origin.
func (s *Store) Versions(origin model.Origin) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cache[origin])
}

// Reset drops every cached manifest.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[model.Origin]map[string]*entry)
}

func (s *Store) lookupLocked(origin model.Origin, version string) (*entry, LookupResult) {
	versions, ok := s.cache[origin]
	if !ok {
		return nil, UnknownOrigin
	}
	s.pruneLocked(origin, versions)
	e, ok := versions[version]
	if !ok {
		return nil, UnknownVersion
	}
	return e, Found
}

// pruneLocked removes versions older than the origin's timeout. A timeout
// of zero or less disables expiry. The origin itself stays known.
func (s *Store) pruneLocked(origin model.Origin, versions map[string]*entry) {
	timeout := s.origins.Timeout(origin)
	if timeout <= 0 {
		return
	}
	now := s.now()
	for v, e := range versions {
		if e.createdAt.Add(timeout).Before(now) {
			delete(versions, v)
		}
	}
}
