// Package store holds the in-memory entity collections that list views and
// stats are derived from.
package store

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/flaviopcampos/DATACLINICA-sub004/pkg/errors"
)

// Entity is anything the store can hold.
type Entity interface {
	EntityID() uuid.UUID
	EntityVersion() int64
	Created() time.Time
}

// Store is a versioned collection keyed by entity ID. Values are stored by
// copy; callers must not mutate slices reachable from a value they got from
// the store and should clone before editing.
type Store[T Entity] struct {
	name string

	mu    sync.RWMutex
	items map[uuid.UUID]T
	// tombstones holds the last known version of deleted IDs until a full
	// reload confirms they are gone.
	tombstones map[uuid.UUID]int64
	revision   uint64
	loadedAt   time.Time
}

// New creates an empty store. name is used in error messages.
func New[T Entity](name string) *Store[T] {
	return &Store[T]{name: name, items: make(map[uuid.UUID]T), tombstones: make(map[uuid.UUID]int64)}
}

// Snapshot returns every entity ordered by creation time, then ID.
func (s *Store[T]) Snapshot() []T {
	s.mu.RLock()
	out := make([]T, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b T) int {
		if c := a.Created().Compare(b.Created()); c != 0 {
			return c
		}
		return cmp.Compare(a.EntityID().String(), b.EntityID().String())
	})
	return out
}

// Get returns the entity with id.
func (s *Store[T]) Get(id uuid.UUID) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		var zero T
		return zero, apperrors.NotFound(s.name, nil)
	}
	return item, nil
}

// Put inserts or replaces item. An item older than the stored copy is
// rejected with a conflict so a slow response cannot overwrite a newer write.
// The same holds for an item at or below the version it was deleted at.
func (s *Store[T]) Put(item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dead, ok := s.tombstones[item.EntityID()]; ok {
		if item.EntityVersion() <= dead {
			return apperrors.Conflict(s.name, item.EntityVersion(), dead)
		}
		delete(s.tombstones, item.EntityID())
	}
	if cur, ok := s.items[item.EntityID()]; ok && cur.EntityVersion() > item.EntityVersion() {
		return apperrors.Conflict(s.name, item.EntityVersion(), cur.EntityVersion())
	}
	s.items[item.EntityID()] = item
	s.revision++
	return nil
}

// Delete removes id and reports whether it was present.
func (s *Store[T]) Delete(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.items[id]
	if !ok {
		return false
	}
	s.remove(id, cur.EntityVersion())
	return true
}

// DeleteAt removes id if the stored copy is not newer than version. The
// tombstone is kept even when id is absent so a late update cannot bring it
// back.
func (s *Store[T]) DeleteAt(id uuid.UUID, version int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.items[id]
	if ok && cur.EntityVersion() > version {
		return false
	}
	if !ok {
		if dead := s.tombstones[id]; version > dead {
			s.tombstones[id] = version
		}
		return false
	}
	s.remove(id, version)
	return true
}

func (s *Store[T]) remove(id uuid.UUID, version int64) {
	delete(s.items, id)
	if dead, ok := s.tombstones[id]; !ok || version > dead {
		s.tombstones[id] = version
	}
	s.revision++
}

// ReplaceAll swaps the collection for a fresh backend listing. Per ID the
// higher version wins, so writes that landed after the listing was taken
// survive. IDs missing from items are dropped. It returns the number of
// entities whose stored value changed.
func (s *Store[T]) ReplaceAll(items []T, at time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[uuid.UUID]T, len(items))
	for _, item := range items {
		if dead, ok := s.tombstones[item.EntityID()]; ok && item.EntityVersion() <= dead {
			continue
		}
		if prev, ok := next[item.EntityID()]; ok && prev.EntityVersion() >= item.EntityVersion() {
			continue
		}
		next[item.EntityID()] = item
	}

	changed := 0
	for id, item := range next {
		cur, ok := s.items[id]
		switch {
		case !ok:
			changed++
		case cur.EntityVersion() > item.EntityVersion():
			next[id] = cur
		case cur.EntityVersion() < item.EntityVersion():
			changed++
		}
	}
	for id := range s.items {
		if _, ok := next[id]; !ok {
			changed++
		}
	}

	// A listing without the ID confirms the delete.
	for id := range s.tombstones {
		if _, ok := next[id]; !ok {
			delete(s.tombstones, id)
		}
	}

	s.items = next
	s.loadedAt = at
	if changed > 0 {
		s.revision++
	}
	return changed
}

// Revision is bumped on every change and keys derived caches.
func (s *Store[T]) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// LoadedAt is the time of the last full reload.
func (s *Store[T]) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
