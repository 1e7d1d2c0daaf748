// Package backendtest provides an in-memory backend for service tests.
package backendtest

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/flaviopcampos/DATACLINICA-sub004/internal/store"
	apperrors "github.com/flaviopcampos/DATACLINICA-sub004/pkg/errors"
)

// Fake mimics the REST backend: it enforces If-Match versions and bumps the
// version on every accepted write.
type Fake[T store.Entity] struct {
	mu         sync.Mutex
	items      map[uuid.UUID]T
	setVersion func(*T, int64)

	// Err, when set, fails every call.
	Err error
	// FailIDs fails calls that target specific ids.
	FailIDs map[uuid.UUID]error
	// Calls records "method id action" for assertions.
	Calls []string
}

func NewFake[T store.Entity](setVersion func(*T, int64), seed ...T) *Fake[T] {
	f := &Fake[T]{items: make(map[uuid.UUID]T), setVersion: setVersion, FailIDs: make(map[uuid.UUID]error)}
	for _, item := range seed {
		f.items[item.EntityID()] = item
	}
	return f
}

// Put replaces the stored copy without a version check, as another client
// writing to the backend would.
func (f *Fake[T]) Put(item T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[item.EntityID()] = item
}

func (f *Fake[T]) Stored(id uuid.UUID) (T, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	return item, ok
}

func (f *Fake[T]) fail(call string, id uuid.UUID) error {
	f.Calls = append(f.Calls, call)
	if f.Err != nil {
		return f.Err
	}
	return f.FailIDs[id]
}

func (f *Fake[T]) List(ctx context.Context) ([]T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("list", uuid.Nil); err != nil {
		return nil, err
	}
	out := make([]T, 0, len(f.items))
	for _, item := range f.items {
		out = append(out, item)
	}
	return out, ctx.Err()
}

func (f *Fake[T]) Get(_ context.Context, id uuid.UUID) (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var zero T
	if err := f.fail("get "+id.String(), id); err != nil {
		return zero, err
	}
	item, ok := f.items[id]
	if !ok {
		return zero, apperrors.NotFound("entity", nil)
	}
	return item, nil
}

func (f *Fake[T]) Create(_ context.Context, item T) (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var zero T
	if err := f.fail("create "+item.EntityID().String(), item.EntityID()); err != nil {
		return zero, err
	}
	f.setVersion(&item, 1)
	f.items[item.EntityID()] = item
	return item, nil
}

func (f *Fake[T]) write(call string, id uuid.UUID, expected int64, item T) (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var zero T
	if err := f.fail(call, id); err != nil {
		return zero, err
	}
	cur, ok := f.items[id]
	if !ok {
		return zero, apperrors.NotFound("entity", nil)
	}
	if cur.EntityVersion() != expected {
		return zero, apperrors.Conflict("entity", expected, cur.EntityVersion())
	}
	f.setVersion(&item, expected+1)
	f.items[id] = item
	return item, nil
}

func (f *Fake[T]) Update(_ context.Context, id uuid.UUID, expected int64, item T) (T, error) {
	return f.write("update "+id.String(), id, expected, item)
}

func (f *Fake[T]) Action(_ context.Context, id uuid.UUID, action string, expected int64, item T) (T, error) {
	return f.write(action+" "+id.String(), id, expected, item)
}

func (f *Fake[T]) Delete(_ context.Context, id uuid.UUID, expected int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("delete "+id.String(), id); err != nil {
		return err
	}
	cur, ok := f.items[id]
	if !ok {
		return apperrors.NotFound("entity", nil)
	}
	if cur.EntityVersion() != expected {
		return apperrors.Conflict("entity", expected, cur.EntityVersion())
	}
	delete(f.items, id)
	return nil
}
