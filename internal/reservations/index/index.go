package index

import (
	"sort"
	"sync"

	reserrors "reservd/internal/reservations/errors"
	"reservd/pkg/model"
)

// Entry is one occupying interval in a resource's set.
type Entry struct {
	ID   string
	Span model.Interval
}

// Index keeps, per resource, the start-ordered set of occupying intervals
// and answers check-and-insert atomically. Callers serialize mutations per
// resource (the store's per-resource lock); the internal mutex only protects
// the structure against concurrent access across resources.
type Index struct {
	mu        sync.RWMutex
	resources map[string][]Entry
}

func New() *Index {
	return &Index{
		resources: make(map[string][]Entry),
	}
}

// TryReserve inserts the interval for the given reservation id iff it
// overlaps no existing occupying interval on the resource. Check and insert
// happen under one lock; no observer can see a state between them.
func (ix *Index) TryReserve(resourceID, id string, span model.Interval) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	entries := ix.resources[resourceID]
	if ids := conflicting(entries, span, ""); len(ids) > 0 {
		return &reserrors.ConflictError{ResourceID: resourceID, IDs: ids}
	}

	ix.resources[resourceID] = insertSorted(entries, Entry{ID: id, Span: span})
	return nil
}

// Remove deletes the interval held by the given reservation id. Removing an
// id that is not present is a no-op.
func (ix *Index) Remove(resourceID, id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	entries := ix.resources[resourceID]
	for i, e := range entries {
		if e.ID == id {
			ix.resources[resourceID] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

// Replace atomically swaps the interval held by id for a new one. The old
// interval never conflicts with its own replacement, and on conflict the
// index is left exactly as it was: the resource is never observed
// momentarily unoccupied.
func (ix *Index) Replace(resourceID, id string, span model.Interval) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	entries := ix.resources[resourceID]
	if ids := conflicting(entries, span, id); len(ids) > 0 {
		return &reserrors.ConflictError{ResourceID: resourceID, IDs: ids}
	}

	for i, e := range entries {
		if e.ID == id {
			entries = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}
	ix.resources[resourceID] = insertSorted(entries, Entry{ID: id, Span: span})
	return nil
}

// Occupied returns the number of occupying intervals for a resource.
func (ix *Index) Occupied(resourceID string) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.resources[resourceID])
}

// conflicting returns the ids of every entry overlapping span, skipping
// excludeID. Entries are start-ordered and pairwise disjoint, so the
// overlapping entries form one contiguous run around the insertion point.
func conflicting(entries []Entry, span model.Interval, excludeID string) []string {
	// First entry whose end lies past the candidate start.
	lo := sort.Search(len(entries), func(i int) bool {
		return entries[i].Span.End.After(span.Start)
	})

	var ids []string
	for i := lo; i < len(entries) && entries[i].Span.Start.Before(span.End); i++ {
		if entries[i].ID == excludeID {
			continue
		}
		ids = append(ids, entries[i].ID)
	}
	return ids
}

func insertSorted(entries []Entry, e Entry) []Entry {
	pos := sort.Search(len(entries), func(i int) bool {
		return entries[i].Span.Start.After(e.Span.Start)
	})
	entries = append(entries, Entry{})
	copy(entries[pos+1:], entries[pos:])
	entries[pos] = e
	return entries
}
