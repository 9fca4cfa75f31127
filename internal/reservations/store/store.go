package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"reservd/internal/reservations/changefeed"
	reserrors "reservd/internal/reservations/errors"
	"reservd/internal/reservations/index"
	"reservd/pkg/model"
)

// Store owns reservation records and drives every mutation through the
// interval index (conflict check) and the state machine (legality check).
// All mutating operations on one resource are serialized by a per-resource
// mutex held across check, commit and change-log append, so exactly one of
// two concurrent conflicting writes wins and per-resource change records
// appear in commit order. Reads take only the record table's read lock and
// never block writers of other resources.
type Store struct {
	idx *index.Index
	log *changefeed.Log
	bus *changefeed.Bus

	mu      sync.RWMutex
	records map[string]*model.Reservation
	byUser  map[string]map[string]struct{}

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

func New(idx *index.Index, log *changefeed.Log, bus *changefeed.Bus) *Store {
	return &Store{
		idx:     idx,
		log:     log,
		bus:     bus,
		records: make(map[string]*model.Reservation),
		byUser:  make(map[string]map[string]struct{}),
		locks:   make(map[string]*sync.Mutex),
	}
}

// resourceLock returns the mutex serializing mutations for one resource,
// creating it on first use. Locks are never removed; the set of resources is
// bounded by the caller's domain.
func (s *Store) resourceLock(resourceID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()

	lock, ok := s.locks[resourceID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[resourceID] = lock
	}
	return lock
}

// Reserve allocates an id, claims the window in the interval index and
// creates a pending reservation. On conflict nothing is created and the
// error names the overlapping reservation ids.
func (s *Store) Reserve(userID, resourceID string, span model.Interval, note string) (*model.Reservation, error) {
	id := uuid.NewString()

	lock := s.resourceLock(resourceID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.idx.TryReserve(resourceID, id, span); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	res := &model.Reservation{
		ID:         id,
		UserID:     userID,
		ResourceID: resourceID,
		StartTime:  span.Start,
		EndTime:    span.End,
		Status:     model.StatusPending,
		Note:       note,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	s.mu.Lock()
	s.records[id] = res
	if s.byUser[userID] == nil {
		s.byUser[userID] = make(map[string]struct{})
	}
	s.byUser[userID][id] = struct{}{}
	s.mu.Unlock()

	s.publish(s.log.Append(id, model.OpCreate, *res))
	return snapshot(res), nil
}

// Update edits the window and/or note of a non-terminal reservation. A
// window change is re-validated through the index's atomic replace; on
// conflict the reservation and the index are unchanged.
func (s *Store) Update(id string, upd *model.ReservationUpdate) (*model.Reservation, error) {
	res, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	lock := s.resourceLock(res.ResourceID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the resource lock: the record may have been cancelled
	// between the lookup and lock acquisition.
	s.mu.RLock()
	live, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, reserrors.ErrNotFound
	}
	if live.Status.Terminal() {
		return nil, fmt.Errorf("cannot update %s reservation: %w", live.Status, reserrors.ErrInvalidState)
	}

	span := live.Timespan()
	if upd.StartTime != nil {
		span.Start = upd.StartTime.UTC()
	}
	if upd.EndTime != nil {
		span.End = upd.EndTime.UTC()
	}

	// A lone endpoint is only validated here, against the stored one, so the
	// merged window must be re-checked before it reaches the index.
	if !span.Valid() {
		return nil, fmt.Errorf("window [%s, %s): %w", span.Start, span.End, reserrors.ErrInvalidWindow)
	}

	if !span.Equal(live.Timespan()) {
		if err := s.idx.Replace(live.ResourceID, id, span); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	live.StartTime = span.Start
	live.EndTime = span.End
	if upd.Note != nil {
		live.Note = *upd.Note
	}
	live.UpdatedAt = time.Now().UTC()
	snap := *live
	s.mu.Unlock()

	s.publish(s.log.Append(id, model.OpUpdate, snap))
	return &snap, nil
}

// Confirm transitions a pending reservation to confirmed. The window is
// already occupying, so no index re-check is needed.
func (s *Store) Confirm(id string) (*model.Reservation, error) {
	return s.transition(id, model.StatusConfirmed)
}

// Block transitions a pending reservation to blocked, marking the window as
// administratively held rather than user-confirmed.
func (s *Store) Block(id string) (*model.Reservation, error) {
	return s.transition(id, model.StatusBlocked)
}

// Cancel moves any non-terminal reservation to the terminal cancelled state
// and releases its window. Cancelling twice fails with ErrInvalidState.
func (s *Store) Cancel(id string) (*model.Reservation, error) {
	return s.transition(id, model.StatusCancelled)
}

func (s *Store) transition(id string, to model.Status) (*model.Reservation, error) {
	res, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	lock := s.resourceLock(res.ResourceID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	live, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, reserrors.ErrNotFound
	}
	if !model.CanTransition(live.Status, to) {
		return nil, fmt.Errorf("cannot move %s reservation to %s: %w", live.Status, to, reserrors.ErrInvalidState)
	}

	op := model.OpUpdate
	if to == model.StatusCancelled {
		s.idx.Remove(live.ResourceID, id)
		op = model.OpCancel
	}

	s.mu.Lock()
	live.Status = to
	live.UpdatedAt = time.Now().UTC()
	snap := *live
	s.mu.Unlock()

	s.publish(s.log.Append(id, op, snap))
	return &snap, nil
}

// Get returns a copy of the reservation, or ErrNotFound.
func (s *Store) Get(id string) (*model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, ok := s.records[id]
	if !ok {
		return nil, reserrors.ErrNotFound
	}
	return snapshot(res), nil
}

func (s *Store) publish(rec model.ChangeRecord) {
	if s.bus != nil {
		s.bus.Publish(rec)
	}
}

func snapshot(res *model.Reservation) *model.Reservation {
	copied := *res
	return &copied
}
