package store

import (
	"fmt"

	"reservd/pkg/model"
)

// Replay rebuilds the record table and the interval index from change-log
// history. The last snapshot per reservation wins; occupying reservations
// re-claim their windows in the index. Replay is meant for an empty store at
// startup and fails if any record cannot be applied, since persisted history
// satisfied the invariant when it was written.
func (s *Store) Replay(records []model.ChangeRecord) error {
	latest := make(map[string]model.Reservation)
	order := make([]string, 0)
	for _, rec := range records {
		if _, seen := latest[rec.ReservationID]; !seen {
			order = append(order, rec.ReservationID)
		}
		latest[rec.ReservationID] = rec.Snapshot
	}

	for _, id := range order {
		snap := latest[id]
		if snap.Status.Occupying() {
			if err := s.idx.TryReserve(snap.ResourceID, snap.ID, snap.Timespan()); err != nil {
				return fmt.Errorf("replay: reservation %s: %w", snap.ID, err)
			}
		}

		res := snap
		s.mu.Lock()
		s.records[res.ID] = &res
		if s.byUser[res.UserID] == nil {
			s.byUser[res.UserID] = make(map[string]struct{})
		}
		s.byUser[res.UserID][res.ID] = struct{}{}
		s.mu.Unlock()
	}
	return nil
}
