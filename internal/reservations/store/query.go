package store

import (
	"sort"

	"reservd/pkg/model"
)

// Query filters reservations by user, resource, status and window. Filters
// are conjunctive; zero values match everything. Results are ordered by
// start time then id so output is deterministic. Uses the user index when a
// user filter is present, otherwise scans the record table.
func (s *Store) Query(filter model.QueryFilter) []*model.Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.Reservation
	if filter.UserID != "" {
		for id := range s.byUser[filter.UserID] {
			if res := s.records[id]; matches(res, filter) {
				out = append(out, snapshot(res))
			}
		}
	} else {
		for _, res := range s.records {
			if matches(res, filter) {
				out = append(out, snapshot(res))
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func matches(res *model.Reservation, filter model.QueryFilter) bool {
	if filter.UserID != "" && res.UserID != filter.UserID {
		return false
	}
	if filter.ResourceID != "" && res.ResourceID != filter.ResourceID {
		return false
	}
	if filter.Status != "" && res.Status != filter.Status {
		return false
	}
	if !filter.Window.IsZero() && !res.Timespan().Overlaps(filter.Window) {
		return false
	}
	return true
}
