package model

import "time"

// Interval is a half-open time range [Start, End): Start is included,
// End is excluded. Two back-to-back intervals sharing a boundary instant
// do not overlap.
type Interval struct {
	Start time.Time `json:"start_time"`
	End   time.Time `json:"end_time"`
}

func NewInterval(start, end time.Time) Interval {
	return Interval{Start: start.UTC(), End: end.UTC()}
}

func (iv Interval) Valid() bool {
	return iv.Start.Before(iv.End)
}

func (iv Interval) IsZero() bool {
	return iv.Start.IsZero() && iv.End.IsZero()
}

// Overlaps reports whether two half-open intervals have a non-empty
// intersection.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && iv.End.After(other.Start)
}

func (iv Interval) Equal(other Interval) bool {
	return iv.Start.Equal(other.Start) && iv.End.Equal(other.End)
}
