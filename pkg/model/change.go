package model

import "time"

// Operation is the kind of committed mutation a change record captures.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpCancel Operation = "cancel"
)

// ChangeRecord is an immutable, append-only log entry. Snapshot is the full
// reservation state as of the commit the record describes, copied by value so
// later mutations never rewrite history.
type ChangeRecord struct {
	Sequence      uint64      `json:"sequence" bson:"_id"`
	ReservationID string      `json:"reservation_id" bson:"reservation_id"`
	Operation     Operation   `json:"operation" bson:"operation"`
	Snapshot      Reservation `json:"snapshot" bson:"snapshot"`
	RecordedAt    time.Time   `json:"recorded_at" bson:"recorded_at"`
}
