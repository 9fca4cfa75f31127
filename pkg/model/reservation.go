package model

import (
	"time"
)

// Reservation is the central entity owned by the reservation store.
// ID, UserID and ResourceID are immutable after creation; changing the
// resource requires cancel + recreate.
type Reservation struct {
	ID         string    `json:"id,omitempty" bson:"_id,omitempty"`
	UserID     string    `json:"user_id" bson:"user_id" validate:"required,min=1,max=100"`
	ResourceID string    `json:"resource_id" bson:"resource_id" validate:"required,min=1,max=100"`
	StartTime  time.Time `json:"start_time" bson:"start_time" validate:"required"`
	EndTime    time.Time `json:"end_time" bson:"end_time" validate:"required,gtfield=StartTime"`
	Status     Status    `json:"status" bson:"status" validate:"omitempty,oneof=pending confirmed blocked cancelled"`
	Note       string    `json:"note,omitempty" bson:"note,omitempty" validate:"omitempty,max=1000"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" bson:"updated_at"`
}

// Timespan returns the reserved window as a half-open interval.
func (r *Reservation) Timespan() Interval {
	return Interval{Start: r.StartTime, End: r.EndTime}
}

// ReservationUpdate carries the optional fields of an update request.
// Nil pointers leave the corresponding field untouched.
type ReservationUpdate struct {
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Note      *string    `json:"note,omitempty" validate:"omitempty,max=1000"`
}

// QueryFilter holds the optional, conjunctive filters of a query request.
type QueryFilter struct {
	UserID     string
	ResourceID string
	Status     Status
	Window     Interval
}
