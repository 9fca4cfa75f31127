package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound      = errors.New("reservation not found")
	ErrInvalidState  = errors.New("transition not permitted from current status")
	ErrInvalidWindow = errors.New("start_time must be strictly before end_time")
)

// ConflictError is returned when a candidate window overlaps one or more
// occupying reservations on the same resource. IDs lists every conflicting
// reservation.
type ConflictError struct {
	ResourceID string
	IDs        []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("interval conflicts with reservation(s) [%s] on resource %s",
		strings.Join(e.IDs, ", "), e.ResourceID)
}

// AsConflict unwraps err into a *ConflictError if it is one.
func AsConflict(err error) (*ConflictError, bool) {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return conflict, true
	}
	return nil, false
}
