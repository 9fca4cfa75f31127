package model

// Status is the lifecycle state of a reservation. The set is closed:
// values outside the constants below are rejected at the validation layer.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusBlocked   Status = "blocked"
	StatusCancelled Status = "cancelled"
)

// transitions is the full legal transition table. Window/note edits keep the
// current status and are therefore not represented here; only status changes
// consult this table.
var transitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusConfirmed: true,
		StatusBlocked:   true,
		StatusCancelled: true,
	},
	StatusConfirmed: {
		StatusCancelled: true,
	},
	StatusBlocked: {
		StatusCancelled: true,
	},
	StatusCancelled: {},
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether the status has no outgoing transitions.
func (s Status) Terminal() bool {
	return s == StatusCancelled
}

// Occupying reports whether a reservation in this status counts against the
// per-resource no-overlap invariant.
func (s Status) Occupying() bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusBlocked
}

// CanTransition reports whether the state machine permits moving a
// reservation from one status to another.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}
