package model

import "testing"

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusConfirmed, StatusBlocked, StatusCancelled} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	for _, s := range []Status{"", "tentative", "PENDING"} {
		if s.Valid() {
			t.Errorf("%q should be invalid", s)
		}
	}
}

func TestStatusOccupying(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusConfirmed, StatusBlocked} {
		if !s.Occupying() {
			t.Errorf("%s should be occupying", s)
		}
	}
	if StatusCancelled.Occupying() {
		t.Error("cancelled should not be occupying")
	}
}

func TestStatusTerminal(t *testing.T) {
	if !StatusCancelled.Terminal() {
		t.Error("cancelled should be terminal")
	}
	for _, s := range []Status{StatusPending, StatusConfirmed, StatusBlocked} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusPending, StatusConfirmed},
		{StatusPending, StatusBlocked},
		{StatusPending, StatusCancelled},
		{StatusConfirmed, StatusCancelled},
		{StatusBlocked, StatusCancelled},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("%s -> %s should be allowed", tc.from, tc.to)
		}
	}

	forbidden := []struct{ from, to Status }{
		{StatusConfirmed, StatusPending},
		{StatusConfirmed, StatusBlocked},
		{StatusBlocked, StatusConfirmed},
		{StatusBlocked, StatusPending},
		{StatusCancelled, StatusPending},
		{StatusCancelled, StatusConfirmed},
		{StatusCancelled, StatusBlocked},
		{StatusCancelled, StatusCancelled},
		{StatusPending, StatusPending},
	}
	for _, tc := range forbidden {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("%s -> %s should be forbidden", tc.from, tc.to)
		}
	}
}
