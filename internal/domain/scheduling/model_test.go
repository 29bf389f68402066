package scheduling

import "testing"

func TestWeekdayValid(t *testing.T) {
	for _, d := range []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday} {
		if !d.Valid() {
			t.Errorf("%s should be valid", d)
		}
	}
	for _, d := range []Weekday{"", "Monday", "mon", "someday"} {
		if d.Valid() {
			t.Errorf("%q should be invalid", d)
		}
	}
}

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to AppointmentStatus
		allowed  bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusUnderReview, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusCompleted, false},
		{StatusPending, StatusNoShow, false},
		{StatusApproved, StatusCompleted, true},
		{StatusApproved, StatusNoShow, true},
		{StatusApproved, StatusCancelled, true},
		{StatusApproved, StatusUnderReview, false},
		{StatusUnderReview, StatusApproved, true},
		{StatusUnderReview, StatusCancelled, true},
		{StatusUnderReview, StatusCompleted, false},
		{StatusCompleted, StatusPending, false},
		{StatusCancelled, StatusPending, false},
		{StatusNoShow, StatusApproved, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []AppointmentStatus{StatusCompleted, StatusCancelled, StatusNoShow} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []AppointmentStatus{StatusPending, StatusApproved, StatusUnderReview} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestStatusValid(t *testing.T) {
	if !StatusNoShow.Valid() {
		t.Error("no_show should be valid")
	}
	if AppointmentStatus("archived").Valid() {
		t.Error("archived should be invalid")
	}
}
