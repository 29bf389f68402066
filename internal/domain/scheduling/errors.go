package scheduling

import (
	"errors"
	"fmt"
	"strings"
)

// Errors surfaced by the availability & booking engine. All are per-request
// failures; handlers map them onto HTTP statuses with errors.Is.
var (
	ErrValidation          = errors.New("invalid request")
	ErrWindowNotFound      = errors.New("schedule window not found")
	ErrSlotNotFound        = errors.New("recurring slot not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrNoMatchingSlot      = errors.New("no bookable slot matches the requested time")
	ErrSlotMisaligned      = errors.New("hour does not fall on the slot's time grid")
	ErrSlotTaken           = errors.New("practitioner already has an appointment at that time")
	ErrSlotOverlap         = errors.New("slot grid overlaps an existing slot for that day")
	ErrInvalidTransition   = errors.New("status transition not allowed")
)

// AlignmentError reports an hour that is not on the bookable grid of a
// (slot, window) pair, optionally carrying the nearest valid candidates.
type AlignmentError struct {
	Hour    string
	Nearest []string
}

func (e *AlignmentError) Error() string {
	if len(e.Nearest) == 0 {
		return fmt.Sprintf("hour %s does not fall on the slot's time grid", e.Hour)
	}
	return fmt.Sprintf("hour %s does not fall on the slot's time grid (nearest: %s)",
		e.Hour, strings.Join(e.Nearest, ", "))
}

func (e *AlignmentError) Is(target error) bool { return target == ErrSlotMisaligned }

// TransitionError reports a rejected status transition together with the
// states that would have been allowed.
type TransitionError struct {
	From    AppointmentStatus
	To      AppointmentStatus
	Allowed []AppointmentStatus
}

func (e *TransitionError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("status %s is terminal", e.From)
	}
	parts := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		parts[i] = string(s)
	}
	return fmt.Sprintf("cannot transition from %s to %s (allowed: %s)",
		e.From, e.To, strings.Join(parts, ", "))
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }
