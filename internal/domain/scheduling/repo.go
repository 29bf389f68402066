package scheduling

import (
	"context"

	"github.com/google/uuid"
)

type WindowRepository interface {
	// GetOrCreate returns the window with the exact hour triple, creating it
	// on first use. Identical bounds are always the same window.
	GetOrCreate(ctx context.Context, openingHour, closeHour string, overtimeStartHour *string) (*ScheduleWindow, error)
	GetByID(ctx context.Context, id uuid.UUID) (*ScheduleWindow, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*ScheduleWindow, error)
}

type SlotRepository interface {
	Create(ctx context.Context, sl *RecurringSlot) error
	GetByID(ctx context.Context, id uuid.UUID) (*RecurringSlot, error)
	Update(ctx context.Context, sl *RecurringSlot) error
	// Delete soft-deletes; the slot stops matching availability queries but
	// existing appointments keep referencing it.
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPractitioner(ctx context.Context, practitionerID uuid.UUID, limit, offset int) ([]*RecurringSlot, int, error)
	// ListActiveForDay returns non-deleted, available slots of a practitioner
	// on a weekday, window ids loaded, in creation order.
	ListActiveForDay(ctx context.Context, practitionerID uuid.UUID, day Weekday) ([]*RecurringSlot, error)
}

type AppointmentRepository interface {
	// Create inserts the appointment; a uniqueness conflict on
	// (practitioner, date, hour) among non-cancelled rows maps to ErrSlotTaken.
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// BookedHours returns the hours of non-cancelled appointments of a
	// practitioner on a date.
	BookedHours(ctx context.Context, practitionerID uuid.UUID, date string) ([]string, error)
	// ExistsAt reports whether a non-cancelled appointment other than
	// excludeID occupies (practitioner, date, hour).
	ExistsAt(ctx context.Context, practitionerID uuid.UUID, date, hour string, excludeID uuid.UUID) (bool, error)
	// Reschedule writes new date/hour/slot/window onto the row; conflicts map
	// to ErrSlotTaken like Create.
	Reschedule(ctx context.Context, a *Appointment) error
	// UpdateStatus performs a guarded from->to transition and returns the
	// updated row, or ErrAppointmentNotFound when the row is absent or its
	// status moved concurrently.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListByPractitionerDate(ctx context.Context, practitionerID uuid.UUID, date string, limit, offset int) ([]*Appointment, int, error)
}
