package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// Weekday is the symbolic day a recurring slot repeats on.
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

var weekdays = map[time.Weekday]Weekday{
	time.Monday:    Monday,
	time.Tuesday:   Tuesday,
	time.Wednesday: Wednesday,
	time.Thursday:  Thursday,
	time.Friday:    Friday,
	time.Saturday:  Saturday,
	time.Sunday:    Sunday,
}

var validWeekdays = map[Weekday]bool{
	Monday: true, Tuesday: true, Wednesday: true, Thursday: true,
	Friday: true, Saturday: true, Sunday: true,
}

func (w Weekday) Valid() bool { return validWeekdays[w] }

// ScheduleWindow is an opening/closing time-of-day boundary, optionally with
// an overtime cutoff. Windows are shared across slots: the hour triple is
// unique system-wide and a window is never duplicated or mutated once
// referenced.
type ScheduleWindow struct {
	ID                uuid.UUID `db:"id" json:"id"`
	OpeningHour       string    `db:"opening_hour" json:"opening_hour"`
	CloseHour         string    `db:"close_hour" json:"close_hour"`
	OvertimeStartHour *string   `db:"overtime_start_hour" json:"overtime_start_hour,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// DefaultDurationMinutes is used when a slot is created without a duration.
const DefaultDurationMinutes = 30

// RecurringSlot is a weekly-recurring availability definition for one
// practitioner on one day of the week, spanning one or more windows
// (e.g. morning + afternoon).
type RecurringSlot struct {
	ID              uuid.UUID   `db:"id" json:"id"`
	PractitionerID  uuid.UUID   `db:"practitioner_id" json:"practitioner_id"`
	BranchID        uuid.UUID   `db:"branch_id" json:"branch_id"`
	LocationID      *uuid.UUID  `db:"location_id" json:"location_id,omitempty"`
	DayOfWeek       Weekday     `db:"day_of_week" json:"day_of_week"`
	DurationMinutes int         `db:"duration_minutes" json:"duration_minutes"`
	Unavailable     bool        `db:"unavailable" json:"unavailable"`
	WindowIDs       []uuid.UUID `json:"window_ids"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at" json:"updated_at"`
}

// AppointmentStatus is the lifecycle state of a booked appointment.
type AppointmentStatus string

const (
	StatusPending     AppointmentStatus = "pending"
	StatusApproved    AppointmentStatus = "approved"
	StatusUnderReview AppointmentStatus = "under_review"
	StatusCompleted   AppointmentStatus = "completed"
	StatusCancelled   AppointmentStatus = "cancelled"
	StatusNoShow      AppointmentStatus = "no_show"
)

var validStatuses = map[AppointmentStatus]bool{
	StatusPending: true, StatusApproved: true, StatusUnderReview: true,
	StatusCompleted: true, StatusCancelled: true, StatusNoShow: true,
}

func (s AppointmentStatus) Valid() bool { return validStatuses[s] }

// transitions is the state-transition table. States absent from the map are
// terminal.
var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPending:     {StatusApproved, StatusUnderReview, StatusCancelled},
	StatusApproved:    {StatusCompleted, StatusNoShow, StatusCancelled},
	StatusUnderReview: {StatusApproved, StatusCancelled},
}

// Terminal reports whether no further transitions are allowed from s.
func (s AppointmentStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// AllowedTransitions returns the states reachable from s.
func (s AppointmentStatus) AllowedTransitions() []AppointmentStatus {
	return transitions[s]
}

// CanTransitionTo reports whether the transition s -> next is allowed.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Appointment is a concrete booking of a patient against a practitioner's
// recurring slot on a calendar date. Date and Hour are wall-clock values
// ("2006-01-02" / "15:04"), no timezone attached.
type Appointment struct {
	ID              uuid.UUID         `db:"id" json:"id"`
	PatientID       uuid.UUID         `db:"patient_id" json:"patient_id"`
	PractitionerID  uuid.UUID         `db:"practitioner_id" json:"practitioner_id"`
	SlotID          uuid.UUID         `db:"slot_id" json:"slot_id"`
	WindowID        uuid.UUID         `db:"window_id" json:"schedule_id"`
	Date            string            `db:"date" json:"date"`
	Hour            string            `db:"hour" json:"hour"`
	DurationMinutes int               `db:"duration_minutes" json:"duration_minutes"`
	Status          AppointmentStatus `db:"status" json:"status"`
	Observation     *string           `db:"observation" json:"observation,omitempty"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`
}

// AvailableTime is one bookable entry of an availability grid. ScheduleID is
// the window the time was generated from, carried so a booking can reference
// the exact (slot, window) pair.
type AvailableTime struct {
	Time       string    `json:"time"`
	SlotID     uuid.UUID `json:"slot_id"`
	ScheduleID uuid.UUID `json:"schedule_id"`
	IsOvertime bool      `json:"is_overtime"`
}

// AvailableDay is the availability of one practitioner on one calendar date.
type AvailableDay struct {
	Date      string          `json:"date"`
	Available []AvailableTime `json:"available"`
	Booked    []string        `json:"booked"`
}

// SlotSelection pins a booking to an explicit (slot, window) pair.
type SlotSelection struct {
	SlotID     uuid.UUID `json:"slot_id"`
	ScheduleID uuid.UUID `json:"schedule_id"`
}

// BookingRequest asks for an appointment at Date/Hour. When Slot is nil the
// engine auto-resolves the (slot, window) pair from the availability grid;
// otherwise the explicit pair is validated against the grid.
type BookingRequest struct {
	PatientID       uuid.UUID      `json:"patient_id"`
	PractitionerID  uuid.UUID      `json:"practitioner_id"`
	Date            string         `json:"date"`
	Hour            string         `json:"hour"`
	DurationMinutes *int           `json:"duration_minutes,omitempty"`
	Observation     *string        `json:"observation,omitempty"`
	Slot            *SlotSelection `json:"slot,omitempty"`
}
