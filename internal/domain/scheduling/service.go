package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/platform/events"
	"github.com/clinicore/clinicore/internal/platform/lock"
)

// Directory answers existence checks against the provider directory.
type Directory interface {
	PractitionerExists(ctx context.Context, id uuid.UUID) (bool, error)
	PatientExists(ctx context.Context, id uuid.UUID) (bool, error)
	BranchExists(ctx context.Context, id uuid.UUID) (bool, error)
	LocationExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// TxRunner runs fn inside a database transaction carried on the context.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	windows      WindowRepository
	slots        SlotRepository
	appointments AppointmentRepository
	directory    Directory
	inTx         TxRunner
	locker       lock.Locker
	events       events.Publisher
	logger       zerolog.Logger
}

func NewService(
	windows WindowRepository,
	slots SlotRepository,
	appointments AppointmentRepository,
	directory Directory,
	inTx TxRunner,
	locker lock.Locker,
	publisher events.Publisher,
	logger zerolog.Logger,
) *Service {
	return &Service{
		windows:      windows,
		slots:        slots,
		appointments: appointments,
		directory:    directory,
		inTx:         inTx,
		locker:       locker,
		events:       publisher,
		logger:       logger,
	}
}

// Slot administration

// WindowInput is one schedule window by its hour bounds.
type WindowInput struct {
	OpeningHour       string  `json:"opening_hour" validate:"required,datetime=15:04"`
	CloseHour         string  `json:"close_hour" validate:"required,datetime=15:04"`
	OvertimeStartHour *string `json:"overtime_start_hour" validate:"omitempty,datetime=15:04"`
}

// SlotInput describes a recurring slot to create or replace.
type SlotInput struct {
	PractitionerID  uuid.UUID     `json:"practitioner_id"`
	BranchID        uuid.UUID     `json:"branch_id"`
	LocationID      *uuid.UUID    `json:"location_id"`
	DayOfWeek       Weekday       `json:"day_of_week"`
	DurationMinutes int           `json:"duration_minutes"`
	Unavailable     bool          `json:"unavailable"`
	Windows         []WindowInput `json:"windows"`
}

func (s *Service) CreateSlot(ctx context.Context, in SlotInput) (*RecurringSlot, error) {
	sl, wins, err := s.prepareSlot(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := s.checkOverlap(ctx, sl, wins, uuid.Nil); err != nil {
		return nil, err
	}
	if err := s.slots.Create(ctx, sl); err != nil {
		return nil, err
	}
	return sl, nil
}

func (s *Service) UpdateSlot(ctx context.Context, id uuid.UUID, in SlotInput) (*RecurringSlot, error) {
	existing, err := s.slots.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.PractitionerID != existing.PractitionerID {
		return nil, fmt.Errorf("%w: practitioner of a slot cannot change", ErrValidation)
	}
	sl, wins, err := s.prepareSlot(ctx, in)
	if err != nil {
		return nil, err
	}
	sl.ID = existing.ID
	sl.CreatedAt = existing.CreatedAt
	if err := s.checkOverlap(ctx, sl, wins, existing.ID); err != nil {
		return nil, err
	}
	if err := s.slots.Update(ctx, sl); err != nil {
		return nil, err
	}
	return sl, nil
}

func (s *Service) prepareSlot(ctx context.Context, in SlotInput) (*RecurringSlot, []*ScheduleWindow, error) {
	if !in.DayOfWeek.Valid() {
		return nil, nil, fmt.Errorf("%w: unknown day of week %q", ErrValidation, in.DayOfWeek)
	}
	if len(in.Windows) == 0 {
		return nil, nil, fmt.Errorf("%w: at least one window is required", ErrValidation)
	}
	if in.DurationMinutes == 0 {
		in.DurationMinutes = DefaultDurationMinutes
	}
	if in.DurationMinutes < 0 {
		return nil, nil, fmt.Errorf("%w: duration must be positive", ErrValidation)
	}
	ok, err := s.directory.PractitionerExists(ctx, in.PractitionerID)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fmt.Errorf("%w: practitioner %s not found", ErrValidation, in.PractitionerID)
	}
	ok, err = s.directory.BranchExists(ctx, in.BranchID)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fmt.Errorf("%w: branch %s not found", ErrValidation, in.BranchID)
	}
	if in.LocationID != nil {
		ok, err = s.directory.LocationExists(ctx, *in.LocationID)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, nil, fmt.Errorf("%w: location %s not found", ErrValidation, *in.LocationID)
		}
	}

	sl := &RecurringSlot{
		PractitionerID:  in.PractitionerID,
		BranchID:        in.BranchID,
		LocationID:      in.LocationID,
		DayOfWeek:       in.DayOfWeek,
		DurationMinutes: in.DurationMinutes,
		Unavailable:     in.Unavailable,
	}
	wins := make([]*ScheduleWindow, 0, len(in.Windows))
	for _, wi := range in.Windows {
		if _, err := parseHour(wi.OpeningHour); err != nil {
			return nil, nil, err
		}
		if _, err := parseHour(wi.CloseHour); err != nil {
			return nil, nil, err
		}
		if wi.OvertimeStartHour != nil {
			if _, err := parseHour(*wi.OvertimeStartHour); err != nil {
				return nil, nil, err
			}
		}
		w, err := s.windows.GetOrCreate(ctx, wi.OpeningHour, wi.CloseHour, wi.OvertimeStartHour)
		if err != nil {
			return nil, nil, err
		}
		sl.WindowIDs = append(sl.WindowIDs, w.ID)
		wins = append(wins, w)
	}
	return sl, wins, nil
}

// checkOverlap rejects a slot whose grid times collide with another active
// slot of the same practitioner on the same weekday. Overtime candidates
// count here even though availability never surfaces them.
func (s *Service) checkOverlap(ctx context.Context, sl *RecurringSlot, wins []*ScheduleWindow, selfID uuid.UUID) error {
	mine := map[string]bool{}
	for _, w := range wins {
		grid, err := expandWindow(w, sl.DurationMinutes)
		if err != nil {
			return err
		}
		for _, gt := range grid {
			mine[gt.hour] = true
		}
	}

	others, err := s.slots.ListActiveForDay(ctx, sl.PractitionerID, sl.DayOfWeek)
	if err != nil {
		return err
	}
	for _, other := range others {
		if other.ID == selfID {
			continue
		}
		otherWins, err := s.windows.GetByIDs(ctx, other.WindowIDs)
		if err != nil {
			return err
		}
		for _, w := range otherWins {
			grid, err := expandWindow(w, other.DurationMinutes)
			if err != nil {
				return err
			}
			for _, gt := range grid {
				if mine[gt.hour] {
					return fmt.Errorf("%w: %s collides with slot %s", ErrSlotOverlap, gt.hour, other.ID)
				}
			}
		}
	}
	return nil
}

func (s *Service) GetSlot(ctx context.Context, id uuid.UUID) (*RecurringSlot, error) {
	return s.slots.GetByID(ctx, id)
}

func (s *Service) DeleteSlot(ctx context.Context, id uuid.UUID) error {
	return s.slots.Delete(ctx, id)
}

func (s *Service) ListSlots(ctx context.Context, practitionerID uuid.UUID, limit, offset int) ([]*RecurringSlot, int, error) {
	return s.slots.ListByPractitioner(ctx, practitionerID, limit, offset)
}

// Availability

// candidate is one resolved grid position of a practitioner's day.
type candidate struct {
	minutes  int
	time     AvailableTime
	overtime bool
}

// resolveDay expands every (slot, window) pair of a practitioner's weekday
// into the full candidate list, first come first kept on duplicate times.
func (s *Service) resolveDay(ctx context.Context, practitionerID uuid.UUID, date string) ([]candidate, error) {
	day, err := weekdayOf(date)
	if err != nil {
		return nil, err
	}
	slots, err := s.slots.ListActiveForDay(ctx, practitionerID, day)
	if err != nil {
		return nil, err
	}

	var ids []uuid.UUID
	for _, sl := range slots {
		ids = append(ids, sl.WindowIDs...)
	}
	wins, err := s.windows.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var out []candidate
	for _, sl := range slots {
		for _, wid := range sl.WindowIDs {
			w, ok := wins[wid]
			if !ok {
				s.logger.Warn().Str("window_id", wid.String()).Str("slot_id", sl.ID.String()).
					Msg("slot references missing window, skipping")
				continue
			}
			grid, err := expandWindow(w, sl.DurationMinutes)
			if err != nil {
				// A malformed window degrades that window only, the rest
				// of the agenda still resolves.
				s.logger.Warn().Err(err).Str("window_id", wid.String()).
					Msg("skipping window with invalid hours")
				continue
			}
			for _, gt := range grid {
				if seen[gt.hour] {
					continue
				}
				seen[gt.hour] = true
				out = append(out, candidate{
					minutes:  gt.minutes,
					overtime: gt.overtime,
					time: AvailableTime{
						Time:       gt.hour,
						SlotID:     sl.ID,
						ScheduleID: wid,
					},
				})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].minutes < out[j].minutes })
	return out, nil
}

// ComputeAvailability resolves the bookable grid of a practitioner on a date.
// Overtime candidates and already booked hours are excluded.
func (s *Service) ComputeAvailability(ctx context.Context, practitionerID uuid.UUID, date string) (*AvailableDay, error) {
	if _, err := weekdayOf(date); err != nil {
		return nil, err
	}
	ok, err := s.directory.PractitionerExists(ctx, practitionerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: practitioner %s not found", ErrValidation, practitionerID)
	}

	cands, err := s.resolveDay(ctx, practitionerID, date)
	if err != nil {
		return nil, err
	}
	booked, err := s.appointments.BookedHours(ctx, practitionerID, date)
	if err != nil {
		return nil, err
	}
	sort.Strings(booked)
	taken := make(map[string]bool, len(booked))
	for _, h := range booked {
		taken[h] = true
	}

	day := &AvailableDay{
		Date:      date,
		Available: []AvailableTime{},
		Booked:    []string{},
	}
	for _, c := range cands {
		if c.overtime || taken[c.time.Time] {
			continue
		}
		day.Available = append(day.Available, c.time)
	}
	if booked != nil {
		day.Booked = booked
	}
	return day, nil
}

// Booking

func (s *Service) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	if _, err := weekdayOf(req.Date); err != nil {
		return nil, err
	}
	if _, err := parseHour(req.Hour); err != nil {
		return nil, err
	}
	ok, err := s.directory.PatientExists(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: patient %s not found", ErrValidation, req.PatientID)
	}
	ok, err = s.directory.PractitionerExists(ctx, req.PractitionerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: practitioner %s not found", ErrValidation, req.PractitionerID)
	}

	slotID, windowID, duration, err := s.resolveSelection(ctx, req.PractitionerID, req.Date, req.Hour, req.Slot, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if req.DurationMinutes != nil {
		duration = *req.DurationMinutes
	}

	appt := &Appointment{
		PatientID:       req.PatientID,
		PractitionerID:  req.PractitionerID,
		SlotID:          slotID,
		WindowID:        windowID,
		Date:            req.Date,
		Hour:            req.Hour,
		DurationMinutes: duration,
		Status:          StatusPending,
		Observation:     req.Observation,
	}

	err = s.withAgenda(ctx, req.PractitionerID, req.Date, req.Hour, func(ctx context.Context) error {
		return s.inTx(ctx, func(ctx context.Context) error {
			taken, err := s.appointments.ExistsAt(ctx, req.PractitionerID, req.Date, req.Hour, uuid.Nil)
			if err != nil {
				return err
			}
			if taken {
				return ErrSlotTaken
			}
			return s.appointments.Create(ctx, appt)
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.TypeAppointmentBooked, appt)
	return appt, nil
}

// resolveSelection maps a booking request onto a concrete (slot, window)
// pair. A nil selection auto-resolves against the availability grid, where
// an hour held by any appointment other than excludeID never matches; an
// explicit selection is validated for ownership and alignment instead.
func (s *Service) resolveSelection(ctx context.Context, practitionerID uuid.UUID, date, hour string, sel *SlotSelection, excludeID uuid.UUID) (uuid.UUID, uuid.UUID, int, error) {
	if sel == nil {
		taken, err := s.appointments.ExistsAt(ctx, practitionerID, date, hour, excludeID)
		if err != nil {
			return uuid.Nil, uuid.Nil, 0, err
		}
		if taken {
			return uuid.Nil, uuid.Nil, 0, ErrNoMatchingSlot
		}
		cands, err := s.resolveDay(ctx, practitionerID, date)
		if err != nil {
			return uuid.Nil, uuid.Nil, 0, err
		}
		for _, c := range cands {
			if c.overtime || c.time.Time != hour {
				continue
			}
			sl, err := s.slots.GetByID(ctx, c.time.SlotID)
			if err != nil {
				return uuid.Nil, uuid.Nil, 0, err
			}
			return c.time.SlotID, c.time.ScheduleID, sl.DurationMinutes, nil
		}
		return uuid.Nil, uuid.Nil, 0, ErrNoMatchingSlot
	}

	sl, err := s.slots.GetByID(ctx, sel.SlotID)
	if err != nil {
		return uuid.Nil, uuid.Nil, 0, err
	}
	if sl.PractitionerID != practitionerID || sl.Unavailable {
		return uuid.Nil, uuid.Nil, 0, ErrSlotNotFound
	}
	day, err := weekdayOf(date)
	if err != nil {
		return uuid.Nil, uuid.Nil, 0, err
	}
	if sl.DayOfWeek != day {
		return uuid.Nil, uuid.Nil, 0, fmt.Errorf("%w: slot runs on %s, date falls on %s", ErrValidation, sl.DayOfWeek, day)
	}
	var found bool
	for _, wid := range sl.WindowIDs {
		if wid == sel.ScheduleID {
			found = true
			break
		}
	}
	if !found {
		return uuid.Nil, uuid.Nil, 0, ErrWindowNotFound
	}
	w, err := s.windows.GetByID(ctx, sel.ScheduleID)
	if err != nil {
		return uuid.Nil, uuid.Nil, 0, err
	}
	ok, err := alignment(w, sl.DurationMinutes, hour)
	if err != nil {
		return uuid.Nil, uuid.Nil, 0, err
	}
	if !ok {
		return uuid.Nil, uuid.Nil, 0, &AlignmentError{
			Hour:    hour,
			Nearest: nearestCandidates(w, sl.DurationMinutes, hour, 2),
		}
	}
	return sl.ID, w.ID, sl.DurationMinutes, nil
}

// Reprogram moves an existing non-terminal appointment to a new date/hour.
func (s *Service) Reprogram(ctx context.Context, id uuid.UUID, date, hour string, sel *SlotSelection) (*Appointment, error) {
	if _, err := weekdayOf(date); err != nil {
		return nil, err
	}
	if _, err := parseHour(hour); err != nil {
		return nil, err
	}
	appt, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status.Terminal() {
		return nil, ErrAppointmentNotFound
	}

	slotID, windowID, duration, err := s.resolveSelection(ctx, appt.PractitionerID, date, hour, sel, appt.ID)
	if err != nil {
		return nil, err
	}

	appt.SlotID = slotID
	appt.WindowID = windowID
	appt.Date = date
	appt.Hour = hour
	appt.DurationMinutes = duration

	err = s.withAgenda(ctx, appt.PractitionerID, date, hour, func(ctx context.Context) error {
		return s.inTx(ctx, func(ctx context.Context) error {
			taken, err := s.appointments.ExistsAt(ctx, appt.PractitionerID, date, hour, appt.ID)
			if err != nil {
				return err
			}
			if taken {
				return ErrSlotTaken
			}
			return s.appointments.Reschedule(ctx, appt)
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.TypeAppointmentReprogrammed, appt)
	return appt, nil
}

// Transition moves an appointment along the status machine.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, to AppointmentStatus) (*Appointment, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, to)
	}
	appt, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !appt.Status.CanTransitionTo(to) {
		return nil, &TransitionError{
			From:    appt.Status,
			To:      to,
			Allowed: appt.Status.AllowedTransitions(),
		}
	}
	updated, err := s.appointments.UpdateStatus(ctx, id, appt.Status, to)
	if errors.Is(err, ErrAppointmentNotFound) {
		// The guarded update matched nothing: the status moved between our
		// read and the write. Re-read and report against the current row.
		cur, readErr := s.appointments.GetByID(ctx, id)
		if readErr != nil {
			return nil, readErr
		}
		return nil, &TransitionError{
			From:    cur.Status,
			To:      to,
			Allowed: cur.Status.AllowedTransitions(),
		}
	}
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.TypeAppointmentStatus, updated)
	return updated, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListByPractitionerDate(ctx context.Context, practitionerID uuid.UUID, date string, limit, offset int) ([]*Appointment, int, error) {
	if _, err := weekdayOf(date); err != nil {
		return nil, 0, err
	}
	return s.appointments.ListByPractitionerDate(ctx, practitionerID, date, limit, offset)
}

// withAgenda serializes agenda writes for one (practitioner, date, hour).
// Losing the lock race means someone else is taking the same position.
func (s *Service) withAgenda(ctx context.Context, practitionerID uuid.UUID, date, hour string, fn func(ctx context.Context) error) error {
	err := s.locker.WithAgendaLock(ctx, practitionerID, date, hour, fn)
	if errors.Is(err, lock.ErrNotAcquired) {
		return ErrSlotTaken
	}
	return err
}

func (s *Service) publish(ctx context.Context, eventType string, appt *Appointment) {
	err := s.events.Publish(ctx, events.Event{
		Type: eventType,
		Payload: map[string]any{
			"appointment_id":  appt.ID.String(),
			"patient_id":      appt.PatientID.String(),
			"practitioner_id": appt.PractitionerID.String(),
			"date":            appt.Date,
			"hour":            appt.Hour,
			"status":          string(appt.Status),
		},
	})
	if err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).
			Str("appointment_id", appt.ID.String()).Msg("event publish failed")
	}
}
