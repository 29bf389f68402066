package scheduling

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinicore/internal/platform/db"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Window repository

type windowRepoPG struct {
	pool *pgxpool.Pool
}

func NewWindowRepo(pool *pgxpool.Pool) WindowRepository {
	return &windowRepoPG{pool: pool}
}

func (r *windowRepoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const windowCols = `id, opening_hour, close_hour, overtime_start_hour, created_at, updated_at`

func scanWindow(row pgx.Row) (*ScheduleWindow, error) {
	var w ScheduleWindow
	err := row.Scan(&w.ID, &w.OpeningHour, &w.CloseHour, &w.OvertimeStartHour, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrWindowNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *windowRepoPG) GetOrCreate(ctx context.Context, openingHour, closeHour string, overtimeStartHour *string) (*ScheduleWindow, error) {
	selectByHours := `SELECT ` + windowCols + ` FROM schedule_window
		WHERE opening_hour = $1 AND close_hour = $2 AND overtime_start_hour IS NOT DISTINCT FROM $3`

	w, err := scanWindow(r.conn(ctx).QueryRow(ctx, selectByHours, openingHour, closeHour, overtimeStartHour))
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, ErrWindowNotFound) {
		return nil, err
	}

	w, err = scanWindow(r.conn(ctx).QueryRow(ctx, `
		INSERT INTO schedule_window (id, opening_hour, close_hour, overtime_start_hour)
		VALUES ($1, $2, $3, $4)
		RETURNING `+windowCols,
		uuid.New(), openingHour, closeHour, overtimeStartHour))
	if err == nil {
		return w, nil
	}
	if isUniqueViolation(err) {
		// Lost the race against a concurrent insert of the same triple.
		return scanWindow(r.conn(ctx).QueryRow(ctx, selectByHours, openingHour, closeHour, overtimeStartHour))
	}
	return nil, err
}

func (r *windowRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ScheduleWindow, error) {
	return scanWindow(r.conn(ctx).QueryRow(ctx, `SELECT `+windowCols+` FROM schedule_window WHERE id = $1`, id))
}

func (r *windowRepoPG) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*ScheduleWindow, error) {
	out := make(map[uuid.UUID]*ScheduleWindow, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+windowCols+` FROM schedule_window WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var w ScheduleWindow
		if err := rows.Scan(&w.ID, &w.OpeningHour, &w.CloseHour, &w.OvertimeStartHour, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		out[w.ID] = &w
	}
	return out, rows.Err()
}

// Slot repository

type slotRepoPG struct {
	pool *pgxpool.Pool
}

func NewSlotRepo(pool *pgxpool.Pool) SlotRepository {
	return &slotRepoPG{pool: pool}
}

func (r *slotRepoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const slotCols = `id, practitioner_id, branch_id, location_id, day_of_week, duration_minutes,
	unavailable, created_at, updated_at`

func scanSlot(row pgx.Row) (*RecurringSlot, error) {
	var sl RecurringSlot
	err := row.Scan(&sl.ID, &sl.PractitionerID, &sl.BranchID, &sl.LocationID, &sl.DayOfWeek,
		&sl.DurationMinutes, &sl.Unavailable, &sl.CreatedAt, &sl.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sl, nil
}

func (r *slotRepoPG) Create(ctx context.Context, sl *RecurringSlot) error {
	sl.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO recurring_slot (id, practitioner_id, branch_id, location_id, day_of_week, duration_minutes, unavailable)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		sl.ID, sl.PractitionerID, sl.BranchID, sl.LocationID, sl.DayOfWeek, sl.DurationMinutes, sl.Unavailable,
	)
	if err != nil {
		return err
	}
	return r.replaceWindows(ctx, sl.ID, sl.WindowIDs)
}

func (r *slotRepoPG) replaceWindows(ctx context.Context, slotID uuid.UUID, windowIDs []uuid.UUID) error {
	if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM recurring_slot_window WHERE slot_id = $1`, slotID); err != nil {
		return err
	}
	for i, wid := range windowIDs {
		_, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO recurring_slot_window (slot_id, window_id, position) VALUES ($1, $2, $3)`,
			slotID, wid, i)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *slotRepoPG) loadWindows(ctx context.Context, sl *RecurringSlot) error {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT window_id FROM recurring_slot_window WHERE slot_id = $1 ORDER BY position`, sl.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	sl.WindowIDs = sl.WindowIDs[:0]
	for rows.Next() {
		var wid uuid.UUID
		if err := rows.Scan(&wid); err != nil {
			return err
		}
		sl.WindowIDs = append(sl.WindowIDs, wid)
	}
	return rows.Err()
}

func (r *slotRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*RecurringSlot, error) {
	sl, err := scanSlot(r.conn(ctx).QueryRow(ctx,
		`SELECT `+slotCols+` FROM recurring_slot WHERE id = $1 AND deleted_at IS NULL`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadWindows(ctx, sl); err != nil {
		return nil, err
	}
	return sl, nil
}

func (r *slotRepoPG) Update(ctx context.Context, sl *RecurringSlot) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE recurring_slot SET
			branch_id=$2, location_id=$3, day_of_week=$4, duration_minutes=$5,
			unavailable=$6, updated_at=NOW()
		WHERE id = $1 AND deleted_at IS NULL`,
		sl.ID, sl.BranchID, sl.LocationID, sl.DayOfWeek, sl.DurationMinutes, sl.Unavailable,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return r.replaceWindows(ctx, sl.ID, sl.WindowIDs)
}

func (r *slotRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE recurring_slot SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (r *slotRepoPG) ListByPractitioner(ctx context.Context, practitionerID uuid.UUID, limit, offset int) ([]*RecurringSlot, int, error) {
	var total int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM recurring_slot
		WHERE practitioner_id = $1 AND deleted_at IS NULL`, practitionerID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+slotCols+` FROM recurring_slot
		WHERE practitioner_id = $1 AND deleted_at IS NULL
		ORDER BY created_at LIMIT $2 OFFSET $3`,
		practitionerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	slots, err := collectSlots(rows)
	if err != nil {
		return nil, 0, err
	}
	for _, sl := range slots {
		if err := r.loadWindows(ctx, sl); err != nil {
			return nil, 0, err
		}
	}
	return slots, total, nil
}

func (r *slotRepoPG) ListActiveForDay(ctx context.Context, practitionerID uuid.UUID, day Weekday) ([]*RecurringSlot, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+slotCols+` FROM recurring_slot
		WHERE practitioner_id = $1 AND day_of_week = $2
			AND unavailable = FALSE AND deleted_at IS NULL
		ORDER BY created_at`,
		practitionerID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	slots, err := collectSlots(rows)
	if err != nil {
		return nil, err
	}
	for _, sl := range slots {
		if err := r.loadWindows(ctx, sl); err != nil {
			return nil, err
		}
	}
	return slots, nil
}

func collectSlots(rows pgx.Rows) ([]*RecurringSlot, error) {
	var slots []*RecurringSlot
	for rows.Next() {
		var sl RecurringSlot
		if err := rows.Scan(&sl.ID, &sl.PractitionerID, &sl.BranchID, &sl.LocationID, &sl.DayOfWeek,
			&sl.DurationMinutes, &sl.Unavailable, &sl.CreatedAt, &sl.UpdatedAt); err != nil {
			return nil, err
		}
		slots = append(slots, &sl)
	}
	return slots, rows.Err()
}

// Appointment repository

type appointmentRepoPG struct {
	pool *pgxpool.Pool
}

func NewAppointmentRepo(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const apptCols = `id, patient_id, practitioner_id, slot_id, window_id, date::text, hour,
	duration_minutes, status, observation, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.PractitionerID, &a.SlotID, &a.WindowID, &a.Date, &a.Hour,
		&a.DurationMinutes, &a.Status, &a.Observation, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointment (id, patient_id, practitioner_id, slot_id, window_id, date, hour,
			duration_minutes, status, observation)
		VALUES ($1,$2,$3,$4,$5,$6::date,$7,$8,$9,$10)`,
		a.ID, a.PatientID, a.PractitionerID, a.SlotID, a.WindowID, a.Date, a.Hour,
		a.DurationMinutes, a.Status, a.Observation,
	)
	if isUniqueViolation(err) {
		return ErrSlotTaken
	}
	return err
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
}

func (r *appointmentRepoPG) BookedHours(ctx context.Context, practitionerID uuid.UUID, date string) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT hour FROM appointment
		WHERE practitioner_id = $1 AND date = $2::date AND status <> $3
		ORDER BY hour`,
		practitionerID, date, StatusCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var hours []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		hours = append(hours, h)
	}
	return hours, rows.Err()
}

func (r *appointmentRepoPG) ExistsAt(ctx context.Context, practitionerID uuid.UUID, date, hour string, excludeID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointment
			WHERE practitioner_id = $1 AND date = $2::date AND hour = $3
				AND status <> $4 AND id <> $5
		)`,
		practitionerID, date, hour, StatusCancelled, excludeID).Scan(&exists)
	return exists, err
}

func (r *appointmentRepoPG) Reschedule(ctx context.Context, a *Appointment) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment SET
			slot_id=$2, window_id=$3, date=$4::date, hour=$5, duration_minutes=$6,
			observation=$7, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.SlotID, a.WindowID, a.Date, a.Hour, a.DurationMinutes, a.Observation,
	)
	if isUniqueViolation(err) {
		return ErrSlotTaken
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	// Guarded update: a concurrent transition makes this a no-op and the
	// caller re-reads to report the real state.
	return scanAppointment(r.conn(ctx).QueryRow(ctx, `
		UPDATE appointment SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING `+apptCols,
		id, from, to))
}

func (r *appointmentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var total int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM appointment WHERE patient_id = $1`, patientID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+` FROM appointment
		WHERE patient_id = $1
		ORDER BY date DESC, hour DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectAppointments(rows, total)
}

func (r *appointmentRepoPG) ListByPractitionerDate(ctx context.Context, practitionerID uuid.UUID, date string, limit, offset int) ([]*Appointment, int, error) {
	var total int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM appointment WHERE practitioner_id = $1 AND date = $2::date`,
		practitionerID, date).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+` FROM appointment
		WHERE practitioner_id = $1 AND date = $2::date
		ORDER BY hour LIMIT $3 OFFSET $4`,
		practitionerID, date, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectAppointments(rows, total)
}

func collectAppointments(rows pgx.Rows, total int) ([]*Appointment, int, error) {
	var appts []*Appointment
	for rows.Next() {
		var a Appointment
		if err := rows.Scan(&a.ID, &a.PatientID, &a.PractitionerID, &a.SlotID, &a.WindowID, &a.Date, &a.Hour,
			&a.DurationMinutes, &a.Status, &a.Observation, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, 0, err
		}
		appts = append(appts, &a)
	}
	return appts, total, rows.Err()
}
