package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinicore/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *repoPG) exists(ctx context.Context, table string, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1 AND active)`, id).Scan(&exists)
	return exists, err
}

// Branches

const branchCols = `id, name, address, city, phone, active, created_at, updated_at`

func (r *repoPG) CreateBranch(ctx context.Context, b *Branch) error {
	b.ID = uuid.New()
	b.Active = true
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO branch (id, name, address, city, phone, active)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		b.ID, b.Name, b.Address, b.City, b.Phone, b.Active,
	)
	return err
}

func (r *repoPG) GetBranch(ctx context.Context, id uuid.UUID) (*Branch, error) {
	var b Branch
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT `+branchCols+` FROM branch WHERE id = $1`, id).
		Scan(&b.ID, &b.Name, &b.Address, &b.City, &b.Phone, &b.Active, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBranchNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *repoPG) ListBranches(ctx context.Context, limit, offset int) ([]*Branch, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM branch`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+branchCols+` FROM branch ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []*Branch
	for rows.Next() {
		var b Branch
		if err := rows.Scan(&b.ID, &b.Name, &b.Address, &b.City, &b.Phone, &b.Active, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &b)
	}
	return out, total, rows.Err()
}

func (r *repoPG) BranchExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.exists(ctx, "branch", id)
}

// Locations

const locationCols = `id, branch_id, name, floor, active, created_at, updated_at`

func (r *repoPG) CreateLocation(ctx context.Context, l *Location) error {
	l.ID = uuid.New()
	l.Active = true
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO location (id, branch_id, name, floor, active)
		VALUES ($1,$2,$3,$4,$5)`,
		l.ID, l.BranchID, l.Name, l.Floor, l.Active,
	)
	return err
}

func (r *repoPG) GetLocation(ctx context.Context, id uuid.UUID) (*Location, error) {
	var l Location
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT `+locationCols+` FROM location WHERE id = $1`, id).
		Scan(&l.ID, &l.BranchID, &l.Name, &l.Floor, &l.Active, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrLocationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *repoPG) ListLocationsByBranch(ctx context.Context, branchID uuid.UUID, limit, offset int) ([]*Location, int, error) {
	var total int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM location WHERE branch_id = $1`, branchID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+locationCols+` FROM location WHERE branch_id = $1 ORDER BY name LIMIT $2 OFFSET $3`,
		branchID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []*Location
	for rows.Next() {
		var l Location
		if err := rows.Scan(&l.ID, &l.BranchID, &l.Name, &l.Floor, &l.Active, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &l)
	}
	return out, total, rows.Err()
}

func (r *repoPG) LocationExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.exists(ctx, "location", id)
}

// Practitioners

const practitionerCols = `id, first_name, last_name, specialty, email, phone, active, created_at, updated_at`

func (r *repoPG) CreatePractitioner(ctx context.Context, p *Practitioner) error {
	p.ID = uuid.New()
	p.Active = true
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO practitioner (id, first_name, last_name, specialty, email, phone, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		p.ID, p.FirstName, p.LastName, p.Specialty, p.Email, p.Phone, p.Active,
	)
	return err
}

func (r *repoPG) GetPractitioner(ctx context.Context, id uuid.UUID) (*Practitioner, error) {
	var p Practitioner
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT `+practitionerCols+` FROM practitioner WHERE id = $1`, id).
		Scan(&p.ID, &p.FirstName, &p.LastName, &p.Specialty, &p.Email, &p.Phone, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPractitionerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) ListPractitioners(ctx context.Context, limit, offset int) ([]*Practitioner, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM practitioner`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+practitionerCols+` FROM practitioner ORDER BY last_name, first_name LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []*Practitioner
	for rows.Next() {
		var p Practitioner
		if err := rows.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Specialty, &p.Email, &p.Phone, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &p)
	}
	return out, total, rows.Err()
}

func (r *repoPG) PractitionerExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.exists(ctx, "practitioner", id)
}

// Patients

const patientCols = `id, first_name, last_name, birth_date::text, email, phone, active, created_at, updated_at`

func (r *repoPG) CreatePatient(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	p.Active = true
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient (id, first_name, last_name, birth_date, email, phone, active)
		VALUES ($1,$2,$3,$4::date,$5,$6,$7)`,
		p.ID, p.FirstName, p.LastName, p.BirthDate, p.Email, p.Phone, p.Active,
	)
	return err
}

func (r *repoPG) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	var p Patient
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE id = $1`, id).
		Scan(&p.ID, &p.FirstName, &p.LastName, &p.BirthDate, &p.Email, &p.Phone, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientCols+` FROM patient ORDER BY last_name, first_name LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []*Patient
	for rows.Next() {
		var p Patient
		if err := rows.Scan(&p.ID, &p.FirstName, &p.LastName, &p.BirthDate, &p.Email, &p.Phone, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &p)
	}
	return out, total, rows.Err()
}

func (r *repoPG) PatientExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.exists(ctx, "patient", id)
}
