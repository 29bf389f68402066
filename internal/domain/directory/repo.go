package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrBranchNotFound       = errors.New("branch not found")
	ErrLocationNotFound     = errors.New("location not found")
	ErrPractitionerNotFound = errors.New("practitioner not found")
	ErrPatientNotFound      = errors.New("patient not found")
)

type Repository interface {
	CreateBranch(ctx context.Context, b *Branch) error
	GetBranch(ctx context.Context, id uuid.UUID) (*Branch, error)
	ListBranches(ctx context.Context, limit, offset int) ([]*Branch, int, error)
	BranchExists(ctx context.Context, id uuid.UUID) (bool, error)

	CreateLocation(ctx context.Context, l *Location) error
	GetLocation(ctx context.Context, id uuid.UUID) (*Location, error)
	ListLocationsByBranch(ctx context.Context, branchID uuid.UUID, limit, offset int) ([]*Location, int, error)
	LocationExists(ctx context.Context, id uuid.UUID) (bool, error)

	CreatePractitioner(ctx context.Context, p *Practitioner) error
	GetPractitioner(ctx context.Context, id uuid.UUID) (*Practitioner, error)
	ListPractitioners(ctx context.Context, limit, offset int) ([]*Practitioner, int, error)
	PractitionerExists(ctx context.Context, id uuid.UUID) (bool, error)

	CreatePatient(ctx context.Context, p *Patient) error
	GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error)
	ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error)
	PatientExists(ctx context.Context, id uuid.UUID) (bool, error)
}
