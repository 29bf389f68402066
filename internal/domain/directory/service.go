package directory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateBranch(ctx context.Context, b *Branch) error {
	if b.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.repo.CreateBranch(ctx, b)
}

func (s *Service) GetBranch(ctx context.Context, id uuid.UUID) (*Branch, error) {
	return s.repo.GetBranch(ctx, id)
}

func (s *Service) ListBranches(ctx context.Context, limit, offset int) ([]*Branch, int, error) {
	return s.repo.ListBranches(ctx, limit, offset)
}

func (s *Service) CreateLocation(ctx context.Context, l *Location) error {
	if l.Name == "" {
		return fmt.Errorf("name is required")
	}
	ok, err := s.repo.BranchExists(ctx, l.BranchID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrBranchNotFound
	}
	return s.repo.CreateLocation(ctx, l)
}

func (s *Service) GetLocation(ctx context.Context, id uuid.UUID) (*Location, error) {
	return s.repo.GetLocation(ctx, id)
}

func (s *Service) ListLocationsByBranch(ctx context.Context, branchID uuid.UUID, limit, offset int) ([]*Location, int, error) {
	return s.repo.ListLocationsByBranch(ctx, branchID, limit, offset)
}

func (s *Service) CreatePractitioner(ctx context.Context, p *Practitioner) error {
	if p.FirstName == "" || p.LastName == "" {
		return fmt.Errorf("first_name and last_name are required")
	}
	return s.repo.CreatePractitioner(ctx, p)
}

func (s *Service) GetPractitioner(ctx context.Context, id uuid.UUID) (*Practitioner, error) {
	return s.repo.GetPractitioner(ctx, id)
}

func (s *Service) ListPractitioners(ctx context.Context, limit, offset int) ([]*Practitioner, int, error) {
	return s.repo.ListPractitioners(ctx, limit, offset)
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if p.FirstName == "" || p.LastName == "" {
		return fmt.Errorf("first_name and last_name are required")
	}
	return s.repo.CreatePatient(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetPatient(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.repo.ListPatients(ctx, limit, offset)
}

// Existence checks used by the scheduling engine.

func (s *Service) PractitionerExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.repo.PractitionerExists(ctx, id)
}

func (s *Service) PatientExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.repo.PatientExists(ctx, id)
}

func (s *Service) BranchExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.repo.BranchExists(ctx, id)
}

func (s *Service) LocationExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.repo.LocationExists(ctx, id)
}
