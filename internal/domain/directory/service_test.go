package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

type mockRepo struct {
	branches      map[uuid.UUID]*Branch
	locations     map[uuid.UUID]*Location
	practitioners map[uuid.UUID]*Practitioner
	patients      map[uuid.UUID]*Patient
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		branches:      make(map[uuid.UUID]*Branch),
		locations:     make(map[uuid.UUID]*Location),
		practitioners: make(map[uuid.UUID]*Practitioner),
		patients:      make(map[uuid.UUID]*Patient),
	}
}

func (m *mockRepo) CreateBranch(_ context.Context, b *Branch) error {
	b.ID = uuid.New()
	b.Active = true
	m.branches[b.ID] = b
	return nil
}

func (m *mockRepo) GetBranch(_ context.Context, id uuid.UUID) (*Branch, error) {
	b, ok := m.branches[id]
	if !ok {
		return nil, ErrBranchNotFound
	}
	return b, nil
}

func (m *mockRepo) ListBranches(_ context.Context, limit, offset int) ([]*Branch, int, error) {
	var out []*Branch
	for _, b := range m.branches {
		out = append(out, b)
	}
	return out, len(out), nil
}

func (m *mockRepo) BranchExists(_ context.Context, id uuid.UUID) (bool, error) {
	_, ok := m.branches[id]
	return ok, nil
}

func (m *mockRepo) CreateLocation(_ context.Context, l *Location) error {
	l.ID = uuid.New()
	l.Active = true
	m.locations[l.ID] = l
	return nil
}

func (m *mockRepo) GetLocation(_ context.Context, id uuid.UUID) (*Location, error) {
	l, ok := m.locations[id]
	if !ok {
		return nil, ErrLocationNotFound
	}
	return l, nil
}

func (m *mockRepo) ListLocationsByBranch(_ context.Context, branchID uuid.UUID, limit, offset int) ([]*Location, int, error) {
	var out []*Location
	for _, l := range m.locations {
		if l.BranchID == branchID {
			out = append(out, l)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) LocationExists(_ context.Context, id uuid.UUID) (bool, error) {
	_, ok := m.locations[id]
	return ok, nil
}

func (m *mockRepo) CreatePractitioner(_ context.Context, p *Practitioner) error {
	p.ID = uuid.New()
	p.Active = true
	m.practitioners[p.ID] = p
	return nil
}

func (m *mockRepo) GetPractitioner(_ context.Context, id uuid.UUID) (*Practitioner, error) {
	p, ok := m.practitioners[id]
	if !ok {
		return nil, ErrPractitionerNotFound
	}
	return p, nil
}

func (m *mockRepo) ListPractitioners(_ context.Context, limit, offset int) ([]*Practitioner, int, error) {
	var out []*Practitioner
	for _, p := range m.practitioners {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *mockRepo) PractitionerExists(_ context.Context, id uuid.UUID) (bool, error) {
	_, ok := m.practitioners[id]
	return ok, nil
}

func (m *mockRepo) CreatePatient(_ context.Context, p *Patient) error {
	p.ID = uuid.New()
	p.Active = true
	m.patients[p.ID] = p
	return nil
}

func (m *mockRepo) GetPatient(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return p, nil
}

func (m *mockRepo) ListPatients(_ context.Context, limit, offset int) ([]*Patient, int, error) {
	var out []*Patient
	for _, p := range m.patients {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *mockRepo) PatientExists(_ context.Context, id uuid.UUID) (bool, error) {
	_, ok := m.patients[id]
	return ok, nil
}

func TestCreateBranchRequiresName(t *testing.T) {
	svc := NewService(newMockRepo())
	if err := svc.CreateBranch(context.Background(), &Branch{}); err == nil {
		t.Error("expected error for missing name")
	}
	if err := svc.CreateBranch(context.Background(), &Branch{Name: "Downtown Clinic"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCreateLocationChecksBranch(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	err := svc.CreateLocation(context.Background(), &Location{BranchID: uuid.New(), Name: "Room 1"})
	if !errors.Is(err, ErrBranchNotFound) {
		t.Errorf("expected ErrBranchNotFound, got %v", err)
	}

	b := &Branch{Name: "Downtown Clinic"}
	if err := svc.CreateBranch(context.Background(), b); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := svc.CreateLocation(context.Background(), &Location{BranchID: b.ID, Name: "Room 1"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCreatePractitionerRequiresName(t *testing.T) {
	svc := NewService(newMockRepo())
	if err := svc.CreatePractitioner(context.Background(), &Practitioner{FirstName: "Ana"}); err == nil {
		t.Error("expected error for missing last name")
	}
	p := &Practitioner{FirstName: "Ana", LastName: "Ruiz"}
	if err := svc.CreatePractitioner(context.Background(), p); err != nil {
		t.Fatalf("CreatePractitioner: %v", err)
	}
	ok, err := svc.PractitionerExists(context.Background(), p.ID)
	if err != nil || !ok {
		t.Errorf("created practitioner should exist, ok=%v err=%v", ok, err)
	}
}

func TestExistenceChecks(t *testing.T) {
	svc := NewService(newMockRepo())
	for name, check := range map[string]func(context.Context, uuid.UUID) (bool, error){
		"practitioner": svc.PractitionerExists,
		"patient":      svc.PatientExists,
		"branch":       svc.BranchExists,
		"location":     svc.LocationExists,
	} {
		ok, err := check(context.Background(), uuid.New())
		if err != nil {
			t.Errorf("%s: %v", name, err)
		}
		if ok {
			t.Errorf("%s: random id should not exist", name)
		}
	}
}
