package lock

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestNoopLocker_RunsFunction(t *testing.T) {
	l := NewNoopLocker()

	called := false
	err := l.WithAgendaLock(context.Background(), uuid.New(), "2026-03-02", "09:00", func(ctx context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected fn to run")
	}
}

func TestNoopLocker_PropagatesError(t *testing.T) {
	l := NewNoopLocker()

	want := context.Canceled
	err := l.WithAgendaLock(context.Background(), uuid.New(), "2026-03-02", "09:00", func(ctx context.Context) error {
		return want
	})
	if err != want {
		t.Errorf("expected %v, got %v", want, err)
	}
}
