// Package memory is an in-process store used by tests and local runs.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"rendezvous-api/internal/model"
	"rendezvous-api/internal/store"
)

type Store struct {
	mu    sync.RWMutex
	users map[string]model.User
	appts []model.Appointment
	slots map[string]struct{}
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users: make(map[string]model.User),
		slots: make(map[string]struct{}),
	}
}

func (s *Store) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Email]; ok {
		return store.ErrDuplicate
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	s.users[u.Email] = *u
	return nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) SlotTaken(_ context.Context, slot model.Slot) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.slots[slot.Key()]
	return ok, nil
}

func (s *Store) CreateAppointment(_ context.Context, a *model.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := a.Slot().Key()
	if _, ok := s.slots[key]; ok {
		return store.ErrDuplicate
	}
	a.ID = uuid.New().String()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	s.slots[key] = struct{}{}
	s.appts = append(s.appts, *a)
	return nil
}

func (s *Store) AppointmentsByPatient(_ context.Context, patientID string) ([]model.Appointment, error) {
	return s.filter(func(a *model.Appointment) bool { return a.PatientID == patientID }), nil
}

func (s *Store) AppointmentsByPractitioner(_ context.Context, practitionerID string) ([]model.Appointment, error) {
	return s.filter(func(a *model.Appointment) bool { return a.PractitionerID == practitionerID }), nil
}

func (s *Store) filter(keep func(*model.Appointment) bool) []model.Appointment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Appointment{}
	for i := range s.appts {
		if keep(&s.appts[i]) {
			out = append(out, s.appts[i])
		}
	}
	return out
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
