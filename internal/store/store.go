// Package store defines the persistence contract shared by every backend.
package store

import (
	"context"
	"errors"

	"rendezvous-api/internal/model"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")
)

type UserStore interface {
	// CreateUser returns ErrDuplicate when the email is already registered.
	CreateUser(ctx context.Context, u *model.User) error
	// UserByEmail returns ErrNotFound when no user matches.
	UserByEmail(ctx context.Context, email string) (*model.User, error)
}

type AppointmentStore interface {
	SlotTaken(ctx context.Context, s model.Slot) (bool, error)
	// CreateAppointment assigns a.ID. It returns ErrDuplicate when the slot
	// is already held, enforced by the backend's unique index.
	CreateAppointment(ctx context.Context, a *model.Appointment) error
	AppointmentsByPatient(ctx context.Context, patientID string) ([]model.Appointment, error)
	AppointmentsByPractitioner(ctx context.Context, practitionerID string) ([]model.Appointment, error)
}

type Store interface {
	UserStore
	AppointmentStore
	Ping(ctx context.Context) error
	Close() error
}
