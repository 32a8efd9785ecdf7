package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"rendezvous-api/internal/auth"
	"rendezvous-api/internal/lock"
	"rendezvous-api/internal/metrics"
	"rendezvous-api/internal/model"
	"rendezvous-api/internal/store"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

type CreateInput struct {
	MedecinID string
	Date      string
	Time      string
}

type AppointmentService struct {
	appts   store.AppointmentStore
	locker  lock.Locker
	metrics metrics.Recorder
}

func NewAppointmentService(appts store.AppointmentStore, locker lock.Locker, rec metrics.Recorder) *AppointmentService {
	if locker == nil {
		locker = lock.Nop{}
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &AppointmentService{appts: appts, locker: locker, metrics: rec}
}

// Create books the slot for the caller as patient and returns the new id.
func (s *AppointmentService) Create(ctx context.Context, id auth.Identity, in CreateInput) (apptID string, err error) {
	defer func() { s.metrics.RecordBooking(outcome(err)) }()

	if id.Email == "" {
		return "", denied(MsgUnauthorized)
	}
	if in.MedecinID == "" || in.Date == "" || in.Time == "" {
		return "", validation(MsgFieldsRequired)
	}
	if !validDate(in.Date) || !validTime(in.Time) {
		return "", validation(MsgBadDateTime)
	}

	slot := model.Slot{PractitionerID: in.MedecinID, Date: in.Date, Time: in.Time}
	err = s.locker.WithSlotLock(ctx, slot, func(ctx context.Context) error {
		taken, err := s.appts.SlotTaken(ctx, slot)
		if err != nil {
			return internal("check slot", err)
		}
		if taken {
			return conflict(MsgSlotTaken)
		}

		a := &model.Appointment{
			PatientID:      id.Email,
			PractitionerID: in.MedecinID,
			Date:           in.Date,
			Time:           in.Time,
			Status:         model.StatusPending,
		}
		if err := s.appts.CreateAppointment(ctx, a); err != nil {
			// unique index caught a concurrent booking the pre-check missed
			if errors.Is(err, store.ErrDuplicate) {
				return conflict(MsgSlotTaken)
			}
			return internal("create appointment", err)
		}
		apptID = a.ID
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, lock.ErrNotAcquired):
		return "", conflict(MsgSlotBusy)
	case !isServiceError(err):
		return "", internal("slot lock", err)
	default:
		return "", err
	}

	slog.InfoContext(ctx, "appointment created",
		slog.String("id", apptID),
		slog.String("patient", id.Email),
		slog.String("medecin", in.MedecinID),
	)
	return apptID, nil
}

// ListForPatient returns the caller's bookings in store order.
func (s *AppointmentService) ListForPatient(ctx context.Context, id auth.Identity) ([]model.Appointment, error) {
	if id.Email == "" {
		return nil, denied(MsgUnauthorized)
	}
	out, err := s.appts.AppointmentsByPatient(ctx, id.Email)
	if err != nil {
		return nil, internal("list patient appointments", err)
	}
	return out, nil
}

// ListForPractitioner returns bookings naming the caller as practitioner.
func (s *AppointmentService) ListForPractitioner(ctx context.Context, id auth.Identity) ([]model.Appointment, error) {
	if id.Email == "" {
		return nil, denied(MsgUnauthorized)
	}
	out, err := s.appts.AppointmentsByPractitioner(ctx, id.Email)
	if err != nil {
		return nil, internal("list practitioner appointments", err)
	}
	return out, nil
}

func validDate(s string) bool {
	if len(s) != len(dateLayout) {
		return false
	}
	_, err := time.Parse(dateLayout, s)
	return err == nil
}

// time.Parse accepts a one-digit hour, so the length is checked first
func validTime(s string) bool {
	if len(s) != len(timeLayout) {
		return false
	}
	_, err := time.Parse(timeLayout, s)
	return err == nil
}

func isServiceError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}
