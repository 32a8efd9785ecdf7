package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"rendezvous-api/internal/model"
	"rendezvous-api/internal/store"
)

const appointmentCols = `id::text, patient_id, practitioner_id, slot_date, slot_time, status, created_at`

func (s *Store) SlotTaken(ctx context.Context, slot model.Slot) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM rendezvous
			WHERE practitioner_id = $1 AND slot_date = $2 AND slot_time = $3)`,
		slot.PractitionerID, slot.Date, slot.Time,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check slot: %w", err)
	}
	return exists, nil
}

func (s *Store) CreateAppointment(ctx context.Context, a *model.Appointment) error {
	id := uuid.New().String()
	err := s.pool.QueryRow(ctx,
		`INSERT INTO rendezvous (id, patient_id, practitioner_id, slot_date, slot_time, status)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 RETURNING created_at`,
		id, a.PatientID, a.PractitionerID, a.Date, a.Time, string(a.Status),
	).Scan(&a.CreatedAt)
	// the unique constraint catches a race the pre-check missed
	if isUniqueViolation(err) {
		return store.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	a.ID = id
	return nil
}

func (s *Store) AppointmentsByPatient(ctx context.Context, patientID string) ([]model.Appointment, error) {
	return s.list(ctx, `SELECT `+appointmentCols+` FROM rendezvous WHERE patient_id = $1 ORDER BY seq`, patientID)
}

func (s *Store) AppointmentsByPractitioner(ctx context.Context, practitionerID string) ([]model.Appointment, error) {
	return s.list(ctx, `SELECT `+appointmentCols+` FROM rendezvous WHERE practitioner_id = $1 ORDER BY seq`, practitionerID)
}

func (s *Store) list(ctx context.Context, q string, arg string) ([]model.Appointment, error) {
	rows, err := s.pool.Query(ctx, q, arg)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	out := []model.Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var (
		a      model.Appointment
		status string
	)
	err := row.Scan(&a.ID, &a.PatientID, &a.PractitionerID, &a.Date, &a.Time, &status, &a.CreatedAt)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("scan appointment: %w", err)
	}
	a.Status = model.Status(status)
	return a, nil
}
