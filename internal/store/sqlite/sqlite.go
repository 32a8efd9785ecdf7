// Package sqlite stores users and appointments in an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"rendezvous-api/internal/model"
	"rendezvous-api/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS users(
  email TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL CHECK (role IN ('patient','practitioner')),
  created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS rendezvous(
  id TEXT PRIMARY KEY,
  patient_id TEXT NOT NULL,
  practitioner_id TEXT NOT NULL,
  slot_date TEXT NOT NULL,
  slot_time TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  created_at TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_rendezvous_slot ON rendezvous(practitioner_id, slot_date, slot_time);
CREATE INDEX IF NOT EXISTS idx_rendezvous_patient ON rendezvous(patient_id);
`

type Store struct {
	db *sqlx.DB
}

var _ store.Store = (*Store)(nil)

type userRow struct {
	Email        string `db:"email"`
	Name         string `db:"name"`
	PasswordHash string `db:"password_hash"`
	Role         string `db:"role"`
	CreatedAt    string `db:"created_at"`
}

type appointmentRow struct {
	ID             string `db:"id"`
	PatientID      string `db:"patient_id"`
	PractitionerID string `db:"practitioner_id"`
	Date           string `db:"slot_date"`
	Time           string `db:"slot_time"`
	Status         string `db:"status"`
	CreatedAt      string `db:"created_at"`
}

// Open opens (or creates) the database at dsn and ensures the schema.
// ":memory:" gives a private throwaway database.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer; also keeps ":memory:" on a single shared connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(email, name, password_hash, role, created_at) VALUES (?,?,?,?,?)`,
		u.Email, u.Name, u.PasswordHash, string(u.Role), u.CreatedAt.Format(time.RFC3339Nano),
	)
	if isConstraint(err) {
		return store.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row,
		`SELECT email, name, password_hash, role, created_at FROM users WHERE email = ?`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	created, _ := time.Parse(time.RFC3339Nano, row.CreatedAt)
	return &model.User{
		Email:        row.Email,
		Name:         row.Name,
		PasswordHash: row.PasswordHash,
		Role:         model.Role(row.Role),
		CreatedAt:    created,
	}, nil
}

func (s *Store) SlotTaken(ctx context.Context, slot model.Slot) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM rendezvous WHERE practitioner_id = ? AND slot_date = ? AND slot_time = ?)`,
		slot.PractitionerID, slot.Date, slot.Time)
	if err != nil {
		return false, fmt.Errorf("check slot: %w", err)
	}
	return exists, nil
}

func (s *Store) CreateAppointment(ctx context.Context, a *model.Appointment) error {
	id := uuid.New().String()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rendezvous(id, patient_id, practitioner_id, slot_date, slot_time, status, created_at)
		 VALUES (?,?,?,?,?,?,?)`,
		id, a.PatientID, a.PractitionerID, a.Date, a.Time, string(a.Status), a.CreatedAt.Format(time.RFC3339Nano),
	)
	if isConstraint(err) {
		return store.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	a.ID = id
	return nil
}

func (s *Store) AppointmentsByPatient(ctx context.Context, patientID string) ([]model.Appointment, error) {
	return s.list(ctx, `patient_id = ?`, patientID)
}

func (s *Store) AppointmentsByPractitioner(ctx context.Context, practitionerID string) ([]model.Appointment, error) {
	return s.list(ctx, `practitioner_id = ?`, practitionerID)
}

func (s *Store) list(ctx context.Context, where string, arg string) ([]model.Appointment, error) {
	var rows []appointmentRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, patient_id, practitioner_id, slot_date, slot_time, status, created_at
		 FROM rendezvous WHERE `+where+` ORDER BY rowid`, arg)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	out := make([]model.Appointment, 0, len(rows))
	for _, r := range rows {
		created, _ := time.Parse(time.RFC3339Nano, r.CreatedAt)
		out = append(out, model.Appointment{
			ID:             r.ID,
			PatientID:      r.PatientID,
			PractitionerID: r.PractitionerID,
			Date:           r.Date,
			Time:           r.Time,
			Status:         model.Status(r.Status),
			CreatedAt:      created,
		})
	}
	return out, nil
}

func isConstraint(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	// primary result code, when extended codes are off
	return se.Code() == sqlite3.SQLITE_CONSTRAINT
}
