package model

import "time"

type Role string

const (
	RolePatient      Role = "patient"
	RolePractitioner Role = "practitioner"
)

type Status string

// only pending is produced by the booking flow
const StatusPending Status = "pending"

type User struct {
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

type Appointment struct {
	ID             string
	PatientID      string
	PractitionerID string
	Date           string // YYYY-MM-DD
	Time           string // HH:MM
	Status         Status
	CreatedAt      time.Time
}

// Slot is the (practitioner, date, time) triple that may hold at most one appointment.
type Slot struct {
	PractitionerID string
	Date           string
	Time           string
}

func (a *Appointment) Slot() Slot {
	return Slot{PractitionerID: a.PractitionerID, Date: a.Date, Time: a.Time}
}

// Key renders the slot as a single string, used for lock and index keys.
func (s Slot) Key() string {
	return s.PractitionerID + "|" + s.Date + "|" + s.Time
}
