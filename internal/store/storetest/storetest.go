// Package storetest holds the behaviour every store backend must share.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"

	"rendezvous-api/internal/model"
	"rendezvous-api/internal/store"
)

// Run exercises st against the store contract. Keys are randomised so the
// suite can run against long-lived databases.
func Run(t *testing.T, st store.Store) {
	t.Helper()
	t.Run("users", func(t *testing.T) { testUsers(t, st) })
	t.Run("appointments", func(t *testing.T) { testAppointments(t, st) })
	t.Run("concurrent slot", func(t *testing.T) { testConcurrentSlot(t, st) })
}

func unique(prefix string) string {
	return fmt.Sprintf("%s-%s@test.com", prefix, uuid.New().String()[:8])
}

func testUsers(t *testing.T, st store.Store) {
	ctx := context.Background()
	email := unique("user")

	u := &model.User{Email: email, Name: "Test User", PasswordHash: "$2a$hash", Role: model.RolePatient}
	if err := st.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}

	got, err := st.UserByEmail(ctx, email)
	if err != nil {
		t.Fatalf("user by email: %v", err)
	}
	if got.Name != "Test User" || got.PasswordHash != "$2a$hash" || got.Role != model.RolePatient {
		t.Errorf("unexpected user: %+v", got)
	}

	err = st.CreateUser(ctx, &model.User{Email: email, Name: "Other", PasswordHash: "x", Role: model.RolePatient})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}

	if _, err := st.UserByEmail(ctx, unique("nobody")); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func testAppointments(t *testing.T, st store.Store) {
	ctx := context.Background()
	patient := unique("patient")
	doc := unique("doc")

	a := &model.Appointment{
		PatientID: patient, PractitionerID: doc,
		Date: "2025-06-01", Time: "10:00", Status: model.StatusPending,
	}
	if err := st.CreateAppointment(ctx, a); err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.ID == "" {
		t.Fatal("empty id")
	}

	taken, err := st.SlotTaken(ctx, a.Slot())
	if err != nil {
		t.Fatalf("slot taken: %v", err)
	}
	if !taken {
		t.Error("expected slot to be taken")
	}

	dup := &model.Appointment{
		PatientID: unique("other"), PractitionerID: doc,
		Date: "2025-06-01", Time: "10:00", Status: model.StatusPending,
	}
	if err := st.CreateAppointment(ctx, dup); !errors.Is(err, store.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}

	b := &model.Appointment{
		PatientID: patient, PractitionerID: doc,
		Date: "2025-06-01", Time: "11:00", Status: model.StatusPending,
	}
	if err := st.CreateAppointment(ctx, b); err != nil {
		t.Fatalf("create second: %v", err)
	}

	free, err := st.SlotTaken(ctx, model.Slot{PractitionerID: doc, Date: "2025-06-02", Time: "10:00"})
	if err != nil {
		t.Fatal(err)
	}
	if free {
		t.Error("expected slot on another day to be free")
	}

	mine, err := st.AppointmentsByPatient(ctx, patient)
	if err != nil {
		t.Fatalf("by patient: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2 appointments for patient, got %d", len(mine))
	}
	if mine[0].ID != a.ID || mine[1].ID != b.ID {
		t.Errorf("unexpected order: %s, %s", mine[0].ID, mine[1].ID)
	}
	for _, m := range mine {
		if m.PatientID != patient || m.PractitionerID != doc || m.Status != model.StatusPending {
			t.Errorf("unexpected appointment: %+v", m)
		}
	}

	theirs, err := st.AppointmentsByPractitioner(ctx, doc)
	if err != nil {
		t.Fatalf("by practitioner: %v", err)
	}
	if len(theirs) != 2 {
		t.Fatalf("expected 2 appointments for practitioner, got %d", len(theirs))
	}

	none, err := st.AppointmentsByPatient(ctx, unique("empty"))
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("expected no appointments, got %d", len(none))
	}
}

func testConcurrentSlot(t *testing.T, st store.Store) {
	ctx := context.Background()
	doc := unique("doc")

	const n = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, dups int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := st.CreateAppointment(ctx, &model.Appointment{
				PatientID: fmt.Sprintf("p%d@test.com", i), PractitionerID: doc,
				Date: "2025-07-01", Time: "09:30", Status: model.StatusPending,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, store.ErrDuplicate):
				dups++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if ok != 1 || dups != n-1 {
		t.Errorf("expected 1 success and %d duplicates, got %d and %d", n-1, ok, dups)
	}
}
