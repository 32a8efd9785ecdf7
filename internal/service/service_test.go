package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"rendezvous-api/internal/auth"
	"rendezvous-api/internal/lock"
	"rendezvous-api/internal/model"
	"rendezvous-api/internal/service"
	"rendezvous-api/internal/store"
	"rendezvous-api/internal/store/memory"
)

const secret = "test-secret"

type fixture struct {
	st    *memory.Store
	auth  *service.AuthService
	appts *service.AppointmentService
	jwt   *auth.JWT
}

func setup(t *testing.T) fixture {
	t.Helper()
	st := memory.New()
	j := auth.NewJWT(secret, time.Minute)
	return fixture{
		st:    st,
		auth:  service.NewAuthService(st, auth.Hasher{Cost: bcrypt.MinCost}, j, nil),
		appts: service.NewAppointmentService(st, nil, nil),
		jwt:   j,
	}
}

func wantKind(t *testing.T, err error, kind service.Kind, msg string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := service.KindOf(err); got != kind {
		t.Fatalf("kind = %s, want %s (%v)", got, kind, err)
	}
	if msg != "" && service.MessageOf(err) != msg {
		t.Errorf("message = %q, want %q", service.MessageOf(err), msg)
	}
}

// ----- auth -----

func TestRegisterLoginRoundTrip(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	if err := f.auth.Register(ctx, "A", "a@x.com", "pw"); err != nil {
		t.Fatalf("register: %v", err)
	}
	res, err := f.auth.Login(ctx, "a@x.com", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Role != model.RolePatient || res.Name != "A" || res.Email != "a@x.com" {
		t.Errorf("unexpected login result: %+v", res)
	}

	id, err := f.jwt.Verify(res.Token)
	if err != nil {
		t.Fatalf("token does not verify: %v", err)
	}
	if id.Email != "a@x.com" || id.Role != model.RolePatient {
		t.Errorf("token identity = %+v", id)
	}

	u, _ := f.st.UserByEmail(ctx, "a@x.com")
	if u.PasswordHash == "pw" {
		t.Error("password stored in plaintext")
	}
}

func TestRegisterValidation(t *testing.T) {
	f := setup(t)
	tests := []struct {
		name, user, email, pw string
	}{
		{"empty name", "", "a@x.com", "pw"},
		{"blank name", "   ", "a@x.com", "pw"},
		{"markup-only name", "<script>alert(1)</script>", "a@x.com", "pw"},
		{"empty email", "A", "", "pw"},
		{"empty password", "A", "a@x.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.auth.Register(context.Background(), tt.user, tt.email, tt.pw)
			wantKind(t, err, service.KindValidation, service.MsgRegisterRequired)
		})
	}
}

func TestRegisterStripsMarkupFromName(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	if err := f.auth.Register(ctx, "<b>Jean</b> O'Brien", "j@x.com", "pw"); err != nil {
		t.Fatal(err)
	}
	u, err := f.st.UserByEmail(ctx, "j@x.com")
	if err != nil {
		t.Fatal(err)
	}
	if u.Name != "Jean O'Brien" {
		t.Errorf("name = %q", u.Name)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	if err := f.auth.Register(ctx, "A", "a@x.com", "pw"); err != nil {
		t.Fatal(err)
	}
	err := f.auth.Register(ctx, "B", "a@x.com", "other")
	wantKind(t, err, service.KindConflict, service.MsgUserExists)
}

func TestRegisterPasswordLength(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	if err := f.auth.Register(ctx, "A", "max@x.com", strings.Repeat("p", 72)); err != nil {
		t.Fatalf("72-byte password: %v", err)
	}
	if _, err := f.auth.Login(ctx, "max@x.com", strings.Repeat("p", 72)); err != nil {
		t.Fatalf("login with 72-byte password: %v", err)
	}

	tests := []struct {
		name, pw string
	}{
		{"73 ascii bytes", strings.Repeat("p", 73)},
		{"37 runes over 72 bytes", strings.Repeat("é", 37)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.auth.Register(ctx, "A", "long@x.com", tt.pw)
			wantKind(t, err, service.KindValidation, service.MsgPasswordTooLong)
		})
	}
	if _, err := f.st.UserByEmail(ctx, "long@x.com"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("rejected registration was stored: %v", err)
	}
}

func TestEmailIsTrimmed(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	if err := f.auth.Register(ctx, "A", "  a@x.com\t", "pw"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.st.UserByEmail(ctx, "a@x.com"); err != nil {
		t.Fatalf("stored email not trimmed: %v", err)
	}
	err := f.auth.Register(ctx, "B", "a@x.com", "pw")
	wantKind(t, err, service.KindConflict, service.MsgUserExists)

	res, err := f.auth.Login(ctx, " a@x.com ", "pw")
	if err != nil {
		t.Fatalf("login with padded email: %v", err)
	}
	if res.Email != "a@x.com" {
		t.Errorf("email = %q", res.Email)
	}

	err = f.auth.Register(ctx, "C", "   ", "pw")
	wantKind(t, err, service.KindValidation, service.MsgRegisterRequired)
}

func TestLoginFailuresAreUniform(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	if err := f.auth.Register(ctx, "A", "a@x.com", "pw"); err != nil {
		t.Fatal(err)
	}

	_, wrongPw := f.auth.Login(ctx, "a@x.com", "nope")
	_, unknown := f.auth.Login(ctx, "b@x.com", "pw")
	_, empty := f.auth.Login(ctx, "", "")

	for _, err := range []error{wrongPw, unknown, empty} {
		wantKind(t, err, service.KindAuth, service.MsgBadCredentials)
	}
	if wrongPw.Error() != unknown.Error() {
		t.Errorf("errors differ: %q vs %q", wrongPw, unknown)
	}
}

type failingUsers struct{ store.UserStore }

func (failingUsers) UserByEmail(context.Context, string) (*model.User, error) {
	return nil, errors.New("connection reset")
}

func TestAuthStoreFailureIsInternal(t *testing.T) {
	svc := service.NewAuthService(failingUsers{}, auth.Hasher{Cost: bcrypt.MinCost}, auth.NewJWT(secret, time.Minute), nil)
	err := svc.Register(context.Background(), "A", "a@x.com", "pw")
	wantKind(t, err, service.KindInternal, service.MsgInternal)
	_, err = svc.Login(context.Background(), "a@x.com", "pw")
	wantKind(t, err, service.KindInternal, service.MsgInternal)
}

// ----- appointments -----

var patient = auth.Identity{Email: "a@x.com", Role: model.RolePatient}

func TestCreateValidation(t *testing.T) {
	f := setup(t)
	tests := []struct {
		name string
		in   service.CreateInput
		msg  string
	}{
		{"missing medecin", service.CreateInput{Date: "2025-06-01", Time: "10:00"}, service.MsgFieldsRequired},
		{"missing date", service.CreateInput{MedecinID: "doc1", Time: "10:00"}, service.MsgFieldsRequired},
		{"missing time", service.CreateInput{MedecinID: "doc1", Date: "2025-06-01"}, service.MsgFieldsRequired},
		{"invalid month", service.CreateInput{MedecinID: "doc1", Date: "2025-13-01", Time: "10:00"}, service.MsgBadDateTime},
		{"invalid day", service.CreateInput{MedecinID: "doc1", Date: "2025-02-30", Time: "10:00"}, service.MsgBadDateTime},
		{"wrong date order", service.CreateInput{MedecinID: "doc1", Date: "01-06-2025", Time: "10:00"}, service.MsgBadDateTime},
		{"short month", service.CreateInput{MedecinID: "doc1", Date: "2025-6-01", Time: "10:00"}, service.MsgBadDateTime},
		{"hour out of range", service.CreateInput{MedecinID: "doc1", Date: "2025-06-01", Time: "24:00"}, service.MsgBadDateTime},
		{"minute out of range", service.CreateInput{MedecinID: "doc1", Date: "2025-06-01", Time: "10:60"}, service.MsgBadDateTime},
		{"short hour", service.CreateInput{MedecinID: "doc1", Date: "2025-06-01", Time: "9:00"}, service.MsgBadDateTime},
		{"seconds", service.CreateInput{MedecinID: "doc1", Date: "2025-06-01", Time: "10:00:00"}, service.MsgBadDateTime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.appts.Create(context.Background(), patient, tt.in)
			wantKind(t, err, service.KindValidation, tt.msg)
		})
	}
}

func TestCreateRequiresIdentity(t *testing.T) {
	f := setup(t)
	_, err := f.appts.Create(context.Background(), auth.Identity{}, service.CreateInput{MedecinID: "doc1", Date: "2025-06-01", Time: "10:00"})
	wantKind(t, err, service.KindAuth, "")
}

func TestCreateConflictOnExactSlot(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	in := service.CreateInput{MedecinID: "doc1", Date: "2025-06-01", Time: "10:00"}

	id, err := f.appts.Create(ctx, patient, in)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if id == "" {
		t.Fatal("empty id")
	}

	_, err = f.appts.Create(ctx, auth.Identity{Email: "b@x.com", Role: model.RolePatient}, in)
	wantKind(t, err, service.KindConflict, service.MsgSlotTaken)

	in.Time = "10:30"
	if _, err := f.appts.Create(ctx, patient, in); err != nil {
		t.Fatalf("different time should succeed: %v", err)
	}

	in = service.CreateInput{MedecinID: "doc2", Date: "2025-06-01", Time: "10:00"}
	if _, err := f.appts.Create(ctx, patient, in); err != nil {
		t.Fatalf("different practitioner should succeed: %v", err)
	}
}

func TestListForPatientAndPractitioner(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	id, err := f.appts.Create(ctx, patient, service.CreateInput{MedecinID: "doc1", Date: "2025-06-01", Time: "10:00"})
	if err != nil {
		t.Fatal(err)
	}

	mine, err := f.appts.ListForPatient(ctx, patient)
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 1 || mine[0].ID != id || mine[0].PatientID != patient.Email {
		t.Fatalf("patient list = %+v", mine)
	}
	if mine[0].Status != model.StatusPending {
		t.Errorf("status = %q, want pending", mine[0].Status)
	}

	doc := auth.Identity{Email: "doc1", Role: model.RolePractitioner}
	theirs, err := f.appts.ListForPractitioner(ctx, doc)
	if err != nil {
		t.Fatal(err)
	}
	if len(theirs) != 1 || theirs[0].ID != id {
		t.Fatalf("practitioner list = %+v", theirs)
	}

	other, err := f.appts.ListForPatient(ctx, auth.Identity{Email: "z@x.com"})
	if err != nil {
		t.Fatal(err)
	}
	if len(other) != 0 {
		t.Errorf("expected empty list, got %d", len(other))
	}
}

// racyStore never sees the slot in the pre-check, so only the unique index
// can reject the second insert.
type racyStore struct{ *memory.Store }

func (racyStore) SlotTaken(context.Context, model.Slot) (bool, error) { return false, nil }

func TestCreateConflictFromUniqueIndex(t *testing.T) {
	svc := service.NewAppointmentService(racyStore{memory.New()}, nil, nil)
	ctx := context.Background()
	in := service.CreateInput{MedecinID: "doc1", Date: "2025-06-01", Time: "10:00"}

	if _, err := svc.Create(ctx, patient, in); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Create(ctx, patient, in)
	wantKind(t, err, service.KindConflict, service.MsgSlotTaken)
}

func TestConcurrentCreateSingleWinner(t *testing.T) {
	svc := service.NewAppointmentService(racyStore{memory.New()}, nil, nil)
	in := service.CreateInput{MedecinID: "doc1", Date: "2025-06-01", Time: "10:00"}

	const n = 10
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(context.Background(), patient, in)
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			if service.KindOf(err) != service.KindConflict {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Errorf("wins = %d, want 1", wins)
	}
}

type busyLocker struct{}

func (busyLocker) WithSlotLock(context.Context, model.Slot, func(context.Context) error) error {
	return lock.ErrNotAcquired
}

type brokenLocker struct{}

func (brokenLocker) WithSlotLock(context.Context, model.Slot, func(context.Context) error) error {
	return errors.New("redis: connection refused")
}

func TestCreateLockFailures(t *testing.T) {
	in := service.CreateInput{MedecinID: "doc1", Date: "2025-06-01", Time: "10:00"}

	busy := service.NewAppointmentService(memory.New(), busyLocker{}, nil)
	_, err := busy.Create(context.Background(), patient, in)
	wantKind(t, err, service.KindConflict, service.MsgSlotBusy)

	broken := service.NewAppointmentService(memory.New(), brokenLocker{}, nil)
	_, err = broken.Create(context.Background(), patient, in)
	wantKind(t, err, service.KindInternal, service.MsgInternal)
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	svc := service.NewAppointmentService(failingAppts{cause}, nil, nil)
	_, err := svc.Create(context.Background(), patient, service.CreateInput{MedecinID: "doc1", Date: "2025-06-01", Time: "10:00"})
	if !errors.Is(err, cause) {
		t.Errorf("expected wrapped cause, got %v", err)
	}
}

type failingAppts struct{ err error }

func (f failingAppts) SlotTaken(context.Context, model.Slot) (bool, error) { return false, f.err }
func (f failingAppts) CreateAppointment(context.Context, *model.Appointment) error {
	return f.err
}
func (f failingAppts) AppointmentsByPatient(context.Context, string) ([]model.Appointment, error) {
	return nil, f.err
}
func (f failingAppts) AppointmentsByPractitioner(context.Context, string) ([]model.Appointment, error) {
	return nil, f.err
}
