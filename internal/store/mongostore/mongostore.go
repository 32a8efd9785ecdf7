// Package mongostore keeps users and appointments as MongoDB documents in the
// users and rendezvous collections.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"

	"rendezvous-api/internal/model"
	"rendezvous-api/internal/store"
)

const defaultDatabase = "medical_app"

type Store struct {
	client *mongo.Client
	users  *mongo.Collection
	appts  *mongo.Collection
}

var _ store.Store = (*Store)(nil)

type userDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	Email     string             `bson:"email"`
	Password  string             `bson:"password"`
	Role      string             `bson:"role"`
	CreatedAt time.Time          `bson:"createdAt"`
}

type rendezvousDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	PatientID string             `bson:"patientId"`
	MedecinID string             `bson:"medecinId"`
	Date      string             `bson:"date"`
	Heure     string             `bson:"heure"`
	Status    string             `bson:"status"`
	CreatedAt time.Time          `bson:"createdAt"`
}

// Connect dials uri, pings the primary and ensures the unique indexes. The
// database is taken from the URI path, defaulting to medical_app.
func Connect(ctx context.Context, uri string) (*Store, error) {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return nil, fmt.Errorf("parse mongo uri: %w", err)
	}
	name := cs.Database
	if name == "" {
		name = defaultDatabase
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(name)
	s := &Store{
		client: client,
		users:  db.Collection("users"),
		appts:  db.Collection("rendezvous"),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("users_email_unique"),
	})
	if err != nil {
		return fmt.Errorf("users index: %w", err)
	}
	_, err = s.appts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "medecinId", Value: 1},
				{Key: "date", Value: 1},
				{Key: "heure", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("rendezvous_slot_unique"),
		},
		{Keys: bson.D{{Key: "patientId", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("rendezvous indexes: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.users.InsertOne(ctx, userDoc{
		Name:      u.Name,
		Email:     u.Email,
		Password:  u.PasswordHash,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
	})
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &model.User{
		Email:        doc.Email,
		Name:         doc.Name,
		PasswordHash: doc.Password,
		Role:         model.Role(doc.Role),
		CreatedAt:    doc.CreatedAt,
	}, nil
}

func (s *Store) SlotTaken(ctx context.Context, slot model.Slot) (bool, error) {
	n, err := s.appts.CountDocuments(ctx, bson.M{
		"medecinId": slot.PractitionerID,
		"date":      slot.Date,
		"heure":     slot.Time,
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("check slot: %w", err)
	}
	return n > 0, nil
}

func (s *Store) CreateAppointment(ctx context.Context, a *model.Appointment) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	doc := rendezvousDoc{
		ID:        primitive.NewObjectID(),
		PatientID: a.PatientID,
		MedecinID: a.PractitionerID,
		Date:      a.Date,
		Heure:     a.Time,
		Status:    string(a.Status),
		CreatedAt: a.CreatedAt,
	}
	_, err := s.appts.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	a.ID = doc.ID.Hex()
	return nil
}

func (s *Store) AppointmentsByPatient(ctx context.Context, patientID string) ([]model.Appointment, error) {
	return s.find(ctx, bson.M{"patientId": patientID})
}

func (s *Store) AppointmentsByPractitioner(ctx context.Context, practitionerID string) ([]model.Appointment, error) {
	return s.find(ctx, bson.M{"medecinId": practitionerID})
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]model.Appointment, error) {
	cur, err := s.appts.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find appointments: %w", err)
	}
	var docs []rendezvousDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode appointments: %w", err)
	}
	out := make([]model.Appointment, 0, len(docs))
	for _, d := range docs {
		out = append(out, model.Appointment{
			ID:             d.ID.Hex(),
			PatientID:      d.PatientID,
			PractitionerID: d.MedecinID,
			Date:           d.Date,
			Time:           d.Heure,
			Status:         model.Status(d.Status),
			CreatedAt:      d.CreatedAt,
		})
	}
	return out, nil
}
