package service

import (
	"context"
	"errors"
	"html"
	"log/slog"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/crypto/bcrypt"

	"rendezvous-api/internal/auth"
	"rendezvous-api/internal/metrics"
	"rendezvous-api/internal/model"
	"rendezvous-api/internal/store"
)

// bcrypt only hashes the first 72 bytes and refuses longer input.
const maxPasswordBytes = 72

type PasswordHasher interface {
	Hash(pw string) (string, error)
	Check(hash, pw string) error
}

type TokenIssuer interface {
	Issue(id auth.Identity) (string, error)
}

type LoginResult struct {
	Token string
	Name  string
	Email string
	Role  model.Role
}

type AuthService struct {
	users   store.UserStore
	hasher  PasswordHasher
	tokens  TokenIssuer
	metrics metrics.Recorder
	names   *bluemonday.Policy
}

func NewAuthService(users store.UserStore, hasher PasswordHasher, tokens TokenIssuer, rec metrics.Recorder) *AuthService {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &AuthService{
		users:   users,
		hasher:  hasher,
		tokens:  tokens,
		metrics: rec,
		names:   bluemonday.StrictPolicy(),
	}
}

// Register creates a patient account. Practitioners are provisioned out of band.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (err error) {
	defer func() { s.metrics.RecordRegistration(outcome(err)) }()

	name = s.cleanName(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		return validation(MsgRegisterRequired)
	}
	if len(password) > maxPasswordBytes {
		return validation(MsgPasswordTooLong)
	}

	if _, err := s.users.UserByEmail(ctx, email); err == nil {
		return conflict(MsgUserExists)
	} else if !errors.Is(err, store.ErrNotFound) {
		return internal("lookup user", err)
	}

	hash, err := s.hasher.Hash(password)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return validation(MsgPasswordTooLong)
	}
	if err != nil {
		return internal("hash password", err)
	}

	u := &model.User{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         model.RolePatient,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, store.ErrDuplicate) {
			return conflict(MsgUserExists)
		}
		return internal("create user", err)
	}

	slog.InfoContext(ctx, "user registered", slog.String("email", email))
	return nil
}

// Login verifies credentials and issues an identity token. Unknown email and
// wrong password fail identically.
func (s *AuthService) Login(ctx context.Context, email, password string) (res LoginResult, err error) {
	defer func() { s.metrics.RecordLogin(outcome(err)) }()

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return LoginResult{}, denied(MsgBadCredentials)
	}

	u, err := s.users.UserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return LoginResult{}, denied(MsgBadCredentials)
	}
	if err != nil {
		return LoginResult{}, internal("lookup user", err)
	}
	if err := s.hasher.Check(u.PasswordHash, password); err != nil {
		return LoginResult{}, denied(MsgBadCredentials)
	}

	tok, err := s.tokens.Issue(auth.Identity{Email: u.Email, Role: u.Role})
	if err != nil {
		return LoginResult{}, internal("issue token", err)
	}
	return LoginResult{Token: tok, Name: u.Name, Email: u.Email, Role: u.Role}, nil
}

// cleanName strips markup from a display name and keeps the plain text.
func (s *AuthService) cleanName(name string) string {
	return strings.TrimSpace(html.UnescapeString(s.names.Sanitize(name)))
}
