// Package seed provisions practitioner accounts, which cannot self-register.
package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v7"

	"rendezvous-api/internal/model"
	"rendezvous-api/internal/store"
)

type Hasher interface {
	Hash(pw string) (string, error)
}

type Options struct {
	Count    int    // fake practitioners to create when Email is empty
	Email    string // create exactly this practitioner
	Name     string // display name for Email; faked when empty
	Password string // shared password; faked per account when empty
}

// Account is a created practitioner and the plaintext password it was given.
type Account struct {
	Email    string
	Name     string
	Password string
}

// Practitioners creates the accounts described by opts. Existing emails are
// skipped, not overwritten.
func Practitioners(ctx context.Context, users store.UserStore, h Hasher, faker *gofakeit.Faker, opts Options) ([]Account, error) {
	var want []Account
	if opts.Email != "" {
		name := opts.Name
		if name == "" {
			name = "Dr " + faker.LastName()
		}
		want = append(want, Account{Email: opts.Email, Name: name, Password: opts.Password})
	} else {
		for i := 0; i < opts.Count; i++ {
			first, last := faker.FirstName(), faker.LastName()
			want = append(want, Account{
				Email:    strings.ToLower(fmt.Sprintf("%s.%s.%d@clinique.test", first, last, faker.Number(100, 999))),
				Name:     "Dr " + first + " " + last,
				Password: opts.Password,
			})
		}
	}

	out := make([]Account, 0, len(want))
	for _, acc := range want {
		if acc.Password == "" {
			acc.Password = faker.Password(true, true, true, false, false, 14)
		}
		hash, err := h.Hash(acc.Password)
		if err != nil {
			return out, fmt.Errorf("hash password for %s: %w", acc.Email, err)
		}
		err = users.CreateUser(ctx, &model.User{
			Email:        acc.Email,
			Name:         acc.Name,
			PasswordHash: hash,
			Role:         model.RolePractitioner,
		})
		if errors.Is(err, store.ErrDuplicate) {
			continue
		}
		if err != nil {
			return out, fmt.Errorf("create %s: %w", acc.Email, err)
		}
		out = append(out, acc)
	}
	return out, nil
}
