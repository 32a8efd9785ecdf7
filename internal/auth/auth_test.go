package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"rendezvous-api/internal/model"
)

func TestHasher(t *testing.T) {
	h := Hasher{Cost: bcrypt.MinCost}
	hash, err := h.Hash("pw")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "pw" || !strings.HasPrefix(hash, "$2") {
		t.Fatalf("unexpected hash format: %s", hash)
	}
	if err := h.Check(hash, "pw"); err != nil {
		t.Errorf("check good password: %v", err)
	}
	if err := h.Check(hash, "nope"); !errors.Is(err, ErrHashMismatch) {
		t.Errorf("expected ErrHashMismatch, got %v", err)
	}
}

func TestIssueVerify(t *testing.T) {
	j := NewJWT("s3cret", time.Minute)
	tok, err := j.Issue(Identity{Email: "a@x.com", Role: model.RolePatient})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	id, err := j.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.Email != "a@x.com" || id.Role != model.RolePatient {
		t.Errorf("got %+v", id)
	}
}

func TestVerifyRejects(t *testing.T) {
	j := NewJWT("s3cret", time.Minute)
	good, _ := j.Issue(Identity{Email: "a@x.com", Role: model.RolePatient})

	expired := NewJWT("s3cret", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, _ := expired.Issue(Identity{Email: "a@x.com", Role: model.RolePatient})

	other, _ := NewJWT("other", time.Minute).Issue(Identity{Email: "a@x.com", Role: model.RolePatient})

	// alg confusion: unsigned token
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Email: "a@x.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"garbage", "not.a.token"},
		{"expired", old},
		{"wrong secret", other},
		{"alg none", none},
		{"tampered", good[:len(good)-2] + "xx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := j.Verify(tt.raw); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNoSecret(t *testing.T) {
	j := NewJWT("", time.Minute)
	if _, err := j.Issue(Identity{Email: "a@x.com"}); !errors.Is(err, ErrNoSecret) {
		t.Errorf("issue: expected ErrNoSecret, got %v", err)
	}
	if _, err := j.Verify("x"); !errors.Is(err, ErrNoSecret) {
		t.Errorf("verify: expected ErrNoSecret, got %v", err)
	}
}

func TestIdentityContext(t *testing.T) {
	if _, err := IdentityFrom(context.Background()); !errors.Is(err, ErrNoIdentity) {
		t.Fatalf("expected ErrNoIdentity, got %v", err)
	}
	ctx := WithIdentity(context.Background(), Identity{Email: "doc1", Role: model.RolePractitioner})
	id, err := IdentityFrom(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if id.Email != "doc1" || id.Role != model.RolePractitioner {
		t.Errorf("got %+v", id)
	}
}
