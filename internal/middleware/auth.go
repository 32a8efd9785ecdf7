package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"rendezvous-api/internal/auth"
)

const (
	msgMissingToken = "Token manquant"
	msgBadToken     = "Token invalide ou expiré"
)

// Verifier turns a raw bearer token into an identity.
type Verifier interface {
	Verify(raw string) (auth.Identity, error)
}

// bearer extracts the token from an "Authorization: Bearer <jwt>" value.
func bearer(header string) string {
	scheme, tok, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}

// Auth rejects requests without a valid bearer token and stores the
// verified identity in the request context.
func Auth(v Verifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearer(r.Header.Get("Authorization"))
			if raw == "" {
				unauthorized(w, msgMissingToken)
				return
			}
			id, err := v.Verify(raw)
			if err != nil {
				unauthorized(w, msgBadToken)
				return
			}
			setLogEmail(r.Context(), id.Email)
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}

// UnaryAuth is the gRPC counterpart of Auth. Methods listed in open skip it.
func UnaryAuth(v Verifier, open ...string) grpc.UnaryServerInterceptor {
	skip := make(map[string]bool, len(open))
	for _, m := range open {
		skip[m] = true
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if skip[info.FullMethod] {
			return next(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, msgMissingToken)
		}
		raw := ""
		if vals := md.Get("authorization"); len(vals) > 0 {
			raw = bearer(vals[0])
		}
		if raw == "" {
			return nil, status.Error(codes.Unauthenticated, msgMissingToken)
		}

		id, err := v.Verify(raw)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, msgBadToken)
		}
		return next(auth.WithIdentity(ctx, id), req)
	}
}
