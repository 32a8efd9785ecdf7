package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/joho/godotenv"

	"rendezvous-api/internal/store/postgres"
	"rendezvous-api/internal/store/storetest"
)

func TestPostgresStore(t *testing.T) {
	_ = godotenv.Load("../../../.env")
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	if err := postgres.Migrate(dsn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	st, err := postgres.Connect(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	storetest.Run(t, st)
}
