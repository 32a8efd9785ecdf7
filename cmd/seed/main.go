package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"rendezvous-api/internal/app"
	"rendezvous-api/internal/auth"
	"rendezvous-api/internal/config"
	"rendezvous-api/internal/seed"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	count := flag.Int("count", 5, "number of fake practitioners to create")
	email := flag.String("email", "", "create a single practitioner with this email")
	name := flag.String("name", "", "display name for -email")
	password := flag.String("password", "", "password for every created account (random when empty)")
	flag.Parse()

	opts := seed.Options{Count: *count, Email: *email, Name: *name, Password: *password}
	if err := run(os.Stdout, opts); err != nil {
		log.Fatal(err)
	}
}

// run prints one tab-separated line per created account, including the ones
// created before a failure.
func run(w io.Writer, opts seed.Options) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	st, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer st.Close()

	accs, err := seed.Practitioners(ctx, st, auth.NewHasher(), gofakeit.New(uint64(time.Now().UnixNano())), opts)
	for _, acc := range accs {
		fmt.Fprintf(w, "%s\t%s\t%s\n", acc.Email, acc.Password, acc.Name)
	}
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	log.Printf("created %d practitioners in %s store", len(accs), cfg.StoreDriver)
	return nil
}
