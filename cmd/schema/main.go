// schema creates the Postgres tables the scheduler needs, idempotently.
// Run once before the first `scheduler` start against a fresh database:
// go run ./cmd/schema
package main

import (
	"context"
	"log"
	"os"

	"github.com/ErlanBelekov/distsched/internal/store/postgres"
)

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	pool, err := postgres.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}

	log.Println("schema ready")
}
