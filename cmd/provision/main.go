// Command provision creates the database schema. Every statement is
// IF NOT EXISTS, so running it against an already provisioned database is a
// no-op.
package main

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
)

//go:embed schema.sql
var schema string

func main() {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		fmt.Fprintln(os.Stderr, "provision: DATABASE_URL is not set")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "provision: connect: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, schema); err != nil {
		fmt.Fprintf(os.Stderr, "provision: apply schema: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("schema is up to date")
}
