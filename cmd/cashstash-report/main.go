package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"cashstash/internal/backend"
	"cashstash/internal/cli"
	"cashstash/internal/config"
)

func main() {
	userID := flag.String("user", "", "user id to report on")
	email := flag.String("email", "", "look the user up by email instead of id")
	asJSON := flag.Bool("json", false, "print the report as JSON")
	flag.Parse()

	if *userID == "" && *email == "" {
		fmt.Fprintln(os.Stderr, "one of --user or --email is required")
		os.Exit(1)
	}

	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	// Read-only: no broker, no lock.
	cfg := config.Load()
	cfg.AMQPURL = ""
	cfg.BalanceGuard = config.GuardAdvisory

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid backend configuration: %v\n", err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open backend: %v\n", err)
		os.Exit(1)
	}
	defer res.Cleanup()

	store := res.Backend.Store
	id, err := resolveUser(ctx, store, *userID, *email)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	r, err := buildReport(ctx, store, id, time.Now())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	write := writeText
	if *asJSON {
		write = writeJSON
	}
	if err := write(os.Stdout, r); err != nil {
		fmt.Fprintf(os.Stderr, "write report: %v\n", err)
		os.Exit(1)
	}
}
