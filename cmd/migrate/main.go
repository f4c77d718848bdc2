package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"inkwell.blog/internal/migrate"
	"inkwell.blog/internal/obs"
	"inkwell.blog/internal/store/pg"
)

func main() {
	_ = godotenv.Load()
	log := obs.Logger()

	flags := pflag.NewFlagSet("migrate", pflag.ExitOnError)
	dsn := flags.String("dsn", os.Getenv("DATABASE_URL"), "PostgreSQL DSN")
	dir := flags.String("dir", "", "read migrations from this directory instead of the embedded set")
	table := flags.String("table", "", "bookkeeping table name")
	_ = flags.Parse(os.Args[1:])

	if *dsn == "" {
		log.Fatal("missing DSN: provide via --dsn or DATABASE_URL")
	}
	if flags.NArg() == 0 {
		log.Fatal("usage: migrate [up|down|status]")
	}

	var files fs.FS = pg.Migrations()
	if *dir != "" {
		files = os.DirFS(*dir)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	store, err := pg.Open(*dsn)
	if err != nil {
		log.WithError(err).Fatal("open db")
	}
	defer store.Close()

	mgr := migrate.NewManager(store.DB(), files, migrate.WithMigrationsTable(*table))

	cmd := flags.Arg(0)
	switch cmd {
	case "up":
		var applied []string
		applied, err = mgr.Up(ctx)
		for _, name := range applied {
			fmt.Println("applied", name)
		}
		if err == nil && len(applied) == 0 {
			fmt.Println("up to date")
		}
	case "down":
		var name string
		name, err = mgr.Down(ctx)
		if errors.Is(err, migrate.ErrNothingApplied) {
			fmt.Println("nothing to roll back")
			err = nil
		} else if err == nil {
			fmt.Println("rolled back", name)
		}
	case "status":
		var history []string
		history, err = mgr.Status(ctx)
		for _, item := range history {
			fmt.Println(item)
		}
	default:
		log.Fatalf("unknown command %q", cmd)
	}
	if err != nil {
		log.WithError(err).Fatalf("migrate %s", cmd)
	}
}
