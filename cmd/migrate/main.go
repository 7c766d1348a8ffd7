package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/grievancenet/backend/internal/infrastructure/config"
	"github.com/grievancenet/backend/internal/infrastructure/logger"
	"github.com/grievancenet/backend/internal/infrastructure/migration"
	"github.com/grievancenet/backend/migrations"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// dbCommand runs against a connected migrator; args[0] is the command name
type dbCommand func(m *migration.Migrator, log *zap.Logger, args []string) error

var dbCommands = map[string]dbCommand{
	"up":   func(m *migration.Migrator, _ *zap.Logger, _ []string) error { return m.Up() },
	"down": func(m *migration.Migrator, _ *zap.Logger, _ []string) error { return m.Down() },
	"step": func(m *migration.Migrator, _ *zap.Logger, args []string) error {
		n, err := intArg(args, "migrate step <n>")
		if err != nil {
			return err
		}
		return m.Steps(n)
	},
	"goto": func(m *migration.Migrator, _ *zap.Logger, args []string) error {
		n, err := intArg(args, "migrate goto <version>")
		if err != nil {
			return err
		}
		if n < 0 {
			return errors.New("version must not be negative")
		}
		return m.GoTo(uint(n))
	},
	"force": func(m *migration.Migrator, _ *zap.Logger, args []string) error {
		n, err := intArg(args, "migrate force <version>")
		if err != nil {
			return err
		}
		return m.Force(n)
	},
	"version": func(m *migration.Migrator, log *zap.Logger, _ []string) error {
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		if version == 0 {
			log.Info("No migrations applied")
			return nil
		}
		log.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil
	},
	"drop": func(m *migration.Migrator, _ *zap.Logger, args []string) error {
		if !slices.Contains(args[1:], "-confirm") && !slices.Contains(args[1:], "--confirm") {
			return errors.New("drop cancelled, rerun as 'migrate drop -confirm'")
		}
		return m.Drop()
	},
}

func main() {
	path := flag.String("path", "", "Migrations directory (default: migrations embedded in the binary)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:      *logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	dir := *path
	if dir != "" {
		if dir, err = filepath.Abs(dir); err != nil {
			log.Fatal("Failed to resolve migrations path", zap.Error(err))
		}
	}
	log.Debug("Migration CLI started", zap.String("command", args[0]), zap.String("migrations_path", dir))

	switch args[0] {
	case "create":
		err = create(log, dir, args)
	case "list":
		err = list(dir)
	default:
		cmd, ok := dbCommands[args[0]]
		if !ok {
			log.Error("Unknown command", zap.String("command", args[0]))
			printUsage()
			os.Exit(1)
		}
		err = withMigrator(log, dir, func(m *migration.Migrator) error { return cmd(m, log, args) })
	}
	if err != nil {
		log.Fatal("Migration command failed", zap.String("command", args[0]), zap.Error(err))
	}
}

func create(log *zap.Logger, dir string, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: migrate -path migrations create <name> [description]")
	}
	if dir == "" {
		return errors.New("create writes files and needs -path")
	}
	var description string
	if len(args) > 2 {
		description = args[2]
	}
	mf, err := migration.CreateMigration(dir, args[1], description)
	if err != nil {
		return err
	}
	log.Info("Migration created",
		zap.String("version", mf.Version),
		zap.String("up_file", mf.UpPath),
		zap.String("down_file", mf.DownPath),
	)
	return nil
}

func list(dir string) error {
	var fsys fs.FS = migrations.FS
	if dir != "" {
		fsys = os.DirFS(dir)
	}
	names, err := migration.ListMigrations(fsys)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

// withMigrator connects to the configured postgres database and runs fn
func withMigrator(log *zap.Logger, dir string, fn func(*migration.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if cfg.Database.Driver != "postgres" {
		return fmt.Errorf("SQL migrations target postgres, got driver %q; sqlite databases are created by the server", cfg.Database.Driver)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	m, err := migration.New(db, dir, log)
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}

// intArg parses args[1]. Versions are timestamps, so parse to int64 first.
func intArg(args []string, usage string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("argument required, usage: %s", usage)
	}
	n, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", args[1])
	}
	return int(n), nil
}

func printUsage() {
	fmt.Println(`GrievanceNet database migrations

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down                  Roll back all migrations
  step <n>              Apply n migrations (negative rolls back)
  goto <version>        Migrate to a specific version
  version               Show the current version
  force <version>       Set the version without running migrations (clears a dirty state)
  drop -confirm         Drop every database object
  create <name> [desc]  Write a new up/down pair (needs -path)
  list                  List available migrations

Flags:
  -path string          Migrations directory (default: embedded migrations)
  -log-level string     debug, info, warn or error (default: info)

The database comes from the GRIEVANCE_DATABASE_* environment variables,
e.g. GRIEVANCE_DATABASE_HOST and GRIEVANCE_DATABASE_DBNAME.`)
}
