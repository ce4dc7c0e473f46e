package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/toolforge/backend/internal/infrastructure/config"
	"github.com/toolforge/backend/internal/infrastructure/logger"
	"github.com/toolforge/backend/internal/infrastructure/migration"
)

const defaultMigrationsDir = "migrations"

func main() {
	var (
		pathFlag string
		logLevel string
	)
	flag.StringVar(&pathFlag, "path", "", "migrations directory (default: ./migrations)")
	flag.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	dir, err := resolveMigrationsDir(pathFlag)
	if err != nil {
		log.Fatal("Failed to resolve migrations directory", zap.Error(err))
	}

	command, rest := args[0], args[1:]
	log.Info("Migration CLI started",
		zap.String("command", command),
		zap.String("migrations_path", dir),
	)

	if err := run(command, rest, dir, log); err != nil {
		if errors.Is(err, errUnknownCommand) {
			log.Error("Unknown command", zap.String("command", command))
			printUsage()
			os.Exit(1)
		}
		log.Fatal("Command failed", zap.String("command", command), zap.Error(err))
	}
}

// resolveMigrationsDir finds the migrations directory, preferring an explicit
// flag, then the working directory, then the location two levels above the
// executable (the layout when running a built binary from bin/).
func resolveMigrationsDir(explicit string) (string, error) {
	dir := explicit
	if dir == "" {
		dir = defaultMigrationsDir
		if _, err := os.Stat(dir); err != nil {
			if execPath, execErr := os.Executable(); execErr == nil {
				candidate := filepath.Join(filepath.Dir(execPath), "..", "..", defaultMigrationsDir)
				if _, err := os.Stat(candidate); err == nil {
					dir = candidate
				}
			}
		}
	}
	return filepath.Abs(dir)
}

var errUnknownCommand = errors.New("unknown command")

func run(command string, args []string, dir string, log *zap.Logger) error {
	// create and list work without a database
	switch command {
	case "create":
		return runCreate(args, dir, log)
	case "list":
		return runList(dir, log)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	m, err := migration.New(db, dir, log)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	switch command {
	case "up":
		return m.Up()

	case "down":
		return m.Down()

	case "step":
		n, err := intArg(args, "step count")
		if err != nil {
			return err
		}
		return m.Steps(n)

	case "goto":
		if len(args) < 1 {
			return errors.New("version required, usage: migrate goto <version>")
		}
		version, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version %q", args[0])
		}
		return m.GoTo(uint(version))

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		if version == 0 {
			log.Info("No migrations applied")
		} else {
			log.Info("Current migration version",
				zap.Uint("version", version),
				zap.Bool("dirty", dirty),
			)
		}
		return nil

	case "force":
		version, err := intArg(args, "version")
		if err != nil {
			return err
		}
		log.Warn("Forcing migration version")
		return m.Force(version)

	case "drop":
		if !hasConfirmFlag(args) {
			return errors.New("drop removes every database object; rerun as 'migrate drop -confirm'")
		}
		return m.Drop()
	}

	return errUnknownCommand
}

func runCreate(args []string, dir string, log *zap.Logger) error {
	if len(args) < 1 {
		return errors.New("migration name required, usage: migrate create <name> [description]")
	}
	description := ""
	if len(args) > 1 {
		description = args[1]
	}

	mf, err := migration.CreateMigration(dir, args[0], description)
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

func runList(dir string, log *zap.Logger) error {
	migrations, err := migration.ListMigrations(dir)
	if err != nil {
		return err
	}
	if len(migrations) == 0 {
		log.Info("No migrations found")
		return nil
	}

	log.Info("Available migrations", zap.Int("count", len(migrations)))
	for _, m := range migrations {
		fmt.Println("  -", m)
	}
	return nil
}

func intArg(args []string, what string) (int, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("%s required", what)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, args[0])
	}
	return n, nil
}

func hasConfirmFlag(args []string) bool {
	for _, arg := range args {
		if arg == "-confirm" || arg == "--confirm" {
			return true
		}
	}
	return false
}

func printUsage() {
	fmt.Println(`Toolforge database migration tool

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down                  Roll back all migrations
  step <n>              Apply n migrations (negative rolls back)
  goto <version>        Migrate to the given version
  version               Show the current migration version
  force <version>       Override the recorded version without running SQL
  drop -confirm         Drop every database object
  create <name> [desc]  Create an up/down migration file pair
  list                  List available migrations

Flags:
  -path string          Migrations directory (default: ./migrations)
  -log-level string     Log level: debug, info, warn, error (default: info)

Database settings come from config.toml or TOOLFORGE_DATABASE_* environment
variables (HOST, PORT, USER, PASSWORD, DBNAME, SSLMODE).

Examples:
  migrate up
  migrate step -1
  migrate create add_plan_records "Plan records with tier and expiry"
  migrate version`)
}
