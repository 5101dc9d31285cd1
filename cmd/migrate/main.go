package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/mes/backend/internal/infrastructure/config"
	"github.com/mes/backend/internal/infrastructure/logger"
	"github.com/mes/backend/internal/infrastructure/migration"
	"github.com/mes/backend/migrations"
	"go.uber.org/zap"
)

func main() {
	var (
		migrationsPath string
		configPath     string
		logLevel       string
	)

	flag.StringVar(&migrationsPath, "path", "", "Read migrations from this directory instead of the embedded set")
	flag.StringVar(&configPath, "config", "", "Path to config file (default: ./config.toml when present)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	if err := run(command, args[1:], migrationsPath, configPath, log); err != nil {
		log.Error("Migration command failed", zap.String("command", command), zap.Error(err))
		_ = logger.Sync(log)
		os.Exit(1)
	}
}

func run(command string, args []string, migrationsPath, configPath string, log *zap.Logger) error {
	// create and list only touch files
	switch command {
	case "create":
		if len(args) < 1 {
			return fmt.Errorf("migration name required: migrate create <name> [description]")
		}
		dir := migrationsPath
		if dir == "" {
			dir = "migrations"
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
			zap.Uint("version", mf.Version),
			zap.String("up_file", mf.UpPath),
			zap.String("down_file", mf.DownPath),
		)
		return nil

	case "list":
		src := source(migrationsPath)
		files := src.FS
		if src.Dir != "" {
			files = os.DirFS(src.Dir)
		}
		entries, err := migration.ListMigrations(files)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("  %06d  %s\n", e.Version, e.Name)
		}
		log.Info("Available migrations", zap.Int("count", len(entries)))
		return nil
	}

	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m, err := migration.Open(ctx, cfg.Database.DSN(), source(migrationsPath), log)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warn("Failed to close migrator", zap.Error(err))
		}
	}()

	switch command {
	case "up":
		return m.Up(ctx)

	case "down":
		return m.Down(ctx)

	case "steps":
		if len(args) < 1 {
			return fmt.Errorf("step count required: migrate steps <n>")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid step count %q", args[0])
		}
		return m.Steps(ctx, n)

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		if version == 0 {
			log.Info("No migrations applied")
			return nil
		}
		log.Info("Current migration version",
			zap.Uint("version", version),
			zap.Bool("dirty", dirty),
		)
		return nil

	case "status":
		status, err := m.Status()
		if err != nil {
			return err
		}
		for _, e := range status.Applied {
			fmt.Printf("  [x] %06d  %s\n", e.Version, e.Name)
		}
		for _, e := range status.Pending {
			fmt.Printf("  [ ] %06d  %s\n", e.Version, e.Name)
		}
		log.Info("Migration status",
			zap.Uint("version", status.Version),
			zap.Bool("dirty", status.Dirty),
			zap.Int("pending", len(status.Pending)),
		)
		return nil

	case "force":
		if len(args) < 1 {
			return fmt.Errorf("version required: migrate force <version>")
		}
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q", args[0])
		}
		return m.Force(version)

	default:
		printUsage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func source(path string) migration.Source {
	if path != "" {
		return migration.Source{Dir: path}
	}
	return migration.Source{FS: migrations.FS}
}

func printUsage() {
	fmt.Println(`MES Database Migration Tool

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down                  Roll back all migrations
  steps <n>             Apply n migrations (positive=up, negative=down)
  version               Show current migration version
  status                List applied and pending migrations
  force <version>       Set the recorded version after fixing a dirty state
  create <name> [desc]  Create a new migration file pair
  list                  List available migrations

Flags:
  -path string          Read migrations from a directory (default: embedded set)
  -config string        Config file (default: ./config.toml when present)
  -log-level string     Log level: debug, info, warn, error (default: info)

Environment Variables:
  MES_DATABASE_HOST, MES_DATABASE_PORT, MES_DATABASE_USER,
  MES_DATABASE_PASSWORD, MES_DATABASE_DBNAME, MES_DATABASE_SSLMODE

Examples:
  migrate up
  migrate steps -1
  migrate -path ./migrations create add_palm_side "Store palm side on palms"`)
}
