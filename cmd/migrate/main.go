package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/biznespilot/payme-merchant/pkg/config"
	"github.com/biznespilot/payme-merchant/pkg/db"
	"github.com/biznespilot/payme-merchant/pkg/logger"
	"github.com/biznespilot/payme-merchant/pkg/migrate"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

func main() {
	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "migration command: up|down|status|version|create|validate")
	flag.StringVar(&opts.dir, "dir", "", "goose migrations directory; empty uses the migrations embedded in the binary")
	flag.StringVar(&opts.name, "name", "", "migration name (for create)")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	_ = godotenv.Load()
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	if err := run(context.Background(), logg, opts); err != nil {
		logg.Error(context.Background(), "migrate failed", err)
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", opts.cmd, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logg *logger.Logger, opts options) error {
	// create and validate never touch the database
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			return errors.New("missing -name for create")
		}
		dir := opts.dir
		if dir == "" {
			dir = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(dir, opts.name)
		if err != nil {
			return err
		}
		fmt.Println("created migration:", path)
		return nil
	case "validate":
		var err error
		if opts.dir == "" {
			err = migrate.ValidateEmbedded()
		} else {
			err = migrate.ValidateDir(opts.dir)
		}
		if err != nil {
			return err
		}
		fmt.Println("migration validation passed")
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Static:      map[string]any{"env": cfg.App.Env},
	})
	ctx = logg.WithFields(ctx, map[string]any{
		"cmd":     opts.cmd,
		"dir":     opts.dir,
		"dialect": cfg.DB.Driver,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer dbClient.Close()
	sqlDB, err := dbClient.SQL()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}

	logg.Info(ctx, "migrate ready")
	if err := apply(ctx, sqlDB, cfg.DB.Driver, opts); err != nil {
		return err
	}
	logg.Info(ctx, "migrate done")
	return nil
}

func apply(ctx context.Context, sqlDB *sql.DB, dialect string, opts options) error {
	switch opts.cmd {
	case "up", "down", "status":
		return migrate.Run(ctx, sqlDB, dialect, opts.dir, opts.cmd)
	case "version":
		if opts.version == "" {
			return errors.New("missing -version for version command")
		}
		return migrate.MigrateToVersion(ctx, sqlDB, dialect, opts.dir, opts.version)
	default:
		return fmt.Errorf("unknown -cmd value %q", opts.cmd)
	}
}
