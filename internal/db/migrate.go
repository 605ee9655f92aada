package db

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Migration commands accepted by RunMigrate.
const (
	MigrateUp      = "up"
	MigrateDown    = "down"
	MigrateVersion = "version"
	MigrateForce   = "force"
)

// SchemaStatus is the migration version recorded in the database.
type SchemaStatus struct {
	Version uint
	Dirty   bool
}

type migrateRequest struct {
	command string
	force   int
}

func parseMigrateRequest(command string, args []string) (migrateRequest, error) {
	switch command {
	case MigrateUp, MigrateDown, MigrateVersion:
		return migrateRequest{command: command}, nil
	case MigrateForce:
		if len(args) == 0 {
			return migrateRequest{}, errors.New("force requires a version number argument")
		}
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return migrateRequest{}, fmt.Errorf("invalid version %q: %w", args[0], err)
		}
		return migrateRequest{command: command, force: version}, nil
	default:
		return migrateRequest{}, fmt.Errorf("unknown migrate command: %s (use: up, down, version, force)", command)
	}
}

// RunMigrate runs one migration command against dsn using the .sql files under dir in migrationsFS.
func RunMigrate(logger *slog.Logger, dsn string, migrationsFS fs.FS, dir string, command string, args []string) error {
	req, err := parseMigrateRequest(command, args)
	if err != nil {
		return err
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "migrate"))

	m, err := newMigrator(logger, dsn, migrationsFS, dir)
	if err != nil {
		return err
	}
	defer m.Close()

	switch req.command {
	case MigrateUp:
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate up: %w", err)
		}
	case MigrateDown:
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate down: %w", err)
		}
	case MigrateForce:
		if err := m.Force(req.force); err != nil {
			return fmt.Errorf("migrate force: %w", err)
		}
	}

	status, err := schemaStatus(m)
	if err != nil {
		return err
	}
	logger.Info("schema status",
		slog.String("command", req.command),
		slog.Uint64("version", uint64(status.Version)),
		slog.Bool("dirty", status.Dirty),
	)
	return nil
}

func newMigrator(logger *slog.Logger, dsn string, migrationsFS fs.FS, dir string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, dsn)
	if err != nil {
		return nil, fmt.Errorf("migrate init: %w", err)
	}
	m.Log = &migrateLogger{logger: logger}
	return m, nil
}

// schemaStatus reads the current version. A database without migrations is version 0.
func schemaStatus(m *migrate.Migrate) (SchemaStatus, error) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return SchemaStatus{}, nil
	}
	if err != nil {
		return SchemaStatus{}, fmt.Errorf("migrate version: %w", err)
	}
	return SchemaStatus{Version: version, Dirty: dirty}, nil
}

type migrateLogger struct {
	logger *slog.Logger
}

func (l *migrateLogger) Printf(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}

func (l *migrateLogger) Verbose() bool {
	return false
}
