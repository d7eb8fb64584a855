package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

type Migrator struct {
	db     *sqlx.DB
	logger *slog.Logger
}

func NewMigrator(db *sqlx.DB, logger *slog.Logger) *Migrator {
	return &Migrator{
		db:     db,
		logger: logger,
	}
}

// Open a migrate instance for the schema on a dedicated connection, creating the schema if needed.
//
// Closing the instance releases the connection.
func (m *Migrator) open(ctx context.Context, schemaName string) (*migrate.Migrate, error) {
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}

	quoted := pq.QuoteIdentifier(schemaName)
	if _, err := conn.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", quoted)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := conn.ExecContext(ctx, fmt.Sprintf("SET search_path TO %s", quoted)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set search path: %w", err)
	}

	dbDriver, err := postgres.WithConnection(ctx, conn, &postgres.Config{
		DatabaseName: DB_NAME,
		SchemaName:   schemaName,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	source, err := iofs.New(embeddedMigrations, "migrations")
	if err != nil {
		dbDriver.Close()
		return nil, fmt.Errorf("failed to read embedded migrations: %w", err)
	}

	instance, err := migrate.NewWithInstance("iofs", source, "postgres", dbDriver)
	if err != nil {
		source.Close()
		dbDriver.Close()
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}

	return instance, nil
}

func closeInstance(instance *migrate.Migrate) error {
	sourceErr, dbErr := instance.Close()
	return errors.Join(sourceErr, dbErr)
}

// Bring the schema up to the latest migration and return the version it is at
func (m *Migrator) Migrate(ctx context.Context, schemaName string) (uint, error) {
	instance, err := m.open(ctx, schemaName)
	if err != nil {
		return 0, fmt.Errorf("migrate %s: %w", schemaName, err)
	}
	defer closeInstance(instance)

	err = instance.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migrate %s: failed to apply migrations: %w", schemaName, err)
	}
	upToDate := errors.Is(err, migrate.ErrNoChange)

	version, dirty, err := instance.Version()
	if err != nil {
		return 0, fmt.Errorf("migrate %s: failed to read version: %w", schemaName, err)
	}
	if dirty {
		return version, fmt.Errorf("migrate %s: schema is dirty at version %d", schemaName, version)
	}

	m.logger.InfoContext(ctx, "Schema migrated", "schema", schemaName, "version", version, "alreadyUpToDate", upToDate)
	return version, nil
}

// Roll every migration back, leaving the schema empty
func (m *Migrator) Reset(ctx context.Context, schemaName string) error {
	instance, err := m.open(ctx, schemaName)
	if err != nil {
		return fmt.Errorf("reset %s: %w", schemaName, err)
	}
	defer closeInstance(instance)

	if err := instance.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("reset %s: failed to roll back migrations: %w", schemaName, err)
	}

	m.logger.InfoContext(ctx, "Schema reset", "schema", schemaName)
	return nil
}
