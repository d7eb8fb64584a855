package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/matchsync/matchsync/internal/config"
)

const DB_NAME = "matchsync"

const LOCAL_CONNECTION_STRING = "user=postgres password=postgres dbname=matchsync sslmode=disable"

const MAIN_SCHEMA = "matchsync"
const TESTING_SCHEMA = "matchsync_test"

// Ingestion runs are serialised, so the pool only needs room for one run plus read-backs
const MAX_OPEN_CONNS = 4
const CONN_MAX_IDLE_TIME = 5 * time.Minute

// SQLSTATE duplicate_database
const duplicateDatabaseCode = "42P04"

func GetSchemaName(isTesting bool) string {
	if isTesting {
		return TESTING_SCHEMA
	}
	return MAIN_SCHEMA
}

func NewPostgresDatabase(ctx context.Context, connectionString string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}
	db.SetMaxOpenConns(MAX_OPEN_CONNS)
	db.SetConnMaxIdleTime(CONN_MAX_IDLE_TIME)

	if err := ensureDatabase(ctx, db, DB_NAME); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure database %s: %w", DB_NAME, err)
	}

	return db, nil
}

// Connect using the configured connection string, falling back to a local database in development
func NewPostgresDatabaseFromConfig(ctx context.Context, conf config.Config) (*sqlx.DB, error) {
	connectionString := conf.DBConnectionString()
	if connectionString == "" {
		if !conf.IsDevelopment() {
			return nil, fmt.Errorf("missing db connection string outside development")
		}
		connectionString = LOCAL_CONNECTION_STRING
	}

	return NewPostgresDatabase(ctx, connectionString)
}

func ensureDatabase(ctx context.Context, db *sqlx.DB, dbName string) error {
	var exists bool
	err := db.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", dbName)
	if err != nil {
		return fmt.Errorf("failed to look up database: %w", err)
	}
	if exists {
		return nil
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE %s", pq.QuoteIdentifier(dbName)))
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == duplicateDatabaseCode {
		// Created by another instance since the lookup
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}

	return nil
}
