package db

import (
	"context"
	"fmt"
	"os"
	"regexp"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schemaPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidSchema reports whether name is safe to interpolate as a schema identifier.
func ValidSchema(name string) bool {
	return schemaPattern.MatchString(name)
}

// EnsureSchema creates the schema if needed and, when migrationsDir is set,
// applies pending migrations to it.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, schema string, migrationsDir string) (int, error) {
	if !ValidSchema(schema) {
		return 0, fmt.Errorf("invalid schema name: %s", schema)
	}

	if _, err := pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)); err != nil {
		return 0, fmt.Errorf("create schema %s: %w", schema, err)
	}

	if migrationsDir == "" {
		return 0, nil
	}
	applied, err := NewMigrator(pool, os.DirFS(migrationsDir)).Up(ctx, schema)
	if err != nil {
		return applied, fmt.Errorf("run migrations for %s: %w", schema, err)
	}
	return applied, nil
}
