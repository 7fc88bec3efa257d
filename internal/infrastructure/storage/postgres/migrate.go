package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"sage/pkg/logger"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migration is one versioned file. Files follow goose's layout so the goose
// CLI can run them as well; only the Up section is applied here.
type Migration struct {
	Version int64
	Name    string
	Up      string
}

// LoadMigrations parses the embedded migration files in version order.
func LoadMigrations() ([]Migration, error) {
	return loadMigrations(migrationFiles, "migrations")
}

func loadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	var out []Migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		prefix, _, ok := strings.Cut(e.Name(), "_")
		if !ok {
			return nil, fmt.Errorf("migration %s: missing version prefix", e.Name())
		}
		version, err := strconv.ParseInt(prefix, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("migration %s: bad version: %w", e.Name(), err)
		}
		body, err := fs.ReadFile(fsys, dir+"/"+e.Name())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		out = append(out, Migration{Version: version, Name: e.Name(), Up: upSection(string(body))})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// upSection keeps the statements between "+goose Up" and "+goose Down".
func upSection(body string) string {
	if _, after, ok := strings.Cut(body, "-- +goose Up"); ok {
		body = after
	}
	if before, _, ok := strings.Cut(body, "-- +goose Down"); ok {
		body = before
	}
	return strings.TrimSpace(body)
}

const migrationLockKey = 0x5a6e // arbitrary, shared by every sage process

// Migrate applies pending migrations, each in its own transaction, under an
// advisory lock so concurrent starts do not race.
func Migrate(ctx context.Context, txm *TxManager) (int, error) {
	migrations, err := LoadMigrations()
	if err != nil {
		return 0, err
	}

	applied := 0
	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		q := txm.GetQuerier(ctx)
		if _, err := q.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockKey); err != nil {
			return fmt.Errorf("lock migrations: %w", err)
		}
		if _, err := q.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
			version    BIGINT PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
			return fmt.Errorf("create schema_migrations: %w", err)
		}

		var current int64
		if err := q.QueryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}

		for _, m := range migrations {
			if m.Version <= current {
				continue
			}
			logger.Info(ctx, "applying migration", "version", m.Version, "name", m.Name)
			if _, err := q.Exec(ctx, m.Up); err != nil {
				return fmt.Errorf("migration %s: %w", m.Name, err)
			}
			if _, err := q.Exec(ctx, "INSERT INTO schema_migrations (version, name) VALUES ($1, $2)", m.Version, m.Name); err != nil {
				return fmt.Errorf("record migration %s: %w", m.Name, err)
			}
			applied++
		}
		return nil
	})
	return applied, err
}
