package persistence

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

//go:embed migrations
var migrationFiles embed.FS

// migration is one numbered schema step, read from the
// {version}_{name}.up.sql / .down.sql pair of a dialect directory.
type migration struct {
	version string
	name    string
	up      string
	down    string
}

// Migrator applies the embedded schema of one SQL dialect and records the
// applied versions in schema_migrations.
type Migrator struct {
	db         *sqlx.DB
	migrations []migration
	logger     zerolog.Logger
}

// NewMigrator loads the migrations embedded for dialect ("sqlite" or
// "postgres").
func NewMigrator(db *sqlx.DB, dialect string, logger zerolog.Logger) (*Migrator, error) {
	migrations, err := loadMigrations(path.Join("migrations", dialect))
	if err != nil {
		return nil, fmt.Errorf("no migrations for dialect %q: %w", dialect, err)
	}
	return &Migrator{
		db:         db,
		migrations: migrations,
		logger:     logger.With().Str("dialect", dialect).Logger(),
	}, nil
}

func loadMigrations(dir string) ([]migration, error) {
	entries, err := fs.ReadDir(migrationFiles, dir)
	if err != nil {
		return nil, err
	}

	var out []migration
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".up.sql")
		if e.IsDir() || !ok {
			continue
		}
		up, err := fs.ReadFile(migrationFiles, path.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		down, err := fs.ReadFile(migrationFiles, path.Join(dir, name+".down.sql"))
		if err != nil {
			return nil, fmt.Errorf("%s has no down migration: %w", e.Name(), err)
		}
		version, _, _ := strings.Cut(name, "_")
		out = append(out, migration{version: version, name: name, up: string(up), down: string(down)})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s is empty", dir)
	}

	slices.SortFunc(out, func(a, b migration) int { return strings.Compare(a.version, b.version) })
	return out, nil
}

// Up applies every migration not yet recorded, oldest first, each in its
// own transaction.
func (m *Migrator) Up(ctx context.Context) error {
	applied, err := m.Applied(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if slices.Contains(applied, mig.version) {
			continue
		}
		err := m.inTx(ctx, mig.up,
			`INSERT INTO schema_migrations (version, filename) VALUES (?, ?)`,
			mig.version, mig.name+".up.sql")
		if err != nil {
			return fmt.Errorf("migration %s: %w", mig.name, err)
		}
		m.logger.Info().Str("version", mig.version).Str("migration", mig.name).Msg("applied migration")
	}
	return nil
}

// Down rolls back the newest applied migration. An empty schema is not an
// error.
func (m *Migrator) Down(ctx context.Context) error {
	applied, err := m.Applied(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		m.logger.Info().Msg("no migrations to roll back")
		return nil
	}

	latest := applied[len(applied)-1]
	i := slices.IndexFunc(m.migrations, func(mig migration) bool { return mig.version == latest })
	if i < 0 {
		return fmt.Errorf("applied version %s has no embedded migration", latest)
	}
	mig := m.migrations[i]

	if err := m.inTx(ctx, mig.down, `DELETE FROM schema_migrations WHERE version = ?`, mig.version); err != nil {
		return fmt.Errorf("roll back %s: %w", mig.name, err)
	}
	m.logger.Info().Str("version", mig.version).Str("migration", mig.name).Msg("rolled back migration")
	return nil
}

// Applied lists the recorded versions, oldest first.
func (m *Migrator) Applied(ctx context.Context) ([]string, error) {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			filename   TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("ensure schema_migrations: %w", err)
	}

	versions := make([]string, 0, len(m.migrations))
	if err := m.db.SelectContext(ctx, &versions, `SELECT version FROM schema_migrations ORDER BY version`); err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	return versions, nil
}

// inTx runs a migration script and its bookkeeping statement atomically.
func (m *Migrator) inTx(ctx context.Context, script, record string, args ...any) error {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(record), args...); err != nil {
		return err
	}
	return tx.Commit()
}
