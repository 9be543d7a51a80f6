package migrations

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"text/template"
	"time"

	"github.com/jmoiron/sqlx"
)

const templatePath = "./internal/migrations/template.txt"

type migration struct {
	version string
	done    bool
	up      func(*sqlx.Tx) error
	down    func(*sqlx.Tx) error
}

// Status reports whether one migration version has been applied.
type Status struct {
	Version string
	Applied bool
}

// Migrator applies the migrations registered by the files of this package. Applied versions
// are tracked in metadata.schema_migrations.
type Migrator struct {
	db         *sqlx.DB
	versions   []string
	migrations map[string]*migration
}

// m collects the migrations registered from init funcs.
var m = newRegistry()

func newRegistry() *Migrator {
	return &Migrator{
		versions:   []string{},
		migrations: map[string]*migration{},
	}
}

// NewMigrator prepares the bookkeeping table on db and loads which versions already ran.
func NewMigrator(db *sqlx.DB) (*Migrator, error) {
	m.db = db

	if _, err := m.db.Exec(`CREATE SCHEMA IF NOT EXISTS metadata`); err != nil {
		slog.Error("Unable to create metadata schema", slog.Any("error", err))
		return nil, err
	}

	_, err := m.db.Exec(`CREATE TABLE IF NOT EXISTS metadata.schema_migrations (
		version varchar(255)
	);`)
	if err != nil {
		slog.Error("Unable to create `schema_migrations` table", slog.Any("error", err))
		return nil, err
	}

	var applied []string
	if err := m.db.Select(&applied, "SELECT version FROM metadata.schema_migrations;"); err != nil {
		slog.Error("Unable to fetch completed migrations", slog.Any("error", err))
		return nil, err
	}
	m.markApplied(applied)

	return m, nil
}

func (m *Migrator) addMigration(mg *migration) {
	if _, ok := m.migrations[mg.version]; ok {
		panic(fmt.Sprintf("duplicate migration version %s", mg.version))
	}

	m.migrations[mg.version] = mg

	idx, _ := slices.BinarySearch(m.versions, mg.version)
	m.versions = slices.Insert(m.versions, idx, mg.version)
}

func (m *Migrator) markApplied(versions []string) {
	for _, v := range versions {
		if mg, ok := m.migrations[v]; ok {
			mg.done = true
		}
	}
}

// Status lists every known migration in version order.
func (m *Migrator) Status() []Status {
	out := make([]Status, 0, len(m.versions))
	for _, v := range m.versions {
		out = append(out, Status{Version: v, Applied: m.migrations[v].done})
	}
	return out
}

func (m *Migrator) MigrationStatus() error {
	for _, s := range m.Status() {
		state := "pending"
		if s.Applied {
			state = "completed"
		}
		slog.Info(fmt.Sprintf("Migration %s... %s", s.Version, state))
	}

	return nil
}

// CreateMigration writes an empty migration file named after the current UTC time.
func (m *Migrator) CreateMigration(title string) error {
	var out bytes.Buffer

	version := time.Now().UTC().Format("20060102150405")

	in := struct {
		Version string
		Title   string
	}{
		Version: version,
		Title:   title,
	}

	t, err := template.ParseFiles(templatePath)
	if err != nil {
		slog.Error("Unable to parse migration template", slog.Any("error", err))
		return err
	}
	if err := t.Execute(&out, in); err != nil {
		slog.Error("Unable to execute migration template", slog.Any("error", err))
		return err
	}

	name := fmt.Sprintf("./internal/migrations/%s_%s.go", version, title)
	if err := os.WriteFile(name, out.Bytes(), 0o644); err != nil {
		slog.Error("Unable to write the migration file", slog.Any("error", err))
		return err
	}

	slog.Info("Generated new migration file...", slog.String("filename", name))
	return nil
}

// pending returns up to step versions that Up would run, in order. step 0 means all.
func (m *Migrator) pending(step int) []*migration {
	var out []*migration
	for _, v := range m.versions {
		if step > 0 && len(out) == step {
			break
		}
		if mg := m.migrations[v]; !mg.done {
			out = append(out, mg)
		}
	}
	return out
}

// applied returns up to step versions that Down would revert, newest first.
func (m *Migrator) applied(step int) []*migration {
	var out []*migration
	for i := len(m.versions) - 1; i >= 0; i-- {
		if step > 0 && len(out) == step {
			break
		}
		if mg := m.migrations[m.versions[i]]; mg.done {
			out = append(out, mg)
		}
	}
	return out
}

// Up runs pending migrations in one transaction.
func (m *Migrator) Up(ctx context.Context, step int) error {
	return m.run(ctx, "up", m.pending(step), func(tx *sqlx.Tx, mg *migration) error {
		if err := mg.up(tx); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "INSERT INTO metadata.schema_migrations VALUES($1);", mg.version)
		return err
	}, true)
}

// Down reverts applied migrations, newest first, in one transaction.
func (m *Migrator) Down(ctx context.Context, step int) error {
	return m.run(ctx, "down", m.applied(step), func(tx *sqlx.Tx, mg *migration) error {
		if err := mg.down(tx); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM metadata.schema_migrations WHERE version = $1;", mg.version)
		return err
	}, false)
}

func (m *Migrator) run(ctx context.Context, direction string, batch []*migration, apply func(*sqlx.Tx, *migration) error, done bool) (err error) {
	if len(batch) == 0 {
		slog.Info("No migrations to run", slog.String("direction", direction))
		return nil
	}

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		slog.Error("Unable to start transaction to run migrations", slog.Any("error", err))
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, mg := range batch {
		l := slog.With(slog.String("version", mg.version), slog.String("direction", direction))

		l.Info("Running migration...")
		if err = apply(tx, mg); err != nil {
			l.Error("Error occurred while running migration", slog.Any("error", err))
			return err
		}
		l.Info("Finished migration...")
	}

	if err = tx.Commit(); err != nil {
		slog.Error("Unable to commit migrations", slog.Any("error", err))
		return err
	}

	for _, mg := range batch {
		mg.done = done
	}

	return nil
}
