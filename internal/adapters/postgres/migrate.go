package postgres

import (
	"context"
	"embed"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// MigrationDirection selects what Migrate does.
type MigrationDirection string

const (
	MigrateUp     MigrationDirection = "up"
	MigrateDown   MigrationDirection = "down"
	MigrateStatus MigrationDirection = "status"
)

// Migrate runs the embedded goose migrations against pool.
// Status output is written to w; a nil w discards it.
func Migrate(ctx context.Context, pool *pgxpool.Pool, dir MigrationDirection, w io.Writer) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if w == nil {
		goose.SetLogger(goose.NopLogger())
	} else {
		goose.SetLogger(&writerLogger{w: w})
	}

	var err error
	switch dir {
	case MigrateUp:
		err = goose.UpContext(ctx, db, migrationsDir)
	case MigrateDown:
		err = goose.DownContext(ctx, db, migrationsDir)
	case MigrateStatus:
		err = goose.StatusContext(ctx, db, migrationsDir)
	default:
		return fmt.Errorf("unknown migration direction %q", dir)
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", dir, err)
	}
	return nil
}

type writerLogger struct {
	w io.Writer
}

func (l *writerLogger) Printf(format string, v ...any) {
	fmt.Fprintf(l.w, format+"\n", v...)
}

func (l *writerLogger) Fatalf(format string, v ...any) {
	fmt.Fprintf(l.w, format+"\n", v...)
}
