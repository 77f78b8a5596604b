// Package database holds Stockly's SQLite persistence: connection setup,
// embedded goose migrations and the query functions used by the feature
// handlers.
//
// Query functions take a sqlx.ExtContext so the same function runs against
// the pool or inside a transaction opened with WithTx.
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/danielzuhad/stocking-app-sub001/apperr"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const migrationsDir = "migrations"

// Open connects to the SQLite database at path and applies pending
// migrations. SQLite allows a single writer, so the pool is capped at one
// connection.
func Open(path string) (*sqlx.DB, error) {
	db, err := Connect(path)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db, "up"); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Connect opens the database without running migrations.
func Connect(path string) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to db : %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// Migrate runs a goose command ("up", "down", "status" or "reset") against db.
func Migrate(db *sqlx.DB, command string) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(gooseLogger{zap.S()})
	if err := goose.SetDialect(string(goose.DialectSQLite3)); err != nil {
		return fmt.Errorf("setting dialect for migrations : %w", err)
	}

	var err error
	switch command {
	case "up":
		err = goose.Up(db.DB, migrationsDir)
	case "down":
		err = goose.Down(db.DB, migrationsDir)
	case "reset":
		err = goose.Reset(db.DB, migrationsDir)
	case "status":
		err = goose.Status(db.DB, migrationsDir)
	default:
		return fmt.Errorf("unknown migration command %q", command)
	}
	if err != nil {
		return fmt.Errorf("applying migration %s : %w", command, err)
	}
	return nil
}

type gooseLogger struct {
	s *zap.SugaredLogger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.s.Infof(strings.TrimSuffix(format, "\n"), v...)
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.s.Fatalf(strings.TrimSuffix(format, "\n"), v...)
}

// WithTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back on error or panic.
func WithTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		} else {
			err = tx.Commit()
			if err != nil {
				err = fmt.Errorf("failed to commit transaction: %w", err)
			}
		}
	}()

	return fn(tx)
}

func isConstraint(err error, code sqlite3.ErrNoExtended) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == code
}

// conflictOnUnique turns a UNIQUE violation into an apperr conflict with msg.
func conflictOnUnique(err error, msg string) error {
	if isConstraint(err, sqlite3.ErrConstraintUnique) || isConstraint(err, sqlite3.ErrConstraintPrimaryKey) {
		return &apperr.Error{Code: apperr.EConflict, Msg: msg, Err: err}
	}
	return err
}

// notFoundOnNoRows turns sql.ErrNoRows into an apperr not found for entity.
func notFoundOnNoRows(err error, entity string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return &apperr.Error{Code: apperr.ENotFound, Msg: entity + " not found", Err: err}
	}
	return err
}
