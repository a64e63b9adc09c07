package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/fieldvisit/internal/client/migrations"
	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// InitDatabase opens the SQLite database at dsn and brings its schema up to
// date. SQLite serializes writers, so the pool is kept to one connection.
func InitDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrations.Up(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}
