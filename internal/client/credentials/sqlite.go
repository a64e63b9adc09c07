package credentials

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/fieldvisit/internal/cryptox"
	"github.com/dmitrijs2005/fieldvisit/internal/dbx"
	"github.com/dmitrijs2005/fieldvisit/internal/logging"
)

// SQLiteStore keeps the encrypted pair in the single-row credentials table.
type SQLiteStore struct {
	db  *sql.DB
	key []byte
	log logging.Logger
}

var _ Store = (*SQLiteStore)(nil)

func NewSQLiteStore(db *sql.DB, key []byte, log logging.Logger) *SQLiteStore {
	return &SQLiteStore{db: db, key: key, log: log.With("component", "credentials")}
}

func (s *SQLiteStore) Save(ctx context.Context, c Credentials) error {
	if !c.Valid() {
		return &StoreError{Op: "save", Err: ErrIncomplete}
	}

	ciphertext, nonce, err := cryptox.EncryptJSON(c, s.key)
	if err != nil {
		return &StoreError{Op: "save", Err: err}
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO credentials (id, ciphertext, nonce, updated_at) VALUES (1, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				ciphertext = excluded.ciphertext,
				nonce = excluded.nonce,
				updated_at = excluded.updated_at
		`, ciphertext, nonce, time.Now().UTC().Format(time.RFC3339Nano))
		return err
	})
	if err != nil {
		return &StoreError{Op: "save", Err: err}
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context) (Credentials, bool) {
	var ciphertext, nonce []byte
	err := s.db.QueryRowContext(ctx, `SELECT ciphertext, nonce FROM credentials WHERE id = 1`).Scan(&ciphertext, &nonce)
	if errors.Is(err, sql.ErrNoRows) {
		return Credentials{}, false
	}
	if err != nil {
		s.log.Warn(ctx, "credentials unreadable, treating as absent", "error", err)
		return Credentials{}, false
	}

	var c Credentials
	if err := cryptox.DecryptJSON(ciphertext, nonce, s.key, &c); err != nil {
		s.log.Warn(ctx, "credentials corrupt, treating as absent", "error", err)
		return Credentials{}, false
	}
	if !c.Valid() {
		s.log.Warn(ctx, "credentials incomplete, treating as absent")
		return Credentials{}, false
	}
	return c, true
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM credentials`); err != nil {
		return &StoreError{Op: "clear", Err: err}
	}
	return nil
}
