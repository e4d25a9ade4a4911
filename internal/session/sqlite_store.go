package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/examdesk/internal/db"
)

// SQLiteStore implements Store on the credentials key/value table.
type SQLiteStore struct {
	db  db.DBTX
	uow db.UnitOfWork
}

// NewSQLiteStore creates a store reading through conn and writing atomically through uow.
func NewSQLiteStore(conn db.DBTX, uow db.UnitOfWork) *SQLiteStore {
	return &SQLiteStore{db: conn, uow: uow}
}

func (s *SQLiteStore) Credentials(ctx context.Context) (Credentials, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM credentials WHERE key IN (?, ?)`, KeyAccessToken, KeyRefreshToken)
	if err != nil {
		return Credentials{}, fmt.Errorf("querying credentials: %w", err)
	}
	defer rows.Close()

	var c Credentials
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Credentials{}, fmt.Errorf("scanning credential: %w", err)
		}
		switch key {
		case KeyAccessToken:
			c.AccessToken = value
		case KeyRefreshToken:
			c.RefreshToken = value
		}
	}
	return c, rows.Err()
}

func (s *SQLiteStore) SaveCredentials(ctx context.Context, c Credentials) error {
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		if err := putKey(ctx, tx, KeyAccessToken, c.AccessToken); err != nil {
			return err
		}
		return putKey(ctx, tx, KeyRefreshToken, c.RefreshToken)
	})
}

func (s *SQLiteStore) User(ctx context.Context) (User, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM credentials WHERE key = ?`, KeyUser).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNoSession
	}
	if err != nil {
		return User{}, fmt.Errorf("loading cached user: %w", err)
	}

	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return User{}, fmt.Errorf("decoding cached user: %w", err)
	}
	return u, nil
}

func (s *SQLiteStore) SaveUser(ctx context.Context, u User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encoding user: %w", err)
	}
	return putKey(ctx, s.db, KeyUser, string(data))
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM credentials WHERE key IN (?, ?, ?)`,
			KeyAccessToken, KeyRefreshToken, KeyUser)
		if err != nil {
			return fmt.Errorf("clearing credentials: %w", err)
		}
		return nil
	})
}

// putKey upserts key; an empty value deletes it so absent and empty read the same.
func putKey(ctx context.Context, conn db.DBTX, key, value string) error {
	if value == "" {
		if _, err := conn.ExecContext(ctx, `DELETE FROM credentials WHERE key = ?`, key); err != nil {
			return fmt.Errorf("deleting %s: %w", key, err)
		}
		return nil
	}
	_, err := conn.ExecContext(ctx,
		`INSERT INTO credentials (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("saving %s: %w", key, err)
	}
	return nil
}
