package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"lightmixer/internal/mathx"
	"lightmixer/internal/persist"
)

// SQLite stores state as key/value rows in table nvs. Both keys are
// written in one transaction.
type SQLite struct {
	db        *sql.DB
	namespace string
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path, namespace string) (*SQLite, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer; avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, namespace: namespace}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLite) initialize() error {
	schema := `
	PRAGMA journal_mode = WAL;
	PRAGMA synchronous = FULL;
	CREATE TABLE IF NOT EXISTS nvs (
		namespace TEXT NOT NULL,
		key TEXT NOT NULL,
		value INTEGER NOT NULL,
		PRIMARY KEY (namespace, key)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load returns the stored state, or persist.ErrNotFound when either key is missing.
func (s *SQLite) Load(ctx context.Context) (persist.LedState, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key, value FROM nvs WHERE namespace = ? AND key IN (?, ?)",
		s.namespace, keyEnabled, keyBrightness,
	)
	if err != nil {
		return persist.LedState{}, fmt.Errorf("query state: %w", err)
	}
	defer rows.Close()

	var st persist.LedState
	var haveEn, haveVal bool
	for rows.Next() {
		var key string
		var value int64
		if err := rows.Scan(&key, &value); err != nil {
			return persist.LedState{}, fmt.Errorf("scan state: %w", err)
		}
		switch key {
		case keyEnabled:
			st.Enabled = value != 0
			haveEn = true
		case keyBrightness:
			st.Brightness = mathx.ClampLevel(value)
			haveVal = true
		}
	}
	if err := rows.Err(); err != nil {
		return persist.LedState{}, fmt.Errorf("iterate state: %w", err)
	}
	if !haveEn || !haveVal {
		return persist.LedState{}, persist.ErrNotFound
	}
	return st, nil
}

// Commit writes both keys atomically.
func (s *SQLite) Commit(ctx context.Context, st persist.LedState) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const upsert = `INSERT INTO nvs (namespace, key, value) VALUES (?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value`

	enabled := 0
	if st.Enabled {
		enabled = 1
	}
	if _, err = tx.ExecContext(ctx, upsert, s.namespace, keyEnabled, enabled); err != nil {
		return fmt.Errorf("write %s: %w", keyEnabled, err)
	}
	if _, err = tx.ExecContext(ctx, upsert, s.namespace, keyBrightness, int(st.Brightness)); err != nil {
		return fmt.Errorf("write %s: %w", keyBrightness, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Erase deletes every key in the namespace.
func (s *SQLite) Erase(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM nvs WHERE namespace = ?", s.namespace); err != nil {
		return fmt.Errorf("erase namespace: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	if err := s.db.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return err
	}
	return nil
}
