//go:build sqlite
// +build sqlite

package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"remindbot/internal/config"
	"remindbot/internal/dates"
	"remindbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// sqliteBlob keeps the collection, state and dated backups in one database
// file. The mirror copy is a file-driver concept and does not apply here;
// the database itself is the single durable artifact.
type sqliteBlob struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLiteBlob(cfg config.StoreConfig, log logx.Logger) (Blob, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("store.path is required for sqlite driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	b := &sqliteBlob{db: db, log: log}
	if err := b.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func (b *sqliteBlob) migrate(ctx context.Context) error {
	sqlBytes, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = b.db.ExecContext(ctx, string(sqlBytes))
	return err
}

func (b *sqliteBlob) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *sqliteBlob) load(ctx context.Context, name string) ([]byte, bool, error) {
	var data []byte
	err := b.db.QueryRowContext(ctx, `SELECT data FROM blobs WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (b *sqliteBlob) Load(ctx context.Context) ([]byte, bool, error) {
	return b.load(ctx, "reminders")
}

func (b *sqliteBlob) Save(ctx context.Context, data []byte, today dates.CivilDate) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// INSERT OR IGNORE keeps the first snapshot of the day; reruns are no-ops.
	_, err = tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO backups(day, data, created_at)
		 SELECT ?, data, ? FROM blobs WHERE name = 'reminders'`,
		today.String(), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO blobs(name, data, updated_at) VALUES('reminders', ?, ?)
		 ON CONFLICT(name) DO UPDATE SET data=excluded.data, updated_at=excluded.updated_at`,
		data, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (b *sqliteBlob) LoadState(ctx context.Context) ([]byte, bool, error) {
	return b.load(ctx, "state")
}

func (b *sqliteBlob) SaveState(ctx context.Context, data []byte) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO blobs(name, data, updated_at) VALUES('state', ?, ?)
		 ON CONFLICT(name) DO UPDATE SET data=excluded.data, updated_at=excluded.updated_at`,
		data, time.Now().UTC().Format(time.RFC3339))
	return err
}
