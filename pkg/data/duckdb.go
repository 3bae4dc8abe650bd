package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb/v2"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS chapters (key VARCHAR PRIMARY KEY, value BLOB NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS images (key VARCHAR PRIMARY KEY, value BLOB NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS kv (key VARCHAR PRIMARY KEY, value VARCHAR NOT NULL)`,
}

// InitDuckDB opens the database at path, creating parent directories and the
// partition tables as needed.
func InitDuckDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, err
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	return db, nil
}

// Repository is the DuckDB-backed Store. The chapters and images partitions
// are tables of the same name; kv holds the ledger slot.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func OpenRepository(path string) (*Repository, error) {
	db, err := InitDuckDB(path)
	if err != nil {
		return nil, unavailable("open "+path, err)
	}
	return &Repository{db: db}, nil
}

func table(p Partition) (string, error) {
	switch p {
	case ChaptersPartition:
		return "chapters", nil
	case ImagesPartition:
		return "images", nil
	}
	return "", invalidPartition(p)
}

func (r *Repository) Put(ctx context.Context, p Partition, key string, value []byte) error {
	t, err := table(p)
	if err != nil {
		return err
	}
	if value == nil {
		value = []byte{}
	}
	if _, err := r.db.ExecContext(ctx, `INSERT OR REPLACE INTO `+t+` (key, value) VALUES (?, ?)`, key, value); err != nil {
		return unavailable("put "+t+"/"+key, err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, p Partition, key string) ([]byte, bool, error) {
	t, err := table(p)
	if err != nil {
		return nil, false, err
	}
	var value []byte
	err = r.db.QueryRowContext(ctx, `SELECT value FROM `+t+` WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, unavailable("get "+t+"/"+key, err)
	}
	return value, true, nil
}

func (r *Repository) Keys(ctx context.Context, p Partition) ([]string, error) {
	t, err := table(p)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `SELECT key FROM `+t+` ORDER BY key`)
	if err != nil {
		return nil, unavailable("list "+t, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, unavailable("scan "+t, err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list "+t, err)
	}
	return keys, nil
}

func (r *Repository) All(ctx context.Context, p Partition) ([]Entry, error) {
	t, err := table(p)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM `+t+` ORDER BY key`)
	if err != nil {
		return nil, unavailable("get all "+t, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, unavailable("scan "+t, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("get all "+t, err)
	}
	return entries, nil
}

func (r *Repository) Delete(ctx context.Context, p Partition, key string) error {
	t, err := table(p)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM `+t+` WHERE key = ?`, key); err != nil {
		return unavailable("delete "+t+"/"+key, err)
	}
	return nil
}

// DeleteCascade removes a chapter record and all of its page blobs in one transaction.
func (r *Repository) DeleteCascade(ctx context.Context, chapterKey, imagePrefix string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, unavailable("begin cascade", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM chapters WHERE key = ?`, chapterKey)
	if err != nil {
		return false, unavailable("delete chapter "+chapterKey, err)
	}
	n, _ := res.RowsAffected()

	if _, err := tx.ExecContext(ctx, `DELETE FROM images WHERE starts_with(key, ?)`, imagePrefix); err != nil {
		return false, unavailable("delete images "+imagePrefix, err)
	}

	if err := tx.Commit(); err != nil {
		return false, unavailable("commit cascade", err)
	}
	return n > 0, nil
}

func (r *Repository) GetValue(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable("get kv/"+key, err)
	}
	return value, true, nil
}

func (r *Repository) SetValue(ctx context.Context, key, value string) error {
	if _, err := r.db.ExecContext(ctx, `INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)`, key, value); err != nil {
		return unavailable("set kv/"+key, err)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}
