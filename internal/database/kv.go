package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// KV stores opaque values in the kv table. It backs player sessions.
type KV struct {
	db  *DB
	now func() time.Time
}

// NewKV returns a KV over db.
func NewKV(db *DB) *KV { return &KV{db: db, now: time.Now} }

func (k *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v string
	err := k.db.QueryRowContext(ctx, `SELECT v FROM kv WHERE k = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(v), true, nil
}

func (k *KV) Set(ctx context.Context, key string, value []byte) error {
	q := k.db.dialect.Upsert("kv", []string{"k"}, []string{"v", "updated_at"})
	_, err := k.db.ExecContext(ctx, q, key, string(value), k.now().UnixMilli())
	return err
}

func (k *KV) Clear(ctx context.Context, key string) error {
	_, err := k.db.ExecContext(ctx, `DELETE FROM kv WHERE k = ?`, key)
	return err
}
