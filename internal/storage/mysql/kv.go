package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"rental_kernel/internal/adapters/observability"
)

// KV keeps local state in the kv table (migrations/001_kv.sql).
type KV struct{ db *sql.DB }

func New(db *sql.DB) *KV { return &KV{db: db} }

func (r *KV) Get(ctx context.Context, key string, dst any) (bool, error) {
	var v []byte
	err := r.db.QueryRowContext(ctx, selectKVSQL, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		observability.ObserveCache("mysql", "miss")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	observability.ObserveCache("mysql", "hit")
	if err := json.Unmarshal(v, dst); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (r *KV) Set(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	observability.ObserveCache("mysql", "set")
	_, err = r.db.ExecContext(ctx, upsertKVSQL, key, string(b))
	return err
}

func (r *KV) Del(ctx context.Context, key string) error {
	observability.ObserveCache("mysql", "del")
	_, err := r.db.ExecContext(ctx, deleteKVSQL, key)
	return err
}
