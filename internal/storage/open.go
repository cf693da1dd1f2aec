// Package storage picks the local key-value backend named in config.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	redisad "rental_kernel/internal/adapters/redis"
	"rental_kernel/internal/domain"
	"rental_kernel/internal/shared"
	mysqlkv "rental_kernel/internal/storage/mysql"
	"rental_kernel/internal/storage/sqlite"
)

// Store is a key-value backend that owns a connection.
type Store interface {
	domain.KeyValueStore
	io.Closer
}

// Open connects to cfg.KVBackend: sqlite (default), redis or mysql.
func Open(ctx context.Context, cfg shared.Config) (Store, error) {
	switch cfg.KVBackend {
	case "", "sqlite":
		kv, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("sqlite store ready")
		return kv, nil

	case "redis":
		kv := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err := kv.Ping(ctx); err != nil {
			_ = kv.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		log.Info().Str("addr", cfg.RedisAddr).Msg("redis store ready")
		return kv, nil

	case "mysql":
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return nil, fmt.Errorf("sql.Open: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("db.Ping: %w", err)
		}
		log.Info().Msg("mysql store ready")
		return mysqlStore{KV: mysqlkv.New(db), db: db}, nil
	}
	return nil, fmt.Errorf("%w: unknown KV_BACKEND %q", domain.ErrInvalidConfiguration, cfg.KVBackend)
}

type mysqlStore struct {
	*mysqlkv.KV
	db *sql.DB
}

func (s mysqlStore) Close() error { return s.db.Close() }
