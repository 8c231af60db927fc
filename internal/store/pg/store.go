// Package pg implements the repositories on PostgreSQL via pgxpool.
package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/camly-social/camly-idp/internal/domain/repository"
)

// Config tunes the connection pool.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MinIdleConns    int
	ConnMaxLifetime string
}

// Store owns the pool and hands out repository views over it.
type Store struct {
	pool *pgxpool.Pool
}

// New parses the DSN, applies pool tuning and connects.
func New(ctx context.Context, cfg Config) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		pcfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MinIdleConns > 0 {
		pcfg.MinConns = int32(cfg.MinIdleConns)
	}
	if cfg.ConnMaxLifetime != "" {
		if d, err := time.ParseDuration(cfg.ConnMaxLifetime); err == nil {
			pcfg.MaxConnLifetime = d
			pcfg.MaxConnIdleTime = d
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Pool exposes the underlying pool for migrations and metrics.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

func (s *Store) Clients() repository.ClientRepository   { return &clientRepo{pool: s.pool} }
func (s *Store) Codes() repository.CodeRepository       { return &codeRepo{pool: s.pool} }
func (s *Store) Tokens() repository.TokenRepository     { return &tokenRepo{pool: s.pool} }
func (s *Store) Consents() repository.ConsentRepository { return &consentRepo{pool: s.pool} }

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}
