// Package store aggregates the persistence repositories behind a single
// data-access handle and selects the backing driver from configuration.
package store

import (
	"context"
	"fmt"

	"github.com/camly-social/camly-idp/internal/domain/repository"
	"github.com/camly-social/camly-idp/internal/store/memory"
	"github.com/camly-social/camly-idp/internal/store/pg"
)

// DataAccess exposes every repository the serving path needs.
type DataAccess interface {
	Clients() repository.ClientRepository
	Codes() repository.CodeRepository
	Tokens() repository.TokenRepository
	Consents() repository.ConsentRepository

	// Ping verifies the backend is reachable. Used by /readyz.
	Ping(ctx context.Context) error

	// Close releases the underlying pool. Idempotent.
	Close()
}

// Config selects and tunes the storage driver.
type Config struct {
	Driver string // "postgres" | "memory"
	DSN    string

	MaxOpenConns    int
	MinIdleConns    int
	ConnMaxLifetime string
}

// New builds the DataAccess for the configured driver. "memory" is meant
// for development and tests only.
func New(ctx context.Context, cfg Config) (DataAccess, error) {
	switch cfg.Driver {
	case "postgres", "":
		return pg.New(ctx, pg.Config{
			DSN:             cfg.DSN,
			MaxOpenConns:    cfg.MaxOpenConns,
			MinIdleConns:    cfg.MinIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		})
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
