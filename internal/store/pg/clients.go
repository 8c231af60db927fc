package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/camly-social/camly-idp/internal/domain/repository"
)

type clientRepo struct {
	pool *pgxpool.Pool
}

// RegisterClientInput is the administrative registration payload used
// by the client command. SecretHash is empty for public clients.
type RegisterClientInput struct {
	ClientID     string
	Name         string
	Type         string
	SecretHash   string
	RedirectURIs []string
	Scopes       []string
}

// RegisterClient upserts a client row, reactivating it if it was
// deactivated earlier.
func (s *Store) RegisterClient(ctx context.Context, in RegisterClientInput) error {
	const q = `
		INSERT INTO oauth_clients
			(client_id, name, client_type, secret_hash, redirect_uris, scopes, active)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, true)
		ON CONFLICT (client_id)
		DO UPDATE SET name = EXCLUDED.name,
		              client_type = EXCLUDED.client_type,
		              secret_hash = EXCLUDED.secret_hash,
		              redirect_uris = EXCLUDED.redirect_uris,
		              scopes = EXCLUDED.scopes,
		              active = true,
		              updated_at = now()`
	_, err := s.pool.Exec(ctx, q,
		in.ClientID, in.Name, in.Type, in.SecretHash, in.RedirectURIs, in.Scopes,
	)
	return err
}

func (r *clientRepo) Get(ctx context.Context, clientID string) (*repository.Client, error) {
	// active = false behaves exactly like a missing row.
	const q = `
		SELECT client_id, name, client_type, COALESCE(secret_hash, ''), redirect_uris, scopes, active
		FROM oauth_clients
		WHERE client_id = $1 AND active = true`

	var c repository.Client
	err := r.pool.QueryRow(ctx, q, clientID).Scan(
		&c.ClientID, &c.Name, &c.Type, &c.SecretHash, &c.RedirectURIs, &c.Scopes, &c.Active,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
