package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/camly-social/camly-idp/internal/domain/repository"
)

type consentRepo struct {
	pool *pgxpool.Pool
}

func (r *consentRepo) Upsert(ctx context.Context, userID, clientID string, scopes []string) error {
	const q = `
		INSERT INTO oauth_consents (user_id, client_id, scopes, granted_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (user_id, client_id)
		DO UPDATE SET scopes = EXCLUDED.scopes, updated_at = now()`
	_, err := r.pool.Exec(ctx, q, userID, clientID, scopes)
	return err
}

func (r *consentRepo) Get(ctx context.Context, userID, clientID string) (*repository.Consent, error) {
	const q = `
		SELECT user_id, client_id, scopes, granted_at, updated_at
		FROM oauth_consents
		WHERE user_id = $1 AND client_id = $2`

	var c repository.Consent
	err := r.pool.QueryRow(ctx, q, userID, clientID).Scan(
		&c.UserID, &c.ClientID, &c.Scopes, &c.GrantedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
