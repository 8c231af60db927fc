package pg

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/camly-social/camly-idp/internal/domain/repository"
)

type tokenRepo struct {
	pool *pgxpool.Pool
}

func (r *tokenRepo) Create(ctx context.Context, in repository.CreateRefreshTokenInput) (string, error) {
	id := uuid.NewString()
	family := in.FamilyID
	if family == "" {
		family = uuid.NewString()
	}
	const q = `
		INSERT INTO oauth_refresh_tokens
			(id, token_hash, client_id, user_id, scope, family_id,
			 issued_at, expires_at, revoked)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now() + $7::interval, false)`
	_, err := r.pool.Exec(ctx, q, id, in.TokenHash, in.ClientID, in.UserID, in.Scope, family, in.TTL.String())
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *tokenRepo) GetByHash(ctx context.Context, tokenHash string) (*repository.RefreshToken, error) {
	const q = `
		SELECT id, token_hash, client_id, user_id, scope, family_id,
		       issued_at, expires_at, revoked, revoked_at
		FROM oauth_refresh_tokens
		WHERE token_hash = $1`

	var rt repository.RefreshToken
	err := r.pool.QueryRow(ctx, q, tokenHash).Scan(
		&rt.ID, &rt.TokenHash, &rt.ClientID, &rt.UserID, &rt.Scope, &rt.FamilyID,
		&rt.IssuedAt, &rt.ExpiresAt, &rt.Revoked, &rt.RevokedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

func (r *tokenRepo) Revoke(ctx context.Context, tokenHash string) error {
	// Conditional on revoked = false so concurrent replays of the same
	// token produce exactly one rotation winner.
	const q = `
		UPDATE oauth_refresh_tokens
		SET revoked = true, revoked_at = now()
		WHERE token_hash = $1 AND revoked = false`
	ct, err := r.pool.Exec(ctx, q, tokenHash)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrAlreadyUsed
	}
	return nil
}

func (r *tokenRepo) RevokeFamily(ctx context.Context, familyID string) (int64, error) {
	const q = `
		UPDATE oauth_refresh_tokens
		SET revoked = true, revoked_at = now()
		WHERE family_id = $1 AND revoked = false`
	ct, err := r.pool.Exec(ctx, q, familyID)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (r *tokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	const q = `
		DELETE FROM oauth_refresh_tokens
		WHERE expires_at < $1 OR (revoked = true AND revoked_at < $1)`
	ct, err := r.pool.Exec(ctx, q, before)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}
