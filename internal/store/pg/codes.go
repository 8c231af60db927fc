package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/camly-social/camly-idp/internal/domain/repository"
)

type codeRepo struct {
	pool *pgxpool.Pool
}

func (r *codeRepo) Create(ctx context.Context, in repository.CreateAuthorizationCodeInput) error {
	const q = `
		INSERT INTO oauth_authorization_codes
			(code, client_id, user_id, redirect_uri, scope,
			 code_challenge, challenge_method, state, nonce, expires_at, used)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now() + $10::interval, false)`
	_, err := r.pool.Exec(ctx, q,
		in.Code, in.ClientID, in.UserID, in.RedirectURI, in.Scope,
		in.CodeChallenge, in.ChallengeMethod, in.State, in.Nonce, in.TTL.String(),
	)
	return err
}

func (r *codeRepo) Get(ctx context.Context, code string) (*repository.AuthorizationCode, error) {
	const q = `
		SELECT code, client_id, user_id, redirect_uri, scope,
		       code_challenge, challenge_method, state, COALESCE(nonce, ''), expires_at, used
		FROM oauth_authorization_codes
		WHERE code = $1`

	var ac repository.AuthorizationCode
	err := r.pool.QueryRow(ctx, q, code).Scan(
		&ac.Code, &ac.ClientID, &ac.UserID, &ac.RedirectURI, &ac.Scope,
		&ac.CodeChallenge, &ac.ChallengeMethod, &ac.State, &ac.Nonce, &ac.ExpiresAt, &ac.Used,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ac, nil
}

func (r *codeRepo) MarkUsed(ctx context.Context, code string) error {
	// The conditional update is the single point of truth for the
	// double-redemption race: rows-affected tells us who won.
	const q = `
		UPDATE oauth_authorization_codes
		SET used = true
		WHERE code = $1 AND used = false`
	ct, err := r.pool.Exec(ctx, q, code)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrAlreadyUsed
	}
	return nil
}

func (r *codeRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	const q = `DELETE FROM oauth_authorization_codes WHERE expires_at < $1`
	ct, err := r.pool.Exec(ctx, q, before)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}
