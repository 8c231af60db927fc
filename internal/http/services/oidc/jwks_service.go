package oidc

import (
	"context"
	"encoding/json"

	"golang.org/x/sync/singleflight"

	jwtx "github.com/camly-social/camly-idp/internal/jwt"
	"github.com/camly-social/camly-idp/internal/observability/logger"
)

// JWKSService serializes the public key set.
type JWKSService interface {
	Get(ctx context.Context) (json.RawMessage, error)
}

type jwksService struct {
	keys *jwtx.KeyMaterial
	sf   singleflight.Group
}

func NewJWKSService(keys *jwtx.KeyMaterial) JWKSService {
	return &jwksService{keys: keys}
}

func (s *jwksService) Get(ctx context.Context) (json.RawMessage, error) {
	// coalesce concurrent builds; the document only changes on rotation
	v, err, _ := s.sf.Do("jwks", func() (any, error) {
		return json.Marshal(s.keys.JWKS())
	})
	if err != nil {
		logger.From(ctx).Error("jwks marshal failed", logger.Err(err))
		return nil, err
	}
	return v.([]byte), nil
}
