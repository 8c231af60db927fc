// Package app wires configuration into a runnable identity provider:
// storage, cache, signing keys, services, controllers and the HTTP server.
package app

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/camly-social/camly-idp/internal/cache"
	"github.com/camly-social/camly-idp/internal/config"
	healthctrl "github.com/camly-social/camly-idp/internal/http/controllers/health"
	oauthctrl "github.com/camly-social/camly-idp/internal/http/controllers/oauth"
	oidcctrl "github.com/camly-social/camly-idp/internal/http/controllers/oidc"
	"github.com/camly-social/camly-idp/internal/http/router"
	"github.com/camly-social/camly-idp/internal/http/server"
	oauthsvc "github.com/camly-social/camly-idp/internal/http/services/oauth"
	oidcsvc "github.com/camly-social/camly-idp/internal/http/services/oidc"
	"github.com/camly-social/camly-idp/internal/identity"
	jwtx "github.com/camly-social/camly-idp/internal/jwt"
	"github.com/camly-social/camly-idp/internal/metrics"
	"github.com/camly-social/camly-idp/internal/observability/logger"
	"github.com/camly-social/camly-idp/internal/rate"
	"github.com/camly-social/camly-idp/internal/store"
)

// App is the wired identity provider, ready to serve.
type App struct {
	Handler http.Handler
	Store   store.DataAccess
	Cache   cache.Client
	Keys    *jwtx.KeyMaterial
	Issuer  *jwtx.Issuer

	cfg       *config.Config
	srv       *server.Server
	limiterDB *redis.Client
}

// New builds every layer from configuration. Callers own Close.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.With(logger.Component("app"))

	dal, err := store.New(ctx, store.Config{
		Driver:          cfg.Storage.Driver,
		DSN:             cfg.Storage.DSN,
		MaxOpenConns:    cfg.Storage.Postgres.MaxOpenConns,
		MinIdleConns:    cfg.Storage.Postgres.MinIdleConns,
		ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("app: store: %w", err)
	}

	cc, err := cache.New(cache.Config{
		Driver:   cfg.Cache.Driver,
		Host:     cfg.Cache.Redis.Host,
		Port:     cfg.Cache.Redis.Port,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   cfg.Cache.Prefix,
	})
	if err != nil {
		dal.Close()
		return nil, fmt.Errorf("app: cache: %w", err)
	}

	keys, err := loadKeys(cfg)
	if err != nil {
		dal.Close()
		_ = cc.Close()
		return nil, err
	}

	issuer := jwtx.NewIssuer(cfg.Issuer.URL, keys)
	issuer.AccessTTL = config.Duration(cfg.Issuer.AccessTTL)
	issuer.IDTTL = config.Duration(cfg.Issuer.IDTokenTTL)

	ids, err := buildIdentity(cfg)
	if err != nil {
		dal.Close()
		_ = cc.Close()
		return nil, err
	}

	oauthServices := oauthsvc.NewServices(oauthsvc.Deps{
		Store:        dal,
		Cache:        cc,
		Issuer:       issuer,
		Identity:     ids,
		ConsentUIURL: cfg.Consent.UIURL,
		ChallengeTTL: config.Duration(cfg.Consent.ChallengeTTL),
		CodeTTL:      config.Duration(cfg.Issuer.CodeTTL),
		RefreshTTL:   config.Duration(cfg.Issuer.RefreshTTL),
	})
	oidcServices := oidcsvc.NewServices(oidcsvc.Deps{
		IssuerURL: cfg.Issuer.URL,
		Issuer:    issuer,
		Keys:      keys,
		Identity:  ids,
	})

	a := &App{
		Store:  dal,
		Cache:  cc,
		Keys:   keys,
		Issuer: issuer,
		cfg:    cfg,
	}

	var limiter rate.Limiter
	if cfg.Rate.Enabled {
		limit := cfg.Rate.Token.Limit
		window := config.Duration(cfg.Rate.Token.Window)
		if cfg.Cache.Driver == "redis" {
			a.limiterDB = redis.NewClient(&redis.Options{
				Addr:     fmt.Sprintf("%s:%d", cfg.Cache.Redis.Host, redisPort(cfg.Cache.Redis.Port)),
				Password: cfg.Cache.Redis.Password,
				DB:       cfg.Cache.Redis.DB,
			})
			limiter = rate.NewRedisLimiter(a.limiterDB, cfg.Cache.Prefix+"rl:", limit, window)
		} else {
			limiter = rate.NewMemoryLimiter(limit, window)
		}
		log.Info("token rate limiting enabled",
			zap.Int("limit", limit), zap.Duration("window", window))
	}

	_ = metrics.Register(nil)

	a.Handler = router.New(router.Deps{
		OAuth:        oauthctrl.NewControllers(oauthServices),
		OIDC:         oidcctrl.NewControllers(oidcServices),
		Health:       healthctrl.NewController(dal, cc),
		TokenLimiter: limiter,

		ConsentAPIKey:      cfg.Consent.APIKey,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
	})
	a.srv = server.New(server.Config{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     config.Duration(cfg.Server.ReadTimeout),
		WriteTimeout:    config.Duration(cfg.Server.WriteTimeout),
		ShutdownTimeout: config.Duration(cfg.Server.ShutdownTimeout),
	}, a.Handler)

	return a, nil
}

// Run serves until ctx is canceled, sweeping expired rows in the
// background when cleanup is enabled.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.Cleanup.Enabled {
		go a.sweep(ctx)
	}
	return a.srv.Run(ctx)
}

// Close releases storage, cache and limiter connections.
func (a *App) Close() {
	if a.limiterDB != nil {
		_ = a.limiterDB.Close()
	}
	_ = a.Cache.Close()
	a.Store.Close()
}

// sweep periodically deletes expired authorization codes and refresh
// tokens older than the retention window.
func (a *App) sweep(ctx context.Context) {
	interval := config.Duration(a.cfg.Cleanup.Interval)
	retention := config.Duration(a.cfg.Cleanup.Retention)
	log := logger.With(logger.Component("cleanup"))

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			SweepOnce(ctx, a.Store, retention, log)
		}
	}
}

// SweepOnce runs a single cleanup pass. Exposed for the cleanup command.
func SweepOnce(ctx context.Context, dal store.DataAccess, retention time.Duration, log *zap.Logger) {
	before := time.Now().UTC().Add(-retention)
	codes, err := dal.Codes().DeleteExpired(ctx, before)
	if err != nil {
		log.Warn("code sweep failed", logger.Err(err))
	}
	tokens, err := dal.Tokens().DeleteExpired(ctx, before)
	if err != nil {
		log.Warn("token sweep failed", logger.Err(err))
	}
	if codes > 0 || tokens > 0 {
		log.Info("swept expired grants",
			zap.Int64("codes", codes), zap.Int64("tokens", tokens))
	}
}

// loadKeys reads the signing key PEM, or generates an ephemeral RSA key
// outside prod when no file is configured.
func loadKeys(cfg *config.Config) (*jwtx.KeyMaterial, error) {
	km := jwtx.NewKeyMaterial()

	if cfg.Keys.SigningKeyFile != "" {
		b, err := os.ReadFile(cfg.Keys.SigningKeyFile)
		if err != nil {
			return nil, fmt.Errorf("app: signing key: %w", err)
		}
		if err := km.LoadPEM(b); err != nil {
			return nil, fmt.Errorf("app: signing key: %w", err)
		}
		return km, nil
	}

	if cfg.App.Env == "prod" {
		return nil, fmt.Errorf("app: keys.signing_key_file is required in prod")
	}

	logger.With(logger.Component("app")).Warn(
		"no signing key configured, generating an ephemeral key; issued tokens will not survive a restart")
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("app: generate key: %w", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("app: encode key: %w", err)
	}
	if err := km.LoadPEM(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})); err != nil {
		return nil, fmt.Errorf("app: load key: %w", err)
	}
	return km, nil
}

// buildIdentity returns the HTTP identity client, or an empty static
// store outside prod when no backend is configured.
func buildIdentity(cfg *config.Config) (identity.Store, error) {
	if cfg.Identity.BaseURL != "" {
		return identity.NewHTTPStore(identity.HTTPConfig{
			BaseURL: cfg.Identity.BaseURL,
			APIKey:  cfg.Identity.APIKey,
			Timeout: config.Duration(cfg.Identity.Timeout),
		}), nil
	}
	if cfg.App.Env == "prod" {
		return nil, fmt.Errorf("app: identity.base_url is required in prod")
	}
	return identity.NewStaticStore(), nil
}

func redisPort(p int) int {
	if p == 0 {
		return 6379
	}
	return p
}
