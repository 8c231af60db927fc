// Command camly-idp runs the Camly identity provider and its
// operational helpers (migrations, key generation, client registration,
// cleanup).
package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/camly-social/camly-idp/internal/app"
	"github.com/camly-social/camly-idp/internal/config"
	jwtx "github.com/camly-social/camly-idp/internal/jwt"
	"github.com/camly-social/camly-idp/internal/observability/logger"
	"github.com/camly-social/camly-idp/internal/security/secret"
	"github.com/camly-social/camly-idp/internal/store"
	"github.com/camly-social/camly-idp/internal/store/pg"
	"github.com/camly-social/camly-idp/internal/validation"
	migrations "github.com/camly-social/camly-idp/migrations/postgres"
)

func main() {
	_ = godotenv.Load()

	var configPath string

	root := &cobra.Command{
		Use:           "camly-idp",
		Short:         "Camly OAuth 2.0 / OpenID Connect identity provider",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "path to config.yaml")

	root.AddCommand(
		serveCmd(&configPath),
		migrateCmd(&configPath),
		keysCmd(),
		clientCmd(&configPath),
		cleanupCmd(&configPath),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	if _, err := os.Stat("configs/config.yaml"); err == nil {
		return "configs/config.yaml"
	}
	return "configs/config.example.yaml"
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: "camly-idp",
	})
	return cfg, nil
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the identity provider HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			logger.L().Info("starting identity provider",
				zap.String("env", cfg.App.Env),
				zap.String("issuer", cfg.Issuer.URL),
				zap.String("addr", cfg.Server.Addr))
			return a.Run(ctx)
		},
	}
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [up|down] [steps]",
		Short: "Apply the embedded Postgres migrations",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			action := "up"
			if len(args) >= 1 {
				action = strings.ToLower(args[0])
			}
			steps := 0
			if len(args) >= 2 {
				if _, err := fmt.Sscanf(args[1], "%d", &steps); err != nil {
					return fmt.Errorf("invalid steps %q", args[1])
				}
			}

			ctx := cmd.Context()
			pool, err := pgxpool.New(ctx, cfg.Storage.DSN)
			if err != nil {
				return fmt.Errorf("pgxpool: %w", err)
			}
			defer pool.Close()

			files, err := listMigrations(action)
			if err != nil {
				return err
			}
			if steps > 0 && steps < len(files) {
				files = files[:steps]
			}
			for _, f := range files {
				sql, err := migrations.FS.ReadFile(f)
				if err != nil {
					return err
				}
				if _, err := pool.Exec(ctx, string(sql)); err != nil {
					return fmt.Errorf("exec %s: %w", f, err)
				}
				fmt.Println("applied", f)
			}
			return nil
		},
	}
}

// listMigrations returns the embedded *_up.sql or *_down.sql files in
// apply order: ascending for up, descending for down.
func listMigrations(action string) ([]string, error) {
	var suffix string
	switch action {
	case "up":
		suffix = "_up.sql"
	case "down":
		suffix = "_down.sql"
	default:
		return nil, fmt.Errorf("unknown action %q (want up or down)", action)
	}
	entries, err := migrations.FS.ReadDir(".")
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), suffix) {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	if action == "down" {
		for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
			files[i], files[j] = files[j], files[i]
		}
	}
	return files, nil
}

func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage the RS256 signing key",
	}

	var out string
	var bits int
	gen := &cobra.Command{
		Use:   "generate",
		Short: "Generate a new PKCS#8 RSA signing key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if bits < jwtx.MinRSABits {
				return fmt.Errorf("key size %d below minimum %d", bits, jwtx.MinRSABits)
			}
			key, err := rsa.GenerateKey(rand.Reader, bits)
			if err != nil {
				return err
			}
			der, err := x509.MarshalPKCS8PrivateKey(key)
			if err != nil {
				return err
			}
			pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
			if err := os.WriteFile(out, pemBytes, 0o600); err != nil {
				return err
			}
			fmt.Println("wrote", out)
			return nil
		},
	}
	gen.Flags().StringVar(&out, "out", "signing-key.pem", "output PEM file")
	gen.Flags().IntVar(&bits, "bits", 2048, "RSA key size")

	var keyFile string
	jwks := &cobra.Command{
		Use:   "jwks",
		Short: "Print the public JWKS for a signing key",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := os.ReadFile(keyFile)
			if err != nil {
				return err
			}
			km := jwtx.NewKeyMaterial()
			if err := km.LoadPEM(b); err != nil {
				return err
			}
			doc, err := json.MarshalIndent(km.JWKS(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(doc))
			return nil
		},
	}
	jwks.Flags().StringVar(&keyFile, "key", "signing-key.pem", "PEM file to read")

	cmd.AddCommand(gen, jwks)
	return cmd
}

func clientCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Manage registered OAuth clients",
	}

	var (
		id, name, clientType, plainSecret string
		redirects, scopes                 []string
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Register an OAuth client",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.Storage.Driver != "postgres" {
				return fmt.Errorf("client add requires the postgres driver")
			}
			if id == "" || name == "" || len(redirects) == 0 {
				return fmt.Errorf("--id, --name and at least one --redirect are required")
			}
			for _, r := range redirects {
				if !validation.ValidRedirectURI(r) {
					return fmt.Errorf("invalid redirect URI %q", r)
				}
			}
			for _, s := range scopes {
				if !validation.ValidScopeName(s) {
					return fmt.Errorf("invalid scope name %q", s)
				}
			}
			var secretHash string
			switch clientType {
			case "confidential":
				if plainSecret == "" {
					return fmt.Errorf("confidential clients need --secret")
				}
				secretHash, err = secret.Hash(secret.Default, plainSecret)
				if err != nil {
					return err
				}
			case "public":
				if plainSecret != "" {
					return fmt.Errorf("public clients must not have a secret")
				}
			default:
				return fmt.Errorf("unknown client type %q", clientType)
			}

			ctx := cmd.Context()
			st, err := pg.New(ctx, pg.Config{DSN: cfg.Storage.DSN})
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.RegisterClient(ctx, pg.RegisterClientInput{
				ClientID:     id,
				Name:         name,
				Type:         clientType,
				SecretHash:   secretHash,
				RedirectURIs: redirects,
				Scopes:       scopes,
			}); err != nil {
				return err
			}
			fmt.Println("registered client", id)
			return nil
		},
	}
	add.Flags().StringVar(&id, "id", "", "client_id")
	add.Flags().StringVar(&name, "name", "", "display name shown on the consent page")
	add.Flags().StringVar(&clientType, "type", "public", "public | confidential")
	add.Flags().StringVar(&plainSecret, "secret", "", "client secret (confidential only)")
	add.Flags().StringSliceVar(&redirects, "redirect", nil, "allowed redirect URI (repeatable)")
	add.Flags().StringSliceVar(&scopes, "scope", []string{"openid", "profile"}, "allowed scope (repeatable)")

	cmd.AddCommand(add)
	return cmd
}

func cleanupCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired authorization codes and refresh tokens once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			dal, err := store.New(ctx, store.Config{
				Driver: cfg.Storage.Driver,
				DSN:    cfg.Storage.DSN,
			})
			if err != nil {
				return err
			}
			defer dal.Close()
			app.SweepOnce(ctx, dal, config.Duration(cfg.Cleanup.Retention), logger.L())
			return nil
		},
	}
}
