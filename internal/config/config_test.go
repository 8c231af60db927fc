package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadDefaults(t *testing.T) {
	p := writeConfig(t, `
storage:
  driver: memory
issuer:
  url: https://id.camly.social
`)
	c, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "dev", c.App.Env)
	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, "memory", c.Cache.Driver)
	assert.Equal(t, "10m", c.Issuer.CodeTTL)
	assert.Equal(t, "720h", c.Issuer.RefreshTTL)
	assert.Equal(t, 30, c.Rate.Token.Limit)
	assert.Equal(t, time.Minute, Duration(c.Rate.Token.Window))
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9999")
	t.Setenv("ISSUER_URL", "https://id.example.com")
	t.Setenv("STORAGE_DRIVER", "memory")

	p := writeConfig(t, `
storage:
  driver: postgres
  dsn: postgres://x
issuer:
  url: https://id.camly.social
`)
	c, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, ":9999", c.Server.Addr)
	assert.Equal(t, "https://id.example.com", c.Issuer.URL)
	assert.Equal(t, "memory", c.Storage.Driver)
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"missing dsn": `
storage:
  driver: postgres
issuer:
  url: https://id.camly.social
`,
		"bad driver": `
storage:
  driver: sqlite
issuer:
  url: https://id.camly.social
`,
		"relative issuer": `
storage:
  driver: memory
issuer:
  url: /oauth
`,
		"bad duration": `
storage:
  driver: memory
issuer:
  url: https://id.camly.social
  access_ttl: soon
`,
		"http issuer in prod": `
app:
  env: prod
storage:
  driver: memory
issuer:
  url: http://id.camly.social
`,
		"default consent key in prod": `
app:
  env: prod
storage:
  driver: memory
issuer:
  url: https://id.camly.social
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestDefault(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	assert.Equal(t, "memory", c.Storage.Driver)
	assert.Equal(t, "http://localhost:8080", c.Issuer.URL)
}
