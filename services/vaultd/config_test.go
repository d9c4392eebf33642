package vaultd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vaultd.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
auth:
  hmac_secret: "`+testSecret+`"
admin:
  bearer_token: operator-token
timeouts:
  read: 5s
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, ":7090", cfg.ListenAddress)
	require.Equal(t, "127.0.0.1:7091", cfg.Admin.ListenAddress)
	require.Equal(t, "sqlite", cfg.Audit.Driver)
	require.NotEmpty(t, cfg.Audit.DSN)
	require.Equal(t, 5*time.Second, cfg.Timeouts.Read.Duration)
	require.Equal(t, 30*time.Second, cfg.Timeouts.Write.Duration)
	require.Equal(t, 2*time.Minute, cfg.Auth.ClockSkew.Duration)
	require.Equal(t, float64(120), cfg.RateLimit.RequestsPerMinute)
}

func TestLoadConfigReadsSecretFiles(t *testing.T) {
	dir := t.TempDir()
	secretPath := filepath.Join(dir, "hmac")
	tokenPath := filepath.Join(dir, "admin")
	require.NoError(t, os.WriteFile(secretPath, []byte(testSecret+"\n"), 0o600))
	require.NoError(t, os.WriteFile(tokenPath, []byte("from-file\n"), 0o600))
	path := writeConfig(t, `
auth:
  hmac_secret_file: `+secretPath+`
admin:
  bearer_token_file: `+tokenPath+`
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, testSecret, cfg.Auth.HMACSecret)
	require.Equal(t, "from-file", cfg.Admin.BearerToken)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"short secret": `
auth:
  hmac_secret: short
admin:
  bearer_token: x
`,
		"missing admin token": `
auth:
  hmac_secret: "` + testSecret + `"
`,
		"bad driver": `
audit:
  driver: mysql
  dsn: root@/db
auth:
  hmac_secret: "` + testSecret + `"
admin:
  bearer_token: x
`,
		"postgres without dsn": `
audit:
  driver: postgres
auth:
  hmac_secret: "` + testSecret + `"
admin:
  bearer_token: x
`,
		"unknown field": `
auth:
  hmac_secret: "` + testSecret + `"
admin:
  bearer_token: x
surprise: true
`,
		"bad duration": `
auth:
  hmac_secret: "` + testSecret + `"
  clock_skew: soon
admin:
  bearer_token: x
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}
