package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useEnvFile(t *testing.T, content string) {
	t.Helper()
	orig := envFile
	t.Cleanup(func() { envFile = orig })

	if content == "" {
		envFile = filepath.Join(t.TempDir(), "absent.env")
		return
	}
	envFile = filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o600))
}

func TestParseEnv_Variables(t *testing.T) {
	useEnvFile(t, "")
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("SECRET_KEY", "from-env")
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("LEGACY_STATUS_CODES", "true")
	t.Setenv("THROTTLE_MAX_ATTEMPTS", "3")
	t.Setenv("MAX_PHOTO_SIZE", "2048")

	cfg := &Config{}
	cfg.LoadDefaults()
	require.NoError(t, parseEnv(cfg))

	assert.Equal(t, ":9000", cfg.EndpointAddrHTTP)
	assert.Equal(t, "from-env", cfg.SecretKey)
	assert.Equal(t, 2*time.Hour, cfg.TokenValidityDuration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.LegacyStatusCodes)
	assert.Equal(t, 3, cfg.ThrottleMaxAttempts)
	assert.Equal(t, int64(2048), cfg.MaxPhotoSize)
}

func TestParseEnv_DotEnvFile(t *testing.T) {
	useEnvFile(t, "DATABASE_DSN=postgres://from-file\nS3_BUCKET=avatars\n")
	t.Cleanup(func() {
		os.Unsetenv("DATABASE_DSN")
		os.Unsetenv("S3_BUCKET")
	})

	cfg := &Config{}
	cfg.LoadDefaults()
	require.NoError(t, parseEnv(cfg))

	assert.Equal(t, "postgres://from-file", cfg.DatabaseDSN)
	assert.Equal(t, "avatars", cfg.S3Bucket)
}

func TestParseEnv_MalformedValues(t *testing.T) {
	useEnvFile(t, "")
	t.Setenv("BCRYPT_COST", "ten")
	t.Setenv("THROTTLE_WINDOW", "forever")

	cfg := &Config{}
	cfg.LoadDefaults()
	err := parseEnv(cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "BCRYPT_COST")
	assert.Contains(t, err.Error(), "THROTTLE_WINDOW")
	assert.Equal(t, 10, cfg.BcryptCost)
}
