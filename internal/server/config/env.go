package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// envFile is loaded before reading the environment when it exists. Variables
// already present in the process environment win over the file.
var envFile = ".env"

// parseEnv overlays cfg with environment variables. Malformed numbers,
// booleans and durations are reported instead of silently ignored.
func parseEnv(cfg *Config) error {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	envString(&cfg.EndpointAddrHTTP, "HTTP_ADDR")
	envString(&cfg.EndpointAddrGRPC, "GRPC_ADDR")
	envString(&cfg.DatabaseDSN, "DATABASE_DSN")
	envString(&cfg.LogLevel, "LOG_LEVEL")
	envString(&cfg.SecretKey, "SECRET_KEY")
	collect(envDuration(&cfg.TokenValidityDuration, "TOKEN_TTL"))
	collect(envInt(&cfg.BcryptCost, "BCRYPT_COST"))
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORSAllowedOrigins = splitList(v)
	}
	collect(envBool(&cfg.LegacyStatusCodes, "LEGACY_STATUS_CODES"))
	collect(envDuration(&cfg.RequestTimeout, "REQUEST_TIMEOUT"))
	collect(envDuration(&cfg.ShutdownTimeout, "SHUTDOWN_TIMEOUT"))
	collect(envInt(&cfg.ThrottleMaxAttempts, "THROTTLE_MAX_ATTEMPTS"))
	collect(envDuration(&cfg.ThrottleWindow, "THROTTLE_WINDOW"))
	envString(&cfg.RedisURL, "REDIS_URL")
	envString(&cfg.S3RootUser, "S3_ROOT_USER")
	envString(&cfg.S3RootPassword, "S3_ROOT_PASSWORD")
	envString(&cfg.S3Bucket, "S3_BUCKET")
	envString(&cfg.S3Region, "S3_REGION")
	envString(&cfg.S3BaseEndpoint, "S3_BASE_ENDPOINT")
	envString(&cfg.S3PublicBaseURL, "S3_PUBLIC_BASE_URL")
	if v := os.Getenv("MAX_PHOTO_SIZE"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			collect(fmt.Errorf("MAX_PHOTO_SIZE: %w", err))
		} else {
			cfg.MaxPhotoSize = n
		}
	}

	return errors.Join(errs...)
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func envDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
