package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/waonpad/benkyo-1/internal/flagx"
	"github.com/waonpad/benkyo-1/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig mirrors Config for JSON and YAML files. Pointer fields tell
// "absent" apart from zero values so a file may override only some settings.
type FileConfig struct {
	EndpointAddrHTTP      *string         `json:"endpoint_addr_http" yaml:"endpoint_addr_http"`
	EndpointAddrGRPC      *string         `json:"endpoint_addr_grpc" yaml:"endpoint_addr_grpc"`
	DatabaseDSN           *string         `json:"database_dsn" yaml:"database_dsn"`
	LogLevel              *string         `json:"log_level" yaml:"log_level"`
	SecretKey             *string         `json:"secret_key" yaml:"secret_key"`
	TokenValidityDuration *timex.Duration `json:"token_validity_duration" yaml:"token_validity_duration"`
	BcryptCost            *int            `json:"bcrypt_cost" yaml:"bcrypt_cost"`
	CORSAllowedOrigins    []string        `json:"cors_allowed_origins" yaml:"cors_allowed_origins"`
	LegacyStatusCodes     *bool           `json:"legacy_status_codes" yaml:"legacy_status_codes"`
	RequestTimeout        *timex.Duration `json:"request_timeout" yaml:"request_timeout"`
	ShutdownTimeout       *timex.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	ThrottleMaxAttempts   *int            `json:"throttle_max_attempts" yaml:"throttle_max_attempts"`
	ThrottleWindow        *timex.Duration `json:"throttle_window" yaml:"throttle_window"`
	RedisURL              *string         `json:"redis_url" yaml:"redis_url"`
	S3RootUser            *string         `json:"s3_root_user" yaml:"s3_root_user"`
	S3RootPassword        *string         `json:"s3_root_password" yaml:"s3_root_password"`
	S3Bucket              *string         `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region              *string         `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint        *string         `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	S3PublicBaseURL       *string         `json:"s3_public_base_url" yaml:"s3_public_base_url"`
	MaxPhotoSize          *int64          `json:"max_photo_size" yaml:"max_photo_size"`
}

// parseFile overlays cfg with the file named by -c/-config. Files ending in
// .yaml or .yml are read as YAML, anything else as JSON. Without the flag
// nothing is loaded.
func parseFile(cfg *Config) error {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	fc := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	default:
		err = json.Unmarshal(data, fc)
	}
	if err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}

func (fc *FileConfig) apply(cfg *Config) {
	setString(&cfg.EndpointAddrHTTP, fc.EndpointAddrHTTP)
	setString(&cfg.EndpointAddrGRPC, fc.EndpointAddrGRPC)
	setString(&cfg.DatabaseDSN, fc.DatabaseDSN)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.SecretKey, fc.SecretKey)
	if fc.TokenValidityDuration != nil {
		cfg.TokenValidityDuration = fc.TokenValidityDuration.Duration
	}
	if fc.BcryptCost != nil {
		cfg.BcryptCost = *fc.BcryptCost
	}
	if fc.CORSAllowedOrigins != nil {
		cfg.CORSAllowedOrigins = fc.CORSAllowedOrigins
	}
	if fc.LegacyStatusCodes != nil {
		cfg.LegacyStatusCodes = *fc.LegacyStatusCodes
	}
	if fc.RequestTimeout != nil {
		cfg.RequestTimeout = fc.RequestTimeout.Duration
	}
	if fc.ShutdownTimeout != nil {
		cfg.ShutdownTimeout = fc.ShutdownTimeout.Duration
	}
	if fc.ThrottleMaxAttempts != nil {
		cfg.ThrottleMaxAttempts = *fc.ThrottleMaxAttempts
	}
	if fc.ThrottleWindow != nil {
		cfg.ThrottleWindow = fc.ThrottleWindow.Duration
	}
	setString(&cfg.RedisURL, fc.RedisURL)
	setString(&cfg.S3RootUser, fc.S3RootUser)
	setString(&cfg.S3RootPassword, fc.S3RootPassword)
	setString(&cfg.S3Bucket, fc.S3Bucket)
	setString(&cfg.S3Region, fc.S3Region)
	setString(&cfg.S3BaseEndpoint, fc.S3BaseEndpoint)
	setString(&cfg.S3PublicBaseURL, fc.S3PublicBaseURL)
	if fc.MaxPhotoSize != nil {
		cfg.MaxPhotoSize = *fc.MaxPhotoSize
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
