package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Satyam1603/GoTogether/internal/flagx"
	"github.com/Satyam1603/GoTogether/internal/timex"
)

// FileConfig is the on-disk shape of the configuration. Zero values leave the
// corresponding Config field untouched.
type FileConfig struct {
	HTTPAddr           string   `json:"http_addr" yaml:"http_addr"`
	GRPCAddr           string   `json:"grpc_addr" yaml:"grpc_addr"`
	BasePath           string   `json:"base_path" yaml:"base_path"`
	PublicBaseURL      string   `json:"public_base_url" yaml:"public_base_url"`
	CORSAllowedOrigins []string `json:"cors_allowed_origins" yaml:"cors_allowed_origins"`
	DatabaseDSN        string   `json:"database_dsn" yaml:"database_dsn"`
	LogLevel           string   `json:"log_level" yaml:"log_level"`

	JWTSecret       string         `json:"jwt_secret" yaml:"jwt_secret"`
	CodeSecret      string         `json:"code_secret" yaml:"code_secret"`
	AccessTokenTTL  timex.Duration `json:"access_token_ttl" yaml:"access_token_ttl"`
	RefreshTokenTTL timex.Duration `json:"refresh_token_ttl" yaml:"refresh_token_ttl"`

	OTPTTL             timex.Duration `json:"otp_ttl" yaml:"otp_ttl"`
	EmailTokenTTL      timex.Duration `json:"email_token_ttl" yaml:"email_token_ttl"`
	ResendLimit        int            `json:"resend_limit" yaml:"resend_limit"`
	ResendWindow       timex.Duration `json:"resend_window" yaml:"resend_window"`
	DefaultCountryCode string         `json:"default_country_code" yaml:"default_country_code"`

	NATSURL         string         `json:"nats_url" yaml:"nats_url"`
	CleanupInterval timex.Duration `json:"cleanup_interval" yaml:"cleanup_interval"`

	S3AccessKey    string         `json:"s3_access_key" yaml:"s3_access_key"`
	S3SecretKey    string         `json:"s3_secret_key" yaml:"s3_secret_key"`
	S3Bucket       string         `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region       string         `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint string         `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	S3PresignTTL   timex.Duration `json:"s3_presign_ttl" yaml:"s3_presign_ttl"`
}

// parseFile overlays the file named by -c/-config, if any. The format is
// chosen by extension: .yaml/.yml is YAML, anything else is JSON.
func parseFile(cfg *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	fc := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, fc)
	default:
		err = json.Unmarshal(b, fc)
	}
	if err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}

func (fc *FileConfig) apply(cfg *Config) {
	setString(&cfg.HTTPAddr, fc.HTTPAddr)
	setString(&cfg.GRPCAddr, fc.GRPCAddr)
	setString(&cfg.BasePath, fc.BasePath)
	setString(&cfg.PublicBaseURL, fc.PublicBaseURL)
	if len(fc.CORSAllowedOrigins) > 0 {
		cfg.CORSAllowedOrigins = fc.CORSAllowedOrigins
	}
	setString(&cfg.DatabaseDSN, fc.DatabaseDSN)
	setString(&cfg.LogLevel, fc.LogLevel)

	setString(&cfg.JWTSecret, fc.JWTSecret)
	setString(&cfg.CodeSecret, fc.CodeSecret)
	setDuration(&cfg.AccessTokenTTL, fc.AccessTokenTTL)
	setDuration(&cfg.RefreshTokenTTL, fc.RefreshTokenTTL)

	setDuration(&cfg.OTPTTL, fc.OTPTTL)
	setDuration(&cfg.EmailTokenTTL, fc.EmailTokenTTL)
	if fc.ResendLimit != 0 {
		cfg.ResendLimit = fc.ResendLimit
	}
	setDuration(&cfg.ResendWindow, fc.ResendWindow)
	setString(&cfg.DefaultCountryCode, fc.DefaultCountryCode)

	setString(&cfg.NATSURL, fc.NATSURL)
	setDuration(&cfg.CleanupInterval, fc.CleanupInterval)

	setString(&cfg.S3AccessKey, fc.S3AccessKey)
	setString(&cfg.S3SecretKey, fc.S3SecretKey)
	setString(&cfg.S3Bucket, fc.S3Bucket)
	setString(&cfg.S3Region, fc.S3Region)
	setString(&cfg.S3BaseEndpoint, fc.S3BaseEndpoint)
	setDuration(&cfg.S3PresignTTL, fc.S3PresignTTL)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
