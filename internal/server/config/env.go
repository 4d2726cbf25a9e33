package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const envPrefix = "GOTOGETHER_"

// parseEnv overlays GOTOGETHER_* variables. Durations accept Go syntax
// ("15m"); list values are comma separated.
func parseEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) error {
		v, ok := lookup(envPrefix + name)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*dst = d
		return nil
	}

	str("HTTP_ADDR", &cfg.HTTPAddr)
	str("GRPC_ADDR", &cfg.GRPCAddr)
	str("BASE_PATH", &cfg.BasePath)
	str("PUBLIC_BASE_URL", &cfg.PublicBaseURL)
	str("DATABASE_DSN", &cfg.DatabaseDSN)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("JWT_SECRET", &cfg.JWTSecret)
	str("CODE_SECRET", &cfg.CodeSecret)
	str("DEFAULT_COUNTRY_CODE", &cfg.DefaultCountryCode)
	str("NATS_URL", &cfg.NATSURL)
	str("S3_ACCESS_KEY", &cfg.S3AccessKey)
	str("S3_SECRET_KEY", &cfg.S3SecretKey)
	str("S3_BUCKET", &cfg.S3Bucket)
	str("S3_REGION", &cfg.S3Region)
	str("S3_BASE_ENDPOINT", &cfg.S3BaseEndpoint)

	if v, ok := lookup(envPrefix + "CORS_ALLOWED_ORIGINS"); ok && v != "" {
		cfg.CORSAllowedOrigins = splitList(v)
	}

	if v, ok := lookup(envPrefix + "RESEND_LIMIT"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sRESEND_LIMIT: %w", envPrefix, err)
		}
		cfg.ResendLimit = n
	}

	for name, dst := range map[string]*time.Duration{
		"ACCESS_TOKEN_TTL":  &cfg.AccessTokenTTL,
		"REFRESH_TOKEN_TTL": &cfg.RefreshTokenTTL,
		"OTP_TTL":           &cfg.OTPTTL,
		"EMAIL_TOKEN_TTL":   &cfg.EmailTokenTTL,
		"RESEND_WINDOW":     &cfg.ResendWindow,
		"CLEANUP_INTERVAL":  &cfg.CleanupInterval,
		"S3_PRESIGN_TTL":    &cfg.S3PresignTTL,
	} {
		if err := dur(name, dst); err != nil {
			return err
		}
	}

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
