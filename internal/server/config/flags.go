package config

import (
	"flag"
	"io"

	"github.com/Satyam1603/GoTogether/internal/flagx"
)

// parseFlags applies the short command-line flags:
//
//	-a string    HTTP listen address
//	-g string    gRPC health listen address
//	-d string    PostgreSQL DSN
//	-s string    JWT signing secret
//	-k string    verification code HMAC secret
//	-t duration  access token lifetime
//	-r duration  refresh token lifetime
//	-n string    NATS URL (empty logs notifications instead)
//	-l string    log level
//	-p string    HTTP base path
//
// Only these flags are looked at; everything else in args is ignored.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-g", "-d", "-s", "-k", "-t", "-r", "-n", "-l", "-p"})

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.HTTPAddr, "a", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.GRPCAddr, "g", cfg.GRPCAddr, "gRPC health listen address")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
	fs.StringVar(&cfg.JWTSecret, "s", cfg.JWTSecret, "JWT signing secret")
	fs.StringVar(&cfg.CodeSecret, "k", cfg.CodeSecret, "verification code secret")
	fs.DurationVar(&cfg.AccessTokenTTL, "t", cfg.AccessTokenTTL, "access token lifetime")
	fs.DurationVar(&cfg.RefreshTokenTTL, "r", cfg.RefreshTokenTTL, "refresh token lifetime")
	fs.StringVar(&cfg.NATSURL, "n", cfg.NATSURL, "NATS URL")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.BasePath, "p", cfg.BasePath, "HTTP base path")

	return fs.Parse(args)
}
