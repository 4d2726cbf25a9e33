// Package config loads settings for the GoTogether CLI.
//
// Sources, later ones winning:
//
//  1. Built-in defaults (LoadDefaults).
//  2. A JSON file named by -c/-config/--config.
//  3. GOTOGETHER_* environment variables.
//  4. Command-line flags, bound by the cli package.
//
// The JSON file uses timex.Duration, so the timeout is either "10s" or
// integer nanoseconds:
//
//	{
//	  "server_url": "http://localhost:8080/gotogether",
//	  "database_path": "gotogether.db",
//	  "request_timeout": "10s",
//	  "log_level": "warn"
//	}
package config
