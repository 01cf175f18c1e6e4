// Package config loads runtime configuration for the CLI client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via flags: -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the API server
//	-d string   state directory (holds state.db)
//	-t int      request timeout (seconds)
//
// # JSON schema
//
// Durations can be strings like "10s" or integer nanoseconds:
//
//	{
//	  "server_url": "http://127.0.0.1:8000",
//	  "state_dir": ".benkyo",
//	  "request_timeout": "10s"
//	}
package config
