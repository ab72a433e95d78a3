// Package config loads runtime configuration for the rental client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. A .env file: ./.env when present, or the file named by -e / -env-file.
//  3. Environment variables prefixed with RENTAL_ (RENTAL_API_URL, ...).
//  4. Optional JSON file selected via flags: -c or -config.
//  5. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the backend API
//	-d string   path of the local SQLite database
//	-l string   log level
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "3s" or integer nanoseconds:
//
//	{
//	  "api_url": "https://api.example.com",
//	  "request_timeout": "15s",
//	  "redirect_delay": "5s"
//	}
package config
