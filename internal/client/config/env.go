package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/vroomly/rentclient/internal/flagx"
)

// EnvPrefix prefixes every environment variable the client reads.
const EnvPrefix = "RENTAL_"

const defaultEnvFile = ".env"

// loadDotEnv copies a .env file into the process environment without
// overriding variables that are already set. The file named by -e or
// -env-file must exist; the default ./.env is optional.
func loadDotEnv(args []string) error {
	path := flagx.EnvFileFlags(args)
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}

	err := godotenv.Load(path)
	if err == nil || (!explicit && errors.Is(err, fs.ErrNotExist)) {
		return nil
	}
	return fmt.Errorf("load env file %s: %w", path, err)
}

// parseEnv overlays cfg with RENTAL_* variables. Unset variables leave the
// field as it is.
func parseEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
