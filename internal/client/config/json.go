package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/vroomly/rentclient/internal/flagx"
	"github.com/vroomly/rentclient/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "3s" or as integer nanoseconds. Only fields present in the
// file are copied into the runtime Config.
type JsonConfig struct {
	APIBaseURL      string         `json:"api_url"`
	DatabasePath    string         `json:"db_path"`
	CallbackAddr    string         `json:"callback_addr"`
	RequestTimeout  timex.Duration `json:"request_timeout"`
	RefreshTimeout  timex.Duration `json:"refresh_timeout"`
	AccessTokenTTL  timex.Duration `json:"access_token_ttl"`
	RefreshTokenTTL timex.Duration `json:"refresh_token_ttl"`
	StoreSecret     string         `json:"store_secret"`
	RedirectDelay   timex.Duration `json:"redirect_delay"`
	CountdownTick   timex.Duration `json:"countdown_tick"`
	LogLevel        string         `json:"log_level"`
	LogFile         string         `json:"log_file"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// -c or -config. Without the flag nothing is loaded.
func parseJson(cfg *Config, args []string) error {
	jsonConfigFile := flagx.JsonConfigFlags(args)
	if jsonConfigFile == "" {
		return nil
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config file %s: %w", jsonConfigFile, err)
	}

	setString(&cfg.APIBaseURL, jc.APIBaseURL)
	setString(&cfg.DatabasePath, jc.DatabasePath)
	setString(&cfg.CallbackAddr, jc.CallbackAddr)
	setString(&cfg.StoreSecret, jc.StoreSecret)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.LogFile, jc.LogFile)

	setDuration(&cfg.RequestTimeout, jc.RequestTimeout)
	setDuration(&cfg.RefreshTimeout, jc.RefreshTimeout)
	setDuration(&cfg.AccessTokenTTL, jc.AccessTokenTTL)
	setDuration(&cfg.RefreshTokenTTL, jc.RefreshTokenTTL)
	setDuration(&cfg.RedirectDelay, jc.RedirectDelay)
	setDuration(&cfg.CountdownTick, jc.CountdownTick)
	return nil
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
