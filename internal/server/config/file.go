package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/ridehail/internal/flagx"
	"gopkg.in/yaml.v3"
)

// Duration accepts either a Go duration string ("720h", "3s") or an integer
// number of nanoseconds in config files.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return d.set(v)
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var v any
	if err := node.Decode(&v); err != nil {
		return err
	}
	return d.set(v)
}

func (d *Duration) set(v any) error {
	switch val := v.(type) {
	case float64:
		d.Duration = time.Duration(val)
	case int:
		d.Duration = time.Duration(val)
	case string:
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("invalid duration %v", v)
	}
	return nil
}

// FileConfig is the on-disk shape of the config file. It is only used for
// decoding; set fields are copied onto Config by parseFile.
type FileConfig struct {
	HTTPAddr                    string   `json:"http_addr" yaml:"http_addr"`
	GRPCAddr                    string   `json:"grpc_addr" yaml:"grpc_addr"`
	DatabaseDSN                 string   `json:"database_dsn" yaml:"database_dsn"`
	SecretKey                   string   `json:"secret_key" yaml:"secret_key"`
	TokenIssuer                 string   `json:"token_issuer" yaml:"token_issuer"`
	AccessTokenValidityDuration Duration `json:"access_token_validity_duration" yaml:"access_token_validity_duration"`
	BcryptCost                  int      `json:"bcrypt_cost" yaml:"bcrypt_cost"`
	SessionLookupTimeout        Duration `json:"session_lookup_timeout" yaml:"session_lookup_timeout"`
	CORSOrigin                  string   `json:"cors_origin" yaml:"cors_origin"`
	RedisURL                    string   `json:"redis_url" yaml:"redis_url"`
	RateLimitRequests           int      `json:"rate_limit_requests" yaml:"rate_limit_requests"`
	RateLimitWindow             Duration `json:"rate_limit_window" yaml:"rate_limit_window"`
	LogLevel                    string   `json:"log_level" yaml:"log_level"`
	ShutdownTimeout             Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// parseFile loads the file named by -c/-config, if any. Files ending in
// .yaml or .yml are decoded as YAML, everything else as JSON.
func parseFile(cfg *Config, args []string) error {
	path := flagx.ConfigFilePath(args)
	if path == "" {
		return nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	fc := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, fc)
	default:
		err = json.Unmarshal(b, fc)
	}
	if err != nil {
		return fmt.Errorf("decoding config file %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}

func (fc *FileConfig) apply(cfg *Config) {
	setStr := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setDur := func(dst *time.Duration, v Duration) {
		if v.Duration != 0 {
			*dst = v.Duration
		}
	}
	setInt := func(dst *int, v int) {
		if v != 0 {
			*dst = v
		}
	}

	setStr(&cfg.HTTPAddr, fc.HTTPAddr)
	setStr(&cfg.GRPCAddr, fc.GRPCAddr)
	setStr(&cfg.DatabaseDSN, fc.DatabaseDSN)
	setStr(&cfg.SecretKey, fc.SecretKey)
	setStr(&cfg.TokenIssuer, fc.TokenIssuer)
	setDur(&cfg.AccessTokenValidityDuration, fc.AccessTokenValidityDuration)
	setInt(&cfg.BcryptCost, fc.BcryptCost)
	setDur(&cfg.SessionLookupTimeout, fc.SessionLookupTimeout)
	setStr(&cfg.CORSOrigin, fc.CORSOrigin)
	setStr(&cfg.RedisURL, fc.RedisURL)
	setInt(&cfg.RateLimitRequests, fc.RateLimitRequests)
	setDur(&cfg.RateLimitWindow, fc.RateLimitWindow)
	setStr(&cfg.LogLevel, fc.LogLevel)
	setDur(&cfg.ShutdownTimeout, fc.ShutdownTimeout)
}
