// Package config defines the data structures related to configuration and
// includes functions for loading and checking it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/iwvelando/pdn-calculator/internal/assumptions"
	"github.com/iwvelando/pdn-calculator/internal/audit"
	"github.com/iwvelando/pdn-calculator/pkg/constants"
	"github.com/iwvelando/pdn-calculator/pkg/validation"
	"github.com/spf13/viper"
)

// Configuration holds all configuration for pdn-calculator.
type Configuration struct {
	Server      ServerConfig         `yaml:"server"`
	Logging     LoggingConfig        `yaml:"logging,omitempty"`
	Output      OutputConfig         `yaml:"output,omitempty"`
	Assumptions assumptions.Snapshot `yaml:"assumptions"`
	Validation  ValidationConfig     `yaml:"validation"`
	Admin       AdminConfig          `yaml:"admin"`
	Audit       AuditConfig          `yaml:"audit"`
}

// ServerConfig defines runtime parameters for the HTTP server.
type ServerConfig struct {
	Address        string          `yaml:"address"`
	MaxBodySize    string          `yaml:"maxBodySize"`
	RateLimit      RateLimitConfig `yaml:"rateLimit"`
	AllowedOrigins []string        `yaml:"allowedOrigins"`
	bodySizeBytes  int64
}

// RateLimitConfig sizes the token bucket shared by all API requests. An RPS
// of zero disables limiting.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`      // debug, info, warn, error
	Format     string `yaml:"format,omitempty"`     // json, console
	OutputFile string `yaml:"outputFile,omitempty"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty"` // pretty, csv, json
}

// ValidationConfig holds the request limits.
type ValidationConfig struct {
	AllowedCurrencies []string `yaml:"allowedCurrencies"`
	MinShockPct       float64  `yaml:"minShockPct"`
	MaxShockPct       float64  `yaml:"maxShockPct"`
}

// AdminConfig protects the admin endpoints. APIKeyHash is a bcrypt hash and
// takes precedence over the plain APIKey. With neither set the admin
// endpoints are disabled.
type AdminConfig struct {
	APIKey     string `yaml:"apiKey"`
	APIKeyHash string `yaml:"apiKeyHash"`
}

// AuditConfig selects the audit backend.
type AuditConfig struct {
	Backend       string        `yaml:"backend"` // none, file, redis
	File          string        `yaml:"file"`
	RedisAddr     string        `yaml:"redisAddr"`
	RedisPassword string        `yaml:"redisPassword"`
	RedisDB       int           `yaml:"redisDB"`
	KeyPrefix     string        `yaml:"keyPrefix"`
	TTL           time.Duration `yaml:"ttl"`
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there. Environment variables prefixed with PDN_ override file
// values (PDN_SERVER_ADDRESS, PDN_ADMIN_APIKEY, ...). If the file does not
// exist, defaults are returned without error.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file, %s", err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file, %s", err)
		}
	}

	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}

	if err := configuration.normalize(); err != nil {
		return nil, err
	}
	return &configuration, nil
}

func setDefaults(v *viper.Viper) {
	snap := assumptions.Default()

	v.SetDefault("server.address", constants.DefaultServerAddress)
	v.SetDefault("server.maxBodySize", fmt.Sprintf("%d", constants.DefaultMaxBodySizeBytes))
	v.SetDefault("server.rateLimit.rps", constants.DefaultRateLimitRPS)
	v.SetDefault("server.rateLimit.burst", constants.DefaultRateLimitBurst)
	v.SetDefault("server.allowedOrigins", []string{})

	v.SetDefault("logging.level", "")
	v.SetDefault("logging.format", "")
	v.SetDefault("logging.outputFile", "")

	v.SetDefault("output.format", constants.OutputFormatPretty)

	v.SetDefault("assumptions.creditCardDefaultMinRate", snap.CreditCardDefaultMinRate)
	v.SetDefault("assumptions.moneyPrecision", snap.MoneyPrecision)
	v.SetDefault("assumptions.percentPrecision", snap.PercentPrecision)
	v.SetDefault("assumptions.riskLowPercent", snap.RiskLowPercent)
	v.SetDefault("assumptions.riskHighPercent", snap.RiskHighPercent)
	v.SetDefault("assumptions.strictRefinance", snap.StrictRefinance)

	rules := validation.DefaultRules()
	v.SetDefault("validation.allowedCurrencies", rules.AllowedCurrencies)
	v.SetDefault("validation.minShockPct", rules.MinShockPct)
	v.SetDefault("validation.maxShockPct", rules.MaxShockPct)

	v.SetDefault("admin.apiKey", "")
	v.SetDefault("admin.apiKeyHash", "")

	v.SetDefault("audit.backend", constants.AuditBackendNone)
	v.SetDefault("audit.file", constants.DefaultAuditFile)
	v.SetDefault("audit.redisAddr", "")
	v.SetDefault("audit.redisPassword", "")
	v.SetDefault("audit.redisDB", 0)
	v.SetDefault("audit.keyPrefix", constants.DefaultAuditKeyPrefix)
	v.SetDefault("audit.ttl", "0s")
}

func (c *Configuration) normalize() error {
	if err := c.Server.normalize(); err != nil {
		return err
	}

	if err := validation.ValidateOutputFormat(c.Output.Format); err != nil {
		return fmt.Errorf("invalid output configuration: %w", err)
	}

	if err := c.Assumptions.Validate(); err != nil {
		return fmt.Errorf("invalid assumptions configuration: %w", err)
	}

	for i, cur := range c.Validation.AllowedCurrencies {
		c.Validation.AllowedCurrencies[i] = strings.ToUpper(strings.TrimSpace(cur))
	}
	if len(c.Validation.AllowedCurrencies) == 0 {
		return errors.New("validation.allowedCurrencies must list at least one currency")
	}
	if c.Validation.MinShockPct > c.Validation.MaxShockPct {
		return fmt.Errorf("validation.minShockPct %v exceeds maxShockPct %v",
			c.Validation.MinShockPct, c.Validation.MaxShockPct)
	}

	switch c.Audit.Backend {
	case constants.AuditBackendNone, constants.AuditBackendFile:
	case constants.AuditBackendRedis:
		if c.Audit.RedisAddr == "" {
			return errors.New("audit.redisAddr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unsupported audit backend %q", c.Audit.Backend)
	}
	if c.Audit.TTL < 0 {
		return fmt.Errorf("audit.ttl must not be negative, got %s", c.Audit.TTL)
	}
	return nil
}

func (s *ServerConfig) normalize() error {
	if s.Address == "" {
		s.Address = constants.DefaultServerAddress
	}
	if s.RateLimit.RPS < 0 {
		return fmt.Errorf("server.rateLimit.rps must not be negative, got %v", s.RateLimit.RPS)
	}
	if s.RateLimit.RPS > 0 && s.RateLimit.Burst < 1 {
		s.RateLimit.Burst = 1
	}

	sizeStr := strings.TrimSpace(s.MaxBodySize)
	if sizeStr == "" {
		s.bodySizeBytes = constants.DefaultMaxBodySizeBytes
		s.MaxBodySize = fmt.Sprintf("%d", constants.DefaultMaxBodySizeBytes)
		return nil
	}

	bytes, err := ParseSize(sizeStr)
	if err != nil {
		return err
	}
	if bytes <= 0 {
		bytes = constants.DefaultMaxBodySizeBytes
	}
	s.bodySizeBytes = bytes
	return nil
}

// BodySizeBytes returns the configured request body limit in bytes.
func (s *ServerConfig) BodySizeBytes() int64 {
	if s.bodySizeBytes <= 0 {
		return constants.DefaultMaxBodySizeBytes
	}
	return s.bodySizeBytes
}

// Rules returns the request limits in the form used by validation.Normalize.
func (v ValidationConfig) Rules() validation.Rules {
	return validation.Rules{
		AllowedCurrencies: append([]string(nil), v.AllowedCurrencies...),
		MinShockPct:       v.MinShockPct,
		MaxShockPct:       v.MaxShockPct,
	}
}

// AdminEnabled reports whether any admin credential is configured.
func (a AdminConfig) AdminEnabled() bool {
	return a.APIKey != "" || a.APIKeyHash != ""
}

// Options returns the audit store options.
func (a AuditConfig) Options() audit.Options {
	return audit.Options{
		Backend:       a.Backend,
		File:          a.File,
		RedisAddr:     a.RedisAddr,
		RedisPassword: a.RedisPassword,
		RedisDB:       a.RedisDB,
		KeyPrefix:     a.KeyPrefix,
		TTL:           a.TTL,
	}
}
