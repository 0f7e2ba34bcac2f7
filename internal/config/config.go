// Package config loads popis settings from defaults, an optional YAML file,
// a .env file and POPIS_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/erazemk/popis/internal/counting"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "POPIS_"

// Config holds the runtime settings of the server and CLI.
type Config struct {
	DBPath  string `yaml:"db"`
	Addr    string `yaml:"addr"`
	LogPath string `yaml:"log"`

	// Empty means a secret is generated once and kept in the database.
	JWTSecret   string        `yaml:"jwt_secret"`
	TokenExpiry time.Duration `yaml:"token_expiry"`

	AdminUsername     string `yaml:"admin_username"`
	ApproverRole      string `yaml:"approver_role"`
	RecomputeAttempts int    `yaml:"recompute_attempts"`

	LoginRate  float64 `yaml:"login_rate"` // requests per second per client
	LoginBurst int     `yaml:"login_burst"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DBPath:            "popis.sqlite3",
		Addr:              ":8080",
		TokenExpiry:       7 * 24 * time.Hour,
		AdminUsername:     "admin",
		ApproverRole:      "manager",
		RecomputeAttempts: counting.DefaultRecomputeAttempts,
		LoginRate:         1.0 / 12, // five per minute
		LoginBurst:        5,
		ShutdownTimeout:   10 * time.Second,
	}
}

// Load builds a Config. path names an optional YAML file; a missing file is
// an error only when path was given explicitly. A .env file in the working
// directory is loaded if present and never overrides variables already set.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return &cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	stringVars := map[string]*string{
		"DB":             &c.DBPath,
		"ADDR":           &c.Addr,
		"LOG":            &c.LogPath,
		"JWT_SECRET":     &c.JWTSecret,
		"ADMIN_USERNAME": &c.AdminUsername,
		"APPROVER_ROLE":  &c.ApproverRole,
	}
	for key, dst := range stringVars {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}

	durationVars := map[string]*time.Duration{
		"TOKEN_EXPIRY":     &c.TokenExpiry,
		"SHUTDOWN_TIMEOUT": &c.ShutdownTimeout,
	}
	for key, dst := range durationVars {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = d
		}
	}

	intVars := map[string]*int{
		"RECOMPUTE_ATTEMPTS": &c.RecomputeAttempts,
		"LOGIN_BURST":        &c.LoginBurst,
	}
	for key, dst := range intVars {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = n
		}
	}

	if v, ok := os.LookupEnv(EnvPrefix + "LOGIN_RATE"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sLOGIN_RATE: %w", EnvPrefix, err)
		}
		c.LoginRate = f
	}

	return nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path must not be empty")
	}
	if c.Addr == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.AdminUsername == "" {
		return fmt.Errorf("admin username must not be empty")
	}
	if c.ApproverRole != "admin" && c.ApproverRole != "manager" && c.ApproverRole != "user" {
		return fmt.Errorf("approver role must be admin, manager or user, got %q", c.ApproverRole)
	}
	if c.TokenExpiry < time.Minute {
		return fmt.Errorf("token expiry must be at least one minute, got %s", c.TokenExpiry)
	}
	if c.RecomputeAttempts < 1 {
		return fmt.Errorf("recompute attempts must be positive, got %d", c.RecomputeAttempts)
	}
	if c.LoginRate <= 0 || c.LoginBurst < 1 {
		return fmt.Errorf("login rate and burst must be positive")
	}
	if len(c.JWTSecret) > 0 && len(c.JWTSecret) < 16 {
		return fmt.Errorf("jwt secret must be at least 16 characters")
	}
	return nil
}
