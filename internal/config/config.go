// Package config loads service configuration from an optional YAML file
// and SPEAKQUEST_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abhisek/speakquest/internal/llm"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Auth     AuthConfig     `yaml:"auth"`
	Redis    RedisConfig    `yaml:"redis"`
	Badges   BadgesConfig   `yaml:"badges"`
	LLM      LLMConfig      `yaml:"llm"`
}

type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	// Path is the SQLite file. Empty means store.DefaultDBPath.
	Path string `yaml:"path"`
}

type LogConfig struct {
	// Mode is "production" (JSON) or "development" (console).
	Mode string `yaml:"mode"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type RedisConfig struct {
	// Addr enables redis locks when set.
	Addr string `yaml:"addr"`
}

type BadgesConfig struct {
	// TrackEarnedAt stores the award time on the student-badge row. When
	// false earned_at stays null and is reported at query time.
	TrackEarnedAt bool `yaml:"track_earned_at"`
}

type LLMConfig struct {
	// Provider overrides SPEAKQUEST_LLM_PROVIDER / key discovery.
	Provider string        `yaml:"provider"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:        ":8080",
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Log:    LogConfig{Mode: "production"},
		Auth:   AuthConfig{TokenTTL: 24 * time.Hour},
		Badges: BadgesConfig{TrackEarnedAt: true},
		LLM:    LLMConfig{Timeout: 30 * time.Second},
	}
}

// Load reads path (when non-empty) over the defaults, then applies
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Addr, "SPEAKQUEST_ADDR")
	if v := os.Getenv("SPEAKQUEST_CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = splitList(v)
	}
	setString(&c.Database.Path, "SPEAKQUEST_DB")
	setString(&c.Log.Mode, "SPEAKQUEST_LOG_MODE")
	setString(&c.Auth.JWTSecret, "SPEAKQUEST_JWT_SECRET")
	setString(&c.Redis.Addr, "SPEAKQUEST_REDIS_ADDR")
	setString(&c.LLM.Provider, "SPEAKQUEST_LLM_PROVIDER")

	if v := os.Getenv("SPEAKQUEST_BADGES_TRACK_EARNED_AT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SPEAKQUEST_BADGES_TRACK_EARNED_AT: %w", err)
		}
		c.Badges.TrackEarnedAt = b
	}
	if v := os.Getenv("SPEAKQUEST_LLM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SPEAKQUEST_LLM_TIMEOUT: %w", err)
		}
		c.LLM.Timeout = d
	}
	return nil
}

// Validate checks settings the server cannot run without.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, errors.New("auth.jwt_secret must be at least 16 characters"))
	}
	if c.Log.Mode != "production" && c.Log.Mode != "development" {
		errs = append(errs, fmt.Errorf("log.mode must be production or development, got %q", c.Log.Mode))
	}
	if c.LLM.Timeout <= 0 {
		errs = append(errs, errors.New("llm.timeout must be positive"))
	}
	return errors.Join(errs...)
}

// ModelConfig resolves the model provider settings: SPEAKQUEST_* / vendor
// key discovery, with the file's provider and timeout on top.
func (c Config) ModelConfig() llm.Config {
	mc := llm.ConfigFromEnv()
	if c.LLM.Provider != "" {
		mc.Provider = c.LLM.Provider
	}
	if c.LLM.Timeout > 0 {
		mc.Timeout = c.LLM.Timeout
	}
	return mc
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
