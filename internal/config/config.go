package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Content struct {
		// TTL bounds how long published quiz content may be served from
		// cache. Published content is immutable, so a stale read is safe.
		TTL string `yaml:"ttl"`
	} `yaml:"content"`
}

// Load reads YAML config from path and applies environment overrides. A
// missing file is not an error; env-only deployments are supported.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return cfg, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	overrideString(&cfg.Server.Port, "PORT")
	overrideString(&cfg.Postgres.URL, "DATABASE_URL")
	overrideString(&cfg.Redis.Addr, "REDIS_ADDR")
	overrideString(&cfg.Redis.Password, "REDIS_PASSWORD")
	overrideInt(&cfg.Redis.DB, "REDIS_DB")
	overrideString(&cfg.Content.TTL, "CONTENT_TTL")

	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	return cfg, nil
}

// ContentTTL parses the configured content TTL or returns the fallback.
func (c Config) ContentTTL(fallback time.Duration) time.Duration {
	if c.Content.TTL == "" {
		return fallback
	}
	if d, err := time.ParseDuration(c.Content.TTL); err == nil {
		return d
	}
	return fallback
}

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func overrideInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
