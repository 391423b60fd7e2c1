package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. RANKINGS_SERVER_PORT.
const EnvPrefix = "RANKINGS"

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Catalogs CatalogConfig  `yaml:"catalogs"`
	Results  ResultsConfig  `yaml:"results"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Port        string   `yaml:"port" split_words:"true"`
	CORSOrigins []string `yaml:"cors_origins" split_words:"true"`

	// SubmitRate is the sustained submissions per second allowed per client;
	// zero disables limiting.
	SubmitRate  float64 `yaml:"submit_rate" split_words:"true"`
	SubmitBurst int     `yaml:"submit_burst" split_words:"true"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" split_words:"true"`
	Password string `yaml:"password" split_words:"true"`
	DB       int    `yaml:"db" split_words:"true"`
	TTL      string `yaml:"ttl" split_words:"true"`
}

type PostgresConfig struct {
	URL string `yaml:"url" split_words:"true"`
}

type CatalogConfig struct {
	TTL string `yaml:"ttl" split_words:"true"`

	// File optionally seeds catalogs from a JSON file when Postgres is not configured.
	File string `yaml:"file" split_words:"true"`
}

type ResultsConfig struct {
	PuzzleWord string `yaml:"puzzle_word" split_words:"true"`
	Timezone   string `yaml:"timezone" split_words:"true"`
	Language   string `yaml:"language" split_words:"true"`
}

type AuthConfig struct {
	// JWTSecret signs admin tokens. Admin routes are open when empty.
	JWTSecret string `yaml:"jwt_secret" split_words:"true"`
}

type LogConfig struct {
	Level  string `yaml:"level" split_words:"true"`
	Format string `yaml:"format" split_words:"true"`
}

// Load reads YAML config from path and applies RANKINGS_* environment
// overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("environment overrides: %w", err)
	}
	return cfg, nil
}

// Location returns the timezone used for formatted timestamps.
func (c ResultsConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// LanguageTag returns the language whose collation orders team names.
func (c ResultsConfig) LanguageTag() (language.Tag, error) {
	if c.Language == "" {
		return language.Und, nil
	}
	return language.Parse(c.Language)
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
