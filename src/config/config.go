// Package config provides configuration management for the verifier.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	// GerritURL is the Gerrit base URL, e.g. https://review.example.com.
	GerritURL      string
	GerritUsername string
	GerritPassword string
	// GerritLabel is the label votes are cast on.
	GerritLabel string

	// BambooBaseURL is linked from vote messages as {base}/browse/{planResultKey}.
	BambooBaseURL string

	// RedpandaBrokers lists seed brokers. Empty selects the in-memory broker.
	RedpandaBrokers []string
	// PostgresDSN selects the Postgres store. Empty selects in-memory storage.
	PostgresDSN string

	ListenAddr string

	BuildkiteAPIToken string
	GitHubToken       string

	LogLevel  string
	LogFormat string
}

// Load reads an optional .env file and then the environment. It does not validate.
func Load() *Config {
	// A missing .env file is fine; the environment still applies.
	_ = godotenv.Load()

	return &Config{
		GerritURL:         strings.TrimRight(os.Getenv("GERRIT_URL"), "/"),
		GerritUsername:    os.Getenv("GERRIT_USERNAME"),
		GerritPassword:    os.Getenv("GERRIT_PASSWORD"),
		GerritLabel:       getEnv("GERRIT_VERIFIED_LABEL", "Verified"),
		BambooBaseURL:     strings.TrimRight(os.Getenv("BAMBOO_BASE_URL"), "/"),
		RedpandaBrokers:   splitList(os.Getenv("REDPANDA_BROKERS")),
		PostgresDSN:       os.Getenv("POSTGRES_DSN"),
		ListenAddr:        getEnv("LISTEN_ADDR", ":8080"),
		BuildkiteAPIToken: os.Getenv("BUILDKITE_API_TOKEN"),
		GitHubToken:       os.Getenv("GITHUB_TOKEN"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "text"),
	}
}

// LoadFromEnv loads configuration and checks that Gerrit is configured.
func LoadFromEnv() (*Config, error) {
	cfg := Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoadFromEnv loads configuration from environment variables and panics on error.
// This is useful for initialization in main() where configuration errors should be fatal.
func MustLoadFromEnv() *Config {
	cfg, err := LoadFromEnv()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate reports missing required settings.
func (c *Config) Validate() error {
	if c.GerritURL == "" {
		return fmt.Errorf("GERRIT_URL environment variable is required")
	}
	if c.GerritUsername != "" && c.GerritPassword == "" {
		return fmt.Errorf("GERRIT_PASSWORD is required when GERRIT_USERNAME is set")
	}
	return nil
}

// ProviderToken returns the API token for a CI provider name.
func (c *Config) ProviderToken(name string) string {
	switch name {
	case "buildkite":
		return c.BuildkiteAPIToken
	case "github":
		return c.GitHubToken
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
