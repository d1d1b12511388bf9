// CLAUDE:SUMMARY YAML configuration for the entrypage pipeline (origin, hosts, embed base, strict manifest ids, output, ledger, HTTP) and the contract it derives.
package pipeline

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/entrypage/canon"
	"github.com/hazyhaar/entrypage/contract"
	"github.com/hazyhaar/entrypage/shield"
)

// Config holds all entrypage configuration.
type Config struct {
	// Origin is the canonical site origin, e.g. https://catalog.hazyhaar.net.
	Origin          string         `yaml:"origin"`
	FirstPartyHosts []string       `yaml:"first_party_hosts"`
	Video           VideoConfig    `yaml:"video"`
	Manifest        ManifestConfig `yaml:"manifest"`
	OutputDir       string         `yaml:"output_dir"`
	LedgerDB        string         `yaml:"ledger_db"`
	HTTP            HTTPConfig     `yaml:"http"`

	Logger *slog.Logger `yaml:"-"`
}

// VideoConfig controls video embeds.
type VideoConfig struct {
	EmbedBase string `yaml:"embed_base"`
}

// ManifestConfig controls manifest cell checks.
type ManifestConfig struct {
	// StrictIDs rejects entries whose manifest cells look like URLs or
	// paths instead of logging them.
	StrictIDs bool `yaml:"strict_ids"`
}

// HTTPConfig controls the API server.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
	// TokenHash is a bcrypt hash of the bearer token for /v1/build.
	// Empty disables authentication.
	TokenHash string                 `yaml:"token_hash"`
	MaxBody   int64                  `yaml:"max_body"`
	RateLimit shield.RateLimitConfig `yaml:"rate_limit"`
}

func (c *Config) defaults() {
	if c.Origin == "" {
		c.Origin = contract.Table.Origin
	}
	if c.Video.EmbedBase == "" {
		c.Video.EmbedBase = contract.DefaultEmbedBase
	}
	if c.OutputDir == "" {
		c.OutputDir = "public"
	}
	if c.LedgerDB == "" {
		c.LedgerDB = "entrypage.db"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8088"
	}
	if c.HTTP.MaxBody <= 0 {
		c.HTTP.MaxBody = 4 << 20
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Contract builds the contract table for this configuration.
func (c Config) Contract() (contract.Contract, error) {
	origin := c.Origin
	if origin == "" {
		origin = contract.Table.Origin
	}
	origin, err := canon.ParseOrigin(origin)
	if err != nil {
		return contract.Contract{}, fmt.Errorf("pipeline: config origin: %w", err)
	}
	ct := contract.Default().WithOrigin(origin).WithFirstPartyHosts(c.FirstPartyHosts...)
	if c.Video.EmbedBase != "" {
		ct.EmbedBase = c.Video.EmbedBase
	}
	return ct, nil
}

// LoadConfigFile reads a YAML config file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("pipeline: parse %s: %w", path, err)
	}
	return cfg, nil
}
