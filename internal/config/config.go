package config

import (
	"time"

	"github.com/razy-dev/razy/internal/logging"
	"github.com/razy-dev/razy/internal/session"
)

// Config is the complete runtime configuration.
type Config struct {
	Listen       string                    `yaml:"listen"` // e.g. ":8080"
	Logging      logging.Config            `yaml:"logging"`
	Redis        RedisConfig               `yaml:"redis"`
	Session      SessionConfig             `yaml:"session"`
	Sites        SitesConfig               `yaml:"sites"`
	Distributors []DistributorConfig       `yaml:"distributors"`
	Metrics      MetricsConfig             `yaml:"metrics"`
	Shutdown     ShutdownConfig            `yaml:"shutdown"`
}

// RedisConfig connects shared Redis-backed stores.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SessionConfig selects and configures the session driver.
type SessionConfig struct {
	// Driver is one of memory, file, database, redis, null.
	Driver string `yaml:"driver"`
	// Dir is the session directory for the file driver.
	Dir string `yaml:"dir"`
	// DSN is the database connection string for the database driver.
	DSN string `yaml:"dsn"`
	// Table overrides the database driver's table name.
	Table string `yaml:"table"`

	Cookie session.Config `yaml:"cookie"`
}

// SitesConfig maps request hosts onto distributors.
type SitesConfig struct {
	// Domains: host -> path prefix -> distributor id. The host "*" catches
	// requests no other entry claims.
	Domains map[string]map[string]string `yaml:"domains"`
	// Aliases: alias host -> canonical host.
	Aliases map[string]string `yaml:"aliases"`
}

// DistributorConfig declares one distributor runtime.
type DistributorConfig struct {
	// Dist is the distributor id, "code" or "code@tag".
	Dist string `yaml:"dist"`
	// BaseURL is the distributor's public base, used for inbound HTTP
	// bridge calls. Empty means subprocess bridge only.
	BaseURL string `yaml:"base_url"`
	// ModulePath is the filesystem root for the distributor's modules.
	ModulePath string `yaml:"module_path"`
	// Modules maps enabled module codes to the version each one is pinned
	// to. An empty version accepts whatever is registered.
	Modules map[string]string `yaml:"modules"`
	// ExcludeModule drops module codes from loading.
	ExcludeModule []string `yaml:"exclude_module"`
	// Greedy loads every registered module, ignoring the Modules list.
	Greedy bool `yaml:"greedy"`
	// CatchAll lets the distributor claim hosts no site entry matched.
	CatchAll bool `yaml:"catch_all"`
	// Fallback names a distributor that serves this one's route misses.
	Fallback string `yaml:"fallback"`

	InternalBridge BridgeConfig `yaml:"internal_bridge"`
}

// BridgeConfig controls the distributor's inbound bridge endpoint.
type BridgeConfig struct {
	Enabled bool `yaml:"enabled"`
	// Allow lists caller ids: exact "code@tag" or wildcard "code@*".
	Allow  []string `yaml:"allow"`
	Secret string   `yaml:"secret"`
	// Path overrides the bridge endpoint path, default "/__internal/bridge".
	Path string `yaml:"path"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ShutdownConfig controls graceful shutdown behavior.
type ShutdownConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig returns a config with documented defaults applied.
func DefaultConfig() *Config {
	return &Config{
		Listen: ":8080",
		Logging: logging.Config{
			Level: "info",
		},
		Session: SessionConfig{
			Driver: "memory",
			Table:  "razy_sessions",
		},
		Metrics: MetricsConfig{
			Path: "/metrics",
		},
		Shutdown: ShutdownConfig{
			Timeout: 30 * time.Second,
		},
	}
}
