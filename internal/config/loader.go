package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/razy-dev/razy/internal/distributor"
)

var validSessionDrivers = map[string]bool{
	"memory": true, "file": true, "database": true, "redis": true, "null": true,
}

// Loader handles configuration loading and parsing
type Loader struct {
	envPattern *regexp.Regexp
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		envPattern: regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`),
	}
}

// Load reads and parses a configuration file
func (l *Loader) Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return l.Parse(data)
}

// Parse parses configuration from YAML bytes
func (l *Loader) Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := l.expandEnvVars(string(data))

	// Start with defaults
	cfg := DefaultConfig()

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := l.validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} with environment variable values
func (l *Loader) expandEnvVars(input string) string {
	return l.envPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := strings.TrimPrefix(strings.TrimSuffix(match, "}"), "${")
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match // Keep original if env var not set
	})
}

// validate checks configuration for errors
func (l *Loader) validate(cfg *Config) error {
	if cfg.Listen == "" {
		return fmt.Errorf("listen address is required")
	}

	if !validSessionDrivers[cfg.Session.Driver] {
		return fmt.Errorf("session driver %q: want memory, file, database, redis, or null", cfg.Session.Driver)
	}
	switch cfg.Session.Driver {
	case "file":
		if cfg.Session.Dir == "" {
			return fmt.Errorf("session driver file requires session.dir")
		}
	case "database":
		if cfg.Session.DSN == "" {
			return fmt.Errorf("session driver database requires session.dsn")
		}
	case "redis":
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("session driver redis requires redis.addr")
		}
	}

	if len(cfg.Distributors) == 0 {
		return fmt.Errorf("at least one distributor is required")
	}

	ids := make(map[string]bool, len(cfg.Distributors))
	for i, dc := range cfg.Distributors {
		id, err := distributor.ParseID(dc.Dist)
		if err != nil {
			return fmt.Errorf("distributor %d: %w", i, err)
		}
		if ids[id.String()] {
			return fmt.Errorf("distributor %s: declared twice", id)
		}
		ids[id.String()] = true

		if dc.InternalBridge.Enabled && dc.InternalBridge.Secret == "" {
			return fmt.Errorf("distributor %s: internal_bridge.secret is required when enabled", id)
		}
		if p := dc.InternalBridge.Path; p != "" && !strings.HasPrefix(p, "/") {
			return fmt.Errorf("distributor %s: internal_bridge.path %q must start with /", id, p)
		}
		for _, entry := range dc.InternalBridge.Allow {
			code, tag, found := strings.Cut(entry, "@")
			if code == "" || (found && tag == "") {
				return fmt.Errorf("distributor %s: allow entry %q is malformed", id, entry)
			}
		}
	}

	for _, dc := range cfg.Distributors {
		if dc.Fallback == "" {
			continue
		}
		fb, err := distributor.ParseID(dc.Fallback)
		if err != nil {
			return fmt.Errorf("distributor %s: fallback: %w", dc.Dist, err)
		}
		if !ids[fb.String()] {
			return fmt.Errorf("distributor %s: fallback %s is not declared", dc.Dist, fb)
		}
	}

	for host, routes := range cfg.Sites.Domains {
		if host == "" {
			return fmt.Errorf("sites: empty host")
		}
		for prefix, dist := range routes {
			id, err := distributor.ParseID(dist)
			if err != nil {
				return fmt.Errorf("sites %s %s: %w", host, prefix, err)
			}
			if !ids[id.String()] {
				return fmt.Errorf("sites %s %s: distributor %s is not declared", host, prefix, id)
			}
		}
	}
	for alias, canonical := range cfg.Sites.Aliases {
		if alias == "" || canonical == "" {
			return fmt.Errorf("sites: empty alias entry")
		}
		if _, ok := cfg.Sites.Domains[canonical]; !ok {
			return fmt.Errorf("sites: alias %s points at unknown host %s", alias, canonical)
		}
	}

	return nil
}
