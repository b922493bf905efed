// Package config loads ari's configuration from an optional YAML file
// plus ARI_-prefixed environment variables, matching spec.md §6's
// enumerated field list.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is stripped from every environment variable koanf considers.
const EnvPrefix = "ARI_"

// Redis configures the shared Redis connection pool and keyspace prefix.
type Redis struct {
	Address   string `koanf:"address"`
	Namespace string `koanf:"namespace"`
	Database  int    `koanf:"database"`
}

// AndesiteNode is one audio-node endpoint the core may dial.
type AndesiteNode struct {
	URL      string `koanf:"url"`
	Password string `koanf:"password"`
}

// Andesite configures the audio-node fleet and the bot user id voice
// handshakes are correlated against.
type Andesite struct {
	UserID uint64         `koanf:"user_id"`
	Nodes  []AndesiteNode `koanf:"nodes"`
}

// Transport is one bus transport endpoint, e.g. a NATS server URL.
type Transport struct {
	Type string `koanf:"type"`
	URL  string `koanf:"url"`
}

// Config is the whole of ari's static configuration, per spec.md §6.
type Config struct {
	Redis      Redis       `koanf:"redis"`
	Andesite   Andesite    `koanf:"andesite"`
	Realm      string      `koanf:"realm"`
	Transports []Transport `koanf:"transports"`
}

// applyDefaults fills in the zero-valued fields spec.md §6 gives a
// default for: redis.namespace ("ari"), redis.database (0, already the
// zero value), realm ("internal").
func (c *Config) applyDefaults() {
	if c.Redis.Namespace == "" {
		c.Redis.Namespace = "ari"
	}
	if c.Realm == "" {
		c.Realm = "internal"
	}
}

// Load reads path (if non-empty and present) as a YAML file, layers
// ARI_-prefixed environment variables over it, and returns the result.
// A missing file is not an error — env vars and defaults still apply.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", envKeyToPath)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("config: reading environment: %w", err)
	}

	out := &Config{}
	if err := k.Unmarshal("", out); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	out.applyDefaults()

	if err := out.validate(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Config) validate() error {
	if c.Redis.Address == "" {
		return fmt.Errorf("config: redis.address is required")
	}
	if len(c.Andesite.Nodes) == 0 {
		return fmt.Errorf("config: at least one andesite.nodes[] entry is required")
	}
	return nil
}

// envPaths maps the flattened environment variable name (prefix
// stripped, lowercased) to its koanf dotted path. A plain
// underscore-to-dot translation can't tell a nesting separator from an
// underscore inside a field name (e.g. "user_id"), so the scalar fields
// are named explicitly; nodes[]/transports[] are file-only.
var envPaths = map[string]string{
	"redis_address":    "redis.address",
	"redis_namespace":  "redis.namespace",
	"redis_database":   "redis.database",
	"andesite_user_id": "andesite.user_id",
	"realm":            "realm",
}

// envKeyToPath turns ARI_REDIS_ADDRESS into redis.address, matching
// spec.md §6's "environment variables prefixed ARI_".
func envKeyToPath(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	if path, ok := envPaths[key]; ok {
		return path
	}
	return ""
}
