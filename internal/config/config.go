// Package config loads the wizards configuration from defaults, an optional
// YAML file and WIZARDS_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Drivers.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"
)

// Template sources.
const (
	TemplatesBuiltin = "builtin"
	TemplatesYAML    = "yaml"
	TemplatesLoam    = "loam"
)

// Config is the typed configuration.
type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	Server      ServerConfig      `mapstructure:"server"`
	MCP         MCPConfig         `mapstructure:"mcp"`
	Store       StoreConfig       `mapstructure:"store"`
	Preferences PreferencesConfig `mapstructure:"preferences"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Templates   TemplatesConfig   `mapstructure:"templates"`
	LLM         LLMConfig         `mapstructure:"llm"`
	Drawer      DrawerConfig      `mapstructure:"drawer"`
}

type ServerConfig struct {
	Addr     string `mapstructure:"addr"`
	Metrics  bool   `mapstructure:"metrics"`
	Validate bool   `mapstructure:"validate"`
}

type MCPConfig struct {
	Transport string `mapstructure:"transport"` // stdio or sse
	Port      int    `mapstructure:"port"`
}

// StoreConfig selects where drawer snapshots live.
type StoreConfig struct {
	Driver        string        `mapstructure:"driver"`
	Dir           string        `mapstructure:"dir"`
	SQLitePath    string        `mapstructure:"sqlite_path"`
	TTL           time.Duration `mapstructure:"ttl"`
	EncryptionKey string        `mapstructure:"encryption_key"` // base64, 32 bytes
	FallbackKeys  []string      `mapstructure:"fallback_keys"`
	MaskPatterns  []string      `mapstructure:"mask_patterns"`
}

// PreferencesConfig selects where the skip-starting-message flag lives.
type PreferencesConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type TemplatesConfig struct {
	Source string `mapstructure:"source"`
	Path   string `mapstructure:"path"`
}

// LLMConfig configures the OpenAI-compatible backend. An empty APIKey and
// BaseURL disables it; AI prompts then fall back to template matching.
type LLMConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	MaxSuggestions    int           `mapstructure:"max_suggestions"`
}

// Enabled reports whether an LLM backend is configured.
func (c LLMConfig) Enabled() bool {
	return c.APIKey != "" || c.BaseURL != ""
}

type DrawerConfig struct {
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	LockTTL      time.Duration `mapstructure:"lock_ttl"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() map[string]any {
	return map[string]any{
		"log_level":  "info",
		"log_format": "text",
		"server": map[string]any{
			"addr":     ":8080",
			"metrics":  true,
			"validate": true,
		},
		"mcp": map[string]any{
			"transport": "stdio",
			"port":      8081,
		},
		"store": map[string]any{
			"driver":      DriverMemory,
			"dir":         ".wizards/drawers",
			"sqlite_path": ".wizards/wizards.db",
			"ttl":         "0s",
		},
		"preferences": map[string]any{
			"driver": DriverMemory,
			"path":   ".wizards/preferences.json",
		},
		"redis": map[string]any{
			"addr":   "localhost:6379",
			"db":     0,
			"prefix": "wizards:",
		},
		"templates": map[string]any{
			"source": TemplatesBuiltin,
		},
		"llm": map[string]any{
			"model":               "gpt-4o-mini",
			"timeout":             "30s",
			"requests_per_second": 0,
			"burst":               1,
			"max_suggestions":     5,
		},
		"drawer": map[string]any{
			"fetch_timeout": "60s",
			"lock_ttl":      "30s",
		},
	}
}

// envKeys maps environment variables to configuration paths.
var envKeys = map[string]string{
	"WIZARDS_LOG_LEVEL":               "log_level",
	"WIZARDS_LOG_FORMAT":              "log_format",
	"WIZARDS_SERVER_ADDR":             "server.addr",
	"WIZARDS_SERVER_METRICS":          "server.metrics",
	"WIZARDS_SERVER_VALIDATE":         "server.validate",
	"WIZARDS_MCP_TRANSPORT":           "mcp.transport",
	"WIZARDS_MCP_PORT":                "mcp.port",
	"WIZARDS_STORE_DRIVER":            "store.driver",
	"WIZARDS_STORE_DIR":               "store.dir",
	"WIZARDS_STORE_SQLITE_PATH":       "store.sqlite_path",
	"WIZARDS_STORE_TTL":               "store.ttl",
	"WIZARDS_STORE_ENCRYPTION_KEY":    "store.encryption_key",
	"WIZARDS_STORE_FALLBACK_KEYS":     "store.fallback_keys",
	"WIZARDS_STORE_MASK_PATTERNS":     "store.mask_patterns",
	"WIZARDS_PREFERENCES_DRIVER":      "preferences.driver",
	"WIZARDS_PREFERENCES_PATH":        "preferences.path",
	"WIZARDS_REDIS_ADDR":              "redis.addr",
	"WIZARDS_REDIS_PASSWORD":          "redis.password",
	"WIZARDS_REDIS_DB":                "redis.db",
	"WIZARDS_REDIS_PREFIX":            "redis.prefix",
	"WIZARDS_TEMPLATES_SOURCE":        "templates.source",
	"WIZARDS_TEMPLATES_PATH":          "templates.path",
	"WIZARDS_LLM_BASE_URL":            "llm.base_url",
	"WIZARDS_LLM_API_KEY":             "llm.api_key",
	"WIZARDS_LLM_MODEL":               "llm.model",
	"WIZARDS_LLM_TIMEOUT":             "llm.timeout",
	"WIZARDS_LLM_REQUESTS_PER_SECOND": "llm.requests_per_second",
	"WIZARDS_LLM_BURST":               "llm.burst",
	"WIZARDS_LLM_MAX_SUGGESTIONS":     "llm.max_suggestions",
	"WIZARDS_DRAWER_FETCH_TIMEOUT":    "drawer.fetch_timeout",
	"WIZARDS_DRAWER_LOCK_TTL":         "drawer.lock_ttl",
}

// Load reads the configuration. path may be empty; a missing file is an error
// only when path was given explicitly.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	raw := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		var file map[string]any
		if err := yaml.Unmarshal(data, &file); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		merge(raw, file)
	}

	for env, key := range envKeys {
		if v, ok := lookup(env); ok {
			set(raw, key, v)
		}
	}

	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			trimSliceHook,
		),
	})
	if err != nil {
		return Config{}, err
	}
	if err := decoder.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks enumerated fields.
func (c Config) Validate() error {
	var errs []error
	oneOf := func(field, v string, allowed ...string) {
		for _, a := range allowed {
			if v == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s: %q is not one of %s", field, v, strings.Join(allowed, ", ")))
	}
	oneOf("store.driver", c.Store.Driver, DriverMemory, DriverFile, DriverRedis, DriverSQLite)
	oneOf("preferences.driver", c.Preferences.Driver, DriverMemory, DriverFile, DriverRedis, DriverSQLite)
	oneOf("templates.source", c.Templates.Source, TemplatesBuiltin, TemplatesYAML, TemplatesLoam)
	oneOf("mcp.transport", c.MCP.Transport, "stdio", "sse")
	oneOf("log_format", strings.ToLower(c.LogFormat), "text", "json")
	if c.Templates.Source != TemplatesBuiltin && c.Templates.Path == "" {
		errs = append(errs, fmt.Errorf("templates.path is required for source %q", c.Templates.Source))
	}
	return errors.Join(errs...)
}

// merge copies src into dst, descending into nested maps.
func merge(dst, src map[string]any) {
	for k, v := range src {
		if sub, ok := v.(map[string]any); ok {
			if existing, ok := dst[k].(map[string]any); ok {
				merge(existing, sub)
				continue
			}
		}
		dst[k] = v
	}
}

// set assigns a dotted key, creating intermediate maps.
func set(m map[string]any, key, value string) {
	parts := strings.Split(key, ".")
	for _, p := range parts[:len(parts)-1] {
		sub, ok := m[p].(map[string]any)
		if !ok {
			sub = map[string]any{}
			m[p] = sub
		}
		m = sub
	}
	m[parts[len(parts)-1]] = value
}

func trimSliceHook(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf([]string{}) {
		return data, nil
	}
	items, ok := data.([]string)
	if !ok {
		return data, nil
	}
	out := items[:0]
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}
