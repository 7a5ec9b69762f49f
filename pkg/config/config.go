package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/sirosfoundation/go-httpservice/pkg/logging"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "HTTPSERVICE"

// Config represents the application configuration
type Config struct {
	Server    ServerConfig     `yaml:"server" envconfig:"SERVER"`
	Engine    EngineConfig     `yaml:"engine" envconfig:"ENGINE"`
	Logging   logging.Config   `yaml:"logging" envconfig:"LOGGING"`
	CORS      CORSConfig       `yaml:"cors" envconfig:"CORS"`
	RateLimit RateLimitConfig  `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
	Audit     AuditConfig      `yaml:"audit" envconfig:"AUDIT"`
	Metrics   MetricsConfig    `yaml:"metrics" envconfig:"METRICS"`
	Resources []ResourceConfig `yaml:"resources" ignored:"true"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host       string `yaml:"host" envconfig:"HOST"`
	Port       int    `yaml:"port" envconfig:"PORT"`
	AdminPort  int    `yaml:"admin_port" envconfig:"ADMIN_PORT"`   // Admin API port (0 to disable)
	AdminToken string `yaml:"admin_token" envconfig:"ADMIN_TOKEN"` // Bearer token for admin API (auto-generated if empty)
	BaseURL    string `yaml:"base_url" envconfig:"BASE_URL"`
	// ShutdownTimeout bounds graceful shutdown (seconds)
	ShutdownTimeout int `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// EngineConfig controls the shared HTTP engine and the contexts the
// registry creates in it.
type EngineConfig struct {
	HostName string `yaml:"host_name" envconfig:"HOST_NAME"`
	// WorkDir holds the per-context scratch directories. Empty uses the OS
	// temp dir.
	WorkDir string `yaml:"work_dir" envconfig:"WORK_DIR"`
	// ServeDocBase lets each context's default handler serve its work dir.
	ServeDocBase bool `yaml:"serve_doc_base" envconfig:"SERVE_DOC_BASE"`
}

// CORSConfig contains CORS settings applied to both routers
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	AllowedMethods   []string `yaml:"allowed_methods" envconfig:"ALLOWED_METHODS"`
	AllowedHeaders   []string `yaml:"allowed_headers" envconfig:"ALLOWED_HEADERS"`
	ExposedHeaders   []string `yaml:"exposed_headers" envconfig:"EXPOSED_HEADERS"`
	AllowCredentials bool     `yaml:"allow_credentials" envconfig:"ALLOW_CREDENTIALS"`
	MaxAge           int      `yaml:"max_age" envconfig:"MAX_AGE"` // seconds
}

// RateLimitConfig contains admin API rate limiting settings
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled" envconfig:"ENABLED"`
	RequestsPerSecond float64 `yaml:"requests_per_second" envconfig:"REQUESTS_PER_SECOND"`
	Burst             int     `yaml:"burst" envconfig:"BURST"`
}

// SetDefaults fills in zero values
func (c *RateLimitConfig) SetDefaults() {
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 10
	}
	if c.Burst <= 0 {
		c.Burst = 20
	}
}

// AuditConfig selects where registration events are recorded
type AuditConfig struct {
	Type          string        `yaml:"type" envconfig:"TYPE"` // memory, mongodb
	RetentionDays int           `yaml:"retention_days" envconfig:"RETENTION_DAYS"`
	MongoDB       MongoDBConfig `yaml:"mongodb" envconfig:"MONGODB"`
}

// Retention returns how long audit records are kept, 0 for forever
func (c AuditConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// MongoDBConfig contains MongoDB-specific configuration
type MongoDBConfig struct {
	URI      string `yaml:"uri" envconfig:"URI"`
	Database string `yaml:"database" envconfig:"DATABASE"`
	Timeout  int    `yaml:"timeout" envconfig:"TIMEOUT"` // seconds
}

// MetricsConfig controls the prometheus endpoint
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" envconfig:"ENABLED"`
	Namespace string `yaml:"namespace" envconfig:"NAMESPACE"`
}

// ResourceConfig is a static resource registration made at boot
type ResourceConfig struct {
	Alias string `yaml:"alias"`
	Dir   string `yaml:"dir"`
	Owner string `yaml:"owner"`
	// Name is the base resource name inside Dir, "/" when empty
	Name string             `yaml:"name"`
	Auth ResourceAuthConfig `yaml:"auth"`
}

// ResourceAuthConfig protects a static resource registration
type ResourceAuthConfig struct {
	Type  string            `yaml:"type"` // none, basic, bearer
	Realm string            `yaml:"realm"`
	Users map[string]string `yaml:"users"` // username -> bcrypt hash
	// Secret and Issuer verify HS256 bearer tokens
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// Load loads configuration from file and environment variables
func Load(configFile string) (*Config, error) {
	cfg := defaultConfig()

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			// Missing file: defaults and env vars only
		} else {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	for i := range cfg.Resources {
		if cfg.Resources[i].Owner == "" {
			cfg.Resources[i].Owner = "config"
		}
		if cfg.Resources[i].Name == "" {
			cfg.Resources[i].Name = "/"
		}
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			AdminPort:       8081,
			ShutdownTimeout: 30,
		},
		Engine: EngineConfig{
			HostName: "localhost",
		},
		Logging: logging.DefaultConfig(),
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Origin", "Content-Type", "Authorization"},
			MaxAge:         3600,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 10,
			Burst:             20,
		},
		Audit: AuditConfig{
			Type:          "memory",
			RetentionDays: 30,
			MongoDB: MongoDBConfig{
				URI:      "mongodb://localhost:27017",
				Database: "httpservice",
				Timeout:  10,
			},
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "httpservice",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.AdminPort < 0 || c.Server.AdminPort > 65535 {
		return fmt.Errorf("invalid admin port: %d", c.Server.AdminPort)
	}

	if c.Server.AdminPort != 0 && c.Server.AdminPort == c.Server.Port {
		return fmt.Errorf("admin port must differ from server port")
	}

	if c.Engine.HostName == "" {
		return fmt.Errorf("engine host_name is required")
	}

	if c.Engine.WorkDir != "" {
		info, err := os.Stat(c.Engine.WorkDir)
		if err != nil {
			return fmt.Errorf("engine work_dir: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("engine work_dir %s is not a directory", c.Engine.WorkDir)
		}
	}

	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Audit.Type != "memory" && c.Audit.Type != "mongodb" {
		return fmt.Errorf("invalid audit type: %s (must be memory or mongodb)", c.Audit.Type)
	}

	if c.Audit.RetentionDays < 0 {
		return fmt.Errorf("invalid audit retention: %d days", c.Audit.RetentionDays)
	}

	if c.Audit.Type == "mongodb" && c.Audit.MongoDB.URI == "" {
		return fmt.Errorf("mongodb uri is required when using mongodb audit store")
	}

	seen := make(map[string]bool, len(c.Resources))
	for _, r := range c.Resources {
		if !strings.HasPrefix(r.Alias, "/") {
			return fmt.Errorf("resource alias %q must start with '/'", r.Alias)
		}
		if seen[r.Alias] {
			return fmt.Errorf("resource alias %q configured twice", r.Alias)
		}
		seen[r.Alias] = true
		if r.Dir == "" {
			return fmt.Errorf("resource %s: dir is required", r.Alias)
		}
		switch r.Auth.Type {
		case "", "none":
		case "basic":
			if len(r.Auth.Users) == 0 {
				return fmt.Errorf("resource %s: basic auth needs at least one user", r.Alias)
			}
		case "bearer":
			if r.Auth.Secret == "" {
				return fmt.Errorf("resource %s: bearer auth needs a secret", r.Alias)
			}
		default:
			return fmt.Errorf("resource %s: invalid auth type %s", r.Alias, r.Auth.Type)
		}
	}

	return nil
}

// Address returns the server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AdminAddress returns the admin server address
func (c *ServerConfig) AdminAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.AdminPort)
}

// AbsDir returns Dir made absolute relative to base, the directory of the
// config file.
func (r ResourceConfig) AbsDir(base string) string {
	if filepath.IsAbs(r.Dir) || base == "" {
		return r.Dir
	}
	return filepath.Join(base, r.Dir)
}
