package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultServerAddress  = ":8090"
	defaultTimeoutSeconds = 120
	defaultWorkspaceTTL   = 60 // minutes
	defaultQueueSize      = 32
)

// Config represents runtime configuration for the gateway and the CLI.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config" yaml:"basic_config"`
	Backend     BackendConfig             `json:"backend" yaml:"backend"`
	Databases   map[string]DatabaseConfig `json:"databases" yaml:"databases"`
	Redis       RedisConfig               `json:"redis" yaml:"redis"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address" yaml:"server_address"`
	// GatewayAPIKey guards the gateway's own routes when set.
	GatewayAPIKey     string   `json:"gateway_api_key" yaml:"gateway_api_key"`
	AllowedOrigins    []string `json:"allowed_origins" yaml:"allowed_origins"`
	WorkspaceTTL      int      `json:"workspace_ttl" yaml:"workspace_ttl"` // minutes
	MinWorkers        int      `json:"min_workers" yaml:"min_workers"`
	MaxWorkers        int      `json:"max_workers" yaml:"max_workers"`
	QueueSize         int      `json:"queue_size" yaml:"queue_size"`
	WorkerIdleTimeout int      `json:"worker_idle_timeout" yaml:"worker_idle_timeout"` // minutes
	EnableRedis       bool     `json:"enable_redis" yaml:"enable_redis"`
}

// BackendConfig describes the clinical RAG backend the client talks to.
type BackendConfig struct {
	DocumentsBaseURL string `json:"documents_base_url" yaml:"documents_base_url"`
	SummariesBaseURL string `json:"summaries_base_url" yaml:"summaries_base_url"`
	APIKey           string `json:"api_key" yaml:"api_key"`
	TimeoutSeconds   int    `json:"timeout_seconds" yaml:"timeout_seconds"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn" yaml:"dsn"`
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	DBName   string `json:"dbname" yaml:"dbname"`
	Params   string `json:"params" yaml:"params"`
}

type RedisConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

// Timeout returns the per-request backend timeout.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutSeconds <= 0 {
		return defaultTimeoutSeconds * time.Second
	}
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// Load reads configuration from the provided path (defaults to config.json).
// Files ending in .yaml or .yml are decoded as YAML.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	switch strings.ToLower(filepath.Ext(absPath)) {
	case ".yaml", ".yml":
		if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	default:
		if err := json.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}

	if err := cfg.normalize(filepath.Dir(absPath)); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) normalize(baseDir string) error {
	if key := os.Getenv("SCRIBEDESK_API_KEY"); key != "" {
		cfg.Backend.APIKey = key
	}
	if cfg.Backend.APIKey == "" {
		return fmt.Errorf("backend api_key must be configured")
	}
	if cfg.Backend.DocumentsBaseURL == "" {
		return fmt.Errorf("backend documents_base_url must be configured")
	}
	cfg.Backend.DocumentsBaseURL = strings.TrimRight(cfg.Backend.DocumentsBaseURL, "/")
	if cfg.Backend.SummariesBaseURL == "" {
		cfg.Backend.SummariesBaseURL = cfg.Backend.DocumentsBaseURL
	}
	cfg.Backend.SummariesBaseURL = strings.TrimRight(cfg.Backend.SummariesBaseURL, "/")

	if cfg.BasicConfig.ServerAddress == "" {
		cfg.BasicConfig.ServerAddress = defaultServerAddress
	}
	if cfg.BasicConfig.WorkspaceTTL <= 0 {
		cfg.BasicConfig.WorkspaceTTL = defaultWorkspaceTTL
	}
	if cfg.BasicConfig.MinWorkers <= 0 {
		cfg.BasicConfig.MinWorkers = 1
	}
	if cfg.BasicConfig.MaxWorkers < cfg.BasicConfig.MinWorkers {
		cfg.BasicConfig.MaxWorkers = cfg.BasicConfig.MinWorkers
	}
	if cfg.BasicConfig.QueueSize <= 0 {
		cfg.BasicConfig.QueueSize = defaultQueueSize
	}

	for name, db := range cfg.Databases {
		if isSQLite(name) && db.DSN != "" && !strings.HasPrefix(db.DSN, "file:") && db.DSN != ":memory:" && !filepath.IsAbs(db.DSN) {
			db.DSN = filepath.Join(baseDir, db.DSN)
			cfg.Databases[name] = db
		}
	}
	return nil
}

func isSQLite(name string) bool {
	switch strings.ToLower(name) {
	case "sqlite", "sqlite3":
		return true
	}
	return false
}
