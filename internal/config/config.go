// Package config loads codelake configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all codelake configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Store     StoreConfig     `yaml:"store"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	WebSearch WebSearchConfig `yaml:"web_search"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Session   SessionConfig   `yaml:"session"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LLMConfig configures the generation model.
type LLMConfig struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	Timeout     string  `yaml:"timeout"`
}

// EmbeddingConfig configures the embedding engine.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // ollama or genai
	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`
	GenAIAPIKey    string `yaml:"genai_api_key"`
	GenAIModel     string `yaml:"genai_model"`
}

// StoreConfig configures the SQLite document store.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// RetrievalConfig configures the retrieval coordinator.
type RetrievalConfig struct {
	// ConfidenceThreshold is the minimum top-result score below which
	// web fallback is triggered.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	FetchK              int     `yaml:"fetch_k"`
	UseWebSearch        bool    `yaml:"use_web_search"`
}

// WebSearchConfig configures the Google Custom Search fallback source.
type WebSearchConfig struct {
	GoogleAPIKey string `yaml:"google_api_key"`
	GoogleCSEID  string `yaml:"google_cse_id"`
	MaxResults   int    `yaml:"max_results"`
	Throttle     string `yaml:"throttle"`
}

// IngestConfig configures documentation ingestion and the background updater.
type IngestConfig struct {
	DocsPaths      []string `yaml:"docs_paths"`
	ChunkSize      int      `yaml:"chunk_size"`
	ChunkOverlap   int      `yaml:"chunk_overlap"`
	AutoUpdate     bool     `yaml:"auto_update"`
	UpdateInterval string   `yaml:"update_interval"`
}

// SessionConfig configures chat sessions.
type SessionConfig struct {
	// HistoryWindow is the number of past exchanges kept per session.
	HistoryWindow int `yaml:"history_window"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "codelake",
		Version: "0.3.0",

		LLM: LLMConfig{
			Model:       "gemini-2.5-flash",
			Temperature: 0.2,
			Timeout:     "120s",
		},

		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			GenAIModel:     "gemini-embedding-001",
		},

		Store: StoreConfig{
			DatabasePath: "data/codelake.db",
		},

		Retrieval: RetrievalConfig{
			ConfidenceThreshold: 0.85,
			FetchK:              5,
			UseWebSearch:        true,
		},

		WebSearch: WebSearchConfig{
			MaxResults: 3,
			Throttle:   "1s",
		},

		Ingest: IngestConfig{
			ChunkSize:      1000,
			ChunkOverlap:   100,
			UpdateInterval: "24h",
		},

		Session: SessionConfig{
			HistoryWindow: 10,
		},

		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults when
// the file does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides layers environment variables over file/default values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.LLM.APIKey = v
		if c.Embedding.GenAIAPIKey == "" {
			c.Embedding.GenAIAPIKey = v
		}
	}
	if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		c.WebSearch.GoogleAPIKey = v
	}
	if v := os.Getenv("GOOGLE_CSE_ID"); v != "" {
		c.WebSearch.GoogleCSEID = v
	}
	if v := os.Getenv("CODELAKE_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("CODELAKE_DB_PATH"); v != "" {
		c.Store.DatabasePath = v
	}
	if v := os.Getenv("CODELAKE_EMBEDDING_PROVIDER"); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv("CODELAKE_USE_WEB_SEARCH"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Retrieval.UseWebSearch = b
		}
	}
	if v := os.Getenv("CODELAKE_CONFIDENCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Retrieval.ConfidenceThreshold = f
		}
	}
	if v := os.Getenv("CODELAKE_FETCH_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Retrieval.FetchK = n
		}
	}
	if v := os.Getenv("CODELAKE_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Server.Port = n
		}
	}
}

// Validate checks that required settings are present.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key not configured (set GEMINI_API_KEY or llm.api_key)")
	}
	switch c.Embedding.Provider {
	case "ollama", "genai":
	default:
		return fmt.Errorf("invalid embedding provider: %s (valid: ollama, genai)", c.Embedding.Provider)
	}
	if c.Retrieval.FetchK <= 0 {
		return fmt.Errorf("retrieval.fetch_k must be positive, got %d", c.Retrieval.FetchK)
	}
	return nil
}

// LLMTimeout returns the LLM call timeout as a duration.
func (c *Config) LLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 2 * time.Minute
	}
	return d
}

// WebThrottle returns the delay between web page fetches.
func (c *Config) WebThrottle() time.Duration {
	d, err := time.ParseDuration(c.WebSearch.Throttle)
	if err != nil {
		return time.Second
	}
	return d
}

// UpdateInterval returns the background re-ingestion interval.
func (c *Config) UpdateInterval() time.Duration {
	d, err := time.ParseDuration(c.Ingest.UpdateInterval)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// ListenAddr returns the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
