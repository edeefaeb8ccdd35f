package model

import "time"

// Config holds all clausecheck configuration.
// Fields carry both yaml (config show/init) and mapstructure (viper) tags.
type Config struct {
	Retrieval   RetrievalConfig   `yaml:"retrieval" mapstructure:"retrieval"`
	Rules       RulesConfig       `yaml:"rules" mapstructure:"rules"`
	Translate   TranslateConfig   `yaml:"translate" mapstructure:"translate"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Network     NetworkConfig     `yaml:"network" mapstructure:"network"`
}

// RetrievalConfig configures the knowledge index
type RetrievalConfig struct {
	TopK         int             `yaml:"top_k" mapstructure:"top_k"`
	ForceLexical bool            `yaml:"force_lexical" mapstructure:"force_lexical"`
	CorpusPath   string          `yaml:"corpus_path" mapstructure:"corpus_path"`     // YAML corpus; empty = built-in
	SnapshotPath string          `yaml:"snapshot_path" mapstructure:"snapshot_path"` // dense index snapshot
	Embedding    EmbeddingConfig `yaml:"embedding" mapstructure:"embedding"`
}

// EmbeddingConfig selects the dense embedding backend
type EmbeddingConfig struct {
	Provider string        `yaml:"provider" mapstructure:"provider"` // "openai" or "" (lexical only)
	Model    string        `yaml:"model" mapstructure:"model"`
	BaseURL  string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	APIKey   string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// RulesConfig locates the rule catalog
type RulesConfig struct {
	CatalogPath string `yaml:"catalog_path" mapstructure:"catalog_path"` // empty = built-in NBKR atoms
}

// TranslateConfig configures the translation collaborator
type TranslateConfig struct {
	Provider    string        `yaml:"provider" mapstructure:"provider"` // openai, ollama, or "" (passthrough)
	Model       string        `yaml:"model" mapstructure:"model"`
	BaseURL     string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	APIKey      string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	Targets     []string      `yaml:"targets" mapstructure:"targets"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Concurrency int           `yaml:"concurrency" mapstructure:"concurrency"`
	RPS         float64       `yaml:"rps" mapstructure:"rps"`
	Burst       int           `yaml:"burst" mapstructure:"burst"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"`
}

// CacheConfig configures translation and embedding caches
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir     string        `yaml:"dir" mapstructure:"dir"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// StoreConfig configures SQLite persistence
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"` // empty disables persistence
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // console or json
}

// ConcurrencyConfig sizes worker pools
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// NetworkConfig holds proxy settings for outbound provider calls.
// Empty values fall back to HTTP_PROXY / HTTPS_PROXY / NO_PROXY.
type NetworkConfig struct {
	HTTPProxy  string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy    string `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Retrieval: RetrievalConfig{
			TopK: 3,
			Embedding: EmbeddingConfig{
				Model:   "text-embedding-3-small",
				Timeout: 30 * time.Second,
			},
		},
		Translate: TranslateConfig{
			Targets:     []string{"en", "ky"},
			Timeout:     60 * time.Second,
			Concurrency: 4,
			RPS:         2,
			Burst:       4,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     "~/.clausecheck/cache",
			TTL:     24 * time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
	}
}
