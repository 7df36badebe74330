// Package config handles YAML configuration loading, environment variable
// expansion, defaults, and validation for bernard.
package config

import (
	"path/filepath"
	"strconv"
	"time"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// DataDir is the root for persistent state. Memory.Dir defaults to
	// DataDir/memory.
	DataDir string `yaml:"data_dir"`

	Memory      MemoryConfig      `yaml:"memory"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Compression CompressionConfig `yaml:"compression"`
	Recall      RecallConfig      `yaml:"recall"`
	Provider    ProviderConfig    `yaml:"provider"`
	Worker      WorkerConfig      `yaml:"worker"`
	Gateway     GatewayConfig     `yaml:"gateway"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

// Memory backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// MemoryConfig configures the semantic memory cache.
type MemoryConfig struct {
	TopK                int     `yaml:"top_k"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	MaxEntries          int     `yaml:"max_entries"`
	Backend             string  `yaml:"backend"`
	Dir                 string  `yaml:"dir"`
}

// Embedding backends.
const (
	EmbeddingHash = "hash"
	EmbeddingHTTP = "http"
	EmbeddingONNX = "onnx"
	EmbeddingNone = "none"
)

// EmbeddingConfig selects and configures the embedding backend.
type EmbeddingConfig struct {
	Backend    string `yaml:"backend"`
	Dimensions int    `yaml:"dimensions"`

	// onnx
	ModelPath     string `yaml:"model_path"`
	TokenizerPath string `yaml:"tokenizer_path"`
	LibraryPath   string `yaml:"library_path"`

	// http
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`

	// CacheSize bounds the in-process embedding cache. Zero disables it.
	CacheSize int `yaml:"cache_size"`
}

// Identity names the vector space this configuration produces, for
// example "onnx:all-MiniLM-L6-v2/model.onnx:0". Stores record it and
// re-embed their facts when it changes. An unset dimension is recorded
// as 0, meaning the backend default. The none backend has no identity.
func (e EmbeddingConfig) Identity() string {
	var model string
	switch e.Backend {
	case EmbeddingNone, "":
		return ""
	case EmbeddingONNX:
		if e.ModelPath != "" {
			model = filepath.ToSlash(filepath.Join(filepath.Base(filepath.Dir(e.ModelPath)), filepath.Base(e.ModelPath)))
		}
	case EmbeddingHTTP:
		model = e.Model
	}
	if model == "" {
		return e.Backend + ":" + strconv.Itoa(e.Dimensions)
	}
	return e.Backend + ":" + model + ":" + strconv.Itoa(e.Dimensions)
}

// CompressionConfig tunes conversation compression.
type CompressionConfig struct {
	RecentTurnsToKeep   int           `yaml:"recent_turns_to_keep"`
	Timeout             time.Duration `yaml:"timeout"`
	SummaryMaxTokens    int           `yaml:"summary_max_tokens"`
	ExtractionMaxTokens int           `yaml:"extraction_max_tokens"`
	ToolResultMaxChars  int           `yaml:"tool_result_max_chars"`
}

// RecallConfig tunes query composition and re-ranking.
type RecallConfig struct {
	MaxQueryChars   int     `yaml:"max_query_chars"`
	RecentUserTexts int     `yaml:"recent_user_texts"`
	StickinessBoost float64 `yaml:"stickiness_boost"`
	TopKPerDomain   int     `yaml:"top_k_per_domain"`
	MaxResults      int     `yaml:"max_results"`
}

// ProviderConfig configures the LLM used for summaries and extraction.
type ProviderConfig struct {
	Anthropic AnthropicConfig `yaml:"anthropic"`
}

// AnthropicConfig configures the Anthropic provider.
type AnthropicConfig struct {
	APIKey        string        `yaml:"api_key"`
	Model         string        `yaml:"model"`
	BaseURL       string        `yaml:"base_url"`
	MaxTokens     int           `yaml:"max_tokens"`
	ContextWindow int           `yaml:"context_window"`
	Timeout       time.Duration `yaml:"timeout"`
}

// WorkerConfig schedules the background extraction worker.
type WorkerConfig struct {
	Schedule      string `yaml:"schedule"`
	SweepSchedule string `yaml:"sweep_schedule"`
}

// GatewayConfig configures the HTTP gateway. The memory API is only
// mounted when bearer_token or basic credentials are set.
type GatewayConfig struct {
	Addr          string `yaml:"addr"`
	BearerToken   string `yaml:"bearer_token"`
	BasicUser     string `yaml:"basic_user"`
	BasicPass     string `yaml:"basic_pass"`
	WebhookSecret string `yaml:"webhook_secret"`
}

// TelemetryConfig configures trace export. An empty endpoint disables it.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
	Insecure     bool   `yaml:"insecure"`
}

// Default returns the configuration used when no file is found. Values
// loaded from a file are decoded over it.
func Default() *Config {
	return &Config{
		Version:  "1",
		LogLevel: "info",
		DataDir:  defaultDataDir(),
		Memory: MemoryConfig{
			TopK:                5,
			SimilarityThreshold: 0.35,
			MaxEntries:          5000,
			Backend:             BackendJSON,
		},
		Embedding: EmbeddingConfig{
			Backend:   EmbeddingONNX,
			CacheSize: 1024,
		},
		Compression: CompressionConfig{
			RecentTurnsToKeep:   4,
			Timeout:             60 * time.Second,
			SummaryMaxTokens:    2048,
			ExtractionMaxTokens: 1024,
			ToolResultMaxChars:  500,
		},
		Recall: RecallConfig{
			MaxQueryChars:   1000,
			RecentUserTexts: 4,
			StickinessBoost: 0.05,
		},
		Worker: WorkerConfig{
			Schedule:      "*/5 * * * *",
			SweepSchedule: "*/15 * * * *",
		},
		Gateway: GatewayConfig{
			Addr: "127.0.0.1:8089",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "bernard",
		},
	}
}
