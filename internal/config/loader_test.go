package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
version: "1"
data_dir: /srv/bernard
memory:
  top_k: 8
  backend: sqlite
compression:
  timeout: 30s
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Memory.TopK != 8 || cfg.Memory.Backend != BackendSQLite {
		t.Errorf("memory = %+v", cfg.Memory)
	}
	if cfg.Memory.SimilarityThreshold != 0.35 || cfg.Memory.MaxEntries != 5000 {
		t.Errorf("defaults lost: %+v", cfg.Memory)
	}
	if cfg.Memory.Dir != filepath.Join("/srv/bernard", "memory") {
		t.Errorf("memory.dir = %q", cfg.Memory.Dir)
	}
	if cfg.Compression.Timeout != 30*time.Second || cfg.Compression.RecentTurnsToKeep != 4 {
		t.Errorf("compression = %+v", cfg.Compression)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("BERNARD_TEST_KEY", "sk-test")

	path := writeConfig(t, `
version: "1"
provider:
  anthropic:
    api_key: ${BERNARD_TEST_KEY}
    model: ${BERNARD_TEST_MODEL:-claude-haiku-4-5}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider.Anthropic.APIKey != "sk-test" {
		t.Errorf("api_key = %q", cfg.Provider.Anthropic.APIKey)
	}
	if cfg.Provider.Anthropic.Model != "claude-haiku-4-5" {
		t.Errorf("model = %q", cfg.Provider.Anthropic.Model)
	}
}

func TestLoad_UnresolvedVariable(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "version: \"1\"\nembedding:\n  api_key: ${BERNARD_SURELY_UNSET_VAR}\n")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "BERNARD_SURELY_UNSET_VAR") {
		t.Fatalf("err = %v, want unresolved variable error", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	t.Parallel()

	if _, err := Load(writeConfig(t, "memory: [unclosed")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadOrDefault_NoFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Chdir(dir)

	cfg, path, err := LoadOrDefault("")
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if path != "" {
		t.Errorf("path = %q, want empty", path)
	}
	if cfg.Memory.Dir != filepath.Join(dir, "data", "bernard", "memory") {
		t.Errorf("memory.dir = %q", cfg.Memory.Dir)
	}
}

func TestLoadOrDefault_XDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	want := filepath.Join(dir, "bernard", FileName)
	if err := os.MkdirAll(filepath.Dir(want), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(want, []byte("version: \"1\"\nlog_level: debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, path, err := LoadOrDefault("")
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if path != want || cfg.LogLevel != "debug" {
		t.Errorf("path=%q log_level=%q", path, cfg.LogLevel)
	}
}

func TestExpandEnv_DefaultWithEscapes(t *testing.T) {
	t.Parallel()

	out, err := expandEnv([]byte(`a: ${BERNARD_UNSET_FOR_TEST:-x\}y}`))
	if err != nil {
		t.Fatalf("expandEnv: %v", err)
	}
	if string(out) != `a: x\}y` {
		t.Errorf("got %q", out)
	}
}

func TestLoad_DefaultONNXModelPaths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		content   string
		model     string
		tokenizer string
	}{
		{
			name:      "derived from data_dir",
			content:   "version: \"1\"\ndata_dir: /srv/bernard\n",
			model:     filepath.Join("/srv/bernard", "models", "all-MiniLM-L6-v2", "model.onnx"),
			tokenizer: filepath.Join("/srv/bernard", "models", "all-MiniLM-L6-v2", "vocab.txt"),
		},
		{
			name:      "explicit paths kept",
			content:   "version: \"1\"\ndata_dir: /srv/bernard\nembedding:\n  model_path: /opt/m.onnx\n  tokenizer_path: /opt/vocab.txt\n",
			model:     "/opt/m.onnx",
			tokenizer: "/opt/vocab.txt",
		},
		{
			name:    "other backends untouched",
			content: "version: \"1\"\ndata_dir: /srv/bernard\nembedding:\n  backend: hash\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg, err := Load(writeConfig(t, tt.content))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.Embedding.ModelPath != tt.model || cfg.Embedding.TokenizerPath != tt.tokenizer {
				t.Errorf("paths = %q, %q; want %q, %q",
					cfg.Embedding.ModelPath, cfg.Embedding.TokenizerPath, tt.model, tt.tokenizer)
			}
			if err := Validate(cfg); err != nil {
				t.Errorf("Validate: %v", err)
			}
		})
	}
}

func TestEmbeddingIdentity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  EmbeddingConfig
		want string
	}{
		{"hash", EmbeddingConfig{Backend: EmbeddingHash, Dimensions: 64}, "hash:64"},
		{"hash default dims", EmbeddingConfig{Backend: EmbeddingHash}, "hash:0"},
		{"http", EmbeddingConfig{Backend: EmbeddingHTTP, Model: "text-embedding-3-small", Dimensions: 1536}, "http:text-embedding-3-small:1536"},
		{"onnx", EmbeddingConfig{Backend: EmbeddingONNX, ModelPath: "/data/models/all-MiniLM-L6-v2/model.onnx"}, "onnx:all-MiniLM-L6-v2/model.onnx:0"},
		{"onnx without model", EmbeddingConfig{Backend: EmbeddingONNX}, "onnx:0"},
		{"none", EmbeddingConfig{Backend: EmbeddingNone}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.cfg.Identity(); got != tt.want {
				t.Errorf("Identity() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDefault_EmbeddingBackend(t *testing.T) {
	t.Parallel()

	if got := Default().Embedding.Backend; got != EmbeddingONNX {
		t.Errorf("default embedding backend = %q, want %q", got, EmbeddingONNX)
	}
}
