// Package config loads the kektorflow YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sanonone/kektorflow/pkg/embeddings"
	"github.com/sanonone/kektorflow/pkg/llm"
	"github.com/sanonone/kektorflow/pkg/rag"
	"gopkg.in/yaml.v3"
)

// Environment variables that override API keys from the file.
const (
	EnvAPIKey         = "KEKTORFLOW_API_KEY"
	EnvEmbedderAPIKey = "KEKTORFLOW_EMBEDDER_API_KEY"
)

type Config struct {
	Log       LogConfig          `yaml:"log"`
	Embedder  embeddings.Config  `yaml:"embedder"`
	Splitter  rag.SplitterConfig `yaml:"splitter"`
	Speech    SpeechConfig       `yaml:"speech"`
	Engine    EngineConfig       `yaml:"engine"`
	Retrieval RetrievalConfig    `yaml:"retrieval"`
	Server    ServerConfig       `yaml:"server"`
	Journal   JournalConfig      `yaml:"journal"`
	// Cluster is the JSON file holding the data cluster.
	Cluster string `yaml:"cluster"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// SpeechConfig is the text-to-speech backend plus where audio files go.
type SpeechConfig struct {
	llm.Config `yaml:",inline"`
	OutputDir  string `yaml:"output_dir"`
}

type EngineConfig struct {
	// MaxSteps caps node executions per run. 0 retries forever.
	MaxSteps int `yaml:"max_steps"`
}

type RetrievalConfig struct {
	MaxResults          int     `yaml:"max_results"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	AuthToken string `yaml:"auth_token"`
}

type JournalConfig struct {
	// Path of the run journal. Empty disables it.
	Path         string        `yaml:"path"`
	SyncInterval time.Duration `yaml:"sync_interval"`
}

// DefaultConfig works against a local Ollama for embeddings and an
// OpenAI-compatible speech endpoint.
func DefaultConfig() Config {
	return Config{
		Log:      LogConfig{Level: "info", Format: "text"},
		Embedder: embeddings.DefaultConfig(),
		Splitter: rag.DefaultSplitterConfig(),
		Speech: SpeechConfig{
			Config:    llm.DefaultConfig(),
			OutputDir: "audio",
		},
		Engine:    EngineConfig{MaxSteps: 10},
		Retrieval: RetrievalConfig{MaxResults: 10, SimilarityThreshold: 0.6},
		Server:    ServerConfig{Addr: ":9093"},
		Cluster:   "cluster.json",
	}
}

// Load reads the YAML file at path on top of the defaults. Unknown keys are
// an error. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to open config: %w", err)
		}
		defer file.Close()
		if err := decode(file, &cfg); err != nil {
			return cfg, fmt.Errorf("YAML syntax error in %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func decode(r io.Reader, cfg *Config) error {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv() {
	if key := os.Getenv(EnvAPIKey); key != "" {
		c.Speech.APIKey = key
		if c.Embedder.APIKey == "" {
			c.Embedder.APIKey = key
		}
	}
	if key := os.Getenv(EnvEmbedderAPIKey); key != "" {
		c.Embedder.APIKey = key
	}
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	var errs []error
	switch c.Embedder.Provider {
	case "ollama", "openai", "gemini", "genai":
	default:
		errs = append(errs, fmt.Errorf("embedder.provider: unknown provider %q", c.Embedder.Provider))
	}
	if c.Engine.MaxSteps < 0 {
		errs = append(errs, errors.New("engine.max_steps must not be negative"))
	}
	if c.Retrieval.MaxResults < 1 {
		errs = append(errs, errors.New("retrieval.max_results must be at least 1"))
	}
	if t := c.Retrieval.SimilarityThreshold; t < -1 || t > 1 {
		errs = append(errs, fmt.Errorf("retrieval.similarity_threshold %v out of [-1, 1]", t))
	}
	if c.Splitter.ChunkOverlap >= c.Splitter.ChunkSize && c.Splitter.ChunkSize > 0 {
		errs = append(errs, errors.New("splitter.chunk_overlap must be smaller than chunk_size"))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: %q is not text or json", c.Log.Format))
	}
	return errors.Join(errs...)
}
