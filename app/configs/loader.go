package configs

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	LLM      LLMConfig      `yaml:"llm" validate:"required"`
	Qdrant   QdrantConfig   `yaml:"qdrant"`
	Storage  StorageConfig  `yaml:"storage"`
	Chunking ChunkingConfig `yaml:"chunking"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LLMConfig struct {
	BaseURL        string `yaml:"base_url" validate:"required,url"`
	APIKeyEnv      string `yaml:"api_key_env"`
	ChatModel      string `yaml:"chat_model" validate:"required"`
	EmbeddingModel string `yaml:"embedding_model" validate:"required"`
	VectorSize     uint64 `yaml:"vector_size" validate:"required,gt=0"`
}

type QdrantConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port" validate:"gte=0,lte=65535"`
}

type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
	DBPath  string `yaml:"db_path"`
}

type ChunkingConfig struct {
	Size    int `yaml:"size" validate:"gte=0"`
	Overlap int `yaml:"overlap" validate:"gte=0"`
}

// LoadConfig reads a YAML config file, expanding ${VAR} references from the
// environment before parsing.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read configs file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
	if c.Qdrant.Host == "" {
		c.Qdrant.Host = "localhost"
	}
	if c.Qdrant.Port == 0 {
		c.Qdrant.Port = 6334
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "data"
	}
}

func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Chunking.Size > 0 && c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("invalid config: chunking overlap %d must be smaller than size %d",
			c.Chunking.Overlap, c.Chunking.Size)
	}
	return nil
}

// APIKey resolves the LLM API key from the configured environment variable.
func (c *Config) APIKey() string {
	if c.LLM.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.LLM.APIKeyEnv)
}
