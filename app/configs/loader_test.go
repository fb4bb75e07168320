package configs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validConfig = `
llm:
  base_url: http://localhost:1234
  chat_model: qwen2.5-7b-instruct
  embedding_model: nomic-embed-text
  vector_size: 768
chunking:
  size: 1000
  overlap: 200
`

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:1234", cfg.LLM.BaseURL)
	assert.Equal(t, uint64(768), cfg.LLM.VectorSize)
	assert.Equal(t, 1000, cfg.Chunking.Size)

	// defaults
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, "localhost", cfg.Qdrant.Host)
	assert.Equal(t, 6334, cfg.Qdrant.Port)
	assert.Equal(t, "data", cfg.Storage.DataDir)
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("TEST_LLM_URL", "http://llm.internal:9000")
	cfg, err := LoadConfig(writeConfig(t, `
llm:
  base_url: ${TEST_LLM_URL}
  chat_model: m
  embedding_model: e
  vector_size: 384
`))
	require.NoError(t, err)
	assert.Equal(t, "http://llm.internal:9000", cfg.LLM.BaseURL)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigRejectsMissingModel(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
llm:
  base_url: http://localhost:1234
  embedding_model: e
  vector_size: 768
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ChatModel")
}

func TestLoadConfigRejectsOverlapNotBelowSize(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, validConfig+`
`))
	require.NoError(t, err)

	_, err = LoadConfig(writeConfig(t, `
llm:
  base_url: http://localhost:1234
  chat_model: m
  embedding_model: e
  vector_size: 768
chunking:
  size: 100
  overlap: 100
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlap")
}

func TestAPIKeyFromEnv(t *testing.T) {
	t.Setenv("TEST_API_KEY", "secret")
	cfg := &Config{LLM: LLMConfig{APIKeyEnv: "TEST_API_KEY"}}
	assert.Equal(t, "secret", cfg.APIKey())

	cfg.LLM.APIKeyEnv = ""
	assert.Equal(t, "", cfg.APIKey())
}

func TestBuildChunkerDefaults(t *testing.T) {
	cfg := &Config{}
	c := cfg.BuildChunker()
	assert.Equal(t, 1000, c.Size)
	assert.Equal(t, 200, c.Overlap)
}
