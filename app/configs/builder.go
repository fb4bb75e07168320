package configs

import (
	"bloom/app/chunker"
	"bloom/app/models"
	"bloom/app/vectordb"
)

func (c *Config) BuildChunker() chunker.Chunker {
	return chunker.New(c.Chunking.Size, c.Chunking.Overlap)
}

func (c *Config) BuildLLMClient() *models.LLMClient {
	return models.NewLLMClient(c.LLM.BaseURL, c.APIKey(), c.LLM.ChatModel, c.LLM.EmbeddingModel)
}

func (c *Config) BuildQdrantStore() (*vectordb.QdrantStore, error) {
	return vectordb.NewQdrantStore(c.Qdrant.Host, c.Qdrant.Port, c.LLM.VectorSize)
}
