package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"bloom/app/utils/restclient"
)

const (
	chatEndpoint      = "/v1/chat/completions"
	embeddingEndpoint = "/v1/embeddings"

	chatTemperature = 0.2
	chatMaxTokens   = 1000
)

var _ Interface = &LLMClient{}

type LLMClient struct {
	restClient      *restclient.RestClient
	chatModel       string
	embeddingsModel string
}

func NewLLMClient(baseURL, apiKey, chatModel, embeddingsModel string) *LLMClient {
	if baseURL == "" {
		baseURL = "http://localhost:1234"
	}
	var headers map[string]string
	if apiKey != "" {
		headers = map[string]string{"Authorization": "Bearer " + apiKey}
	}
	return &LLMClient{
		restClient:      restclient.NewRestClient(baseURL, headers),
		chatModel:       chatModel,
		embeddingsModel: embeddingsModel,
	}
}

func (mc *LLMClient) GenerateResponse(ctx context.Context, messages []Message) (string, error) {
	payload := requestPayload{
		Model:       mc.chatModel,
		Messages:    messages,
		Temperature: chatTemperature,
		MaxTokens:   chatMaxTokens,
	}

	response, err := mc.sendRequestAndParse(ctx, payload, 3)
	if err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", errors.New("empty LLM response")
	}
	return response.Choices[0].Message.Content, nil
}

func (mc *LLMClient) sendRequestAndParse(ctx context.Context, payload requestPayload, maxRetries int) (*ResponseLLM, error) {
	var err error
	var response []byte
	var status int
	var generatedResponse ResponseLLM

	for i := 0; i < maxRetries; i++ {
		select {
		case <-ctx.Done():
			log.Println("🚨 Request canceled before execution")
			return nil, ctx.Err()
		default:
			if err != nil {
				time.Sleep(time.Duration(math.Pow(2, float64(i))) * 100 * time.Millisecond)
			}
			response, status, err = mc.restClient.Post(ctx, chatEndpoint, payload, nil)
			if err != nil {
				log.Printf("⚠️ Attempt %d failed: HTTP %d | Response: %s | Error: %v",
					i, status, string(response), err)
				continue
			}
			if status >= 400 {
				err = fmt.Errorf("chat completion returned HTTP %d: %s", status, string(response))
				log.Printf("⚠️ Attempt %d failed: %v", i, err)
				continue
			}

			if err = json.Unmarshal(response, &generatedResponse); err != nil {
				log.Printf("⚠️ Error parsing response: %v", err)
				continue
			}

			return &generatedResponse, nil
		}
	}

	return nil, fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
}
