package models

import "context"

type Interface interface {
	GenerateResponse(context.Context, []Message) (string, error)
	Embed(context.Context, []string) ([][]float32, error)
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
