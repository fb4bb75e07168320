package storage

import (
	"context"
	"time"
)

type Interface interface {
	AppendMessage(ctx context.Context, record Record) error
	GetMessages(ctx context.Context, sessionID string) ([]Record, error)
	TrimSession(ctx context.Context, sessionID string, keep int) error
	ClearSession(ctx context.Context, sessionID string) error
}

// Record is one turn of a chat session. Seq is assigned on insert and
// is strictly increasing within a session; the first record of a
// session is its system message.
type Record struct {
	SessionID string    `json:"session_id" db:"session_id"`
	Seq       int64     `json:"seq" db:"seq"`
	Role      string    `json:"role" db:"role"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
