package storage

import (
	"context"
	"database/sql"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

var _ Interface = &SQLiteHistory{}

type SQLiteHistory struct {
	db *sql.DB
}

func NewSQLiteHistory(dbPath string) (*SQLiteHistory, error) {
	if dbPath == "" {
		projectDir, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		dbPath = filepath.Join(projectDir, "data", "conversations.db")
		log.Printf("📂 db path not set, using default: %s", dbPath)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), os.ModePerm); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS messages (
            session_id TEXT NOT NULL,
            seq INTEGER NOT NULL,
            role TEXT NOT NULL,
            content TEXT NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            PRIMARY KEY (session_id, seq)
        );
        CREATE INDEX IF NOT EXISTS idx_session_id ON messages (session_id);
    `)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteHistory{db: db}, nil
}

func (s *SQLiteHistory) Close() error {
	return s.db.Close()
}

func (s *SQLiteHistory) AppendMessage(ctx context.Context, record Record) error {
	var lastSeq int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM messages WHERE session_id = ?`, record.SessionID,
	).Scan(&lastSeq)
	if err != nil && err != sql.ErrNoRows {
		log.Printf("⚠️ Error retrieving last seq for session %s: %v", record.SessionID, err)
		return err
	}

	record.Seq = lastSeq + 1
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages (session_id, seq, role, content, created_at)
		 VALUES (?, ?, ?, ?, datetime(?))`,
		record.SessionID, record.Seq, record.Role, record.Content, record.CreatedAt.Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		log.Printf("⚠️ Error saving message for session %s: %v", record.SessionID, err)
		return err
	}
	return nil
}

func (s *SQLiteHistory) GetMessages(ctx context.Context, sessionID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, seq, role, content, created_at
		 FROM messages
		 WHERE session_id = ?
		 ORDER BY seq ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []Record
	for rows.Next() {
		var rec Record
		var createdAt string
		if err = rows.Scan(&rec.SessionID, &rec.Seq, &rec.Role, &rec.Content, &createdAt); err != nil {
			log.Printf("⚠️ Error scanning row for session %s: %v", sessionID, err)
			continue
		}

		rec.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", createdAt)
		history = append(history, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return history, nil
}

// TrimSession drops the oldest turns of a session, always keeping the
// first record (the system message) plus the newest keep records.
func (s *SQLiteHistory) TrimSession(ctx context.Context, sessionID string, keep int) error {
	if keep < 0 {
		keep = 0
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM messages
		 WHERE session_id = ?
		   AND seq <> (SELECT MIN(seq) FROM messages WHERE session_id = ?)
		   AND seq NOT IN (
		       SELECT seq FROM messages WHERE session_id = ? ORDER BY seq DESC LIMIT ?
		   )`,
		sessionID, sessionID, sessionID, keep,
	)
	if err != nil {
		log.Printf("⚠️ Error trimming session %s: %v", sessionID, err)
	}
	return err
}

func (s *SQLiteHistory) ClearSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID)
	if err != nil {
		log.Printf("⚠️ Error clearing session %s: %v", sessionID, err)
	}
	return err
}
