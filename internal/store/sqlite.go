package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/MikeSquared-Agency/tgconv/internal/dataset"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS conversation_messages (
		chat_id             INTEGER NOT NULL,
		message_id          INTEGER NOT NULL,
		conv_id             INTEGER NOT NULL,
		run_id              TEXT    NOT NULL,
		sent_at             INTEGER NOT NULL,
		from_name           TEXT    NOT NULL DEFAULT '',
		from_id             TEXT    NOT NULL DEFAULT '',
		role                TEXT    NOT NULL,
		reply_to_message_id INTEGER,
		text                TEXT    NOT NULL,
		PRIMARY KEY (chat_id, message_id)
	);
	CREATE INDEX IF NOT EXISTS idx_conversation_messages_conv ON conversation_messages (chat_id, conv_id);`

// SQLite mirrors the conversation table into a local SQLite file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database file and its schema.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db %q: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite db %q: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// WriteRows upserts the rows of one run in a single transaction.
func (s *SQLite) WriteRows(ctx context.Context, runID uuid.UUID, chatID int64, rows []dataset.Row) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO conversation_messages
			(chat_id, message_id, conv_id, run_id, sent_at, from_name, from_id, role, reply_to_message_id, text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (chat_id, message_id) DO UPDATE SET
			conv_id = excluded.conv_id,
			run_id = excluded.run_id,
			sent_at = excluded.sent_at,
			from_name = excluded.from_name,
			from_id = excluded.from_id,
			role = excluded.role,
			reply_to_message_id = excluded.reply_to_message_id,
			text = excluded.text`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	run := runID.String()
	for _, r := range rows {
		_, err := stmt.ExecContext(ctx,
			chatID, r.MessageID, r.ConvID, run, r.Time.Unix(), r.From, r.FromID, r.Role, replyRef(r), r.Text,
		)
		if err != nil {
			return fmt.Errorf("insert message %d: %w", r.MessageID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ConversationSizes returns the number of stored messages per conversation
// of a chat.
func (s *SQLite) ConversationSizes(ctx context.Context, chatID int64) (map[int64]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT conv_id, count(*) FROM conversation_messages
		WHERE chat_id = ? GROUP BY conv_id`, chatID)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	sizes := make(map[int64]int)
	for rows.Next() {
		var conv int64
		var n int
		if err := rows.Scan(&conv, &n); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		sizes[conv] = n
	}
	return sizes, rows.Err()
}
