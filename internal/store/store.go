package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeSquared-Agency/tgconv/internal/dataset"
)

const pgSchema = `
	CREATE TABLE IF NOT EXISTS conversation_messages (
		chat_id             BIGINT      NOT NULL,
		message_id          BIGINT      NOT NULL,
		conv_id             BIGINT      NOT NULL,
		run_id              UUID        NOT NULL,
		sent_at             TIMESTAMPTZ NOT NULL,
		from_name           TEXT        NOT NULL DEFAULT '',
		from_id             TEXT        NOT NULL DEFAULT '',
		role                TEXT        NOT NULL,
		reply_to_message_id BIGINT,
		text                TEXT        NOT NULL,
		PRIMARY KEY (chat_id, message_id)
	);
	CREATE INDEX IF NOT EXISTS idx_conversation_messages_conv ON conversation_messages (chat_id, conv_id);`

// Store mirrors the conversation table into Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// EnsureSchema creates the conversation_messages table if it is missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, pgSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// WriteRows upserts the rows of one run in a single transaction. Rows are
// keyed by (chat_id, message_id), so re-running a conversion overwrites the
// previous assignment instead of duplicating it.
func (s *Store) WriteRows(ctx context.Context, runID uuid.UUID, chatID int64, rows []dataset.Row) error {
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range rows {
		_, err = tx.Exec(ctx, `
			INSERT INTO conversation_messages
				(chat_id, message_id, conv_id, run_id, sent_at, from_name, from_id, role, reply_to_message_id, text)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (chat_id, message_id) DO UPDATE SET
				conv_id = EXCLUDED.conv_id,
				run_id = EXCLUDED.run_id,
				sent_at = EXCLUDED.sent_at,
				from_name = EXCLUDED.from_name,
				from_id = EXCLUDED.from_id,
				role = EXCLUDED.role,
				reply_to_message_id = EXCLUDED.reply_to_message_id,
				text = EXCLUDED.text`,
			chatID, r.MessageID, r.ConvID, runID, r.Time, r.From, r.FromID, r.Role, replyRef(r), r.Text,
		)
		if err != nil {
			return fmt.Errorf("insert message %d: %w", r.MessageID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ConversationSizes returns the number of stored messages per conversation
// of a chat.
func (s *Store) ConversationSizes(ctx context.Context, chatID int64) (map[int64]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT conv_id, count(*) FROM conversation_messages
		WHERE chat_id = $1 GROUP BY conv_id`, chatID)
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

// replyRef maps "no reply" to NULL.
func replyRef(r dataset.Row) *int64 {
	if r.ReplyTo == 0 {
		return nil
	}
	v := r.ReplyTo
	return &v
}
