package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/tgconv/internal/dataset"
)

func testRows() []dataset.Row {
	base := time.Date(2026, 2, 11, 10, 0, 0, 0, time.UTC)
	return []dataset.Row{
		{ConvID: 1, MessageID: 1, Time: base, From: "Me", FromID: "user1", Role: dataset.RoleUser, Text: "hi"},
		{ConvID: 1, MessageID: 2, Time: base.Add(time.Second), From: "Alice", FromID: "user42", Role: dataset.RoleModel, ReplyTo: 1, Text: "hello"},
		{ConvID: 3, MessageID: 3, Time: base.Add(48 * time.Hour), From: "Me", FromID: "user1", Role: dataset.RoleUser, Text: "again"},
	}
}

func TestSQLite_WriteRows(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "conv.db")

	s, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer s.Close()

	if err := s.WriteRows(ctx, uuid.New(), 42, testRows()); err != nil {
		t.Fatalf("WriteRows failed: %v", err)
	}

	sizes, err := s.ConversationSizes(ctx, 42)
	if err != nil {
		t.Fatalf("ConversationSizes failed: %v", err)
	}
	if len(sizes) != 2 || sizes[1] != 2 || sizes[3] != 1 {
		t.Errorf("sizes = %v, want map[1:2 3:1]", sizes)
	}

	var reply *int64
	row := s.db.QueryRowContext(ctx, `SELECT reply_to_message_id FROM conversation_messages WHERE chat_id = 42 AND message_id = 1`)
	if err := row.Scan(&reply); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if reply != nil {
		t.Errorf("reply_to_message_id = %d, want NULL", *reply)
	}
}

func TestSQLite_RerunUpserts(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "conv.db")

	s, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer s.Close()

	rows := testRows()
	if err := s.WriteRows(ctx, uuid.New(), 42, rows); err != nil {
		t.Fatal(err)
	}

	// Second run regroups message 3 into conversation 1.
	rows[2].ConvID = 1
	second := uuid.New()
	if err := s.WriteRows(ctx, second, 42, rows); err != nil {
		t.Fatal(err)
	}

	sizes, err := s.ConversationSizes(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if len(sizes) != 1 || sizes[1] != 3 {
		t.Errorf("sizes = %v, want map[1:3]", sizes)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM conversation_messages WHERE run_id = ?`, second.String()).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("rows tagged with second run = %d, want 3", count)
	}
}

func TestSQLite_ChatsAreSeparate(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "conv.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.WriteRows(ctx, uuid.New(), 1, testRows()); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteRows(ctx, uuid.New(), 2, testRows()[:1]); err != nil {
		t.Fatal(err)
	}

	sizes, err := s.ConversationSizes(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(sizes) != 1 || sizes[1] != 1 {
		t.Errorf("chat 2 sizes = %v, want map[1:1]", sizes)
	}
}
