package thread

import (
	"errors"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/tgconv/internal/export"
)

var base = time.Date(2026, 2, 11, 10, 0, 0, 0, time.UTC)

func msg(id int64, offset time.Duration, from string, replyTo int64) export.Message {
	return export.Message{
		ID:      id,
		Type:    "message",
		Time:    base.Add(offset),
		FromID:  from,
		Text:    "text",
		ReplyTo: replyTo,
	}
}

func TestResolve_AdjacentMessagesShareRoot(t *testing.T) {
	msgs := []export.Message{
		msg(1, 0, "user1", 0),
		msg(2, time.Minute, "user2", 0),
		msg(3, 2*time.Minute, "user1", 0),
	}

	res, err := Resolve(msgs, Options{Gap: DefaultGap})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, a := range res.Assignments {
		if a.ConvID != 1 {
			t.Errorf("message %d conv = %d, want 1", a.MessageID, a.ConvID)
		}
	}
	if res.Conversations() != 1 {
		t.Errorf("expected 1 conversation, got %d", res.Conversations())
	}
	if res.Assignments[0].Link != LinkRoot || res.Assignments[1].Link != LinkAdjacent {
		t.Errorf("links = %v, %v", res.Assignments[0].Link, res.Assignments[1].Link)
	}
}

func TestResolve_GapStartsNewConversation(t *testing.T) {
	msgs := []export.Message{
		msg(1, 0, "user1", 0),
		msg(2, time.Hour, "user2", 0),
		// 25 hours of silence
		msg(3, 26*time.Hour, "user1", 0),
		msg(4, 26*time.Hour+time.Minute, "user2", 0),
	}

	res, err := Resolve(msgs, Options{Gap: DefaultGap})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[int64]int64{1: 1, 2: 1, 3: 3, 4: 3}
	for id, conv := range want {
		got, ok := res.ConvID(id)
		if !ok || got != conv {
			t.Errorf("ConvID(%d) = %d, %v; want %d", id, got, ok, conv)
		}
	}
	if len(res.Roots) != 2 || res.Roots[0] != 1 || res.Roots[1] != 3 {
		t.Errorf("roots = %v, want [1 3]", res.Roots)
	}
}

func TestResolve_ReplyJoinsOlderConversation(t *testing.T) {
	msgs := []export.Message{
		msg(1, 0, "user1", 0),
		msg(2, time.Minute, "user2", 0),
		msg(3, 48*time.Hour, "user1", 0),
		// Late reply to the first conversation, two days later.
		msg(4, 49*time.Hour, "user2", 2),
		msg(5, 49*time.Hour+time.Minute, "user1", 0),
	}

	res, err := Resolve(msgs, Options{Gap: DefaultGap})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if conv, _ := res.ConvID(3); conv != 3 {
		t.Errorf("message 3 conv = %d, want 3", conv)
	}
	if conv, _ := res.ConvID(4); conv != 1 {
		t.Errorf("reply conv = %d, want 1", conv)
	}
	if res.Assignments[3].Link != LinkReply {
		t.Errorf("reply link = %v", res.Assignments[3].Link)
	}
	// Continues whatever conversation the preceding message belongs to.
	if conv, _ := res.ConvID(5); conv != 1 {
		t.Errorf("message 5 conv = %d, want 1", conv)
	}
}

func TestResolve_ZeroGapOnlyFollowsReplies(t *testing.T) {
	msgs := []export.Message{
		msg(1, 0, "user1", 0),
		msg(2, time.Second, "user2", 1),
		msg(3, 2*time.Second, "user1", 0),
	}

	res, err := Resolve(msgs, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conv, _ := res.ConvID(2); conv != 1 {
		t.Errorf("reply conv = %d, want 1", conv)
	}
	if conv, _ := res.ConvID(3); conv != 3 {
		t.Errorf("message 3 conv = %d, want 3 (adjacency disabled)", conv)
	}
}

func TestResolve_FallbackForBadReplies(t *testing.T) {
	msgs := []export.Message{
		msg(1, 0, "user1", 1),
		msg(2, 48*time.Hour, "user2", 999),
		msg(3, 48*time.Hour+time.Minute, "user1", 4),
		msg(4, 48*time.Hour+2*time.Minute, "user2", 0),
	}

	res, err := Resolve(msgs, Options{Gap: DefaultGap})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantFallback := []string{FallbackSelfReply, FallbackMissingTarget, FallbackForwardReference, ""}
	wantConv := []int64{1, 2, 2, 2}
	for i, a := range res.Assignments {
		if a.Fallback != wantFallback[i] {
			t.Errorf("message %d fallback = %q, want %q", a.MessageID, a.Fallback, wantFallback[i])
		}
		if a.ConvID != wantConv[i] {
			t.Errorf("message %d conv = %d, want %d", a.MessageID, a.ConvID, wantConv[i])
		}
	}
	if res.Fallbacks() != 3 {
		t.Errorf("fallbacks = %d, want 3", res.Fallbacks())
	}
}

func TestResolve_StrictRejectsBadReplies(t *testing.T) {
	msgs := []export.Message{
		msg(1, 0, "user1", 0),
		msg(2, time.Minute, "user2", 42),
	}

	_, err := Resolve(msgs, Options{Gap: DefaultGap, Strict: true})
	var re *ReplyError
	if !errors.As(err, &re) {
		t.Fatalf("expected *ReplyError, got %v", err)
	}
	if re.MessageID != 2 || re.ReplyTo != 42 || re.Reason != FallbackMissingTarget {
		t.Errorf("reply error = %+v", re)
	}
}

func TestResolve_DuplicateIDs(t *testing.T) {
	msgs := []export.Message{msg(1, 0, "user1", 0), msg(1, time.Second, "user2", 0)}

	_, err := Resolve(msgs, Options{Gap: DefaultGap})
	if !errors.Is(err, ErrDuplicateMessage) {
		t.Errorf("expected ErrDuplicateMessage, got %v", err)
	}
}

func TestResolve_Empty(t *testing.T) {
	res, err := Resolve(nil, Options{Gap: DefaultGap})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Assignments) != 0 || res.Conversations() != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
}

func TestResolve_EveryConvIDIsARoot(t *testing.T) {
	var msgs []export.Message
	var offset time.Duration
	for i := int64(1); i <= 60; i++ {
		offset += 7 * time.Hour
		if i%5 == 0 {
			offset += 20 * time.Hour
		}
		var replyTo int64
		switch {
		case i%11 == 0:
			replyTo = i - 9
		case i%13 == 0:
			replyTo = i + 100
		case i%17 == 0:
			replyTo = i
		}
		msgs = append(msgs, msg(i, offset, "user1", replyTo))
	}

	res, err := Resolve(msgs, Options{Gap: 10 * time.Hour})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	roots := make(map[int64]bool)
	for _, r := range res.Roots {
		roots[r] = true
	}
	for _, a := range res.Assignments {
		if !roots[a.ConvID] {
			t.Errorf("message %d conv %d is not a root", a.MessageID, a.ConvID)
		}
		own, ok := res.ConvID(a.ConvID)
		if !ok || own != a.ConvID {
			t.Errorf("root %d resolves to %d, %v", a.ConvID, own, ok)
		}
	}
}

func TestLinkString(t *testing.T) {
	if LinkRoot.String() != "root" || LinkReply.String() != "reply" || LinkAdjacent.String() != "adjacent" {
		t.Errorf("unexpected link names: %s %s %s", LinkRoot, LinkReply, LinkAdjacent)
	}
}
