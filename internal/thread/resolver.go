// Package thread groups chat messages into conversations. A conversation is
// named after its root message: the first message that neither replies to
// an earlier message nor follows one closely in time.
package thread

import (
	"errors"
	"fmt"
	"time"

	"github.com/MikeSquared-Agency/tgconv/internal/export"
)

// DefaultGap is the longest silence that still continues a conversation.
const DefaultGap = 24 * time.Hour

// Fallback reasons recorded when a reply reference cannot be followed.
const (
	FallbackSelfReply        = "self_reply"
	FallbackMissingTarget    = "missing_target"
	FallbackForwardReference = "forward_reference"
)

var ErrDuplicateMessage = errors.New("duplicate message id")

// Link describes how a message was attached to its conversation.
type Link int

const (
	LinkRoot Link = iota
	LinkReply
	LinkAdjacent
)

func (l Link) String() string {
	switch l {
	case LinkReply:
		return "reply"
	case LinkAdjacent:
		return "adjacent"
	default:
		return "root"
	}
}

// Options tunes the resolver.
type Options struct {
	Gap    time.Duration // zero or negative disables time adjacency
	Strict bool          // reject unusable reply references instead of falling back
}

// Assignment is the resolved conversation of a single message.
type Assignment struct {
	MessageID int64
	ConvID    int64
	Link      Link
	Fallback  string // non-empty when a reply reference was ignored
}

// Result holds the assignments in input order.
type Result struct {
	Assignments []Assignment
	Roots       []int64

	byID map[int64]int
}

// ConvID returns the conversation root of a message.
func (r *Result) ConvID(messageID int64) (int64, bool) {
	idx, ok := r.byID[messageID]
	if !ok {
		return 0, false
	}
	return r.Assignments[idx].ConvID, true
}

// Conversations returns the number of distinct conversations.
func (r *Result) Conversations() int {
	return len(r.Roots)
}

// Fallbacks counts messages whose reply reference was ignored.
func (r *Result) Fallbacks() int {
	n := 0
	for _, a := range r.Assignments {
		if a.Fallback != "" {
			n++
		}
	}
	return n
}

// ReplyError is returned in strict mode for a reply reference that cannot
// be followed.
type ReplyError struct {
	MessageID int64
	ReplyTo   int64
	Reason    string
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("message %d: unusable reply to %d (%s)", e.MessageID, e.ReplyTo, e.Reason)
}

// Resolve assigns every message to a conversation. msgs must already be in
// chronological order (see export.SortByTime).
//
// A reply joins the conversation of the message it answers. Any other
// message continues the previous message's conversation when it was sent
// within opts.Gap, and roots a new conversation otherwise. Replies to
// themselves, to unknown ids, or to messages that come later are treated as
// plain messages, or rejected when opts.Strict is set.
func Resolve(msgs []export.Message, opts Options) (*Result, error) {
	present := make(map[int64]struct{}, len(msgs))
	for _, m := range msgs {
		if _, dup := present[m.ID]; dup {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateMessage, m.ID)
		}
		present[m.ID] = struct{}{}
	}

	res := &Result{
		Assignments: make([]Assignment, 0, len(msgs)),
		byID:        make(map[int64]int, len(msgs)),
	}

	for i, m := range msgs {
		a := Assignment{MessageID: m.ID}

		if m.IsReply() {
			reason := ""
			if m.ReplyTo == m.ID {
				reason = FallbackSelfReply
			} else if idx, ok := res.byID[m.ReplyTo]; ok {
				a.ConvID = res.Assignments[idx].ConvID
				a.Link = LinkReply
			} else if _, ok := present[m.ReplyTo]; ok {
				reason = FallbackForwardReference
			} else {
				reason = FallbackMissingTarget
			}

			if reason != "" {
				if opts.Strict {
					return nil, &ReplyError{MessageID: m.ID, ReplyTo: m.ReplyTo, Reason: reason}
				}
				a.Fallback = reason
			}
		}

		if a.Link != LinkReply {
			if i > 0 && opts.Gap > 0 && m.Time.Sub(msgs[i-1].Time) <= opts.Gap {
				a.ConvID = res.Assignments[i-1].ConvID
				a.Link = LinkAdjacent
			} else {
				a.ConvID = m.ID
				a.Link = LinkRoot
				res.Roots = append(res.Roots, m.ID)
			}
		}

		res.byID[m.ID] = len(res.Assignments)
		res.Assignments = append(res.Assignments, a)
	}

	return res, nil
}
