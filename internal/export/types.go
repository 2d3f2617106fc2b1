package export

import (
	"encoding/json"
	"time"
)

// Chat is one exported chat and its message history in document order.
type Chat struct {
	ID       int64
	Name     string
	Type     string // "personal_chat", "private_group", ...
	Messages []Message
}

// Message is a single record from the export.
type Message struct {
	ID            int64
	Type          string // "message" or "service"
	Action        string // service messages only
	Date          string // as exported, e.g. 2023-09-03T17:05:43
	Time          time.Time
	From          string
	FromID        string // "<kind><id>", e.g. user123456
	Edited        string
	ReplyTo       int64 // 0 when the message is not a reply
	ForwardedFrom string
	ViaBot        string
	MediaType     string
	Photo         string
	File          string
	Text          string // flattened plain text
	Entities      []TextEntity
}

// IsReply reports whether the message carries a reply reference.
func (m Message) IsReply() bool {
	return m.ReplyTo != 0
}

// IsForwarded reports whether the message was forwarded from another chat.
func (m Message) IsForwarded() bool {
	return m.ForwardedFrom != ""
}

// TextEntity is a formatted span of message text (plain, bold, link, ...).
type TextEntity struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// rawChat mirrors a single-chat export document. A full-account export
// has no messages at the top level and lists its chats instead.
type rawChat struct {
	ID       *int64          `json:"id"`
	Name     string          `json:"name"`
	Type     string          `json:"type"`
	Messages json.RawMessage `json:"messages"`
	Chats    *rawChatList    `json:"chats"`
}

type rawChatList struct {
	List []json.RawMessage `json:"list"`
}

type rawMessage struct {
	ID               *int64          `json:"id"`
	Type             string          `json:"type"`
	Action           string          `json:"action"`
	Date             string          `json:"date"`
	DateUnixtime     json.RawMessage `json:"date_unixtime"`
	From             string          `json:"from"`
	FromID           string          `json:"from_id"`
	Edited           string          `json:"edited"`
	ReplyToMessageID *int64          `json:"reply_to_message_id"`
	ForwardedFrom    string          `json:"forwarded_from"`
	ViaBot           string          `json:"via_bot"`
	MediaType        string          `json:"media_type"`
	Photo            string          `json:"photo"`
	File             string          `json:"file"`
	Text             json.RawMessage `json:"text"`
	TextEntities     []TextEntity    `json:"text_entities"`
}
