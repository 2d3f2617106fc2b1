package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingField  = errors.New("missing required field")
	ErrInvalidID     = errors.New("message id must be positive")
	ErrDuplicateID   = errors.New("duplicate message id")
	ErrChatNotFound  = errors.New("chat not found in export")
	ErrAmbiguousChat = errors.New("export lists several chats; select one by id")
)

// ParseError reports a malformed or incomplete export document.
type ParseError struct {
	Path  string
	Index int // message index within the chat, -1 for document-level problems
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	var sb strings.Builder
	sb.WriteString("parse ")
	sb.WriteString(e.Path)
	if e.Index >= 0 {
		fmt.Fprintf(&sb, ": message %d", e.Index)
	}
	if e.Field != "" {
		fmt.Fprintf(&sb, ": field %q", e.Field)
	}
	fmt.Fprintf(&sb, ": %v", e.Err)
	return sb.String()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Load reads an export file from disk. chatID selects a chat from a
// full-account export and is ignored for single-chat exports; zero means
// "the only chat".
func Load(path string, chatID int64) (*Chat, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	return Decode(data, path, chatID)
}

// Decode parses an export document. path is only used in error messages.
func Decode(data []byte, path string, chatID int64) (*Chat, error) {
	var doc rawChat
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, jsonError(path, -1, err)
	}

	if isAbsent(doc.Messages) && doc.Chats != nil {
		raw, err := selectChat(doc.Chats.List, chatID)
		if err != nil {
			return nil, &ParseError{Path: path, Index: -1, Field: "chats", Err: err}
		}
		doc = rawChat{}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, jsonError(path, -1, err)
		}
	}

	return buildChat(doc, path)
}

func selectChat(list []json.RawMessage, chatID int64) (json.RawMessage, error) {
	if chatID == 0 {
		if len(list) == 1 {
			return list[0], nil
		}
		if len(list) == 0 {
			return nil, ErrChatNotFound
		}
		return nil, fmt.Errorf("%w (%d chats)", ErrAmbiguousChat, len(list))
	}

	for _, raw := range list {
		var head struct {
			ID int64 `json:"id"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			continue
		}
		if head.ID == chatID {
			return raw, nil
		}
	}
	return nil, fmt.Errorf("%w: id %d", ErrChatNotFound, chatID)
}

func buildChat(doc rawChat, path string) (*Chat, error) {
	if doc.ID == nil {
		return nil, &ParseError{Path: path, Index: -1, Field: "id", Err: ErrMissingField}
	}
	if isAbsent(doc.Messages) {
		return nil, &ParseError{Path: path, Index: -1, Field: "messages", Err: ErrMissingField}
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(doc.Messages, &raws); err != nil {
		return nil, &ParseError{Path: path, Index: -1, Field: "messages", Err: err}
	}

	chat := &Chat{
		ID:       *doc.ID,
		Name:     doc.Name,
		Type:     doc.Type,
		Messages: make([]Message, 0, len(raws)),
	}

	seen := make(map[int64]int, len(raws))
	for i, raw := range raws {
		msg, err := buildMessage(path, i, raw)
		if err != nil {
			return nil, err
		}
		if first, ok := seen[msg.ID]; ok {
			return nil, &ParseError{
				Path:  path,
				Index: i,
				Field: "id",
				Err:   fmt.Errorf("%w %d (first seen at message %d)", ErrDuplicateID, msg.ID, first),
			}
		}
		seen[msg.ID] = i
		chat.Messages = append(chat.Messages, msg)
	}

	return chat, nil
}

func buildMessage(path string, idx int, raw json.RawMessage) (Message, error) {
	fail := func(field string, err error) (Message, error) {
		return Message{}, &ParseError{Path: path, Index: idx, Field: field, Err: err}
	}

	var rm rawMessage
	if err := json.Unmarshal(raw, &rm); err != nil {
		return Message{}, jsonError(path, idx, err)
	}

	if rm.ID == nil {
		return fail("id", ErrMissingField)
	}
	if *rm.ID <= 0 {
		return fail("id", fmt.Errorf("%w: %d", ErrInvalidID, *rm.ID))
	}
	if rm.Type == "" {
		return fail("type", ErrMissingField)
	}

	ts, err := parseUnixtime(rm.DateUnixtime)
	if err != nil {
		return fail("date_unixtime", err)
	}

	if rm.Type == "message" && isAbsent(rm.Text) {
		return fail("text", ErrMissingField)
	}
	text, err := plainText(rm.Text, rm.TextEntities)
	if err != nil {
		return fail("text", err)
	}

	msg := Message{
		ID:            *rm.ID,
		Type:          rm.Type,
		Action:        rm.Action,
		Date:          rm.Date,
		Time:          ts,
		From:          rm.From,
		FromID:        rm.FromID,
		Edited:        rm.Edited,
		ForwardedFrom: rm.ForwardedFrom,
		ViaBot:        rm.ViaBot,
		MediaType:     rm.MediaType,
		Photo:         rm.Photo,
		File:          rm.File,
		Text:          text,
		Entities:      rm.TextEntities,
	}
	if rm.ReplyToMessageID != nil {
		msg.ReplyTo = *rm.ReplyToMessageID
	}
	return msg, nil
}

// parseUnixtime accepts the exported decimal string ("1693753543") as well
// as a bare JSON number.
func parseUnixtime(raw json.RawMessage) (time.Time, error) {
	if isAbsent(raw) {
		return time.Time{}, ErrMissingField
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		sec, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid unix time %q", s)
		}
		return time.Unix(sec, 0).UTC(), nil
	}

	var sec int64
	if err := json.Unmarshal(raw, &sec); err != nil {
		return time.Time{}, fmt.Errorf("invalid unix time %s", string(raw))
	}
	return time.Unix(sec, 0).UTC(), nil
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func jsonError(path string, idx int, err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &ParseError{Path: path, Index: idx, Field: typeErr.Field, Err: err}
	}
	return &ParseError{Path: path, Index: idx, Err: err}
}
