package dataset

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MikeSquared-Agency/tgconv/internal/export"
	"github.com/MikeSquared-Agency/tgconv/internal/thread"
)

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Header is the column layout of the conversation table.
var Header = []string{
	"conv_id",
	"message_id",
	"date",
	"date_unixtime",
	"from",
	"from_id",
	"role",
	"reply_to_message_id",
	"text",
}

var ErrUnresolved = errors.New("message has no conversation")

// Row is one line of the conversation table.
type Row struct {
	ConvID    int64
	MessageID int64
	Date      string
	Time      time.Time
	From      string
	FromID    string
	Role      string
	ReplyTo   int64 // 0 when not a reply
	Text      string
}

// Record renders the row in Header order.
func (r Row) Record() []string {
	reply := ""
	if r.ReplyTo != 0 {
		reply = strconv.FormatInt(r.ReplyTo, 10)
	}
	return []string{
		strconv.FormatInt(r.ConvID, 10),
		strconv.FormatInt(r.MessageID, 10),
		r.Date,
		strconv.FormatInt(r.Time.Unix(), 10),
		r.From,
		r.FromID,
		r.Role,
		reply,
		r.Text,
	}
}

// ModelIdentity is the default sender id treated as the model: in a
// personal chat export the chat id is the peer's user id.
func ModelIdentity(chatID int64) string {
	return fmt.Sprintf("user%d", chatID)
}

// BuildRows joins messages with their resolved conversations. Rows keep the
// order of msgs.
func BuildRows(msgs []export.Message, res *thread.Result, modelFromID string) ([]Row, error) {
	rows := make([]Row, 0, len(msgs))
	for _, m := range msgs {
		conv, ok := res.ConvID(m.ID)
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnresolved, m.ID)
		}

		role := RoleUser
		if m.FromID != "" && m.FromID == modelFromID {
			role = RoleModel
		}

		rows = append(rows, Row{
			ConvID:    conv,
			MessageID: m.ID,
			Date:      m.Date,
			Time:      m.Time,
			From:      m.From,
			FromID:    m.FromID,
			Role:      role,
			ReplyTo:   m.ReplyTo,
			Text:      m.Text,
		})
	}
	return rows, nil
}
