package export

import (
	"sort"
	"strings"
)

// TextMessages keeps the messages usable as training text: regular
// messages with non-blank text. Media messages (photos, stickers, voice,
// files with a media type) are dropped unless includeMedia is set, in which
// case captioned media is kept.
func TextMessages(msgs []Message, includeMedia bool) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Type != "message" {
			continue
		}
		if strings.TrimSpace(m.Text) == "" {
			continue
		}
		if !includeMedia && (m.MediaType != "" || m.Photo != "") {
			continue
		}
		out = append(out, m)
	}
	return out
}

// SortByTime orders messages chronologically. Messages sent within the same
// second keep id order so the result does not depend on document order.
func SortByTime(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].Time.Equal(msgs[j].Time) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].Time.Before(msgs[j].Time)
	})
}
