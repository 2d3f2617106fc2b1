package dataset

// DefaultMaxContext is the sample window: three context messages and the
// model's answer.
const DefaultMaxContext = 4

// Turn is one message inside a sample.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Sample is a fine-tuning example ending with a model message.
type Sample struct {
	ConvID    int64  `json:"conv_id"`
	MessageID int64  `json:"message_id"`
	Messages  []Turn `json:"messages"`
}

// BuildSamples emits a sample for every model message that has earlier
// messages in its conversation. Each sample holds at most maxContext turns,
// the last being the model message.
func BuildSamples(rows []Row, maxContext int) []Sample {
	if maxContext < 2 {
		return nil
	}

	history := make(map[int64][]Row)
	var samples []Sample
	for _, r := range rows {
		prev := history[r.ConvID]
		if r.Role == RoleModel && len(prev) > 0 {
			start := 0
			if len(prev) > maxContext-1 {
				start = len(prev) - (maxContext - 1)
			}

			s := Sample{
				ConvID:    r.ConvID,
				MessageID: r.MessageID,
				Messages:  make([]Turn, 0, len(prev)-start+1),
			}
			for _, p := range prev[start:] {
				s.Messages = append(s.Messages, Turn{Role: p.Role, Content: p.Text})
			}
			s.Messages = append(s.Messages, Turn{Role: r.Role, Content: r.Text})
			samples = append(samples, s)
		}
		history[r.ConvID] = append(prev, r)
	}
	return samples
}
