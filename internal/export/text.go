package export

import (
	"encoding/json"
	"fmt"
	"strings"
)

// plainText returns the message text without formatting. text_entities
// covers the whole message as contiguous spans, so joining them restores
// the original string; the text union is only consulted when no entities
// were exported.
func plainText(raw json.RawMessage, entities []TextEntity) (string, error) {
	if len(entities) > 0 {
		var sb strings.Builder
		for _, e := range entities {
			sb.WriteString(e.Text)
		}
		return sb.String(), nil
	}
	return flattenText(raw)
}

// flattenText handles the exported text union: either a plain string or an
// array mixing strings and entity objects.
func flattenText(raw json.RawMessage) (string, error) {
	if isAbsent(raw) {
		return "", nil
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain, nil
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", fmt.Errorf("text is neither a string nor an array: %w", err)
	}

	var sb strings.Builder
	for i, part := range parts {
		var s string
		if err := json.Unmarshal(part, &s); err == nil {
			sb.WriteString(s)
			continue
		}
		var e TextEntity
		if err := json.Unmarshal(part, &e); err != nil {
			return "", fmt.Errorf("text part %d: %w", i, err)
		}
		sb.WriteString(e.Text)
	}
	return sb.String(), nil
}
