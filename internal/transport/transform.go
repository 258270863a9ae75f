package transport

import (
	"encoding/json"

	"github.com/lucentai/lucent-client/internal/message"
)

// ToUIMessages converts persisted rows into the UI message shape.
//
// Rows that carry a serialized parts array use it verbatim; older rows
// carry flat content/reasoning columns and are rebuilt from those.
func ToUIMessages(rows []ChatMessage) []message.Message {
	out := make([]message.Message, 0, len(rows))
	for _, row := range rows {
		out = append(out, toUIMessage(row))
	}
	return out
}

func toUIMessage(row ChatMessage) message.Message {
	msg := message.Message{
		ID:        row.ID,
		Role:      message.Role(row.Role),
		CreatedAt: row.CreatedAt,
	}

	if len(row.Parts) > 0 {
		var parts []message.Part
		if err := json.Unmarshal(row.Parts, &parts); err == nil {
			msg.Parts = parts
			return msg
		}
		// Fall through to the flat columns on a bad parts payload.
	}

	if row.Reasoning != "" {
		msg.Parts = append(msg.Parts, message.ReasoningPart(row.Reasoning))
	}
	if row.Content != "" {
		msg.Parts = append(msg.Parts, message.TextPart(row.Content))
	}

	return msg
}
