package conversation

import (
	"strings"

	"github.com/sahaj-careers/sahaj/internal/llm"
	"github.com/sahaj-careers/sahaj/internal/session"
)

// DefaultHistoryWindow is the number of stored turns offered to the model.
const DefaultHistoryWindow = 10

// MessagesFromTurns converts stored turns to model messages. Turns with an
// unknown role are skipped.
func MessagesFromTurns(turns []session.Turn) []llm.Message {
	out := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case session.RoleUser:
			out = append(out, llm.Message{Role: llm.RoleUser, Content: t.Content})
		case session.RoleAssistant:
			out = append(out, llm.Message{Role: llm.RoleAssistant, Content: t.Content})
		}
	}
	return out
}

// Normalize bounds history to the last window entries and reshapes it into a
// strictly alternating sequence that starts with a user message. Leading
// assistant messages are dropped and consecutive messages from the same role
// are folded into one, joined by a newline. The input is not modified.
func Normalize(history []llm.Message, window int) []llm.Message {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	if len(history) > window {
		history = history[len(history)-window:]
	}

	start := 0
	for start < len(history) && history[start].Role != llm.RoleUser {
		start++
	}

	out := make([]llm.Message, 0, len(history)-start)
	for _, m := range history[start:] {
		if m.Role != llm.RoleUser && m.Role != llm.RoleAssistant {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == m.Role {
			out[n-1].Content += "\n" + m.Content
			continue
		}
		out = append(out, m)
	}
	return out
}

// AppendUserMessage adds the incoming user text to a normalized sequence.
// When the sequence already ends with the user, the text is folded onto that
// entry so alternation holds.
func AppendUserMessage(msgs []llm.Message, text string) []llm.Message {
	text = strings.TrimSpace(text)
	out := append([]llm.Message(nil), msgs...)
	if n := len(out); n > 0 && out[n-1].Role == llm.RoleUser {
		out[n-1].Content += "\n" + text
		return out
	}
	return append(out, llm.Message{Role: llm.RoleUser, Content: text})
}
