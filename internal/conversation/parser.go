package conversation

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/sahaj-careers/sahaj/internal/profile"
)

// TurnResult is the structured reply extracted from one model response.
type TurnResult struct {
	ConversationText string            `json:"conversation_text"`
	ProfileUpdates   profile.Updates   `json:"profile_updates"`
	StateTransition  string            `json:"state_transition,omitempty"`
	Recommendations  []json.RawMessage `json:"recommendations"`
}

var (
	jsonFence = regexp.MustCompile("(?is)```json\\s*(.*?)```")
	anyFence  = regexp.MustCompile("(?s)```(.*?)```")
)

// Parse extracts a TurnResult from raw model output. It tries, in order, the
// whole text as a JSON object, the first ```json fenced block, and the first
// fenced block of any kind. If none decode, the trimmed text becomes the
// conversation text with no structured effects. Parse never fails.
func Parse(raw string) TurnResult {
	if res, ok := decodeTurn(raw); ok {
		return res
	}
	if m := jsonFence.FindStringSubmatch(raw); m != nil {
		if res, ok := decodeTurn(m[1]); ok {
			return res
		}
	}
	if m := anyFence.FindStringSubmatch(raw); m != nil {
		if res, ok := decodeTurn(dropFenceTag(m[1])); ok {
			return res
		}
	}
	return plainText(raw)
}

func plainText(raw string) TurnResult {
	return TurnResult{
		ConversationText: strings.TrimSpace(raw),
		ProfileUpdates:   profile.Updates{},
		Recommendations:  []json.RawMessage{},
	}
}

// dropFenceTag removes a language tag line such as "python" from a fence body.
func dropFenceTag(body string) string {
	trimmed := strings.TrimLeft(body, " \t")
	nl := strings.IndexByte(trimmed, '\n')
	if nl < 0 {
		return body
	}
	first := strings.TrimSpace(trimmed[:nl])
	if first == "" || strings.ContainsAny(first, "{[\" ") {
		return body
	}
	return trimmed[nl+1:]
}

// decodeTurn decodes each known field independently so one badly typed field
// does not discard the others. An object with none of the known fields is not
// a turn result.
func decodeTurn(text string) (TurnResult, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &fields); err != nil || fields == nil {
		return TurnResult{}, false
	}

	res := plainText("")
	known := false

	if raw, ok := fields["conversation_text"]; ok {
		known = true
		var s string
		if json.Unmarshal(raw, &s) == nil {
			res.ConversationText = strings.TrimSpace(s)
		}
	}
	if raw, ok := fields["profile_updates"]; ok {
		known = true
		var u map[string]json.RawMessage
		if json.Unmarshal(raw, &u) == nil && u != nil {
			res.ProfileUpdates = profile.Updates(u)
		}
	}
	if raw, ok := fields["state_transition"]; ok {
		known = true
		var s string
		if json.Unmarshal(raw, &s) == nil {
			res.StateTransition = strings.TrimSpace(s)
		}
	}
	if raw, ok := fields["recommendations"]; ok {
		known = true
		res.Recommendations = decodeRecommendations(raw)
	}
	return res, known
}

func decodeRecommendations(raw json.RawMessage) []json.RawMessage {
	raw = bytes.TrimSpace(raw)
	var list []json.RawMessage
	if json.Unmarshal(raw, &list) == nil && list != nil {
		return list
	}
	// A lone object is treated as a one-item list; resume drafts arrive this way.
	if len(raw) > 0 && raw[0] == '{' {
		return []json.RawMessage{append(json.RawMessage(nil), raw...)}
	}
	return []json.RawMessage{}
}
