package conversation

import (
	"testing"
)

func TestParseLadder(t *testing.T) {
	cases := map[string]string{
		"direct":       `{"conversation_text":"hi"}`,
		"json fence":   "```json\n{\"conversation_text\":\"hi\"}\n```",
		"upper fence":  "Sure!\n```JSON\n{\"conversation_text\":\"hi\"}\n```",
		"bare fence":   "```\n{\"conversation_text\":\"hi\"}\n```",
		"tagged fence": "```javascript\n{\"conversation_text\":\"hi\"}\n```",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			got := Parse(raw)
			if got.ConversationText != "hi" {
				t.Fatalf("ConversationText = %q, want hi", got.ConversationText)
			}
			if got.ProfileUpdates == nil || got.Recommendations == nil {
				t.Fatalf("Parse() left nil collections: %+v", got)
			}
		})
	}
}

func TestParseFreeTextFallback(t *testing.T) {
	got := Parse("  just free text \n")
	if got.ConversationText != "just free text" {
		t.Fatalf("ConversationText = %q, want %q", got.ConversationText, "just free text")
	}
	if len(got.ProfileUpdates) != 0 || got.StateTransition != "" || len(got.Recommendations) != 0 {
		t.Fatalf("fallback carried structured effects: %+v", got)
	}
}

func TestParseUnrelatedJSONFallsBackToText(t *testing.T) {
	got := Parse(`{"answer":42}`)
	if got.ConversationText != `{"answer":42}` {
		t.Fatalf("ConversationText = %q", got.ConversationText)
	}
}

func TestParseBrokenFenceFallsBackToText(t *testing.T) {
	raw := "```json\n{not json}\n```"
	got := Parse(raw)
	if got.ConversationText != raw {
		t.Fatalf("ConversationText = %q, want raw text", got.ConversationText)
	}
}

func TestParseStructuredFields(t *testing.T) {
	raw := `{
		"conversation_text": "Badhiya!",
		"profile_updates": {"education_level": "10th", "skills": ["cooking"]},
		"state_transition": "discovery",
		"recommendations": [{"title": "Food Safety"}]
	}`
	got := Parse(raw)
	if got.StateTransition != "discovery" {
		t.Fatalf("StateTransition = %q", got.StateTransition)
	}
	if string(got.ProfileUpdates["education_level"]) != `"10th"` {
		t.Fatalf("education_level = %s", got.ProfileUpdates["education_level"])
	}
	if len(got.Recommendations) != 1 {
		t.Fatalf("Recommendations = %d, want 1", len(got.Recommendations))
	}
}

func TestParseToleratesBadlyTypedFields(t *testing.T) {
	got := Parse(`{"conversation_text":"ok","profile_updates":"none","state_transition":null,"recommendations":{"name":"Ravi"}}`)
	if got.ConversationText != "ok" {
		t.Fatalf("ConversationText = %q", got.ConversationText)
	}
	if got.ProfileUpdates == nil || len(got.ProfileUpdates) != 0 {
		t.Fatalf("ProfileUpdates = %v, want empty", got.ProfileUpdates)
	}
	if got.StateTransition != "" {
		t.Fatalf("StateTransition = %q, want empty", got.StateTransition)
	}
	if len(got.Recommendations) != 1 {
		t.Fatalf("single object recommendation should become a list, got %d", len(got.Recommendations))
	}
}
