package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sahaj-careers/sahaj/internal/llm"
	"github.com/sahaj-careers/sahaj/internal/profile"
	"github.com/sahaj-careers/sahaj/internal/session"
)

type recordingProvider struct {
	prompt   string
	messages []llm.Message
	reply    string
	err      error
}

func (r *recordingProvider) Chat(_ context.Context, prompt string, messages []llm.Message) (string, error) {
	r.prompt = prompt
	r.messages = messages
	return r.reply, r.err
}

func TestAdvanceUsesDiscoveryPromptAndHistory(t *testing.T) {
	prov := &recordingProvider{reply: "```json\n{\"conversation_text\":\"Achha!\",\"profile_updates\":{\"skills\":[\"cooking\"]},\"state_transition\":\"discovery\"}\n```"}
	o := NewOrchestrator(prov, 10, nil)

	res, err := o.Advance(context.Background(), Request{
		UserMessage: "10th pass, I can cook",
		State:       session.StateDiscovery,
		Profile:     profile.Profile{DiscoveryStep: 1},
		Turns: []session.Turn{
			{Role: session.RoleAssistant, Content: "Namaste!"},
			{Role: session.RoleUser, Content: "Main Ravi hoon"},
			{Role: session.RoleAssistant, Content: "Aap kitna padhe ho?"},
		},
	})
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if res.ConversationText != "Achha!" || res.StateTransition != "discovery" {
		t.Fatalf("Advance() = %+v", res)
	}
	if !strings.Contains(prov.prompt, "Current step: 1/7") {
		t.Fatalf("provider did not get the discovery prompt")
	}
	if len(prov.messages) != 3 || prov.messages[0].Content != "Main Ravi hoon" || prov.messages[2].Content != "10th pass, I can cook" {
		t.Fatalf("messages = %+v", prov.messages)
	}
	assertAlternates(t, prov.messages)
}

func TestAdvanceReturnsProviderError(t *testing.T) {
	o := NewOrchestrator(&recordingProvider{err: errors.New("throttled")}, 0, nil)
	_, err := o.Advance(context.Background(), Request{UserMessage: "hi", State: session.StateGreeting})
	if err == nil || !strings.Contains(err.Error(), "throttled") {
		t.Fatalf("Advance() error = %v, want wrapped provider error", err)
	}
}

func TestAdvanceRejectsEmptyMessage(t *testing.T) {
	prov := &recordingProvider{reply: "{}"}
	if _, err := NewOrchestrator(prov, 0, nil).Advance(context.Background(), Request{UserMessage: "  "}); err == nil {
		t.Fatalf("Advance() expected error for empty message")
	}
	if prov.prompt != "" {
		t.Fatalf("provider should not be called")
	}
}
