package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// MockProvider returns a deterministic structured reply when no model is
// configured.
type MockProvider struct{}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (p *MockProvider) Chat(ctx context.Context, _ string, messages []Message) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	var last string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			last = strings.TrimSpace(messages[i].Content)
			break
		}
	}
	if last == "" {
		last = "..."
	}

	out, err := json.Marshal(map[string]any{
		"conversation_text": fmt.Sprintf("Maine suna: %s", last),
		"profile_updates":   map[string]any{},
		"state_transition":  nil,
		"recommendations":   []any{},
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}
