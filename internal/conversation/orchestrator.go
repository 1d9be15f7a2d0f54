package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sahaj-careers/sahaj/internal/llm"
	"github.com/sahaj-careers/sahaj/internal/profile"
	"github.com/sahaj-careers/sahaj/internal/session"
)

// Request is everything one conversational turn needs.
type Request struct {
	UserMessage string
	State       session.State
	Profile     profile.Profile
	Turns       []session.Turn
	Context     session.Context
}

// Orchestrator turns one user message into a structured model reply. It
// does not touch session or profile state; callers apply the result.
type Orchestrator struct {
	provider llm.Provider
	window   int
	logger   *zap.Logger
}

func NewOrchestrator(provider llm.Provider, window int, logger *zap.Logger) *Orchestrator {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{provider: provider, window: window, logger: logger}
}

// Messages builds the model input for req: the windowed, alternating history
// with the new user message folded in.
func (o *Orchestrator) Messages(req Request) []llm.Message {
	history := Normalize(MessagesFromTurns(req.Turns), o.window)
	return AppendUserMessage(history, req.UserMessage)
}

// Advance runs one turn against the language model. Malformed model output
// is absorbed by Parse; only provider failures are returned as errors.
func (o *Orchestrator) Advance(ctx context.Context, req Request) (TurnResult, error) {
	if o.provider == nil {
		return TurnResult{}, errors.New("conversation: no language model provider")
	}
	if strings.TrimSpace(req.UserMessage) == "" {
		return TurnResult{}, errors.New("conversation: empty user message")
	}

	prompt, err := SelectPrompt(req.State, req.Profile, req.Context)
	if err != nil {
		return TurnResult{}, err
	}
	msgs := o.Messages(req)

	started := time.Now()
	raw, err := o.provider.Chat(ctx, prompt, msgs)
	if err != nil {
		return TurnResult{}, fmt.Errorf("language model chat: %w", err)
	}

	res := Parse(raw)
	o.logger.Debug("model turn completed",
		zap.String("state", req.State.String()),
		zap.Int("history_messages", len(msgs)),
		zap.Duration("latency", time.Since(started)),
		zap.Int("profile_updates", len(res.ProfileUpdates)),
		zap.String("transition", res.StateTransition),
	)
	return res, nil
}
