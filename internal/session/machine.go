package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/sahaj-careers/sahaj/internal/profile"
)

var ErrUnknownState = errors.New("unknown dialogue state")

// Outcome is the part of a completed conversational turn the state machine
// folds into the session and profile.
type Outcome struct {
	UserText       string
	AssistantText  string
	ProfileUpdates profile.Updates
	Transition     string
}

// Applied describes the effects of one Apply call.
type Applied struct {
	Session Session
	Profile profile.Profile
	// Updates is the effective update set, including injected keys.
	Updates profile.Updates
	From    State
	To      State
	Kind    TransitionKind
}

// ProfileChanged reports whether any allow-listed update was applied.
func (a Applied) ProfileChanged() bool { return len(a.Updates) > 0 }

// Apply runs the per-turn merge policy: discovery step increment, completion
// latch, profile merge, state transition, then the user and assistant turns.
func Apply(s Session, p profile.Profile, o Outcome, now time.Time) Applied {
	s = s.Clone()
	from := s.CurrentState

	updates := o.ProfileUpdates.Allowed()
	// The model never drives these two directly.
	delete(updates, profile.KeyDiscoveryStep)
	delete(updates, profile.KeyProfileComplete)
	if len(updates) > 0 && from.IsDiscovery() && p.DiscoveryStep < profile.MaxDiscoveryStep {
		updates.Set(profile.KeyDiscoveryStep, p.DiscoveryStep+1)
	}

	to, kind := ResolveTransition(from, o.Transition)
	if kind == TransitionComplete && !p.ProfileComplete {
		updates.Set(profile.KeyProfileComplete, true)
	}

	if len(updates) > 0 {
		p = profile.Merge(p, updates)
		p.UpdatedAt = now
	}

	if from == StateInterview {
		advanceInterview(&s, o.UserText)
	}
	if to == StateInterview && from != StateInterview {
		s.Context.InterviewStage = 1
		s.Context.InterviewHistory = nil
	}
	s.CurrentState = to

	s.Turns = append(s.Turns,
		Turn{Role: RoleUser, Content: o.UserText, Timestamp: now},
		Turn{Role: RoleAssistant, Content: o.AssistantText, Timestamp: now},
	)
	s.LastActiveAt = now

	return Applied{Session: s, Profile: p, Updates: updates, From: from, To: to, Kind: kind}
}

// Override sets the state directly, bypassing the conversation. Unknown
// targets are refused.
func Override(s Session, target string, now time.Time) (Session, error) {
	next, ok := LookupState(target)
	if !ok {
		return s, fmt.Errorf("%w: %q", ErrUnknownState, target)
	}
	s = s.Clone()
	if next == StateInterview && s.CurrentState != StateInterview {
		s.Context.InterviewStage = 1
		s.Context.InterviewHistory = nil
	}
	s.CurrentState = next
	s.LastActiveAt = now
	return s, nil
}

func advanceInterview(s *Session, answer string) {
	stage := s.Context.InterviewStage
	if stage < 1 {
		stage = 1
	}
	var question string
	for i := len(s.Turns) - 1; i >= 0; i-- {
		if s.Turns[i].Role == RoleAssistant {
			question = s.Turns[i].Content
			break
		}
	}
	s.Context.InterviewHistory = append(s.Context.InterviewHistory, InterviewEntry{
		Stage:    stage,
		Question: question,
		Answer:   answer,
	})
	if stage < MaxInterviewStage {
		stage++
	}
	s.Context.InterviewStage = stage
}
