package session

import "strings"

// State is one stage of the career dialogue.
type State string

const (
	StateGreeting    State = "greeting"
	StateDiscovery   State = "discovery"
	StateCourses     State = "courses"
	StateJobs        State = "jobs"
	StateInterview   State = "interview"
	StateResume      State = "resume"
	StateResumeReady State = "resume_ready"
)

// SignalProfileComplete is the transition target the model uses to report
// that discovery is finished. It is not a state of its own.
const SignalProfileComplete = "profile_complete"

// AfterProfileComplete is where a session goes once discovery completes.
const AfterProfileComplete = StateCourses

var knownStates = map[State]struct{}{
	StateGreeting:    {},
	StateDiscovery:   {},
	StateCourses:     {},
	StateJobs:        {},
	StateInterview:   {},
	StateResume:      {},
	StateResumeReady: {},
}

// States lists every known state in dialogue order.
func States() []State {
	return []State{StateGreeting, StateDiscovery, StateCourses, StateJobs, StateInterview, StateResume, StateResumeReady}
}

// LookupState reports whether raw names a known state.
func LookupState(raw string) (State, bool) {
	s := State(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := knownStates[s]
	return s, ok
}

// ParseState maps a stored value to a known state. Unknown or empty values
// fall back to discovery.
func ParseState(raw string) State {
	if s, ok := LookupState(raw); ok {
		return s
	}
	return StateDiscovery
}

// IsDiscovery reports whether s is part of the profile discovery phase.
func (s State) IsDiscovery() bool {
	return s == StateGreeting || s == StateDiscovery
}

func (s State) String() string { return string(s) }

// TransitionKind classifies a requested transition target.
type TransitionKind int

const (
	TransitionStay TransitionKind = iota
	TransitionMove
	TransitionComplete
	TransitionRejected
)

// ResolveTransition maps a raw transition target to the next state.
// Empty targets and the current state mean stay; the completion signal moves
// to AfterProfileComplete; anything unknown is rejected and leaves current.
func ResolveTransition(current State, target string) (State, TransitionKind) {
	target = strings.TrimSpace(target)
	if target == "" {
		return current, TransitionStay
	}
	if strings.EqualFold(target, SignalProfileComplete) {
		return AfterProfileComplete, TransitionComplete
	}
	next, ok := LookupState(target)
	if !ok {
		return current, TransitionRejected
	}
	if next == current {
		return current, TransitionStay
	}
	return next, TransitionMove
}
