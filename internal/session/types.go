package session

import (
	"encoding/json"
	"slices"
	"time"
)

// Role identifies who authored a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one contribution to the conversation.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is one career dialogue owned by a user. Turns are append-only.
type Session struct {
	ID           string    `json:"session_id"`
	UserID       string    `json:"user_id"`
	CurrentState State     `json:"state"`
	Turns        []Turn    `json:"messages"`
	Context      Context   `json:"context"`
	StartedAt    time.Time `json:"started_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// Clone returns a copy that shares no slices with s.
func (s Session) Clone() Session {
	c := s
	c.Turns = slices.Clone(s.Turns)
	c.Context = s.Context.clone()
	return c
}

// Context carries retrieved knowledge and interview progress between turns.
// It is persisted as one JSON document per session.
type Context struct {
	Courses          []json.RawMessage `json:"courses,omitempty"`
	Jobs             []json.RawMessage `json:"jobs,omitempty"`
	JobRole          string            `json:"job_role,omitempty"`
	InterviewStage   int               `json:"interview_stage,omitempty"`
	InterviewHistory []InterviewEntry  `json:"interview_history,omitempty"`
}

// InterviewEntry is one answered mock interview question.
type InterviewEntry struct {
	Stage    int    `json:"stage"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

const (
	// MaxInterviewStage is the closing stage of the mock interview.
	MaxInterviewStage = 5
	defaultJobRole    = "general"
)

func (c Context) clone() Context {
	out := c
	out.Courses = slices.Clone(c.Courses)
	out.Jobs = slices.Clone(c.Jobs)
	out.InterviewHistory = slices.Clone(c.InterviewHistory)
	return out
}

// StateContext is the state specific view of Context handed to prompt
// selection. Only the variants below implement it.
type StateContext interface {
	contextState() State
}

type DiscoveryContext struct {
	Step int
}

type CoursesContext struct {
	Courses []json.RawMessage
}

type JobsContext struct {
	Jobs []json.RawMessage
}

type InterviewContext struct {
	JobRole string
	Stage   int
	History []InterviewEntry
}

type ResumeContext struct{}

func (DiscoveryContext) contextState() State { return StateDiscovery }
func (CoursesContext) contextState() State   { return StateCourses }
func (JobsContext) contextState() State      { return StateJobs }
func (InterviewContext) contextState() State { return StateInterview }
func (ResumeContext) contextState() State    { return StateResume }

// For projects c onto the variant that state's prompt needs. discoveryStep
// is only read for discovery states.
func (c Context) For(state State, discoveryStep int) StateContext {
	switch state {
	case StateGreeting, StateDiscovery:
		return DiscoveryContext{Step: discoveryStep}
	case StateCourses:
		return CoursesContext{Courses: c.Courses}
	case StateJobs:
		return JobsContext{Jobs: c.Jobs}
	case StateInterview:
		role := c.JobRole
		if role == "" {
			role = defaultJobRole
		}
		stage := c.InterviewStage
		if stage < 1 {
			stage = 1
		}
		if stage > MaxInterviewStage {
			stage = MaxInterviewStage
		}
		return InterviewContext{JobRole: role, Stage: stage, History: c.InterviewHistory}
	case StateResume, StateResumeReady:
		return ResumeContext{}
	default:
		return DiscoveryContext{Step: 0}
	}
}
