package session

import "testing"

func TestParseStateFallsBackToDiscovery(t *testing.T) {
	cases := []struct {
		raw  string
		want State
	}{
		{"greeting", StateGreeting},
		{" Courses ", StateCourses},
		{"resume_ready", StateResumeReady},
		{"", StateDiscovery},
		{"profile_complete", StateDiscovery},
		{"admin_mode", StateDiscovery},
	}
	for _, tc := range cases {
		if got := ParseState(tc.raw); got != tc.want {
			t.Fatalf("ParseState(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestResolveTransition(t *testing.T) {
	cases := []struct {
		current  State
		target   string
		want     State
		wantKind TransitionKind
	}{
		{StateDiscovery, "", StateDiscovery, TransitionStay},
		{StateDiscovery, "discovery", StateDiscovery, TransitionStay},
		{StateDiscovery, "jobs", StateJobs, TransitionMove},
		{StateDiscovery, "profile_complete", AfterProfileComplete, TransitionComplete},
		{StateJobs, "the_moon", StateJobs, TransitionRejected},
		{StateResumeReady, "courses", StateCourses, TransitionMove},
	}
	for _, tc := range cases {
		got, kind := ResolveTransition(tc.current, tc.target)
		if got != tc.want || kind != tc.wantKind {
			t.Fatalf("ResolveTransition(%q, %q) = (%q, %d), want (%q, %d)", tc.current, tc.target, got, kind, tc.want, tc.wantKind)
		}
	}
}

func TestContextForInterviewDefaults(t *testing.T) {
	sc := Context{}.For(StateInterview, 0)
	ic, ok := sc.(InterviewContext)
	if !ok {
		t.Fatalf("For(interview) = %T, want InterviewContext", sc)
	}
	if ic.JobRole != "general" || ic.Stage != 1 {
		t.Fatalf("InterviewContext = %+v, want role general stage 1", ic)
	}

	if _, ok := (Context{}).For(StateResumeReady, 0).(ResumeContext); !ok {
		t.Fatalf("For(resume_ready) should be ResumeContext")
	}
	dc, ok := (Context{}).For(StateGreeting, 4).(DiscoveryContext)
	if !ok || dc.Step != 4 {
		t.Fatalf("For(greeting) = %+v, want DiscoveryContext{Step:4}", dc)
	}
}
